package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/soarwatch/flighttrack/pkg/flight"
)

func TestStyleForLaunch(t *testing.T) {
	cases := []struct {
		method flight.LaunchMethod
		want   tcell.Color
	}{
		{flight.LaunchWinch, tcell.ColorYellow},
		{flight.LaunchAerotow, tcell.ColorGreen},
		{flight.LaunchSelf, tcell.ColorLightBlue},
		{flight.LaunchNone, tcell.ColorWhite},
		{flight.LaunchUnknown, tcell.ColorWhite},
	}
	for _, c := range cases {
		got, _, _ := styleForLaunch(c.method).Decompose()
		if got != c.want {
			t.Errorf("styleForLaunch(%v): got color %v, want %v", c.method, got, c.want)
		}
	}
}
