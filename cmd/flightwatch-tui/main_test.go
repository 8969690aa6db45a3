package main

import (
	"strings"
	"testing"
	"time"

	"github.com/soarwatch/flighttrack/pkg/config"
	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
	"github.com/soarwatch/flighttrack/pkg/trackfactory"
)

func TestFormatEvent(t *testing.T) {
	e := flightcontext.Event{
		Type:       flightcontext.EventTakeoff,
		AircraftID: "glider-1",
		Time:       time.Date(2026, 7, 1, 12, 30, 45, 0, time.UTC),
	}
	line := formatEvent(e)
	if !strings.Contains(line, "glider-1") {
		t.Errorf("expected formatted line to contain the aircraft ID, got %q", line)
	}
	if !strings.Contains(line, "12:30:45") {
		t.Errorf("expected formatted line to contain the event time, got %q", line)
	}
}

func TestAircraftSummaryLinesEmpty(t *testing.T) {
	opts := config.DefaultOptions()
	opts.NearbyRuntime = false
	f := trackfactory.New(opts, nil)

	lines := aircraftSummaryLines(f)
	if len(lines) != 1 || lines[0] != "(none tracked)" {
		t.Errorf("expected a single placeholder line for no tracked aircraft, got %v", lines)
	}
}

func TestAircraftSummaryLinesSorted(t *testing.T) {
	opts := config.DefaultOptions()
	opts.NearbyRuntime = false
	f := trackfactory.New(opts, nil)

	for _, id := range []string{"glider-2", "glider-1"} {
		ctx := f.AttachNew(id)
		ctx.Enqueue(flight.PositionUpdate{
			AircraftID: id,
			Timestamp:  time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
			Latitude:   52.0, Longitude: 5.0, Altitude: 500, Speed: 80,
		})
	}

	lines := aircraftSummaryLines(f)
	if len(lines) != 2 {
		t.Fatalf("expected 2 summary lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "glider-1") || !strings.HasPrefix(lines[1], "glider-2") {
		t.Errorf("expected lines sorted by aircraft ID, got %v", lines)
	}
}
