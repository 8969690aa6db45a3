package aerotow

import (
	"testing"
	"time"

	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
)

type fakeSource struct {
	others []ContextSnapshot
}

func (f *fakeSource) Nearby(aircraftID string) []ContextSnapshot {
	var out []ContextSnapshot
	for _, o := range f.others {
		if o.AircraftID != aircraftID {
			out = append(out, o)
		}
	}
	return out
}

func climbingFlight(id string, startAlt float64) flight.Flight {
	f := flight.NewFlight(id)
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		f.Insert(flight.PositionUpdate{
			AircraftID: id,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Latitude:   52.0,
			Longitude:  5.0,
			Altitude:   startAlt + float64(i)*20,
			Speed:      60,
			Heading:    90,
		})
	}
	return f.Snapshot()
}

func TestProbeFindsNearbyClimbingPartner(t *testing.T) {
	otherSnap := climbingFlight("tug-1", 10)
	source := &fakeSource{others: []ContextSnapshot{
		{
			AircraftID: "tug-1",
			Position:   otherSnap.PositionUpdates[len(otherSnap.PositionUpdates)-1],
			Flight:     otherSnap,
		},
	}}
	corr := NewCorrelator(source, 1000) // effectively unthrottled for the test

	c := flightcontext.New("glider-1", flightcontext.SinkFunc(func(flightcontext.Event) {}), nil)
	for i := 0; i < 5; i++ {
		c.Enqueue(flight.PositionUpdate{
			AircraftID: "glider-1",
			Timestamp:  time.Date(2026, 7, 1, 12, 0, i, 0, time.UTC),
			Latitude:   52.0001,
			Longitude:  5.0001,
			Altitude:   float64(i) * 20,
			Speed:      60,
			Heading:    90,
		})
	}

	encounters, err := corr.Probe(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(encounters) != 1 {
		t.Fatalf("expected 1 encounter, got %d", len(encounters))
	}
	if encounters[0].OtherAircraftID != "tug-1" {
		t.Errorf("expected partner tug-1, got %q", encounters[0].OtherAircraftID)
	}
}

func TestProbeIgnoresDistantAircraft(t *testing.T) {
	otherSnap := climbingFlight("tug-1", 10)
	farPos := otherSnap.PositionUpdates[len(otherSnap.PositionUpdates)-1]
	farPos.Latitude = 60.0 // far away
	source := &fakeSource{others: []ContextSnapshot{
		{AircraftID: "tug-1", Position: farPos, Flight: otherSnap},
	}}
	corr := NewCorrelator(source, 1000)

	c := flightcontext.New("glider-1", flightcontext.SinkFunc(func(flightcontext.Event) {}), nil)
	for i := 0; i < 5; i++ {
		c.Enqueue(flight.PositionUpdate{
			AircraftID: "glider-1",
			Timestamp:  time.Date(2026, 7, 1, 12, 0, i, 0, time.UTC),
			Latitude:   52.0,
			Longitude:  5.0,
			Altitude:   float64(i) * 20,
			Speed:      60,
			Heading:    90,
		})
	}

	encounters, err := corr.Probe(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(encounters) != 0 {
		t.Fatalf("expected no encounters for a distant aircraft, got %d", len(encounters))
	}
}

func TestProbeThrottled(t *testing.T) {
	source := &fakeSource{}
	corr := NewCorrelator(source, 0.001) // one probe allowed, then throttled
	c := flightcontext.New("glider-1", flightcontext.SinkFunc(func(flightcontext.Event) {}), nil)
	c.Enqueue(flight.PositionUpdate{AircraftID: "glider-1", Timestamp: time.Now(), Altitude: 100, Speed: 60})

	if _, err := corr.Probe(c); err != nil {
		t.Fatalf("unexpected error on first probe: %v", err)
	}
	encounters, err := corr.Probe(c)
	if err != nil {
		t.Fatalf("unexpected error on throttled probe: %v", err)
	}
	if encounters != nil {
		t.Fatalf("expected throttled probe to return nil, got %v", encounters)
	}
}
