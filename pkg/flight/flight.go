// Package flight holds the data model shared by pkg/flightcontext and
// pkg/trackfactory: position reports, the per-aircraft Flight aggregate,
// launch-method classification, and tow/tug encounters.
package flight

import (
	"sort"
	"time"
)

// PositionUpdate is an immutable sample of an aircraft's state at a point
// in time. The wire parser that produces these is external to this module.
type PositionUpdate struct {
	AircraftID string
	Timestamp  time.Time // UTC; monotonic within one aircraft, but callers
	// may enqueue samples out of order.
	Latitude  float64
	Longitude float64
	Altitude  float64 // metres, AGL or MSL as supplied; not converted here
	Speed     float64 // knots; may be NaN
	Heading   float64 // degrees [0,360); 0 also means "unknown, at rest"
}

// InfoState is the tri-state confidence marker for departure/arrival info.
type InfoState int

const (
	InfoUnknown InfoState = iota
	InfoEstimated
	InfoConfirmed
)

func (s InfoState) String() string {
	switch s {
	case InfoEstimated:
		return "estimated"
	case InfoConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// LaunchMethod is a bitflag set. Prior to classification it may carry a
// candidate set (Unknown | Aerotow | Winch | Self); once classification
// completes it carries exactly one of {Aerotow, Winch, Self}, optionally
// combined with OnTow or TowPlane to record which side of an aerotow pair
// this aircraft was.
type LaunchMethod uint8

const (
	LaunchNone    LaunchMethod = 0
	LaunchUnknown LaunchMethod = 1 << iota
	LaunchAerotow
	LaunchWinch
	LaunchSelf
	LaunchOnTow
	LaunchTowPlane
)

// Has reports whether m carries every bit of other.
func (m LaunchMethod) Has(other LaunchMethod) bool { return m&other == other }

// Any reports whether m carries any bit of other.
func (m LaunchMethod) Any(other LaunchMethod) bool { return m&other != 0 }

// Clear returns m with every bit of other removed.
func (m LaunchMethod) Clear(other LaunchMethod) LaunchMethod { return m &^ other }

func (m LaunchMethod) String() string {
	if m == LaunchNone {
		return "None"
	}
	names := []struct {
		bit  LaunchMethod
		name string
	}{
		{LaunchUnknown, "Unknown"},
		{LaunchAerotow, "Aerotow"},
		{LaunchWinch, "Winch"},
		{LaunchSelf, "Self"},
		{LaunchOnTow, "OnTow"},
		{LaunchTowPlane, "TowPlane"},
	}
	s := ""
	for _, n := range names {
		if m.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// EncounterType classifies the role an aircraft played in an aerotow pairing.
type EncounterType int

const (
	EncounterNone EncounterType = iota
	EncounterTug
	EncounterTow
)

// Encounter records a tow/tug pairing between two aircraft.
type Encounter struct {
	OtherAircraftID string
	Type            EncounterType
	StartTime       time.Time
	EndTime         time.Time
}

// LatLon is a point on the earth's surface.
type LatLon struct {
	Latitude  float64
	Longitude float64
}

// Flight is the mutable per-aircraft aggregate built up over the course of
// one takeoff-to-landing cycle.
type Flight struct {
	AircraftID string

	StartTime *time.Time
	EndTime   *time.Time

	DepartureLocation *LatLon
	ArrivalLocation   *LatLon

	// DepartureHeading and ArrivalHeading, when set, are in [1, 360]; 0 is
	// reserved to mean "unset" and a computed 0 is stored as 360.
	DepartureHeading *int
	ArrivalHeading   *int

	DepartureInfoFound InfoState
	ArrivalInfoFound   InfoState

	LaunchMethod   LaunchMethod
	LaunchFinished *time.Time

	Encounters []Encounter

	// PositionUpdates is kept sorted ascending by Timestamp once observed
	// by a state handler; insertion may arrive unordered.
	PositionUpdates []PositionUpdate

	// Revision counts changes made through Insert and DropBefore, letting
	// consumers (notably internal/flightstore) detect whether the position
	// buffer changed without deep-comparing slices. Direct assignments to
	// the other fields do not bump it.
	Revision int
}

// NewFlight returns an empty Flight for the given aircraft.
func NewFlight(aircraftID string) *Flight {
	return &Flight{AircraftID: aircraftID}
}

// Insert adds update to PositionUpdates, keeping the slice sorted ascending
// by Timestamp. Re-inserting an identical (AircraftID, Timestamp) sample is
// idempotent: it replaces the existing entry rather than duplicating it.
func (f *Flight) Insert(update PositionUpdate) {
	i := sort.Search(len(f.PositionUpdates), func(i int) bool {
		return !f.PositionUpdates[i].Timestamp.Before(update.Timestamp)
	})
	if i < len(f.PositionUpdates) && f.PositionUpdates[i].Timestamp.Equal(update.Timestamp) {
		if f.PositionUpdates[i] == update {
			return // identical re-enqueue: no-op, no revision bump
		}
		f.PositionUpdates[i] = update
		f.Revision++
		return
	}
	f.PositionUpdates = append(f.PositionUpdates, PositionUpdate{})
	copy(f.PositionUpdates[i+1:], f.PositionUpdates[i:])
	f.PositionUpdates[i] = update
	f.Revision++
}

// DropBefore removes every buffered update strictly earlier than cutoff.
func (f *Flight) DropBefore(cutoff time.Time) {
	i := sort.Search(len(f.PositionUpdates), func(i int) bool {
		return !f.PositionUpdates[i].Timestamp.Before(cutoff)
	})
	if i == 0 {
		return
	}
	f.PositionUpdates = append([]PositionUpdate(nil), f.PositionUpdates[i:]...)
	f.Revision++
}

// Snapshot returns a deep copy of f suitable for handing to an observer or
// a persistence sink without risking a data race with further mutation.
func (f *Flight) Snapshot() Flight {
	cp := *f
	cp.PositionUpdates = append([]PositionUpdate(nil), f.PositionUpdates...)
	cp.Encounters = append([]Encounter(nil), f.Encounters...)
	if f.StartTime != nil {
		t := *f.StartTime
		cp.StartTime = &t
	}
	if f.EndTime != nil {
		t := *f.EndTime
		cp.EndTime = &t
	}
	if f.DepartureLocation != nil {
		l := *f.DepartureLocation
		cp.DepartureLocation = &l
	}
	if f.ArrivalLocation != nil {
		l := *f.ArrivalLocation
		cp.ArrivalLocation = &l
	}
	if f.DepartureHeading != nil {
		h := *f.DepartureHeading
		cp.DepartureHeading = &h
	}
	if f.ArrivalHeading != nil {
		h := *f.ArrivalHeading
		cp.ArrivalHeading = &h
	}
	if f.LaunchFinished != nil {
		t := *f.LaunchFinished
		cp.LaunchFinished = &t
	}
	return cp
}
