package flightcontext

import (
	"time"

	"github.com/soarwatch/flighttrack/pkg/flight"
)

// State is one of the flight-context FSM states.
type State int

const (
	StateInitial State = iota
	StateStationary
	StateDeparting
	StateAerotow
	StateCruise
	StateArriving
	StateArrived
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateStationary:
		return "Stationary"
	case StateDeparting:
		return "Departing"
	case StateAerotow:
		return "Aerotow"
	case StateCruise:
		return "Cruise"
	case StateArriving:
		return "Arriving"
	case StateArrived:
		return "Arrived"
	default:
		return "Unknown"
	}
}

// Trigger is an FSM transition trigger fired by a state handler.
type Trigger int

const (
	triggerNone Trigger = iota
	TriggerDepart
	TriggerTrackAerotow
	TriggerLaunchCompleted
	TriggerLanding
	TriggerLandingAborted
	TriggerArrived
)

// EventType identifies which of the five observer streams an Event belongs to.
type EventType int

const (
	EventTakeoff EventType = iota
	EventLanding
	EventRadarContact
	EventCompletedWithErrors
	EventContextDisposed
)

func (t EventType) String() string {
	switch t {
	case EventTakeoff:
		return "Takeoff"
	case EventLanding:
		return "Landing"
	case EventRadarContact:
		return "RadarContact"
	case EventCompletedWithErrors:
		return "CompletedWithErrors"
	case EventContextDisposed:
		return "ContextDisposed"
	default:
		return "Unknown"
	}
}

// ReasonCode explains a CompletedWithErrors event.
type ReasonCode int

const (
	ReasonNone ReasonCode = iota
	ReasonArrivalLocationUnknown
	ReasonArrivalHeadingUnknown
)

func (r ReasonCode) String() string {
	switch r {
	case ReasonArrivalLocationUnknown:
		return "ArrivalLocationUnknown"
	case ReasonArrivalHeadingUnknown:
		return "ArrivalHeadingUnknown"
	default:
		return "None"
	}
}

// Event is the payload delivered to subscribers: a snapshot of the Flight at
// the moment the event fired.
type Event struct {
	Type       EventType
	AircraftID string
	Flight     flight.Flight
	Reason     ReasonCode
	Time       time.Time
}

// Sink receives events emitted by a FlightContext. The factory owns the sink
// implementation and fans events out to its subscribers; a FlightContext
// never references the factory directly (see DESIGN.md).
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// AerotowProbe is the isAerotow collaborator (spec §6): given a context,
// returns candidate tow/tug pairings with other nearby contexts.
type AerotowProbe func(ctx *FlightContext) ([]flight.Encounter, error)
