package flightcontext

import (
	"sync"
	"time"

	"github.com/soarwatch/flighttrack/pkg/flight"
)

// FlightContext tracks one aircraft across a single takeoff-to-landing
// cycle. All mutation happens through Enqueue, which a single caller (the
// factory's demultiplexer) is expected to serialize per aircraft; the
// embedded mutex also guards the arrival-theory timer, which runs on its
// own goroutine.
type FlightContext struct {
	mu sync.Mutex

	aircraftID string
	flight     *flight.Flight

	currentPosition flight.PositionUpdate
	lastActive      time.Time
	state           State

	// departureTime is the timestamp of the sample that first triggered
	// Depart; it anchors the Departing-state debounce window and is
	// distinct from flight.StartTime, which may be backdated to an
	// earlier at-rest sample.
	departureTime *time.Time

	minify bool

	sink  Sink
	probe AerotowProbe

	arrivalTimer  *time.Timer
	arrivalCancel func()
}

// New returns a fresh FlightContext for aircraftID. sink receives every
// event the context emits; probe is the isAerotow collaborator and may be
// nil, in which case the context always falls through past Aerotow.
func New(aircraftID string, sink Sink, probe AerotowProbe) *FlightContext {
	return &FlightContext{
		aircraftID: aircraftID,
		flight:     flight.NewFlight(aircraftID),
		state:      StateInitial,
		sink:       sink,
		probe:      probe,
	}
}

// AircraftID returns the aircraft this context tracks.
func (c *FlightContext) AircraftID() string { return c.aircraftID }

// State returns the context's current FSM state.
func (c *FlightContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastActive returns the wall-clock time of the most recent Enqueue call.
func (c *FlightContext) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Snapshot returns a deep copy of the Flight aggregate built up so far.
func (c *FlightContext) Snapshot() flight.Flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight.Snapshot()
}

// EnableMemoryPressureMode engages the factory's minifyMemoryPressure
// option on this context: its position buffer is trimmed aggressively
// after every state transition rather than retained in full.
func (c *FlightContext) EnableMemoryPressureMode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minify = true
	c.trimBuffer()
}

const minifyKeepSamples = 10

func (c *FlightContext) trimBuffer() {
	if !c.minify {
		return
	}
	ps := c.flight.PositionUpdates
	if len(ps) > minifyKeepSamples {
		c.flight.PositionUpdates = append([]flight.PositionUpdate(nil), ps[len(ps)-minifyKeepSamples:]...)
	}
}

// Enqueue inserts a position report and runs it through the current
// state's handler. Re-enqueuing an identical report is a no-op (see
// flight.Flight.Insert); enqueuing a report for a different aircraft ID
// than the one this context tracks is a programmer error and panics.
//
// A sample timestamped more than clockSkewTolerance ahead of wall-clock
// arrival is still inserted into the buffer in timestamp order, but does
// not become currentPosition and does not run the state handler: a
// skewed clock can corrupt a single reading's ordering position without
// being allowed to fire a departure, landing, or arrival-theory timer off
// of a timestamp that hasn't actually happened yet.
func (c *FlightContext) Enqueue(update flight.PositionUpdate) {
	if update.AircraftID != c.aircraftID {
		panic("flightcontext: Enqueue called with mismatched aircraft ID")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flight.Insert(update)
	now := time.Now()
	c.lastActive = now
	if update.Timestamp.Sub(now) > clockSkewTolerance {
		return
	}
	c.currentPosition = update
	c.runState()
}

// runState dispatches to the current state's handler and, while the
// handler fires a trigger with a valid transition, moves to the next state
// and runs that state's handler for the same intake. The intake ends when
// a handler fires no trigger or the trigger has no transition from the
// current state.
func (c *FlightContext) runState() {
	if c.state == StateArrived && c.currentPosition.Speed > movingSpeedKnots {
		c.resetForNewFlight()
	}

	h, ok := handlers[c.state]
	if !ok {
		return
	}
	trig, fired := h(c)
	for fired {
		next, ok := transitions[transitionKey{c.state, trig}]
		if !ok {
			return
		}
		c.state = next
		c.trimBuffer()
		if h, ok = handlers[c.state]; !ok {
			return
		}
		trig, fired = h(c)
	}
}

// resetForNewFlight starts a new Flight aggregate for the same aircraft,
// letting a context be reused once a prior flight has reached Arrived.
func (c *FlightContext) resetForNewFlight() {
	last := c.currentPosition
	c.flight = flight.NewFlight(c.aircraftID)
	c.flight.Insert(last)
	c.departureTime = nil
	c.state = StateInitial
}

func (c *FlightContext) armArrivalTimer(fireAt time.Time) {
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	cancelled := false
	c.arrivalCancel = func() { cancelled = true }
	c.arrivalTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cancelled {
			return
		}
		if c.state != StateArriving || c.flight.ArrivalInfoFound != flight.InfoEstimated {
			return
		}
		c.emitLanding()
		c.state = StateArrived
		arrivedHandler(c)
	})
}

func (c *FlightContext) cancelArrivalTimer() {
	if c.arrivalCancel != nil {
		c.arrivalCancel()
		c.arrivalCancel = nil
	}
	if c.arrivalTimer != nil {
		c.arrivalTimer.Stop()
		c.arrivalTimer = nil
	}
}

// Dispose cancels any pending arrival timer and emits ContextDisposed. The
// factory calls this when evicting an expired context; Detach does not.
func (c *FlightContext) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelArrivalTimer()
	c.emit(Event{
		Type:       EventContextDisposed,
		AircraftID: c.aircraftID,
		Flight:     c.flight.Snapshot(),
		Time:       time.Now(),
	})
}

func (c *FlightContext) emit(e Event) {
	if c.sink != nil {
		c.sink.Emit(e)
	}
}

func (c *FlightContext) emitTakeoff() {
	c.emit(Event{Type: EventTakeoff, AircraftID: c.aircraftID, Flight: c.flight.Snapshot(), Time: c.currentPosition.Timestamp})
}

func (c *FlightContext) emitRadarContact() {
	c.emit(Event{Type: EventRadarContact, AircraftID: c.aircraftID, Flight: c.flight.Snapshot(), Time: c.currentPosition.Timestamp})
}

func (c *FlightContext) emitLaunchCompleted() {
	// LaunchCompleted is an internal milestone, not one of the five
	// observable streams (spec §6); it's folded into the next Landing or
	// CompletedWithErrors snapshot instead of emitted on its own.
}

func (c *FlightContext) emitLanding() {
	c.emit(Event{Type: EventLanding, AircraftID: c.aircraftID, Flight: c.flight.Snapshot(), Time: c.currentPosition.Timestamp})
}

func (c *FlightContext) emitCompletedWithErrors(reason ReasonCode) {
	c.emit(Event{Type: EventCompletedWithErrors, AircraftID: c.aircraftID, Flight: c.flight.Snapshot(), Reason: reason, Time: time.Now()})
}
