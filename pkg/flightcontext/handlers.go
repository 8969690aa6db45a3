package flightcontext

import (
	"math"
	"time"

	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/geo"
	"github.com/soarwatch/flighttrack/pkg/spline"
)

// Tunables for the classification heuristics. These are not exposed through
// pkg/config: they describe the shape of a glider launch/approach, not
// deployment-specific behavior, so they stay as named constants close to the
// handlers that use them.
const (
	movingSpeedKnots       = 30.0
	radarContactAltitude   = 1000.0 // metres
	departureDebounce      = 10 * time.Second
	sinkAltitudeDropMetres = 3.0
	winchHeadingTolerance  = 20.0   // degrees
	winchDriftToleranceM   = 3000.0 // metres
	arrivalAbortAltitude   = 1000.0 // metres
	arrivalTheoryRipen     = 10 * time.Second
	arrivalEstimateCapSecs = 600.0
	cruiseLowAltitude      = 150.0 // metres
	climbRateWindowSamples = 10

	// clockSkewTolerance bounds how far ahead of wall-clock arrival a
	// sample's own timestamp may sit before Enqueue stops trusting it to
	// drive currentPosition/timers (spec §9: production behaviour under
	// future timestamps is left to the implementer).
	clockSkewTolerance = 2 * time.Minute
)

type handlerFunc func(*FlightContext) (Trigger, bool)

var handlers = map[State]handlerFunc{
	StateInitial:    stationaryHandler,
	StateStationary: stationaryHandler,
	StateDeparting:  departingHandler,
	StateAerotow:    aerotowHandler,
	StateCruise:     cruiseHandler,
	StateArriving:   arrivingHandler,
	StateArrived:    arrivedHandler,
}

type transitionKey struct {
	state   State
	trigger Trigger
}

var transitions = map[transitionKey]State{
	{StateInitial, TriggerDepart}:            StateDeparting,
	{StateStationary, TriggerDepart}:         StateDeparting,
	{StateDeparting, TriggerTrackAerotow}:    StateAerotow,
	{StateDeparting, TriggerLaunchCompleted}: StateCruise,
	{StateDeparting, TriggerLanding}:         StateArriving,
	{StateAerotow, TriggerLaunchCompleted}:   StateCruise,
	{StateAerotow, TriggerLanding}:           StateArriving,
	{StateCruise, TriggerLanding}:            StateArriving,
	{StateArriving, TriggerLandingAborted}:   StateCruise,
	{StateArriving, TriggerArrived}:          StateArrived,
}

// stationaryHandler implements spec §4.2.1: classify the first sign of
// motion as either a confirmed takeoff (a prior at-rest sample is buffered)
// or radar acquisition of an aircraft already airborne.
func stationaryHandler(c *FlightContext) (Trigger, bool) {
	speed := c.currentPosition.Speed
	if math.IsNaN(speed) || speed <= movingSpeedKnots {
		return triggerNone, false
	}

	if idx := findLastRestSample(c.flight.PositionUpdates); idx >= 0 {
		startTime := c.flight.PositionUpdates[idx].Timestamp
		c.flight.StartTime = &startTime
		c.flight.DropBefore(startTime)
		c.flight.DepartureInfoFound = flight.InfoEstimated
		departed := c.currentPosition.Timestamp
		c.departureTime = &departed
		c.emitTakeoff()
		return TriggerDepart, true
	}

	if c.currentPosition.Altitude > radarContactAltitude {
		c.flight.DepartureInfoFound = flight.InfoEstimated
		departed := c.currentPosition.Timestamp
		c.departureTime = &departed
		c.emitRadarContact()
		return TriggerDepart, true
	}

	t := c.currentPosition.Timestamp
	c.flight.StartTime = &t
	c.flight.DropBefore(t)
	c.flight.DepartureInfoFound = flight.InfoEstimated
	c.departureTime = &t
	c.emitTakeoff()
	return TriggerDepart, true
}

// departingHandler implements spec §4.2.2: heading acquisition, launch
// method candidate narrowing via the aerotow probe, sink detection, and the
// winch/self-launch climb-rate classifier.
func departingHandler(c *FlightContext) (Trigger, bool) {
	if c.flight.LaunchMethod == flight.LaunchNone {
		sample := firstNWithHeading(c.flight.PositionUpdates, 5)
		if len(sample) < 5 {
			return triggerNone, false
		}
		h := geo.RoundHeading(geo.MeanHeading(headingsOf(sample)))
		c.flight.DepartureHeading = &h
		loc := flight.LatLon{Latitude: sample[0].Latitude, Longitude: sample[0].Longitude}
		c.flight.DepartureLocation = &loc
		c.flight.LaunchMethod = flight.LaunchUnknown | flight.LaunchAerotow | flight.LaunchWinch | flight.LaunchSelf
	}

	if c.departureTime != nil && c.currentPosition.Timestamp.Sub(*c.departureTime) < departureDebounce {
		return triggerNone, false
	}

	if c.flight.LaunchMethod.Has(flight.LaunchUnknown | flight.LaunchAerotow) {
		if trig, fired := c.tryAerotowProbe(); fired {
			return trig, true
		}
	}

	if !c.flight.LaunchMethod.Has(flight.LaunchAerotow) && len(c.flight.PositionUpdates) >= 2 {
		prev := c.flight.PositionUpdates[len(c.flight.PositionUpdates)-2]
		if prev.Altitude-c.currentPosition.Altitude > sinkAltitudeDropMetres {
			return TriggerLanding, true
		}
	}

	if c.flight.LaunchMethod.Has(flight.LaunchUnknown | flight.LaunchWinch) {
		if trig, fired := c.tryWinchClassification(); fired {
			return trig, true
		}
		return triggerNone, false
	}

	if c.flight.LaunchMethod.Has(flight.LaunchUnknown | flight.LaunchSelf) {
		t := c.currentPosition.Timestamp
		c.flight.LaunchFinished = &t
		c.flight.LaunchMethod = flight.LaunchSelf
		c.emitLaunchCompleted()
		return TriggerLaunchCompleted, true
	}

	return triggerNone, false
}

// tryAerotowProbe consults the aerotow collaborator. A confirmed tow/tug
// pairing narrows the candidate set to Aerotow and fires TrackAerotow; a
// negative result drops Aerotow from the candidate set.
func (c *FlightContext) tryAerotowProbe() (Trigger, bool) {
	if c.probe == nil {
		c.flight.LaunchMethod = c.flight.LaunchMethod.Clear(flight.LaunchAerotow)
		return triggerNone, false
	}
	encounters, err := c.probe(c)
	if err != nil {
		return triggerNone, false
	}
	for _, e := range encounters {
		if e.Type != flight.EncounterTug && e.Type != flight.EncounterTow {
			continue
		}
		side := flight.LaunchTowPlane
		if e.Type == flight.EncounterTug {
			side = flight.LaunchOnTow
		}
		c.flight.LaunchMethod = flight.LaunchAerotow | side
		c.flight.Encounters = append(c.flight.Encounters, e)
		return TriggerTrackAerotow, true
	}
	c.flight.LaunchMethod = c.flight.LaunchMethod.Clear(flight.LaunchAerotow)
	return triggerNone, false
}

// tryWinchClassification fits a climb-rate spline over the buffered
// altitude history; once the climb has ended (f' < 0) it accepts Winch if
// heading and displacement stayed within tolerance, otherwise clears it.
func (c *FlightContext) tryWinchClassification() (Trigger, bool) {
	if c.flight.StartTime == nil {
		return triggerNone, false
	}
	xs, ys := elapsedAltitudeSeries(c.flight.PositionUpdates, *c.flight.StartTime)
	if len(xs) < 2 {
		return triggerNone, false
	}
	s, err := spline.Fit(xs, ys)
	if err != nil {
		return triggerNone, false
	}
	now := xs[len(xs)-1]
	if s.Deriv(now) >= 0 {
		return triggerNone, false
	}

	var nonZeroHeadings []float64
	for i, u := range c.flight.PositionUpdates {
		if i == 0 {
			continue // excluded per spec: the first sample whose heading is 0
		}
		if hasHeading(u) {
			nonZeroHeadings = append(nonZeroHeadings, u.Heading)
		}
	}
	rejected := false
	if len(nonZeroHeadings) > 0 {
		mean := geo.MeanHeading(nonZeroHeadings)
		rejected = headingRejected(c.flight.PositionUpdates, mean, winchHeadingTolerance)
	}
	if !rejected && len(c.flight.PositionUpdates) > 0 {
		first := c.flight.PositionUpdates[0]
		firstLoc := geo.Point{Latitude: first.Latitude, Longitude: first.Longitude}
		curLoc := geo.Point{Latitude: c.currentPosition.Latitude, Longitude: c.currentPosition.Longitude}
		if geo.Distance(firstLoc, curLoc) > winchDriftToleranceM {
			rejected = true
		}
	}

	if rejected {
		c.flight.LaunchMethod = c.flight.LaunchMethod.Clear(flight.LaunchWinch)
		return triggerNone, false
	}

	t := c.currentPosition.Timestamp
	c.flight.LaunchFinished = &t
	c.flight.LaunchMethod = flight.LaunchWinch
	c.emitLaunchCompleted()
	return TriggerLaunchCompleted, true
}

// aerotowHandler watches an active tow for release. There is no dedicated
// spec section for this state; release detection mirrors the Departing
// sink check, re-querying the same collaborator used to confirm the tow
// (see DESIGN.md Open Question: Aerotow release detection).
func aerotowHandler(c *FlightContext) (Trigger, bool) {
	partner := activeAerotowPartner(c.flight)
	if c.probe != nil {
		encounters, err := c.probe(c)
		if err == nil {
			for _, e := range encounters {
				if e.OtherAircraftID == partner && (e.Type == flight.EncounterTug || e.Type == flight.EncounterTow) && e.EndTime.IsZero() {
					return triggerNone, false // still under tow
				}
			}
		}
	}

	if len(c.flight.PositionUpdates) < 2 {
		return triggerNone, false
	}
	prev := c.flight.PositionUpdates[len(c.flight.PositionUpdates)-2]
	if prev.Altitude-c.currentPosition.Altitude > sinkAltitudeDropMetres {
		return TriggerLanding, true
	}

	t := c.currentPosition.Timestamp
	c.flight.LaunchFinished = &t
	c.emitLaunchCompleted()
	return TriggerLaunchCompleted, true
}

// cruiseHandler implements spec §4.2.4 (Open Question resolved in
// DESIGN.md): three consecutive strictly-decreasing altitude samples, the
// latest of which is below a low-altitude threshold, are taken as the start
// of a landing approach.
func cruiseHandler(c *FlightContext) (Trigger, bool) {
	ps := c.flight.PositionUpdates
	n := len(ps)
	if n < 3 {
		return triggerNone, false
	}
	descending := ps[n-3].Altitude > ps[n-2].Altitude && ps[n-2].Altitude > ps[n-1].Altitude
	if descending && c.currentPosition.Altitude < cruiseLowAltitude {
		return TriggerLanding, true
	}
	return triggerNone, false
}

// arrivingHandler implements spec §4.2.3: wheels-down confirmation,
// ripening of a previous estimate, aborting the approach once altitude is
// back above arrivalAbortAltitude,
// or a fresh time-to-touchdown estimate armed behind a cancellable timer.
func arrivingHandler(c *FlightContext) (Trigger, bool) {
	c.cancelArrivalTimer()

	if c.currentPosition.Altitude > arrivalAbortAltitude {
		return TriggerLandingAborted, true
	}

	recentHeadings := lastNWithHeading(c.flight.PositionUpdates, 5)

	if c.currentPosition.Speed == 0 {
		t := c.currentPosition.Timestamp
		c.flight.EndTime = &t
		c.flight.ArrivalInfoFound = flight.InfoConfirmed
		loc := flight.LatLon{Latitude: c.currentPosition.Latitude, Longitude: c.currentPosition.Longitude}
		c.flight.ArrivalLocation = &loc
		if len(recentHeadings) > 0 {
			h := geo.RoundHeading(geo.MeanHeading(headingsOf(recentHeadings)))
			c.flight.ArrivalHeading = &h
		}
		c.emitLanding()
		return TriggerArrived, true
	}

	if c.flight.ArrivalInfoFound == flight.InfoEstimated && c.flight.EndTime != nil &&
		c.currentPosition.Timestamp.After(c.flight.EndTime.Add(arrivalTheoryRipen)) {
		c.emitLanding()
		return TriggerArrived, true
	}

	rate := meanClimbRate(c.flight.PositionUpdates, climbRateWindowSamples)
	if rate >= 0 {
		return triggerNone, false
	}
	etuaSeconds := c.currentPosition.Altitude / math.Abs(rate)
	if math.IsInf(etuaSeconds, 0) || etuaSeconds > arrivalEstimateCapSecs {
		return triggerNone, false
	}

	estimated := c.currentPosition.Timestamp.Add(time.Duration(etuaSeconds * float64(time.Second)))
	c.flight.EndTime = &estimated
	c.flight.ArrivalInfoFound = flight.InfoEstimated
	if len(recentHeadings) > 0 {
		h := geo.RoundHeading(geo.MeanHeading(headingsOf(recentHeadings)))
		c.flight.ArrivalHeading = &h
	}
	c.armArrivalTimer(estimated.Add(arrivalTheoryRipen))
	return triggerNone, false
}

// arrivedHandler runs once on entry to the terminal state. A flight that
// reached Arrived without a confirmed arrival location or heading fires
// CompletedWithErrors so downstream consumers know the record is partial.
func arrivedHandler(c *FlightContext) (Trigger, bool) {
	if reason, missing := missingArrivalReason(c.flight); missing {
		c.emitCompletedWithErrors(reason)
	}
	return triggerNone, false
}
