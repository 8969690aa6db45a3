package flightcontext

import (
	"math"
	"time"

	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/geo"
)

func hasHeading(u flight.PositionUpdate) bool {
	return u.Heading != 0 && !math.IsNaN(u.Heading)
}

func isAtRest(u flight.PositionUpdate) bool {
	return u.Speed == 0 || math.IsNaN(u.Speed)
}

// firstNWithHeading returns the first n samples (in buffer order) that carry
// a usable heading, or fewer if the buffer doesn't yet have n of them.
func firstNWithHeading(ps []flight.PositionUpdate, n int) []flight.PositionUpdate {
	var out []flight.PositionUpdate
	for _, u := range ps {
		if hasHeading(u) {
			out = append(out, u)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

// lastNWithHeading returns the most recent n samples (in buffer order) that
// carry a usable heading.
func lastNWithHeading(ps []flight.PositionUpdate, n int) []flight.PositionUpdate {
	var out []flight.PositionUpdate
	for i := len(ps) - 1; i >= 0 && len(out) < n; i-- {
		if hasHeading(ps[i]) {
			out = append([]flight.PositionUpdate{ps[i]}, out...)
		}
	}
	return out
}

func headingsOf(ps []flight.PositionUpdate) []float64 {
	hs := make([]float64, len(ps))
	for i, u := range ps {
		hs[i] = u.Heading
	}
	return hs
}

// findLastRestSample walks backward from the sample before the most recent
// one, returning the index of the latest prior sample at rest (speed 0 or
// NaN), or -1 if none is buffered.
func findLastRestSample(ps []flight.PositionUpdate) int {
	for i := len(ps) - 2; i >= 0; i-- {
		if isAtRest(ps[i]) {
			return i
		}
	}
	return -1
}

// elapsedAltitudeSeries returns (seconds since epoch, altitude) pairs for
// every buffered sample, suitable for fitting a climb-rate spline.
func elapsedAltitudeSeries(ps []flight.PositionUpdate, epoch time.Time) ([]float64, []float64) {
	xs := make([]float64, 0, len(ps))
	ys := make([]float64, 0, len(ps))
	var lastX float64
	first := true
	for _, u := range ps {
		x := u.Timestamp.Sub(epoch).Seconds()
		if !first && x <= lastX {
			continue // spline.Fit requires strictly increasing xs
		}
		xs = append(xs, x)
		ys = append(ys, u.Altitude)
		lastX = x
		first = false
	}
	return xs, ys
}

// meanClimbRate returns the average rate of altitude change per second over
// the last n samples (negative during a descent), or 0 if there isn't enough
// buffered history to measure a rate.
func meanClimbRate(ps []flight.PositionUpdate, n int) float64 {
	if len(ps) < 2 {
		return 0
	}
	start := len(ps) - n
	if start < 0 {
		start = 0
	}
	first, last := ps[start], ps[len(ps)-1]
	dt := last.Timestamp.Sub(first.Timestamp).Seconds()
	if dt <= 0 {
		return 0
	}
	return (last.Altitude - first.Altitude) / dt
}

// activeAerotowPartner returns the aircraft ID of the most recent Aerotow
// pairing recorded for this flight, or "" if none has been recorded.
func activeAerotowPartner(f *flight.Flight) string {
	for i := len(f.Encounters) - 1; i >= 0; i-- {
		e := f.Encounters[i]
		if e.Type == flight.EncounterTug || e.Type == flight.EncounterTow {
			return e.OtherAircraftID
		}
	}
	return ""
}

func missingArrivalReason(f *flight.Flight) (ReasonCode, bool) {
	switch {
	case f.ArrivalLocation == nil:
		return ReasonArrivalLocationUnknown, true
	case f.ArrivalHeading == nil:
		return ReasonArrivalHeadingUnknown, true
	default:
		return ReasonNone, false
	}
}

// headingRejected reports whether any buffered sample's heading deviates
// from the reference by more than toleranceDegrees.
func headingRejected(ps []flight.PositionUpdate, reference, toleranceDegrees float64) bool {
	for _, u := range ps {
		if !hasHeading(u) {
			continue
		}
		if geo.HeadingError(reference, u.Heading) > toleranceDegrees {
			return true
		}
	}
	return false
}
