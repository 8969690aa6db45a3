// Package aerotow provides the reference isAerotow collaborator (spec §6):
// given a context, it checks other tracked contexts for a nearby aircraft
// climbing in sync, and reports that as a tow/tug encounter.
//
// Proximity checks are rate-limited the way pkg/flightaware throttles
// outbound API calls, because a naive implementation would otherwise run
// an O(n) neighbour scan on every single position report.
package aerotow

import (
	"golang.org/x/time/rate"

	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
	"github.com/soarwatch/flighttrack/pkg/geo"
)

// NearbySource exposes enough of the factory's tracked set for proximity
// correlation without handing the collaborator the whole factory. The
// trackfactory.Factory type implements this.
type NearbySource interface {
	// Nearby returns a snapshot of every currently tracked context other
	// than aircraftID, for coarse proximity filtering.
	Nearby(aircraftID string) []ContextSnapshot
}

// ContextSnapshot is the minimal view of another tracked context a
// correlator needs: its last known position and its Flight aggregate.
type ContextSnapshot struct {
	AircraftID string
	Position   flight.PositionUpdate
	Flight     flight.Flight
}

// Correlator is the reference isAerotow implementation. It reports a tow
// pairing whenever another tracked aircraft is within ProximityMetres and
// both have been climbing at a similar rate over the trailing window: Tug
// when this context's aircraft is the higher of the two, Tow otherwise.
type Correlator struct {
	Source NearbySource

	ProximityMetres   float64
	ClimbRateEpsilon  float64 // m/s; max allowed difference between the two climb rates
	MinSamplesForRate int

	limiter *rate.Limiter
}

const (
	defaultProximityMetres   = 200.0
	defaultClimbRateEpsilon  = 1.5
	defaultMinSamplesForRate = 3
)

// NewCorrelator returns a Correlator with the reference defaults, throttled
// to at most maxProbesPerSecond proximity scans per second (with a burst of
// one), matching the rate.Limiter construction in pkg/flightaware.
func NewCorrelator(source NearbySource, maxProbesPerSecond float64) *Correlator {
	if maxProbesPerSecond <= 0 {
		maxProbesPerSecond = 5
	}
	return &Correlator{
		Source:            source,
		ProximityMetres:   defaultProximityMetres,
		ClimbRateEpsilon:  defaultClimbRateEpsilon,
		MinSamplesForRate: defaultMinSamplesForRate,
		limiter:           rate.NewLimiter(rate.Limit(maxProbesPerSecond), 1),
	}
}

// Probe implements flightcontext.AerotowProbe. It is throttled: if the
// limiter has no tokens available, it returns (nil, nil) rather than
// blocking the state machine's single-writer loop on a scan.
func (c *Correlator) Probe(ctx *flightcontext.FlightContext) ([]flight.Encounter, error) {
	if !c.limiter.Allow() {
		return nil, nil
	}

	f := ctx.Snapshot()
	if len(f.PositionUpdates) == 0 {
		return nil, nil
	}
	mine := f.PositionUpdates[len(f.PositionUpdates)-1]
	myRate := climbRate(f.PositionUpdates, c.MinSamplesForRate)

	var encounters []flight.Encounter
	for _, other := range c.Source.Nearby(ctx.AircraftID()) {
		if len(other.Flight.PositionUpdates) < c.MinSamplesForRate {
			continue
		}
		dist := geo.Distance(
			geo.Point{Latitude: mine.Latitude, Longitude: mine.Longitude},
			geo.Point{Latitude: other.Position.Latitude, Longitude: other.Position.Longitude},
		)
		if dist > c.ProximityMetres {
			continue
		}
		theirRate := climbRate(other.Flight.PositionUpdates, c.MinSamplesForRate)
		if myRate <= 0 || theirRate <= 0 {
			continue
		}
		if absFloat(myRate-theirRate) > c.ClimbRateEpsilon {
			continue
		}

		encType := flight.EncounterTow
		if mine.Altitude > other.Position.Altitude {
			// The higher aircraft is the one being towed; relative
			// altitude is the only thing that decides the roles.
			encType = flight.EncounterTug
		}
		encounters = append(encounters, flight.Encounter{
			OtherAircraftID: other.AircraftID,
			Type:            encType,
			StartTime:       mine.Timestamp,
		})
	}
	return encounters, nil
}

func climbRate(ps []flight.PositionUpdate, window int) float64 {
	if len(ps) < 2 {
		return 0
	}
	start := len(ps) - window
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

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
