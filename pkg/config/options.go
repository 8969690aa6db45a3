// Package config loads and saves the tunables that govern
// pkg/trackfactory's lifecycle management: how long an idle context lives,
// how often the expiry sweep runs, and whether contexts should run in a
// reduced-memory mode. It follows the same JSON-file-plus-environment-
// override pattern the teacher's own pkg/config uses for its Config type.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Options are the Factory-wide tunables described in spec §6.
type Options struct {
	// ContextExpiration is how long a context may sit idle (no Enqueue
	// calls) before the periodic sweep removes it. Default 5 minutes.
	ContextExpiration time.Duration `json:"context_expiration"`

	// ExpirySweepInterval is how often the factory scans for idle
	// contexts. Default 10 seconds.
	ExpirySweepInterval time.Duration `json:"expiry_sweep_interval"`

	// MinifyMemoryPressure, when true, trims a context's position buffer
	// aggressively after every state transition instead of retaining
	// full history.
	MinifyMemoryPressure bool `json:"minify_memory_pressure"`

	// NearbyRuntime reports whether neighbour data is available to the
	// isAerotow collaborator. When false, FlightContext.New should be
	// given a nil probe and every launch simply falls through Aerotow.
	NearbyRuntime bool `json:"nearby_runtime"`

	// AerotowProbeMaxPerSecond throttles aerotow.Correlator's proximity
	// scans. Default 5.
	AerotowProbeMaxPerSecond float64 `json:"aerotow_probe_max_per_second"`

	// ShardCount is the number of lock stripes in the factory's
	// concurrent map. Default 16.
	ShardCount int `json:"shard_count"`
}

// DefaultOptions returns the reference tunables.
func DefaultOptions() *Options {
	return &Options{
		ContextExpiration:        5 * time.Minute,
		ExpirySweepInterval:      10 * time.Second,
		MinifyMemoryPressure:     false,
		NearbyRuntime:            true,
		AerotowProbeMaxPerSecond: 5,
		ShardCount:               16,
	}
}

// Load reads Options from a JSON file at path, falling back to defaults
// for any field the file omits, then applies environment overrides.
func Load(path string) (*Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvironmentOverrides(opts)
			return opts, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvironmentOverrides(opts)
	return opts, nil
}

// Save writes opts to path as indented JSON.
func Save(path string, opts *Options) error {
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling options: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

func applyEnvironmentOverrides(opts *Options) {
	if v := os.Getenv("FLIGHTTRACK_CONTEXT_EXPIRATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.ContextExpiration = d
		}
	}
	if v := os.Getenv("FLIGHTTRACK_EXPIRY_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.ExpirySweepInterval = d
		}
	}
	if v := os.Getenv("FLIGHTTRACK_MINIFY_MEMORY_PRESSURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.MinifyMemoryPressure = b
		}
	}
	if v := os.Getenv("FLIGHTTRACK_NEARBY_RUNTIME"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.NearbyRuntime = b
		}
	}
	if v := os.Getenv("FLIGHTTRACK_AEROTOW_PROBE_MAX_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.AerotowProbeMaxPerSecond = f
		}
	}
	if v := os.Getenv("FLIGHTTRACK_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.ShardCount = n
		}
	}
}
