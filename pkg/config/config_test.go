package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.ContextExpiration != 5*time.Minute {
		t.Errorf("expected default ContextExpiration 5m, got %v", opts.ContextExpiration)
	}
	if opts.ExpirySweepInterval != 10*time.Second {
		t.Errorf("expected default ExpirySweepInterval 10s, got %v", opts.ExpirySweepInterval)
	}
	if opts.MinifyMemoryPressure {
		t.Error("expected MinifyMemoryPressure false by default")
	}
	if !opts.NearbyRuntime {
		t.Error("expected NearbyRuntime true by default")
	}
	if opts.ShardCount != 16 {
		t.Errorf("expected default ShardCount 16, got %d", opts.ShardCount)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	opts, err := Load("/nonexistent/path/options.json")
	if err != nil {
		t.Fatalf("expected no error for a missing file, got: %v", err)
	}
	if opts.ShardCount != DefaultOptions().ShardCount {
		t.Error("expected defaults for a missing file")
	}
}

func TestLoadValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "options.json")

	want := DefaultOptions()
	want.ContextExpiration = 2 * time.Minute
	want.MinifyMemoryPressure = true
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ContextExpiration != want.ContextExpiration {
		t.Errorf("expected ContextExpiration %v, got %v", want.ContextExpiration, got.ContextExpiration)
	}
	if !got.MinifyMemoryPressure {
		t.Error("expected MinifyMemoryPressure preserved across save/load")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "invalid.json")
	if err := os.WriteFile(path, []byte("{ not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "options.json")
	if err := Save(path, DefaultOptions()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	os.Setenv("FLIGHTTRACK_CONTEXT_EXPIRATION", "90s")
	os.Setenv("FLIGHTTRACK_SHARD_COUNT", "4")
	os.Setenv("FLIGHTTRACK_MINIFY_MEMORY_PRESSURE", "true")
	defer func() {
		os.Unsetenv("FLIGHTTRACK_CONTEXT_EXPIRATION")
		os.Unsetenv("FLIGHTTRACK_SHARD_COUNT")
		os.Unsetenv("FLIGHTTRACK_MINIFY_MEMORY_PRESSURE")
	}()

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.ContextExpiration != 90*time.Second {
		t.Errorf("expected env override ContextExpiration 90s, got %v", opts.ContextExpiration)
	}
	if opts.ShardCount != 4 {
		t.Errorf("expected env override ShardCount 4, got %d", opts.ShardCount)
	}
	if !opts.MinifyMemoryPressure {
		t.Error("expected env override MinifyMemoryPressure true")
	}
}
