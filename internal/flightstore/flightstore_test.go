package flightstore

import (
	"testing"
	"time"
)

// TestConnect exercises the connection-string construction path. Without a
// live database this always returns an error; the useful assertion is that
// Connect fails informatively rather than panicking.
func TestConnect(t *testing.T) {
	cfg := ConnConfig{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		Username: "test",
		Password: "test",
		Database: "flighttrack_test",
		SSLMode:  "disable",
	}

	_, err := Connect(cfg)
	if err == nil {
		t.Skip("a database happens to be reachable at 127.0.0.1:1; skipping negative-path assertion")
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestConnectWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	cfg := ConnConfig{Host: "127.0.0.1", Port: 1, Database: "nope", SSLMode: "disable"}

	start := time.Now()
	_, err := ConnectWithRetry(cfg, 2, time.Millisecond)
	if err == nil {
		t.Skip("a database happens to be reachable at 127.0.0.1:1; skipping negative-path assertion")
	}
	if time.Since(start) > time.Second {
		t.Error("expected ConnectWithRetry to give up quickly with a small initialDelay and maxRetries=2")
	}
}
