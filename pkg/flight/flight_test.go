package flight

import (
	"testing"
	"time"
)

func at(seconds int) time.Time {
	return time.Date(2026, 7, 1, 12, 0, seconds, 0, time.UTC)
}

func TestInsertKeepsSortedOrder(t *testing.T) {
	f := NewFlight("glider-1")
	f.Insert(PositionUpdate{AircraftID: "glider-1", Timestamp: at(10)})
	f.Insert(PositionUpdate{AircraftID: "glider-1", Timestamp: at(0)})
	f.Insert(PositionUpdate{AircraftID: "glider-1", Timestamp: at(5)})

	want := []int{0, 5, 10}
	for i, u := range f.PositionUpdates {
		if u.Timestamp.Second() != want[i] {
			t.Errorf("position %d: got second %d, want %d", i, u.Timestamp.Second(), want[i])
		}
	}
}

func TestInsertIdempotent(t *testing.T) {
	f := NewFlight("glider-1")
	u := PositionUpdate{AircraftID: "glider-1", Timestamp: at(0), Altitude: 100}
	f.Insert(u)
	before := f.Snapshot()
	f.Insert(u)
	after := f.Snapshot()

	if before.Revision != after.Revision {
		t.Errorf("re-inserting an identical sample bumped the revision: %d -> %d", before.Revision, after.Revision)
	}
	if len(after.PositionUpdates) != 1 {
		t.Errorf("expected 1 position update, got %d", len(after.PositionUpdates))
	}
}

func TestDropBefore(t *testing.T) {
	f := NewFlight("glider-1")
	for _, s := range []int{0, 5, 10, 15} {
		f.Insert(PositionUpdate{AircraftID: "glider-1", Timestamp: at(s)})
	}
	f.DropBefore(at(10))

	if len(f.PositionUpdates) != 2 {
		t.Fatalf("expected 2 remaining updates, got %d", len(f.PositionUpdates))
	}
	if f.PositionUpdates[0].Timestamp.Second() != 10 {
		t.Errorf("expected first remaining update at second 10, got %d", f.PositionUpdates[0].Timestamp.Second())
	}
}

func TestLaunchMethodCandidateSet(t *testing.T) {
	m := LaunchUnknown | LaunchAerotow | LaunchWinch | LaunchSelf
	if !m.Has(LaunchUnknown | LaunchWinch) {
		t.Fatal("expected candidate set to carry Winch")
	}
	m = m.Clear(LaunchWinch)
	if m.Has(LaunchWinch) {
		t.Fatal("expected Winch cleared")
	}
	if !m.Has(LaunchAerotow) || !m.Has(LaunchSelf) {
		t.Fatal("expected remaining candidates untouched")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	f := NewFlight("glider-1")
	start := at(0)
	f.StartTime = &start

	snap := f.Snapshot()
	later := at(100)
	*f.StartTime = later

	if snap.StartTime.Second() != 0 {
		t.Errorf("snapshot was mutated by later change to the source flight: got second %d", snap.StartTime.Second())
	}
}
