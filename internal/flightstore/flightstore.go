// Package flightstore persists completed and in-progress flights to
// PostgreSQL. It mirrors internal/db's connection and upsert idiom, adapted
// from aircraft/telescope rows to the Flight aggregate described in
// pkg/flight.
package flightstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/soarwatch/flighttrack/pkg/flight"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
)

//go:embed schema.sql
var schemaFS embed.FS

// ConnConfig is the subset of connection settings flightstore needs. It is
// deliberately smaller than a general database config: flightstore owns
// exactly one schema and has no telescope- or ADS-B-specific settings to
// carry.
type ConnConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// Store wraps the connection pool; statements are prepared per transaction
// by the methods that use them.
type Store struct {
	*sql.DB
}

// Connect opens a connection pool against cfg and verifies it with a ping.
func Connect(cfg ConnConfig) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("flightstore: opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("flightstore: pinging database: %w", err)
	}

	return &Store{DB: sqlDB}, nil
}

// ConnectWithRetry retries Connect with exponential backoff, for startup
// ordering against a database that may still be coming up. maxRetries == 0
// retries forever.
func ConnectWithRetry(cfg ConnConfig, maxRetries int, initialDelay time.Duration) (*Store, error) {
	delay := initialDelay
	attempt := 0
	for {
		attempt++
		store, err := Connect(cfg)
		if err == nil {
			return store, nil
		}
		if maxRetries > 0 && attempt >= maxRetries {
			return nil, fmt.Errorf("flightstore: giving up after %d attempts: %w", attempt, err)
		}
		time.Sleep(delay)
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
}

// InitSchema creates or updates the flightstore tables. Safe to call on
// every startup: every statement is idempotent (CREATE TABLE IF NOT EXISTS,
// CREATE INDEX IF NOT EXISTS).
func (s *Store) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("flightstore: reading schema: %w", err)
	}
	if _, err := s.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("flightstore: applying schema: %w", err)
	}
	return nil
}

// PostgresSink persists flights by upserting a flight's current aggregate
// state plus its new position samples and encounters on every notable
// event. It subscribes to all five observable event types and treats each
// event it receives as "re-persist this aircraft's current snapshot."
type PostgresSink struct {
	store *Store
}

// NewPostgresSink returns a PostgresSink backed by store.
func NewPostgresSink(store *Store) *PostgresSink {
	return &PostgresSink{store: store}
}

// Persist upserts one flight aggregate: the flight row itself, any new
// position samples, and any new encounters. It is safe to call repeatedly
// for the same aircraft as its Flight accumulates state.
func (s *PostgresSink) Persist(ctx context.Context, snap flight.Flight) error {
	tx, err := s.store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flightstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertFlight(ctx, tx, snap); err != nil {
		return err
	}
	if err := insertPositions(ctx, tx, snap); err != nil {
		return err
	}
	if err := insertEncounters(ctx, tx, snap); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flightstore: commit: %w", err)
	}
	return nil
}

func upsertFlight(ctx context.Context, tx *sql.Tx, f flight.Flight) error {
	var depLat, depLon, arrLat, arrLon *float64
	if f.DepartureLocation != nil {
		depLat, depLon = &f.DepartureLocation.Latitude, &f.DepartureLocation.Longitude
	}
	if f.ArrivalLocation != nil {
		arrLat, arrLon = &f.ArrivalLocation.Latitude, &f.ArrivalLocation.Longitude
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO flights (
			aircraft_id, start_time, end_time,
			departure_lat, departure_lon, arrival_lat, arrival_lon,
			departure_heading, arrival_heading,
			departure_info_found, arrival_info_found,
			launch_method, launch_finished, revision, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now()
		)
		ON CONFLICT (aircraft_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			departure_lat = EXCLUDED.departure_lat,
			departure_lon = EXCLUDED.departure_lon,
			arrival_lat = EXCLUDED.arrival_lat,
			arrival_lon = EXCLUDED.arrival_lon,
			departure_heading = EXCLUDED.departure_heading,
			arrival_heading = EXCLUDED.arrival_heading,
			departure_info_found = EXCLUDED.departure_info_found,
			arrival_info_found = EXCLUDED.arrival_info_found,
			launch_method = EXCLUDED.launch_method,
			launch_finished = EXCLUDED.launch_finished,
			revision = EXCLUDED.revision,
			updated_at = now()
		WHERE flights.revision < EXCLUDED.revision`,
		f.AircraftID, f.StartTime, f.EndTime,
		depLat, depLon, arrLat, arrLon,
		f.DepartureHeading, f.ArrivalHeading,
		int(f.DepartureInfoFound), int(f.ArrivalInfoFound),
		uint8(f.LaunchMethod), f.LaunchFinished, f.Revision,
	)
	if err != nil {
		return fmt.Errorf("flightstore: upserting flight %s: %w", f.AircraftID, err)
	}
	return nil
}

func insertPositions(ctx context.Context, tx *sql.Tx, f flight.Flight) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO flight_positions (
			aircraft_id, ts, latitude, longitude, altitude_m, speed_kts, heading_deg
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (aircraft_id, ts) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("flightstore: preparing position insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range f.PositionUpdates {
		if _, err := stmt.ExecContext(ctx, f.AircraftID, p.Timestamp, p.Latitude, p.Longitude, p.Altitude, p.Speed, p.Heading); err != nil {
			return fmt.Errorf("flightstore: inserting position for %s at %s: %w", f.AircraftID, p.Timestamp, err)
		}
	}
	return nil
}

func insertEncounters(ctx context.Context, tx *sql.Tx, f flight.Flight) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO flight_encounters (
			aircraft_id, other_aircraft_id, encounter_type, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (aircraft_id, other_aircraft_id, start_time) DO UPDATE SET
			end_time = EXCLUDED.end_time`)
	if err != nil {
		return fmt.Errorf("flightstore: preparing encounter insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range f.Encounters {
		if _, err := stmt.ExecContext(ctx, f.AircraftID, e.OtherAircraftID, int(e.Type), e.StartTime, e.EndTime); err != nil {
			return fmt.Errorf("flightstore: inserting encounter for %s/%s: %w", f.AircraftID, e.OtherAircraftID, err)
		}
	}
	return nil
}

// Subscribe wires s to every event a trackfactory.Factory emits, so each
// Takeoff/Landing/RadarContact/CompletedWithErrors/ContextDisposed triggers
// a re-persist of that aircraft's current snapshot. Subscribe returns the
// aggregate unsubscribe function for all five registrations.
func (s *PostgresSink) Subscribe(subscribe func(flightcontext.EventType, func(flightcontext.Event)) func(), get func(aircraftID string) (flight.Flight, bool), logf func(format string, args ...interface{})) func() {
	var unsubs []func()
	handler := func(e flightcontext.Event) {
		snap := e.Flight
		if get != nil {
			if fresher, ok := get(e.AircraftID); ok {
				snap = fresher
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Persist(ctx, snap); err != nil && logf != nil {
			logf("flightstore: persisting %s after %v: %v", e.AircraftID, e.Type, err)
		}
	}
	for _, t := range []flightcontext.EventType{
		flightcontext.EventTakeoff,
		flightcontext.EventLanding,
		flightcontext.EventRadarContact,
		flightcontext.EventCompletedWithErrors,
		flightcontext.EventContextDisposed,
	} {
		unsubs = append(unsubs, subscribe(t, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
