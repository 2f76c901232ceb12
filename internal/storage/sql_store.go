package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

// WithFrames enables storing per-step power spectra
func WithFrames(enabled bool) func(s *SQLStore) {
	return func(s *SQLStore) {
		s.storeFrames = enabled
	}
}

// SQLStore implements Store on top of database/sql. SQLite and MySQL are supported.
type SQLStore struct {
	driver   string
	writeDSN string
	readDSN  string
	schema   []string

	storeFrames bool

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the SQLite database at dbPath.
// The file is created on first write; writes use WAL journaling.
func NewSqliteStore(dbPath string, options ...func(s *SQLStore)) *SQLStore {
	s := SQLStore{
		driver:   DriverSqlite,
		writeDSN: fmt.Sprintf("file:%s?%s", dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"),
		readDSN:  fmt.Sprintf("file:%s?%s", dbPath, "mode=ro&_busy_timeout=5000"),
		schema:   sqliteSchemaSQL,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// NewMySQLStore creates a store backed by the MySQL server at dsn
func NewMySQLStore(dsn string, options ...func(s *SQLStore)) *SQLStore {
	s := SQLStore{
		driver:   DriverMySQL,
		writeDSN: dsn,
		readDSN:  dsn,
		schema:   mysqlSchemaSQL,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *SQLStore) open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(s.driver, dsn)
	if err != nil {
		return nil, err
	}

	switch s.driver {
	case DriverSqlite:
		db.SetMaxOpenConns(1) // a single writer avoids SQLITE_BUSY between pooled connections
	case DriverMySQL:
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}

	return db, nil
}

func (s *SQLStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := s.open(s.writeDSN)
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		for _, stmt := range s.schema {
			if _, err = db.Exec(stmt); err != nil {
				_ = db.Close()
				s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
				return
			}
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SQLStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := s.open(s.readDSN)
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		if s.driver == DriverSqlite {
			db.SetMaxOpenConns(4)
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SQLStore) CreateSweep(ctx context.Context, rec *SweepRecord) (sweepID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSweepSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		rec.RunID,
		rec.Generation,
		rec.Device,
		rec.DeviceID,
		rec.StartFrequency,
		rec.EndFrequency,
		rec.Step,
		rec.SampleRate,
		rec.FFTSize,
		rec.Gain,
		rec.ThresholdDB,
		toNanos(rec.StartedAt),
	)
	if err != nil {
		err = fmt.Errorf("inserting sweep: %w", err)
		return
	}

	sweepID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting sweep ID: %w", err)
	}
	return
}

func (s *SQLStore) StoreResults(ctx context.Context, sweepID int64, results []sweep.Result) (err error) {
	if len(results) == 0 {
		return
	}

	var steps, signals [][]any

	for i := range results {
		r := &results[i]

		var (
			sampleRate, noiseFloor sql.NullFloat64
			stepErr                sql.NullString
			frame                  []byte
		)
		if r.Err != nil {
			stepErr = sql.NullString{String: r.Err.Error(), Valid: true}
		}
		if r.Frame != nil {
			sampleRate = sql.NullFloat64{Float64: r.Frame.SampleRate, Valid: true}
			noiseFloor = sql.NullFloat64{Float64: r.Frame.NoiseFloorDB, Valid: true}
			if s.storeFrames {
				frame = encodeFrame(r.Frame)
			}
		}

		steps = append(steps, []any{
			sweepID,
			r.Step,
			r.CenterFrequency,
			toNanos(r.Timestamp),
			sampleRate,
			noiseFloor,
			stepErr,
			frame,
		})

		for _, d := range r.Detections {
			signals = append(signals, []any{
				sweepID,
				d.Step,
				d.CenterFrequency,
				toNanos(d.Timestamp),
				d.Frequency,
				d.PowerDB,
				d.Bandwidth,
				d.RegionStart,
				d.RegionEnd,
				d.Band,
				d.Decoder,
				d.Description,
				d.Type,
			})
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	if err = batchInsert(ctx, tx, insertStepsSQL, steps); err != nil {
		return fmt.Errorf("batch inserting steps: %w", err)
	}
	if err = batchInsert(ctx, tx, insertSignalsSQL, signals); err != nil {
		return fmt.Errorf("batch inserting signals: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SQLStore) FinishSweep(ctx context.Context, sweepID int64, summary sweep.Summary, finishedAt time.Time) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(
		ctx,
		finishSweepSQL,
		toNanos(finishedAt),
		summary.Attempted,
		summary.Succeeded,
		summary.Failed,
		summary.Signals,
		sweepID,
	)
	if err != nil {
		return fmt.Errorf("updating sweep: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sweep %d: %w", sweepID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
