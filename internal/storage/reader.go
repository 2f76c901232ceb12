package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *SQLStore) Runs(ctx context.Context) (runs []string, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var runID string
		var started int64
		if err = rows.Scan(&runID, &started); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		runs = append(runs, runID)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating runs: %w", err)
	}
	return
}

func (s *SQLStore) Sweeps(ctx context.Context, runID string) (sweeps []*SweepRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSweepsSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	rows, err := stmt.QueryContext(ctx, runID)
	if err != nil {
		err = fmt.Errorf("querying sweeps: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec SweepRecord
		var started int64
		var finished sql.NullInt64

		err = rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Generation,
			&rec.Device,
			&rec.DeviceID,
			&rec.StartFrequency,
			&rec.EndFrequency,
			&rec.Step,
			&rec.SampleRate,
			&rec.FFTSize,
			&rec.Gain,
			&rec.ThresholdDB,
			&started,
			&finished,
			&rec.Attempted,
			&rec.Succeeded,
			&rec.Failed,
			&rec.Signals,
		)
		if err != nil {
			err = fmt.Errorf("scanning sweep: %w", err)
			return
		}

		rec.StartedAt = fromNanos(started)
		if finished.Valid {
			t := fromNanos(finished.Int64)
			rec.FinishedAt = &t
		}
		sweeps = append(sweeps, &rec)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sweeps: %w", err)
		return
	}

	if len(sweeps) == 0 {
		err = fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return
}

func (s *SQLStore) Steps(ctx context.Context, sweepID int64) (steps []*StepRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectStepsSQL, sweepID)
	if err != nil {
		err = fmt.Errorf("querying steps: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			rec                    StepRecord
			ts                     int64
			sampleRate, noiseFloor sql.NullFloat64
			stepErr                sql.NullString
			frame                  []byte
		)

		err = rows.Scan(&rec.ID, &rec.SweepID, &rec.Step, &rec.CenterFrequency, &ts, &sampleRate, &noiseFloor, &stepErr, &frame)
		if err != nil {
			err = fmt.Errorf("scanning step: %w", err)
			return
		}

		rec.Timestamp = fromNanos(ts)
		rec.NoiseFloorDB = fromNullFloat(noiseFloor)
		rec.Error = fromNullString(stepErr)

		if len(frame) > 0 && sampleRate.Valid {
			if rec.Frame, err = decodeFrame(frame, rec.CenterFrequency, sampleRate.Float64, noiseFloor.Float64); err != nil {
				err = fmt.Errorf("decoding step %d frame: %w", rec.Step, err)
				return
			}
		}
		steps = append(steps, &rec)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating steps: %w", err)
	}
	return
}

func (s *SQLStore) Signals(ctx context.Context, sweepID int64) (signals []*SignalRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSignalsSQL, sweepID)
	if err != nil {
		err = fmt.Errorf("querying signals: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec SignalRecord
		var ts int64

		err = rows.Scan(
			&rec.ID,
			&rec.SweepID,
			&rec.Step,
			&rec.CenterFrequency,
			&ts,
			&rec.Frequency,
			&rec.PowerDB,
			&rec.Bandwidth,
			&rec.RegionStart,
			&rec.RegionEnd,
			&rec.Band,
			&rec.Decoder,
			&rec.Description,
			&rec.Type,
		)
		if err != nil {
			err = fmt.Errorf("scanning signal: %w", err)
			return
		}

		rec.Timestamp = fromNanos(ts)
		signals = append(signals, &rec)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating signals: %w", err)
	}
	return
}
