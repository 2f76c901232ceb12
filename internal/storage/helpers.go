package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

// batchRows bounds the rows per INSERT so the placeholder count stays under
// the SQLite limit of 999 host parameters for the widest table
const batchRows = 64

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

// batchInsert writes rows with one multi-row INSERT per chunk. Each row must
// hold the same number of values.
func batchInsert(ctx context.Context, tx *sql.Tx, prefix string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(rows[0])), ", ") + ")"

	for chunk := range slices.Chunk(rows, batchRows) {
		var sb strings.Builder
		values := make([]any, 0, len(chunk)*len(chunk[0]))

		sb.WriteString(prefix)
		for i, row := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholder)
			values = append(values, row...)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return err
		}
	}
	return nil
}

// encodeFrame packs frame powers as little-endian float32 values. Bin
// frequencies are not stored, they follow from the center, rate and length.
func encodeFrame(f *spectrum.Frame) []byte {
	p := make([]byte, 4*len(f.PowerDB))
	for i, v := range f.PowerDB {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(float32(v)))
	}
	return p
}

func decodeFrame(p []byte, center, sampleRate, noiseFloor float64) (*spectrum.Frame, error) {
	if len(p)%4 != 0 {
		return nil, fmt.Errorf("frame blob length %d is not a multiple of 4", len(p))
	}

	n := len(p) / 4
	half := n / 2
	binWidth := sampleRate / float64(n)

	frame := spectrum.Frame{
		Frequencies:     make([]float64, n),
		PowerDB:         make([]float64, n),
		NoiseFloorDB:    noiseFloor,
		CenterFrequency: center,
		SampleRate:      sampleRate,
	}
	for k := 0; k < n; k++ {
		frame.PowerDB[k] = float64(math.Float32frombits(binary.LittleEndian.Uint32(p[k*4:])))
		frame.Frequencies[k] = center + float64(k-half)*binWidth
	}
	return &frame, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
