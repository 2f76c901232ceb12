package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

const (
	DriverSqlite = "sqlite3"
	DriverMySQL  = "mysql"
)

// ErrNotFound is returned by readers when the requested run or sweep does not exist
var ErrNotFound = errors.New("not found")

// Store persists sweeps, their steps and the detections they produced.
// Writes for a single sweep are expected to come from one goroutine, the
// store itself may be shared.
type Store interface {
	// CreateSweep records the start of a sweep and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - rec: Sweep metadata. ID, FinishedAt and the tallies are ignored.
	//
	// Returns:
	//   - sweepID: Unique identifier for the created sweep
	//   - error: If creation fails or context is cancelled
	CreateSweep(ctx context.Context, rec *SweepRecord) (sweepID int64, err error)

	// StoreResults saves step outcomes and their detections in a single
	// transaction. Failed steps are stored with their error and no frame.
	StoreResults(ctx context.Context, sweepID int64, results []sweep.Result) error

	// FinishSweep records the sweep tallies and completion time
	FinishSweep(ctx context.Context, sweepID int64, summary sweep.Summary, finishedAt time.Time) error

	// Runs returns the known run identifiers, oldest first
	Runs(ctx context.Context) ([]string, error)

	// Sweeps returns the sweeps of a run ordered by generation
	Sweeps(ctx context.Context, runID string) ([]*SweepRecord, error)

	// Steps returns the steps of a sweep ordered by step index
	Steps(ctx context.Context, sweepID int64) ([]*StepRecord, error)

	// Signals returns the detections of a sweep ordered by step and frequency
	Signals(ctx context.Context, sweepID int64) ([]*SignalRecord, error)

	// Close releases all database connections. It is safe to call Close multiple times.
	Close() error
}

// MySQLConfig holds the connection settings of a MySQL server
type MySQLConfig struct {
	Addr         string `yaml:"addr" json:"addr"`
	User         string `yaml:"user" json:"user"`
	PasswordFile string `yaml:"passwordFile" json:"passwordFile"`
	DBName       string `yaml:"dbName" json:"dbName"`
}

// DSN reads the password file and formats the driver data source name
func (c *MySQLConfig) DSN() (string, error) {
	if c.Addr == "" {
		return "", errors.New("storage.MySQLConfig: server address is required")
	}
	if c.DBName == "" {
		return "", errors.New("storage.MySQLConfig: database name is required")
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = c.Addr
	cfg.User = c.User
	cfg.DBName = c.DBName
	cfg.Timeout = 10 * time.Second
	cfg.ClientFoundRows = true // FinishSweep relies on matched, not changed, rows

	if c.PasswordFile != "" {
		pass, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("reading MySQL password file: %w", err)
		}
		cfg.Passwd = strings.TrimSpace(string(pass))
	}

	return cfg.FormatDSN(), nil
}

// Config selects and configures the database backend
type Config struct {
	Driver      string       `yaml:"driver" json:"driver"` // sqlite3 (default) or mysql
	Path        string       `yaml:"path" json:"path"`     // sqlite3 database file
	MySQL       *MySQLConfig `yaml:"mysql" json:"mysql"`
	StoreFrames bool         `yaml:"storeFrames" json:"storeFrames"` // keep per-step power spectra
}

// Validate checks the selected driver has what it needs to connect
func (c *Config) Validate() error {
	switch c.Driver {
	case "", DriverSqlite:
		if c.Path == "" {
			return errors.New("storage.Config: sqlite3 database path is required")
		}
	case DriverMySQL:
		if c.MySQL == nil {
			return errors.New("storage.Config: mysql settings are required")
		}
	default:
		return fmt.Errorf("storage.Config: unsupported driver %q, pick one of: %s, %s", c.Driver, DriverSqlite, DriverMySQL)
	}
	return nil
}

// Open creates a Store for the configured backend. Connections are
// established lazily on first use.
func Open(cfg *Config) (*SQLStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Driver == DriverMySQL {
		dsn, err := cfg.MySQL.DSN()
		if err != nil {
			return nil, err
		}
		return NewMySQLStore(dsn, WithFrames(cfg.StoreFrames)), nil
	}

	return NewSqliteStore(cfg.Path, WithFrames(cfg.StoreFrames)), nil
}
