package storage

// Timestamps are stored as Unix nanoseconds so both dialects share the same
// column types and scanning code.

var sqliteSchemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS sweeps (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT    NOT NULL,
    generation   INTEGER NOT NULL,
    device       TEXT    NOT NULL,
    device_id    TEXT    NOT NULL,
    start_freq   REAL    NOT NULL,
    end_freq     REAL    NOT NULL,
    step         REAL    NOT NULL,
    sample_rate  REAL    NOT NULL,
    fft_size     INTEGER NOT NULL,
    gain         INTEGER NOT NULL,
    threshold_db REAL    NOT NULL,
    started_at   INTEGER NOT NULL,
    finished_at  INTEGER,
    attempted    INTEGER NOT NULL DEFAULT 0,
    succeeded    INTEGER NOT NULL DEFAULT 0,
    failed       INTEGER NOT NULL DEFAULT 0,
    num_signals  INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS steps (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    sweep_id       INTEGER NOT NULL REFERENCES sweeps (id),
    step_index     INTEGER NOT NULL,
    center_freq    REAL    NOT NULL,
    timestamp      INTEGER NOT NULL,
    sample_rate    REAL,
    noise_floor_db REAL,
    error          TEXT,
    frame          BLOB
)`,
	`CREATE TABLE IF NOT EXISTS signals (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    sweep_id     INTEGER NOT NULL REFERENCES sweeps (id),
    step_index   INTEGER NOT NULL,
    center_freq  REAL    NOT NULL,
    timestamp    INTEGER NOT NULL,
    frequency    REAL    NOT NULL,
    power_db     REAL    NOT NULL,
    bandwidth    REAL    NOT NULL,
    region_start REAL    NOT NULL,
    region_end   REAL    NOT NULL,
    band         TEXT    NOT NULL,
    decoder      TEXT    NOT NULL,
    description  TEXT    NOT NULL,
    type         TEXT    NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_sweeps_run_id ON sweeps (run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_sweep_id ON steps (sweep_id, step_index)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_sweep_id ON signals (sweep_id, power_db)`,
}

var mysqlSchemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS sweeps (
    id           BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
    run_id       VARCHAR(36)  NOT NULL,
    generation   INT          NOT NULL,
    device       VARCHAR(64)  NOT NULL,
    device_id    VARCHAR(128) NOT NULL,
    start_freq   DOUBLE       NOT NULL,
    end_freq     DOUBLE       NOT NULL,
    step         DOUBLE       NOT NULL,
    sample_rate  DOUBLE       NOT NULL,
    fft_size     INT          NOT NULL,
    gain         INT          NOT NULL,
    threshold_db DOUBLE       NOT NULL,
    started_at   BIGINT       NOT NULL,
    finished_at  BIGINT,
    attempted    INT          NOT NULL DEFAULT 0,
    succeeded    INT          NOT NULL DEFAULT 0,
    failed       INT          NOT NULL DEFAULT 0,
    num_signals  INT          NOT NULL DEFAULT 0,
    INDEX idx_sweeps_run_id (run_id)
)`,
	`CREATE TABLE IF NOT EXISTS steps (
    id             BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
    sweep_id       BIGINT NOT NULL,
    step_index     INT    NOT NULL,
    center_freq    DOUBLE NOT NULL,
    timestamp      BIGINT NOT NULL,
    sample_rate    DOUBLE,
    noise_floor_db DOUBLE,
    error          TEXT,
    frame          LONGBLOB,
    INDEX idx_steps_sweep_id (sweep_id, step_index)
)`,
	`CREATE TABLE IF NOT EXISTS signals (
    id           BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
    sweep_id     BIGINT       NOT NULL,
    step_index   INT          NOT NULL,
    center_freq  DOUBLE       NOT NULL,
    timestamp    BIGINT       NOT NULL,
    frequency    DOUBLE       NOT NULL,
    power_db     DOUBLE       NOT NULL,
    bandwidth    DOUBLE       NOT NULL,
    region_start DOUBLE       NOT NULL,
    region_end   DOUBLE       NOT NULL,
    band         VARCHAR(128) NOT NULL,
    decoder      VARCHAR(64)  NOT NULL,
    description  VARCHAR(255) NOT NULL,
    type         VARCHAR(64)  NOT NULL,
    INDEX idx_signals_sweep_id (sweep_id, power_db)
)`,
}

const (
	insertSweepSQL = `
INSERT INTO sweeps (run_id,
                    generation,
                    device,
                    device_id,
                    start_freq,
                    end_freq,
                    step,
                    sample_rate,
                    fft_size,
                    gain,
                    threshold_db,
                    started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	finishSweepSQL = `
UPDATE sweeps
SET finished_at = ?,
    attempted   = ?,
    succeeded   = ?,
    failed      = ?,
    num_signals = ?
WHERE id = ?`

	selectSweepsSQL = `
SELECT id,
       run_id,
       generation,
       device,
       device_id,
       start_freq,
       end_freq,
       step,
       sample_rate,
       fft_size,
       gain,
       threshold_db,
       started_at,
       finished_at,
       attempted,
       succeeded,
       failed,
       num_signals
FROM sweeps
WHERE run_id = ?
ORDER BY generation, id`

	selectRunsSQL = `
SELECT run_id, MIN(started_at) AS first_started
FROM sweeps
GROUP BY run_id
ORDER BY first_started`

	// insertStepsSQL and insertSignalsSQL are completed with one placeholder
	// group per row, see batchInsert
	insertStepsSQL = `
INSERT INTO steps (sweep_id,
                   step_index,
                   center_freq,
                   timestamp,
                   sample_rate,
                   noise_floor_db,
                   error,
                   frame)
VALUES `

	insertSignalsSQL = `
INSERT INTO signals (sweep_id,
                     step_index,
                     center_freq,
                     timestamp,
                     frequency,
                     power_db,
                     bandwidth,
                     region_start,
                     region_end,
                     band,
                     decoder,
                     description,
                     type)
VALUES `

	selectStepsSQL = `
SELECT id,
       sweep_id,
       step_index,
       center_freq,
       timestamp,
       sample_rate,
       noise_floor_db,
       error,
       frame
FROM steps
WHERE sweep_id = ?
ORDER BY step_index`

	selectSignalsSQL = `
SELECT id,
       sweep_id,
       step_index,
       center_freq,
       timestamp,
       frequency,
       power_db,
       bandwidth,
       region_start,
       region_end,
       band,
       decoder,
       description,
       type
FROM signals
WHERE sweep_id = ?
ORDER BY step_index, frequency`
)
