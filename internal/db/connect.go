package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:linguaprep.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/linguaprep?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  section TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  prompt TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  correct_choice TEXT NOT NULL,
  level TEXT NOT NULL,
  status TEXT NOT NULL,
  guessing REAL NOT NULL DEFAULT 0.25,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_pool ON items(status, section, level);

CREATE TABLE IF NOT EXISTS item_stats (
  item_id TEXT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
  exposure_count INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER NOT NULL DEFAULT 0,
  incorrect_count INTEGER NOT NULL DEFAULT 0,
  avg_response_sec REAL NOT NULL DEFAULT 0,
  difficulty REAL NOT NULL DEFAULT 0,
  discrimination REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS item_stat_buckets (
  item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
  band TEXT NOT NULL,
  total INTEGER NOT NULL DEFAULT 0,
  correct INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (item_id, band)
);

CREATE TABLE IF NOT EXISTS exam_configs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sections_json TEXT NOT NULL,
  total_time_limit_sec INTEGER NOT NULL,
  rules_json TEXT NOT NULL,
  difficulty TEXT NOT NULL DEFAULT '',
  usage_count INTEGER NOT NULL DEFAULT 0,
  avg_score REAL NOT NULL DEFAULT 0,
  avg_duration_sec REAL NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  config_id TEXT NOT NULL REFERENCES exam_configs(id),
  mode TEXT NOT NULL,
  status TEXT NOT NULL,
  sections_json TEXT NOT NULL,
  answers_json TEXT NOT NULL DEFAULT '[]',
  result_json TEXT,
  created_at INTEGER NOT NULL,
  started_at INTEGER NOT NULL DEFAULT 0,
  paused_at INTEGER NOT NULL DEFAULT 0,
  completed_at INTEGER NOT NULL DEFAULT 0,
  expires_at INTEGER NOT NULL,
  total_paused_sec INTEGER NOT NULL DEFAULT 0,
  tab_switches INTEGER NOT NULL DEFAULT 0,
  fullscreen_exits INTEGER NOT NULL DEFAULT 0,
  suspicious_activity INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts(user_id, status);

CREATE TABLE IF NOT EXISTS ability_profiles (
  user_id TEXT PRIMARY KEY,
  profile_json TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_log (
  offset_id INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  attempt_id TEXT NOT NULL,
  item_id TEXT NOT NULL,
  correct INTEGER NOT NULL,
  time_spent_sec INTEGER NOT NULL,
  observer_score INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calibration_pending ON calibration_log(status, offset_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  section TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  prompt TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  correct_choice TEXT NOT NULL,
  level TEXT NOT NULL,
  status TEXT NOT NULL,
  guessing DOUBLE PRECISION NOT NULL DEFAULT 0.25,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_pool ON items(status, section, level);

CREATE TABLE IF NOT EXISTS item_stats (
  item_id TEXT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
  exposure_count INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER NOT NULL DEFAULT 0,
  incorrect_count INTEGER NOT NULL DEFAULT 0,
  avg_response_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
  difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
  discrimination DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS item_stat_buckets (
  item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
  band TEXT NOT NULL,
  total INTEGER NOT NULL DEFAULT 0,
  correct INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (item_id, band)
);

CREATE TABLE IF NOT EXISTS exam_configs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sections_json TEXT NOT NULL,
  total_time_limit_sec INTEGER NOT NULL,
  rules_json TEXT NOT NULL,
  difficulty TEXT NOT NULL DEFAULT '',
  usage_count INTEGER NOT NULL DEFAULT 0,
  avg_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  avg_duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  config_id TEXT NOT NULL REFERENCES exam_configs(id),
  mode TEXT NOT NULL,
  status TEXT NOT NULL,
  sections_json TEXT NOT NULL,
  answers_json TEXT NOT NULL DEFAULT '[]',
  result_json TEXT,
  created_at BIGINT NOT NULL,
  started_at BIGINT NOT NULL DEFAULT 0,
  paused_at BIGINT NOT NULL DEFAULT 0,
  completed_at BIGINT NOT NULL DEFAULT 0,
  expires_at BIGINT NOT NULL,
  total_paused_sec BIGINT NOT NULL DEFAULT 0,
  tab_switches INTEGER NOT NULL DEFAULT 0,
  fullscreen_exits INTEGER NOT NULL DEFAULT 0,
  suspicious_activity INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts(user_id, status);

CREATE TABLE IF NOT EXISTS ability_profiles (
  user_id TEXT PRIMARY KEY,
  profile_json TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_log (
  offset_id BIGSERIAL PRIMARY KEY,
  attempt_id TEXT NOT NULL,
  item_id TEXT NOT NULL,
  correct INTEGER NOT NULL,
  time_spent_sec INTEGER NOT NULL,
  observer_score INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calibration_pending ON calibration_log(status, offset_id);
`
