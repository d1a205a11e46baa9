package examconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/linguaprep/assessment-engine/internal/faults"
	"github.com/linguaprep/assessment-engine/internal/itembank"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Put(ctx context.Context, c Config) error {
	sj, err := json.Marshal(c.Sections)
	if err != nil {
		return err
	}
	rj, err := json.Marshal(c.Rules)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exam_configs
			(id,name,sections_json,total_time_limit_sec,rules_json,difficulty,usage_count,avg_score,avg_duration_sec,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, sections_json=EXCLUDED.sections_json,
			total_time_limit_sec=EXCLUDED.total_time_limit_sec, rules_json=EXCLUDED.rules_json,
			difficulty=EXCLUDED.difficulty`,
		c.ID, c.Name, string(sj), c.TotalTimeLimitSec, string(rj), string(c.Difficulty),
		c.UsageCount, c.AvgScore, c.AvgDurationSec, c.CreatedAt)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Config, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,sections_json,total_time_limit_sec,rules_json,difficulty,
			usage_count,avg_score,avg_duration_sec,created_at
		FROM exam_configs WHERE id=$1`, id)
	var c Config
	var sj, rj, diff string
	if err := row.Scan(&c.ID, &c.Name, &sj, &c.TotalTimeLimitSec, &rj, &diff,
		&c.UsageCount, &c.AvgScore, &c.AvgDurationSec, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, &faults.NotFoundError{Resource: "exam config", ID: id}
		}
		return Config{}, err
	}
	if err := json.Unmarshal([]byte(sj), &c.Sections); err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal([]byte(rj), &c.Rules); err != nil {
		return Config{}, err
	}
	c.Difficulty = itembank.Level(diff)
	return c, nil
}

func (s *SQLStore) RecordUsage(ctx context.Context, id string, score, durationSec int) error {
	// The running means fold in against the pre-increment count, mirroring
	// the item-stats update; no application read-modify-write.
	res, err := s.db.ExecContext(ctx, `UPDATE exam_configs SET
			usage_count      = usage_count + 1,
			avg_score        = avg_score + ($1 - avg_score) / (usage_count + 1),
			avg_duration_sec = avg_duration_sec + ($2 - avg_duration_sec) / (usage_count + 1)
		WHERE id = $3`,
		float64(score), float64(durationSec), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &faults.NotFoundError{Resource: "exam config", ID: id}
	}
	return nil
}
