package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/linguaprep/assessment-engine/internal/faults"
)

// SQLStore persists attempts as a parent row with embedded answer/snapshot
// JSON documents. The conditional status predicate in UpdateIf is what turns
// every transition into a storage-layer compare-and-set.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Create(ctx context.Context, a Attempt) error {
	sj, aj, rj, err := marshalDocs(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
			(id,user_id,config_id,mode,status,sections_json,answers_json,result_json,
			 created_at,started_at,paused_at,completed_at,expires_at,
			 total_paused_sec,tab_switches,fullscreen_exits,suspicious_activity)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.UserID, a.ConfigID, a.Mode, string(a.Status), sj, aj, rj,
		a.CreatedAt, a.StartedAt, a.PausedAt, a.CompletedAt, a.ExpiresAt,
		a.TotalPausedSec, a.TabSwitches, a.FullscreenExits, boolInt(a.SuspiciousActivity))
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,user_id,config_id,mode,status,sections_json,answers_json,result_json,
			created_at,started_at,paused_at,completed_at,expires_at,
			total_paused_sec,tab_switches,fullscreen_exits,suspicious_activity
		FROM attempts WHERE id=$1`, id)
	var a Attempt
	var status, sj, aj string
	var rj sql.NullString
	var suspicious int
	if err := row.Scan(&a.ID, &a.UserID, &a.ConfigID, &a.Mode, &status, &sj, &aj, &rj,
		&a.CreatedAt, &a.StartedAt, &a.PausedAt, &a.CompletedAt, &a.ExpiresAt,
		&a.TotalPausedSec, &a.TabSwitches, &a.FullscreenExits, &suspicious); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, &faults.NotFoundError{Resource: "attempt", ID: id}
		}
		return Attempt{}, err
	}
	a.Status = Status(status)
	a.SuspiciousActivity = suspicious != 0
	if err := json.Unmarshal([]byte(sj), &a.Sections); err != nil {
		return Attempt{}, err
	}
	if aj != "" {
		if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil {
			return Attempt{}, err
		}
	}
	if rj.Valid && rj.String != "" {
		var r Result
		if err := json.Unmarshal([]byte(rj.String), &r); err != nil {
			return Attempt{}, err
		}
		a.Result = &r
	}
	return a, nil
}

func (s *SQLStore) UpdateIf(ctx context.Context, a Attempt, expect Status) error {
	sj, aj, rj, err := marshalDocs(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
			status=$1, sections_json=$2, answers_json=$3, result_json=$4,
			started_at=$5, paused_at=$6, completed_at=$7, expires_at=$8,
			total_paused_sec=$9, tab_switches=$10, fullscreen_exits=$11, suspicious_activity=$12
		WHERE id=$13 AND status=$14`,
		string(a.Status), sj, aj, rj,
		a.StartedAt, a.PausedAt, a.CompletedAt, a.ExpiresAt,
		a.TotalPausedSec, a.TabSwitches, a.FullscreenExits, boolInt(a.SuspiciousActivity),
		a.ID, string(expect))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either gone or the status moved under us; distinguish for callers.
		if _, err := s.Get(ctx, a.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func marshalDocs(a Attempt) (sections, answers string, result sql.NullString, err error) {
	sb, err := json.Marshal(a.Sections)
	if err != nil {
		return "", "", sql.NullString{}, err
	}
	ab, err := json.Marshal(a.Answers)
	if err != nil {
		return "", "", sql.NullString{}, err
	}
	if a.Result != nil {
		rb, err := json.Marshal(a.Result)
		if err != nil {
			return "", "", sql.NullString{}, err
		}
		result = sql.NullString{String: string(rb), Valid: true}
	}
	return string(sb), string(ab), result, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
