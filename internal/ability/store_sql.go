package ability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore keeps each profile as one JSON document keyed by user id, the
// schema-optional shape the engine's history log maps onto naturally.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Get(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT profile_json FROM ability_profiles WHERE user_id = $1`, userID)
	var pj string
	if err := row.Scan(&pj); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewProfile(userID), nil
		}
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal([]byte(pj), &p); err != nil {
		return Profile{}, err
	}
	p.UserID = userID
	return p, nil
}

func (s *SQLStore) Put(ctx context.Context, p Profile) error {
	p.UpdatedAt = time.Now().Unix()
	pj, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO ability_profiles (user_id, profile_json, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET profile_json = EXCLUDED.profile_json, updated_at = EXCLUDED.updated_at`,
		p.UserID, string(pj), p.UpdatedAt)
	return err
}
