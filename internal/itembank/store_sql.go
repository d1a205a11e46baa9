package itembank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linguaprep/assessment-engine/internal/faults"
)

// SQLStore persists the item bank over database/sql (sqlite or postgres).
// Exposure counters are incremented inside the UPDATE itself so concurrent
// attempts never lose increments; the derived calibration columns are a
// projection recomputed from the post-increment counters.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutItem(ctx context.Context, it Item) error {
	cj, err := json.Marshal(it.Choices)
	if err != nil {
		return err
	}
	if it.CreatedAt == 0 {
		it.CreatedAt = time.Now().Unix()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO items (id,section,topic,prompt,choices_json,correct_choice,level,status,guessing,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET section=EXCLUDED.section, topic=EXCLUDED.topic,
			prompt=EXCLUDED.prompt, choices_json=EXCLUDED.choices_json,
			correct_choice=EXCLUDED.correct_choice, level=EXCLUDED.level, status=EXCLUDED.status,
			guessing=EXCLUDED.guessing`,
		it.ID, it.Section, it.Topic, it.Prompt, string(cj), it.CorrectChoice, it.Level, it.Status, it.Stats.Guessing, it.CreatedAt)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO item_stats (item_id,exposure_count,correct_count,incorrect_count,avg_response_sec,difficulty,discrimination)
		VALUES ($1,0,0,0,0,$2,0)
		ON CONFLICT (item_id) DO NOTHING`,
		it.ID, it.Level.NominalDifficulty())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (Item, error) {
	items, err := s.queryItems(ctx, `WHERE i.id = $1`, id)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, &faults.NotFoundError{Resource: "item", ID: id}
	}
	return items[0], nil
}

func (s *SQLStore) GetItems(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	items, err := s.queryItems(ctx, `WHERE i.id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, &faults.NotFoundError{Resource: "item", ID: id}
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *SQLStore) ListApproved(ctx context.Context, section Section, levels []Level) ([]Item, error) {
	args := []any{string(StatusApproved), string(section)}
	where := `WHERE i.status = $1 AND i.section = $2`
	if len(levels) > 0 {
		ph := make([]string, len(levels))
		for i, l := range levels {
			ph[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, string(l))
		}
		where += ` AND i.level IN (` + strings.Join(ph, ",") + `)`
	}
	return s.queryItems(ctx, where, args...)
}

func (s *SQLStore) RecordExposure(ctx context.Context, itemID string, correct bool, timeSpentSec, observerScore int) error {
	correctInc, incorrectInc := 0, 1
	if correct {
		correctInc, incorrectInc = 1, 0
	}
	// Atomic counter increments; the running mean folds the new observation
	// in against the pre-increment count.
	res, err := s.db.ExecContext(ctx, `UPDATE item_stats SET
			exposure_count   = exposure_count + 1,
			correct_count    = correct_count + $1,
			incorrect_count  = incorrect_count + $2,
			avg_response_sec = avg_response_sec + ($3 - avg_response_sec) / (exposure_count + 1)
		WHERE item_id = $4`,
		correctInc, incorrectInc, float64(timeSpentSec), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &faults.NotFoundError{Resource: "item", ID: itemID}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO item_stat_buckets (item_id, band, total, correct)
		VALUES ($1,$2,1,$3)
		ON CONFLICT (item_id, band) DO UPDATE SET
			total   = item_stat_buckets.total + 1,
			correct = item_stat_buckets.correct + EXCLUDED.correct`,
		itemID, ScoreBand(observerScore), correctInc)
	if err != nil {
		return err
	}

	return s.recalibrate(ctx, itemID)
}

// recalibrate rewrites the derived difficulty/discrimination columns from the
// current counters. Lost races only delay the projection by one exposure.
func (s *SQLStore) recalibrate(ctx context.Context, itemID string) error {
	it, err := s.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	st := it.Stats
	st.Recalibrate(it.Level)
	_, err = s.db.ExecContext(ctx, `UPDATE item_stats SET difficulty = $1, discrimination = $2 WHERE item_id = $3`,
		st.Difficulty, st.Discrimination, itemID)
	return err
}

func (s *SQLStore) queryItems(ctx context.Context, where string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT i.id, i.section, i.topic, i.prompt, i.choices_json,
			i.correct_choice, i.level, i.status, i.guessing, i.created_at,
			st.exposure_count, st.correct_count, st.incorrect_count, st.avg_response_sec,
			st.difficulty, st.discrimination
		FROM items i JOIN item_stats st ON st.item_id = i.id `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var cjson string
		if err := rows.Scan(&it.ID, &it.Section, &it.Topic, &it.Prompt, &cjson,
			&it.CorrectChoice, &it.Level, &it.Status, &it.Stats.Guessing, &it.CreatedAt,
			&it.Stats.ExposureCount, &it.Stats.CorrectCount, &it.Stats.IncorrectCount,
			&it.Stats.AvgResponseSec, &it.Stats.Difficulty, &it.Stats.Discrimination); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cjson), &it.Choices); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		buckets, err := s.loadBuckets(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Stats.Buckets = buckets
	}
	return out, nil
}

func (s *SQLStore) loadBuckets(ctx context.Context, itemID string) (map[string]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT band, total, correct FROM item_stat_buckets WHERE item_id = $1`, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	var buckets map[string]Bucket
	for rows.Next() {
		var band string
		var b Bucket
		if err := rows.Scan(&band, &b.Total, &b.Correct); err != nil {
			return nil, err
		}
		if buckets == nil {
			buckets = map[string]Bucket{}
		}
		buckets[band] = b
	}
	return buckets, rows.Err()
}
