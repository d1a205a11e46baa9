package calibration

import (
	"context"
	"database/sql"
	"time"
)

type SQLQueue struct {
	db *sql.DB
}

func NewSQLQueue(db *sql.DB) *SQLQueue { return &SQLQueue{db: db} }

func (q *SQLQueue) Enqueue(ctx context.Context, attemptID string, exposures []Exposure) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().Unix()
	for _, e := range exposures {
		if _, err := tx.ExecContext(ctx, `INSERT INTO calibration_log
				(attempt_id,item_id,correct,time_spent_sec,observer_score,status,attempts,last_error,created_at)
			VALUES ($1,$2,$3,$4,$5,'pending',0,'',$6)`,
			attemptID, e.ItemID, boolInt(e.Correct), e.TimeSpentSec, e.ObserverScore, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (q *SQLQueue) Next(ctx context.Context, limit int) ([]Pending, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT offset_id,attempt_id,item_id,correct,time_spent_sec,observer_score,attempts,last_error
		FROM calibration_log WHERE status='pending' ORDER BY offset_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pending
	for rows.Next() {
		var p Pending
		var correct int
		if err := rows.Scan(&p.Offset, &p.AttemptID, &p.Exposure.ItemID, &correct,
			&p.Exposure.TimeSpentSec, &p.Exposure.ObserverScore, &p.Attempts, &p.LastError); err != nil {
			return nil, err
		}
		p.Exposure.Correct = correct != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *SQLQueue) MarkApplied(ctx context.Context, offset int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE calibration_log SET status='applied' WHERE offset_id=$1`, offset)
	return err
}

func (q *SQLQueue) MarkFailed(ctx context.Context, offset int64, reason string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE calibration_log SET attempts=attempts+1, last_error=$1,
		status=CASE WHEN attempts+1 >= $2 THEN 'dead' ELSE status END
		WHERE offset_id=$3`, reason, maxDeliveryAttempts, offset)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
