package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

func (r *Repository) LoadProgress(ctx context.Context, username string) ([]dal.ProgressRecord, error) {
	query := dal.LoadProgressQuery(username)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := r.client.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	defer rows.Close()

	var res []dal.ProgressRecord
	for rows.Next() {
		rec, err := hydrateProgressRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress record: %w", err)
		}
		res = append(res, *rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate progress records: %w", rows.Err())
	}

	return res, nil
}

func (r *Repository) SaveProgress(ctx context.Context, username string, records []dal.ProgressRecord) error {
	for _, rec := range records {
		query := dal.SaveProgressQuery(username, rec)

		sqlQuery, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("build upsert query: %w", err)
		}

		if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("save progress record %d: %w", rec.WordID, err)
		}
	}
	return nil
}

func hydrateProgressRecord(rows *sql.Rows) (*dal.ProgressRecord, error) {
	var (
		rec          dal.ProgressRecord
		lastReviewed sql.NullString
		nextReview   string
		interval     int
	)
	if err := rows.Scan(&rec.WordID, &lastReviewed, &nextReview, &interval, &rec.FailCount); err != nil {
		return nil, err
	}

	if lastReviewed.Valid && lastReviewed.String != "" {
		t, err := time.ParseInLocation(dal.DateLayout, lastReviewed.String, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse last_reviewed: %w", err)
		}
		rec.LastReviewed = &t
	}

	t, err := time.ParseInLocation(dal.DateLayout, nextReview, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse next_review: %w", err)
	}
	rec.NextReview = t

	// stored intervals are normalized on the way out so legacy rows written
	// with out-of-ladder values cannot leak into the scheduler
	rec.Interval = dal.Interval(interval).Snap()

	return &rec, nil
}
