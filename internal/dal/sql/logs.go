package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

func (r *Repository) AppendStudyLog(ctx context.Context, entries []dal.StudyLogEntry) error {
	for _, entry := range entries {
		query := dal.AppendStudyLogQuery(entry)

		sqlQuery, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("build insert query: %w", err)
		}

		if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("append study log: %w", err)
		}
	}
	return nil
}

func (r *Repository) LoadRecentStudyLog(ctx context.Context, username string, limit int) ([]dal.StudyLogEntry, error) {
	query := dal.LoadRecentStudyLogQuery(username, limit)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := r.client.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("load study log: %w", err)
	}
	defer rows.Close()

	var res []dal.StudyLogEntry
	for rows.Next() {
		var (
			entry dal.StudyLogEntry
			ts    string
			date  string
		)
		if err := rows.Scan(&ts, &date, &entry.Username, &entry.WordID, &entry.Level, &entry.Correct); err != nil {
			return nil, fmt.Errorf("scan study log entry: %w", err)
		}

		if entry.Timestamp, err = time.Parse(dal.TimestampLayout, ts); err != nil {
			return nil, fmt.Errorf("parse ts: %w", err)
		}
		if entry.Date, err = time.ParseInLocation(dal.DateLayout, date, time.UTC); err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}

		res = append(res, entry)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate study log entries: %w", rows.Err())
	}

	return res, nil
}
