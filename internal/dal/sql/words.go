package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

func (r *Repository) UpsertWord(ctx context.Context, word dal.Word) error {
	query := dal.UpsertWordQuery(word)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}

	_, err = r.client.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("upsert word: %w", err)
	}
	return nil
}

func (r *Repository) LoadCatalog(ctx context.Context) ([]dal.Word, error) {
	query := dal.LoadCatalogQuery()

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := r.client.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var res []dal.Word
	for rows.Next() {
		w, err := hydrateWord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		res = append(res, *w)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate words: %w", rows.Err())
	}

	return res, nil
}

func (r *Repository) FindWords(ctx context.Context, filter dal.WordsFilter) ([]dal.Word, int, error) {
	selectQuery, countQuery := dal.FindWordsQuery(filter)

	eg, ctx := errgroup.WithContext(ctx)
	res := make([]dal.Word, 0, filter.Limit)
	total := 0

	eg.Go(func() error {
		sql, args, err := selectQuery.ToSql()
		if err != nil {
			return fmt.Errorf("build select query: %w", err)
		}

		rows, err := r.client.QueryContext(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("find words: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			w, err := hydrateWord(rows)
			if err != nil {
				return fmt.Errorf("scan word: %w", err)
			}
			res = append(res, *w)
		}

		if rows.Err() != nil {
			return fmt.Errorf("iterate words: %w", rows.Err())
		}

		return nil
	})

	eg.Go(func() error {
		sql, args, err := countQuery.ToSql()
		if err != nil {
			return fmt.Errorf("build count query: %w", err)
		}

		if err := r.client.QueryRowContext(ctx, sql, args...).Scan(&total); err != nil {
			return fmt.Errorf("get total: %w", err)
		}

		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	return res, total, nil
}

func (r *Repository) FindRandomWord(ctx context.Context, filter dal.RandomWordFilter) (*dal.Word, error) {
	w, err := r.randomWordAtLevel(ctx, filter.Level, filter.ExcludeIDs)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, dal.ErrNotFound) {
		return nil, err
	}

	// level exhausted: fall back to the closest level that still has words
	level, err := r.nearestLevel(ctx, filter.Level, filter.ExcludeIDs)
	if err != nil {
		return nil, err
	}

	return r.randomWordAtLevel(ctx, level, filter.ExcludeIDs)
}

func (r *Repository) randomWordAtLevel(ctx context.Context, level int, excludeIDs []int64) (*dal.Word, error) {
	query := dal.FindRandomWordQuery(level, excludeIDs)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	row := r.client.QueryRowContext(ctx, sqlQuery, args...)
	w, err := hydrateWord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dal.ErrNotFound
		}
		return nil, fmt.Errorf("get random word: %w", err)
	}
	return w, nil
}

func (r *Repository) nearestLevel(ctx context.Context, level int, excludeIDs []int64) (int, error) {
	query := dal.NearestLevelQuery(level, excludeIDs)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select query: %w", err)
	}

	var res int
	if err := r.client.QueryRowContext(ctx, sqlQuery, args...).Scan(&res); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, dal.ErrNotFound
		}
		return 0, fmt.Errorf("get nearest level: %w", err)
	}
	return res, nil
}

func hydrateWord(row interface {
	Scan(dest ...interface{}) error
}) (*dal.Word, error) {
	var w dal.Word
	err := row.Scan(
		&w.ID,
		&w.TargetWord,
		&w.Meaning,
		&w.Level,
		&w.ExampleEN,
		&w.ExampleNative,
		&w.RootWord,
		&w.TotalTry,
		&w.TotalWrong,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
