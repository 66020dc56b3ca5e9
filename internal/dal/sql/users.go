package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

func (r *Repository) GetUserLevelState(ctx context.Context, username string) (*dal.UserLevelState, error) {
	query := dal.GetUserQuery(username)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var (
		state          dal.UserLevelState
		level          sql.NullInt64
		pendingWrongs  string
		pendingSession string
	)
	row := r.client.QueryRowContext(ctx, sqlQuery, args...)
	err = row.Scan(
		&state.Username,
		&state.Name,
		&level,
		&state.FailStreak,
		&state.LevelShield,
		&state.QuestionCount,
		&pendingWrongs,
		&pendingSession,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dal.ErrNotFound
		}
		return nil, fmt.Errorf("get user level state: %w", err)
	}

	if level.Valid {
		lvl := int(level.Int64)
		state.Level = &lvl
	}
	state.PendingWrongs = dal.DecodeIDs(pendingWrongs)
	state.PendingSession = dal.DecodeIDs(pendingSession)

	return &state, nil
}

func (r *Repository) CreateUser(ctx context.Context, username, name string) error {
	query := dal.CreateUserQuery(username, name)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) UpdateUserLevelState(ctx context.Context, username string, update dal.UserStateUpdate) error {
	query, ok := dal.UpdateUserQuery(username, update)
	if !ok {
		return nil
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("update user level state: %w", err)
	}
	return nil
}

func (r *Repository) SetUserLevel(ctx context.Context, username string, level int) error {
	query := dal.SetUserLevelQuery(username, level)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("set user level: %w", err)
	}
	return nil
}
