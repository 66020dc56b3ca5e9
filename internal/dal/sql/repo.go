package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

type (
	// Client is the exec/query capability shared by *sql.DB and *sql.Tx.
	Client interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	}

	Repository struct {
		// db is nil on tx-scoped repositories; only the root can begin
		// transactions.
		db     *sql.DB
		client Client
		log    *slog.Logger
	}
)

func NewRepository(ctx context.Context, db *sql.DB, log *slog.Logger) (*Repository, error) {
	if err := bootstrap(ctx, db); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Repository{db: db, client: db, log: log}, nil
}

func (r *Repository) Transact(ctx context.Context, txFunc func(r dal.Repository) error) error {
	if r.db == nil {
		// already inside a transaction
		return txFunc(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // ignore rollback errors

	if err = txFunc(newSQLRepository(tx, r.log)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func newSQLRepository(client Client, log *slog.Logger) *Repository {
	return &Repository{client: client, log: log}
}
