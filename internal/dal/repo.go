package dal

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned by the storage backend when it refuses a
	// write due to throttling. It is the only error writes are retried on.
	ErrRateLimited = errors.New("rate limited")
)

type (
	WordsFilter struct {
		Search string
		Level  int // 0 = any
		Offset uint64
		Limit  uint64
	}

	RandomWordFilter struct {
		Level      int
		ExcludeIDs []int64
	}

	CatalogRepository interface {
		LoadCatalog(ctx context.Context) ([]Word, error)
		FindWords(ctx context.Context, filter WordsFilter) ([]Word, int, error)
		// FindRandomWord picks a random word at filter.Level excluding the
		// given IDs; when that level has no candidates it falls back to the
		// nearest level that does. ErrNotFound means the catalog is exhausted.
		FindRandomWord(ctx context.Context, filter RandomWordFilter) (*Word, error)
		UpsertWord(ctx context.Context, word Word) error
	}

	ProgressRepository interface {
		LoadProgress(ctx context.Context, username string) ([]ProgressRecord, error)
		SaveProgress(ctx context.Context, username string, records []ProgressRecord) error
	}

	StudyLogRepository interface {
		AppendStudyLog(ctx context.Context, entries []StudyLogEntry) error
		// LoadRecentStudyLog returns the newest entries first, at most limit.
		LoadRecentStudyLog(ctx context.Context, username string, limit int) ([]StudyLogEntry, error)
	}

	UserRepository interface {
		GetUserLevelState(ctx context.Context, username string) (*UserLevelState, error)
		CreateUser(ctx context.Context, username, name string) error
		UpdateUserLevelState(ctx context.Context, username string, update UserStateUpdate) error
		SetUserLevel(ctx context.Context, username string, level int) error
	}

	Repository interface {
		Transact(ctx context.Context, txFunc func(r Repository) error) error
		CatalogRepository
		ProgressRepository
		StudyLogRepository
		UserRepository
	}
)
