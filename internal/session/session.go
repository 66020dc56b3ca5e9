// Package session coordinates learning batches: what gets asked, what gets
// buffered in memory while the learner types, and what gets flushed to
// storage when a batch ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/srs"
	"github.com/honest0623-ship-it/IDK-Voca/pkg/cache"
)

const (
	// DefaultBatchSize is used when the caller does not ask for a size.
	DefaultBatchSize = 10

	// DueCap bounds how many overdue words a single fresh batch may carry,
	// so a learner returning from a long break is not buried.
	DueCap = 50

	catalogCacheKey = "catalog"
	catalogCacheTTL = time.Minute

	// share of fresh new words drawn at exactly the learner's level
	currentLevelShare = 0.6
)

var ErrPlacementRequired = errors.New("placement test required")

type (
	Kind int

	// AttemptContext describes one submitted answer. Only first attempts
	// count; retries and post-give-up retypes are never recorded.
	AttemptContext struct {
		FirstAttempt bool
		Kind         Kind
	}

	Coordinator struct {
		repo    dal.Repository
		retry   dal.RetryPolicy
		catalog *cache.InMemory[string, []dal.Word]

		log *slog.Logger
	}

	Session struct {
		coord    *Coordinator
		username string
		today    time.Time
		kind     Kind
		level    int

		queue []dal.Word
		words map[int64]dal.Word

		progress       []dal.ProgressRecord
		dirtyProgress  map[int64]bool
		logBuffer      []dal.StudyLogEntry
		pendingWrongs  map[int64]bool
		pendingSession map[int64]bool
		wrongWords     []dal.Word

		answered int
		correct  int
		dirty    bool

		mx sync.Mutex
	}
)

const (
	KindNormal Kind = iota
	KindForcedReview
	KindWrongReview
)

func (k Kind) String() string {
	return [...]string{"normal", "forced_review", "wrong_review"}[k]
}

func NewCoordinator(repo dal.Repository, log *slog.Logger) *Coordinator {
	return &Coordinator{
		repo:    repo,
		retry:   dal.DefaultRetryPolicy(),
		catalog: cache.NewInMemory[string, []dal.Word](),

		log: log,
	}
}

// Start builds the next batch for a learner, honoring priority order:
// forced review of carried-over misses, then resuming an interrupted
// session, then a fresh batch of due plus new words.
func (c *Coordinator) Start(ctx context.Context, username string, batchSize int, today time.Time) (*Session, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	today = srs.Day(today)

	state, err := c.repo.GetUserLevelState(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user state: %w", err)
	}
	if state.RequiresPlacement() {
		return nil, ErrPlacementRequired
	}

	progress, err := c.repo.LoadProgress(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	byID := indexByID(catalog)

	s := &Session{
		coord:          c,
		username:       username,
		today:          today,
		level:          state.CurrentLevel(),
		progress:       progress,
		dirtyProgress:  make(map[int64]bool),
		pendingWrongs:  toSet(state.PendingWrongs),
		pendingSession: toSet(state.PendingSession),
	}

	if len(state.PendingWrongs) > 0 {
		s.kind = KindForcedReview
		s.setQueue(wordsByID(byID, state.PendingWrongs))
		c.log.InfoContext(ctx, "forced review session", "username", username, "words", len(s.queue))
		return s, nil
	}

	if resume := wordsByID(byID, state.PendingSession); len(resume) > 0 {
		s.kind = KindNormal
		s.setQueue(resume)
		c.log.InfoContext(ctx, "resumed session", "username", username, "words", len(s.queue))
		return s, nil
	}

	combined := append(
		dueWords(progress, today, byID),
		pickNewWords(catalog, learnedIDs(progress), s.level, batchSize)...,
	)
	if len(combined) == 0 {
		s.kind = KindNormal
		return s, nil
	}

	// persist the planned batch right away so a crash resumes it exactly
	ids := idsOf(combined)
	s.pendingSession = toSet(ids)
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		return c.repo.UpdateUserLevelState(ctx, username, dal.UserStateUpdate{PendingSession: &ids})
	})
	if err != nil {
		return nil, fmt.Errorf("persist planned session: %w", err)
	}

	s.kind = KindNormal
	s.setQueue(combined[:min(batchSize, len(combined))])
	return s, nil
}

func (c *Coordinator) loadCatalog(ctx context.Context) ([]dal.Word, error) {
	if words, ok := c.catalog.Get(catalogCacheKey); ok {
		return words, nil
	}

	words, err := c.repo.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	c.catalog.Set(catalogCacheKey, words, catalogCacheTTL)
	return words, nil
}

func (s *Session) setQueue(words []dal.Word) {
	rand.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
	s.queue = words
	s.words = indexByID(words)
}

func (s *Session) Kind() Kind { return s.kind }

func (s *Session) Username() string { return s.username }

func (s *Session) Level() int { return s.level }

// Words returns the batch in presentation order.
func (s *Session) Words() []dal.Word { return s.queue }

// Dirty reports whether buffered writes still await a successful flush.
func (s *Session) Dirty() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.dirty
}

// dueWords picks overdue records, skipping ones already reviewed today.
func dueWords(progress []dal.ProgressRecord, today time.Time, byID map[int64]dal.Word) []dal.Word {
	var res []dal.Word
	for _, rec := range progress {
		if len(res) >= DueCap {
			break
		}
		if !rec.DueOn(today) {
			continue
		}
		if w, ok := byID[rec.WordID]; ok {
			res = append(res, w)
		}
	}
	return res
}

// pickNewWords samples unlearned words around the learner's level: a ±1
// band first, widened to ±2 and then the whole catalog when the band runs
// dry, with most picks at the exact level.
func pickNewWords(catalog []dal.Word, learned map[int64]bool, userLevel, needed int) []dal.Word {
	var unlearned []dal.Word
	for _, w := range catalog {
		if !learned[w.ID] {
			unlearned = append(unlearned, w)
		}
	}
	if len(unlearned) == 0 {
		return nil
	}

	candidates := levelBand(unlearned, userLevel, 1)
	if len(candidates) < needed {
		candidates = levelBand(unlearned, userLevel, 2)
	}
	if len(candidates) < needed {
		candidates = unlearned
	}

	var currentPool, otherPool []dal.Word
	for _, w := range candidates {
		if w.Level == userLevel {
			currentPool = append(currentPool, w)
		} else {
			otherPool = append(otherPool, w)
		}
	}

	wantCurrent := int(float64(needed) * currentLevelShare)
	res := sample(currentPool, wantCurrent)
	res = append(res, sample(otherPool, needed-len(res))...)

	if len(res) < needed {
		// band exhausted: top up from the rest of the unlearned pool
		picked := toSet(idsOf(res))
		var rest []dal.Word
		for _, w := range unlearned {
			if !picked[w.ID] {
				rest = append(rest, w)
			}
		}
		res = append(res, sample(rest, needed-len(res))...)
	}

	return res
}

func levelBand(words []dal.Word, center, radius int) []dal.Word {
	lo, hi := center-radius, center+radius
	var res []dal.Word
	for _, w := range words {
		if w.Level >= lo && w.Level <= hi {
			res = append(res, w)
		}
	}
	return res
}

func sample(pool []dal.Word, n int) []dal.Word {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	idx := rand.Perm(len(pool))[:n]
	res := make([]dal.Word, 0, n)
	for _, i := range idx {
		res = append(res, pool[i])
	}
	return res
}

func indexByID(words []dal.Word) map[int64]dal.Word {
	res := make(map[int64]dal.Word, len(words))
	for _, w := range words {
		res[w.ID] = w
	}
	return res
}

func wordsByID(byID map[int64]dal.Word, ids []int64) []dal.Word {
	res := make([]dal.Word, 0, len(ids))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			res = append(res, w)
		}
	}
	return res
}

func learnedIDs(progress []dal.ProgressRecord) map[int64]bool {
	res := make(map[int64]bool, len(progress))
	for _, rec := range progress {
		res[rec.WordID] = true
	}
	return res
}

func idsOf(words []dal.Word) []int64 {
	res := make([]int64, 0, len(words))
	for _, w := range words {
		res = append(res, w.ID)
	}
	return res
}

func toSet(ids []int64) map[int64]bool {
	res := make(map[int64]bool, len(ids))
	for _, id := range ids {
		res[id] = true
	}
	return res
}

func setToIDs(set map[int64]bool) []int64 {
	res := make([]int64, 0, len(set))
	for id := range set {
		res = append(res, id)
	}
	slices.Sort(res)
	return res
}
