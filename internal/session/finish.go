package session

import (
	"context"
	"fmt"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/level"
)

// how deep Finish scans the study log looking for a full evaluation window
// at the learner's current level
const logScanLimit = 500

// Summary is what a finished batch reports back to the caller.
type Summary struct {
	Answered int
	Correct  int

	// Evaluation is set when the 50-answer counter filled up and a level
	// re-evaluation ran during this Finish.
	Evaluation *level.Result

	// AccumulatedCount is the counter value left after Finish, for
	// "N until next evaluation" displays.
	AccumulatedCount int

	// Next carries a wrong-review follow-up batch when the learner missed
	// words; they retype those before the session truly ends.
	Next *Session
}

// Finish flushes all buffered writes, runs the level re-evaluation when due,
// and hands back either a wrong-review follow-up or the final summary. On a
// flush failure every buffer stays intact and Dirty keeps reporting true.
func (s *Session) Finish(ctx context.Context) (*Summary, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	sum := &Summary{Answered: s.answered, Correct: s.correct}

	// state is re-read so back-to-back batches accumulate correctly
	state, err := s.coord.repo.GetUserLevelState(ctx, s.username)
	if err != nil {
		return nil, fmt.Errorf("get user state: %w", err)
	}

	accumulated := state.QuestionCount + s.answered
	if accumulated >= level.WindowSize {
		res, remaining, err := s.coord.evaluate(ctx, s.username, state, accumulated)
		if err != nil {
			return nil, err
		}
		sum.Evaluation = res
		sum.AccumulatedCount = remaining
	} else {
		err = s.coord.retry.Do(ctx, func(ctx context.Context) error {
			return s.coord.repo.UpdateUserLevelState(ctx, s.username, dal.UserStateUpdate{QuestionCount: &accumulated})
		})
		if err != nil {
			return nil, fmt.Errorf("update question count: %w", err)
		}
		sum.AccumulatedCount = accumulated
	}

	if len(s.wrongWords) > 0 {
		sum.Next = s.wrongReviewSession()
		s.wrongWords = nil
	}

	return sum, nil
}

// Flush writes the buffered progress updates, log rows and pending sets in
// one transaction, retried on rate limiting. Buffers are only cleared after
// the transaction commits.
func (s *Session) Flush(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if !s.dirty {
		return nil
	}

	changed := make([]dal.ProgressRecord, 0, len(s.dirtyProgress))
	for _, rec := range s.progress {
		if s.dirtyProgress[rec.WordID] {
			changed = append(changed, rec)
		}
	}
	wrongs := setToIDs(s.pendingWrongs)
	pending := setToIDs(s.pendingSession)
	logs := s.logBuffer

	err := s.coord.retry.Do(ctx, func(ctx context.Context) error {
		return s.coord.repo.Transact(ctx, func(r dal.Repository) error {
			if len(changed) > 0 {
				if err := r.SaveProgress(ctx, s.username, changed); err != nil {
					return err
				}
			}
			if len(logs) > 0 {
				if err := r.AppendStudyLog(ctx, logs); err != nil {
					return err
				}
			}
			return r.UpdateUserLevelState(ctx, s.username, dal.UserStateUpdate{
				PendingWrongs:  &wrongs,
				PendingSession: &pending,
			})
		})
	})
	if err != nil {
		return fmt.Errorf("flush session: %w", err)
	}

	s.logBuffer = nil
	s.dirtyProgress = make(map[int64]bool)
	s.dirty = false
	return nil
}

// evaluate runs the level engine over the newest 50 answers at the current
// level. When the learner does not have a full window at this level yet the
// counter simply keeps accumulating.
func (c *Coordinator) evaluate(ctx context.Context, username string, state *dal.UserLevelState, accumulated int) (*level.Result, int, error) {
	logs, err := c.repo.LoadRecentStudyLog(ctx, username, logScanLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("load study log: %w", err)
	}

	current := state.CurrentLevel()
	window := make([]dal.StudyLogEntry, 0, level.WindowSize)
	for _, e := range logs {
		if e.Level != current {
			continue
		}
		window = append(window, e)
		if len(window) == level.WindowSize {
			break
		}
	}

	if len(window) < level.WindowSize {
		err = c.retry.Do(ctx, func(ctx context.Context) error {
			return c.repo.UpdateUserLevelState(ctx, username, dal.UserStateUpdate{QuestionCount: &accumulated})
		})
		if err != nil {
			return nil, 0, fmt.Errorf("update question count: %w", err)
		}
		return nil, accumulated, nil
	}

	correct := 0
	for _, e := range window {
		if e.Correct {
			correct++
		}
	}

	res := level.Evaluate(current, correct, level.WindowSize, state.FailStreak, state.LevelShield)
	remainder := accumulated % level.WindowSize

	err = c.retry.Do(ctx, func(ctx context.Context) error {
		return c.repo.UpdateUserLevelState(ctx, username, dal.UserStateUpdate{
			Level:         &res.Level,
			FailStreak:    &res.FailStreak,
			LevelShield:   &res.LevelShield,
			QuestionCount: &remainder,
		})
	})
	if err != nil {
		return nil, 0, fmt.Errorf("apply evaluation result: %w", err)
	}

	c.log.InfoContext(ctx, "level re-evaluation",
		"username", username, "correct", correct, "level", current, "new_level", res.Level)

	return &res, remainder, nil
}

// wrongReviewSession builds the follow-up batch out of this batch's misses.
// Review rounds are logged but never touch the schedule.
func (s *Session) wrongReviewSession() *Session {
	next := &Session{
		coord:          s.coord,
		username:       s.username,
		today:          s.today,
		kind:           KindWrongReview,
		level:          s.level,
		progress:       s.progress,
		dirtyProgress:  make(map[int64]bool),
		pendingWrongs:  cloneSet(s.pendingWrongs),
		pendingSession: cloneSet(s.pendingSession),
	}
	next.setQueue(append([]dal.Word(nil), s.wrongWords...))
	return next
}

func cloneSet(set map[int64]bool) map[int64]bool {
	res := make(map[int64]bool, len(set))
	for id := range set {
		res[id] = true
	}
	return res
}
