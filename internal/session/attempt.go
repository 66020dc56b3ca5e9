package session

import (
	"context"
	"fmt"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/srs"
)

// Answer records one graded attempt. Everything is buffered in memory; no
// storage write happens here. Non-first attempts are ignored entirely: a
// typo retry or a post-give-up retype never produces a second record.
func (s *Session) Answer(ctx context.Context, wordID int64, correct bool, attempt AttemptContext) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.answer(ctx, wordID, correct, attempt)
}

// GiveUp marks the current word as missed and immediately persists the
// missed set, so the word comes back as forced review even if the process
// dies before the batch is flushed.
func (s *Session) GiveUp(ctx context.Context, wordID int64) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if err := s.answer(ctx, wordID, false, AttemptContext{FirstAttempt: true, Kind: s.kind}); err != nil {
		return err
	}

	wrongs := setToIDs(s.pendingWrongs)
	err := s.coord.retry.Do(ctx, func(ctx context.Context) error {
		return s.coord.repo.UpdateUserLevelState(ctx, s.username, dal.UserStateUpdate{PendingWrongs: &wrongs})
	})
	if err != nil {
		// the set is still buffered; the next flush carries it
		s.coord.log.ErrorContext(ctx, "persist missed words", "username", s.username, "error", err)
	}
	return nil
}

func (s *Session) answer(_ context.Context, wordID int64, correct bool, attempt AttemptContext) error {
	if !attempt.FirstAttempt {
		return nil
	}

	w, ok := s.words[wordID]
	if !ok {
		return fmt.Errorf("word %d is not part of this session", wordID)
	}

	s.answered++
	s.logBuffer = append(s.logBuffer, dal.StudyLogEntry{
		Timestamp: time.Now(),
		Date:      s.today,
		Username:  s.username,
		WordID:    wordID,
		Level:     w.Level,
		Correct:   correct,
	})
	s.dirty = true

	if correct {
		s.correct++
		delete(s.pendingWrongs, wordID)
	} else {
		s.pendingWrongs[wordID] = true
		s.wrongWords = append(s.wrongWords, w)
	}

	// only regular rounds advance the review schedule and burn down the
	// planned session; review modes just re-drill
	if attempt.Kind == KindNormal {
		delete(s.pendingSession, wordID)
		s.progress = srs.Apply(s.progress, wordID, correct, s.today)
		s.dirtyProgress[wordID] = true
	}

	return nil
}
