// Package placement implements the adaptive entry test that assigns a level
// to a new learner. The test itself is pure state-machine logic; question
// material comes through the injected WordSource.
package placement

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

const (
	StartLevel  = 8
	TotalRounds = 30

	gateLevel      = 15
	earlyStopLimit = 15
	lowLevelBound  = 3
	finalWindow    = 8

	// FinalCeiling caps first-time placement; regular re-evaluation can
	// still climb all the way to 30 afterwards.
	FinalCeiling = 15
)

var ErrFinished = errors.New("placement test already finished")

type (
	Outcome int

	// Round is one answered question. Correct is the algorithm's view;
	// a skip keeps its own Outcome for display but counts as wrong.
	Round struct {
		Number  int
		Level   int
		WordID  int64
		Word    string
		Outcome Outcome
	}

	// WordSource supplies one random word at a level, excluding already
	// asked IDs. Nearest-level fallback is the source's concern.
	WordSource interface {
		RandomWord(ctx context.Context, level int, excludeIDs []int64) (*dal.Word, error)
	}

	Test struct {
		source  WordSource
		level   int
		history []Round
		current *dal.Word
		done    bool
		final   int
	}
)

const (
	OutcomeWrong Outcome = iota
	OutcomeCorrect
	OutcomeSkip
)

func (o Outcome) correct() bool { return o == OutcomeCorrect }

func New(source WordSource) *Test {
	return &Test{source: source, level: StartLevel}
}

// Start fetches the first question. Must be called once before Answer.
func (t *Test) Start(ctx context.Context) (*dal.Word, error) {
	if t.current != nil || t.done {
		return nil, ErrFinished
	}
	return t.nextQuestion(ctx)
}

// Current returns the question awaiting an answer, nil once the test ended.
func (t *Test) Current() *dal.Word { return t.current }

func (t *Test) Done() bool { return t.done }

// FinalLevel is only meaningful after Done reports true.
func (t *Test) FinalLevel() int { return t.final }

func (t *Test) History() []Round { return t.history }

func (t *Test) RoundsAnswered() int { return len(t.history) }

// Answer grades the current question and advances the test. It returns the
// next question, or nil with done=true when the test is over.
func (t *Test) Answer(ctx context.Context, outcome Outcome) (next *dal.Word, done bool, err error) {
	if t.done || t.current == nil {
		return nil, true, ErrFinished
	}

	idx := len(t.history) + 1
	answered := Round{
		Number:  idx,
		Level:   t.level,
		WordID:  t.current.ID,
		Word:    t.current.TargetWord,
		Outcome: outcome,
	}
	t.history = append(t.history, answered)
	t.current = nil

	nextLevel := t.advance(idx, outcome)

	// three low-level misses in a row early in the test: no point going on
	if idx <= earlyStopLimit && answered.Level <= lowLevelBound && !outcome.correct() && t.recentLowMisses() >= 3 {
		t.done = true
		t.final = 1
		return nil, true, nil
	}

	t.level = nextLevel

	if idx >= TotalRounds {
		t.done = true
		t.final = t.finalize()
		return nil, true, nil
	}

	w, err := t.nextQuestion(ctx)
	if err != nil {
		return nil, false, err
	}
	return w, false, nil
}

// advance computes the level for the next round from the freshly appended
// history entry.
func (t *Test) advance(idx int, outcome Outcome) int {
	step := stepFor(idx)
	next := float64(t.level)

	switch {
	case outcome.correct():
		bonus := 0
		if idx >= 8 && idx <= 22 && len(t.history) >= 2 && t.history[len(t.history)-2].Outcome.correct() {
			bonus = 1
		}

		if t.level == gateLevel && idx <= 22 {
			// the gate: crossing 15 before the fine phase takes two
			// consecutive correct answers at 15
			if prev := t.previousRound(); prev != nil && prev.Level == gateLevel && prev.Outcome.correct() {
				next += float64(step + bonus)
			}
		} else {
			next += float64(step + bonus)
		}
	case outcome == OutcomeSkip:
		next -= float64(step) / 2
	default:
		next -= float64(step)
	}

	return clampLevel(int(math.Round(next)))
}

func (t *Test) previousRound() *Round {
	if len(t.history) < 2 {
		return nil
	}
	return &t.history[len(t.history)-2]
}

func (t *Test) recentLowMisses() int {
	start := len(t.history) - 3
	if start < 0 {
		start = 0
	}
	count := 0
	for _, r := range t.history[start:] {
		if r.Level <= lowLevelBound && !r.Outcome.correct() {
			count++
		}
	}
	return count
}

func (t *Test) finalize() int {
	start := len(t.history) - finalWindow
	if start < 0 {
		start = 0
	}
	window := t.history[start:]

	sum := 0
	for _, r := range window {
		sum += r.Level
	}
	avg := float64(sum) / float64(len(window))
	res := clampLevel(int(math.Round(avg)))
	if res > FinalCeiling {
		res = FinalCeiling
	}
	return res
}

func (t *Test) nextQuestion(ctx context.Context) (*dal.Word, error) {
	exclude := make([]int64, 0, len(t.history))
	for _, r := range t.history {
		exclude = append(exclude, r.WordID)
	}

	w, err := t.source.RandomWord(ctx, t.level, exclude)
	if err != nil {
		return nil, fmt.Errorf("fetch question at level %d: %w", t.level, err)
	}
	t.current = w
	return w, nil
}

func stepFor(idx int) int {
	switch {
	case idx <= 7:
		return 4
	case idx <= 22:
		return 2
	default:
		return 1
	}
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 30 {
		return 30
	}
	return level
}
