// Package level re-evaluates a learner's level from a window of recent
// answers. Promotion is immediate; demotion is damped by a shield that
// absorbs bad windows and a streak that requires two of them in a row.
package level

import "fmt"

const (
	MinLevel = 1
	MaxLevel = 30

	// FullShield is granted on registration and refreshed on every
	// promotion or demotion.
	FullShield = 3

	// WindowSize is how many answers accumulate before an evaluation runs.
	WindowSize = 50
)

type Result struct {
	Level       int
	FailStreak  int
	LevelShield int
	Message     string
}

// Evaluate applies the tier table to one evaluation window. total must be
// positive; calling with an empty window is a programming error and panics.
func Evaluate(current, correct, total, failStreak, shield int) Result {
	if total <= 0 {
		panic("level: evaluate called with empty window")
	}

	accuracy := float64(correct) / float64(total) * 100

	switch {
	case accuracy >= 95:
		lvl := clamp(current + 2)
		return Result{
			Level:       lvl,
			FailStreak:  0,
			LevelShield: FullShield,
			Message:     fmt.Sprintf("outstanding accuracy (%.0f%%): level %d -> %d", accuracy, current, lvl),
		}
	case accuracy >= 80:
		lvl := clamp(current + 1)
		return Result{
			Level:       lvl,
			FailStreak:  0,
			LevelShield: FullShield,
			Message:     fmt.Sprintf("great accuracy (%.0f%%): level %d -> %d", accuracy, current, lvl),
		}
	case accuracy >= 60:
		s := shield - 1
		if s < 0 {
			s = 0
		}
		return Result{
			Level:       current,
			FailStreak:  0,
			LevelShield: s,
			Message:     fmt.Sprintf("steady (%.0f%%): holding level %d", accuracy, current),
		}
	default:
		if shield > 0 {
			return Result{
				Level:       current,
				FailStreak:  failStreak,
				LevelShield: shield - 1,
				Message:     fmt.Sprintf("tough window (%.0f%%): shield absorbed it, level %d stays", accuracy, current),
			}
		}

		streak := failStreak + 1
		if streak >= 2 {
			lvl := clamp(current - 1)
			return Result{
				Level:       lvl,
				FailStreak:  0,
				LevelShield: FullShield,
				Message:     fmt.Sprintf("two rough windows in a row (%.0f%%): level %d -> %d", accuracy, current, lvl),
			}
		}
		return Result{
			Level:       current,
			FailStreak:  streak,
			LevelShield: 0,
			Message:     fmt.Sprintf("rough window (%.0f%%): one more and the level drops", accuracy),
		}
	}
}

func clamp(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
