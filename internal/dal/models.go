package dal

import "time"

// RetiredDate is the next_review sentinel marking a word as permanently
// mastered. Records carrying it are never surfaced as due again.
var RetiredDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// IntervalLadder is the ordered domain of review cadences in days.
// Steps of 60 and above are rendered as calendar months (+2/+4/+8) rather
// than literal day counts.
var IntervalLadder = []Interval{1, 3, 7, 14, 60, 120, 240}

type (
	// Interval is a review cadence drawn from IntervalLadder, or 0 for a
	// record that has not been scheduled yet.
	Interval int

	Word struct {
		ID            int64
		TargetWord    string
		Meaning       string
		Level         int
		ExampleEN     string
		ExampleNative string
		RootWord      string
		TotalTry      int
		TotalWrong    int
	}

	ProgressRecord struct {
		WordID       int64
		LastReviewed *time.Time
		NextReview   time.Time
		Interval     Interval
		FailCount    int
	}

	StudyLogEntry struct {
		Timestamp time.Time
		Date      time.Time
		Username  string
		WordID    int64
		Level     int
		Correct   bool
	}

	UserLevelState struct {
		Username       string
		Name           string
		Level          *int
		FailStreak     int
		LevelShield    int
		QuestionCount  int
		PendingWrongs  []int64
		PendingSession []int64
	}

	// UserStateUpdate is a partial update: nil fields are left untouched.
	// Slice fields use pointers so an empty set can be written explicitly.
	UserStateUpdate struct {
		Level          *int
		FailStreak     *int
		LevelShield    *int
		QuestionCount  *int
		PendingWrongs  *[]int64
		PendingSession *[]int64
	}
)

// Known reports whether the interval is a member of the ladder.
func (i Interval) Known() bool {
	for _, v := range IntervalLadder {
		if i == v {
			return true
		}
	}
	return false
}

// Snap normalizes an out-of-ladder interval to the nearest ladder value less
// than or equal to it. Anything at or below zero snaps to the first step.
func (i Interval) Snap() Interval {
	if i.Known() {
		return i
	}
	res := IntervalLadder[0]
	for _, v := range IntervalLadder {
		if v <= i {
			res = v
		}
	}
	return res
}

// Months returns the calendar-month rendering for month-granularity steps
// and false for day-granularity ones.
func (i Interval) Months() (int, bool) {
	switch i {
	case 60:
		return 2, true
	case 120:
		return 4, true
	case 240:
		return 8, true
	default:
		return 0, false
	}
}

// Retired reports whether the record has graduated out of rotation.
func (p ProgressRecord) Retired() bool {
	return p.NextReview.Equal(RetiredDate)
}

// DueOn reports whether the record should be surfaced for review on the given
// day. Records already reviewed that day are not due again until tomorrow.
func (p ProgressRecord) DueOn(day time.Time) bool {
	if p.Retired() || p.NextReview.After(day) {
		return false
	}
	return p.LastReviewed == nil || !SameDay(*p.LastReviewed, day)
}

// RequiresPlacement reports whether the learner still has to take the
// placement test before regular sessions.
func (s UserLevelState) RequiresPlacement() bool {
	return s.Level == nil
}

// CurrentLevel returns the learner's level, defaulting to 1 when unset.
func (s UserLevelState) CurrentLevel() int {
	if s.Level == nil {
		return 1
	}
	return *s.Level
}

// SameDay reports whether two timestamps fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
