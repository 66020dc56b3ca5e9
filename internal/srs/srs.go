// Package srs implements the spaced-repetition scheduler. It is pure: all
// functions derive new schedule records from inputs without touching storage,
// and "today" is always passed in by the caller.
package srs

import (
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

const fastTrackGapDays = 30

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves a date forward by whole calendar months, clamping to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(day time.Time, months int) time.Time {
	y := day.Year() + (int(day.Month())-1+months)/12
	m := time.Month((int(day.Month())-1+months)%12 + 1)

	d := day.Day()
	if last := lastDayOfMonth(y, m); d > last {
		d = last
	}

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Schedule computes the record after one graded answer. A nil rec means the
// word has never been scheduled before. The result is a fresh value; the
// input is never mutated.
func Schedule(rec *dal.ProgressRecord, wordID int64, correct bool, today time.Time) dal.ProgressRecord {
	today = Day(today)

	if rec == nil {
		if correct {
			// right on first sight: jump straight to the longest cadence
			return dal.ProgressRecord{
				WordID:       wordID,
				LastReviewed: &today,
				NextReview:   nextReviewFor(240, today),
				Interval:     240,
				FailCount:    0,
			}
		}
		return dal.ProgressRecord{
			WordID:       wordID,
			LastReviewed: &today,
			NextReview:   today.AddDate(0, 0, 1),
			Interval:     1,
			FailCount:    1,
		}
	}

	res := *rec
	res.WordID = wordID
	res.Interval = res.Interval.Snap()

	if !correct {
		// a miss always resets to tomorrow, retirement included
		res.FailCount++
		res.Interval = 1
		res.NextReview = today.AddDate(0, 0, 1)
		res.LastReviewed = &today
		return res
	}

	if res.Retired() {
		return res
	}

	if res.Interval == 240 {
		res.NextReview = dal.RetiredDate
		res.LastReviewed = &today
		return res
	}

	if rec.LastReviewed != nil && daysBetween(Day(*rec.LastReviewed), today) >= fastTrackGapDays {
		// remembered across a long absence: the word is effectively known
		res.Interval = 240
		res.NextReview = nextReviewFor(240, today)
		res.LastReviewed = &today
		return res
	}

	if res.FailCount > 0 {
		res.Interval = nextStep(res.Interval)
	} else {
		res.Interval = 60
	}
	res.NextReview = nextReviewFor(res.Interval, today)
	res.LastReviewed = &today
	return res
}

// Apply runs Schedule for one word against a full progress set and returns
// the set with exactly that record inserted or replaced.
func Apply(records []dal.ProgressRecord, wordID int64, correct bool, today time.Time) []dal.ProgressRecord {
	for i := range records {
		if records[i].WordID == wordID {
			updated := Schedule(&records[i], wordID, correct, today)
			res := make([]dal.ProgressRecord, len(records))
			copy(res, records)
			res[i] = updated
			return res
		}
	}

	res := make([]dal.ProgressRecord, 0, len(records)+1)
	res = append(res, records...)
	res = append(res, Schedule(nil, wordID, correct, today))
	return res
}

// nextStep advances one ladder position. The re-learning ladder tops out at
// 120; only the long-gap and first-sight paths reach 240.
func nextStep(cur dal.Interval) dal.Interval {
	switch cur.Snap() {
	case 1:
		return 3
	case 3:
		return 7
	case 7:
		return 14
	case 14:
		return 60
	default:
		return 120
	}
}

func nextReviewFor(interval dal.Interval, today time.Time) time.Time {
	if months, ok := interval.Months(); ok {
		return AddMonths(today, months)
	}
	return today.AddDate(0, 0, int(interval))
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

func lastDayOfMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
