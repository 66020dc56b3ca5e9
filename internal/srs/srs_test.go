package srs

import (
	"testing"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		day    time.Time
		months int
		want   time.Time
	}{
		{"plain", date(2026, time.March, 10), 2, date(2026, time.May, 10)},
		{"year rollover", date(2026, time.November, 15), 4, date(2027, time.March, 15)},
		{"clamp to shorter month", date(2026, time.December, 31), 2, date(2027, time.February, 28)},
		{"clamp leap february", date(2027, time.December, 31), 2, date(2028, time.February, 29)},
		{"eight months", date(2026, time.August, 28), 8, date(2027, time.April, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonths(tt.day, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonths(%v, %d) = %v, want %v", tt.day, tt.months, got, tt.want)
			}
		})
	}
}

func TestSchedule_NewWord(t *testing.T) {
	today := date(2026, time.August, 28)

	t.Run("correct on first sight jumps to 240", func(t *testing.T) {
		got := Schedule(nil, 7, true, today)
		if got.Interval != 240 {
			t.Errorf("interval = %d, want 240", got.Interval)
		}
		if want := AddMonths(today, 8); !got.NextReview.Equal(want) {
			t.Errorf("next review = %v, want %v", got.NextReview, want)
		}
		if got.FailCount != 0 {
			t.Errorf("fail count = %d, want 0", got.FailCount)
		}
	})

	t.Run("wrong on first sight comes back tomorrow", func(t *testing.T) {
		got := Schedule(nil, 7, false, today)
		if got.Interval != 1 {
			t.Errorf("interval = %d, want 1", got.Interval)
		}
		if want := today.AddDate(0, 0, 1); !got.NextReview.Equal(want) {
			t.Errorf("next review = %v, want %v", got.NextReview, want)
		}
		if got.FailCount != 1 {
			t.Errorf("fail count = %d, want 1", got.FailCount)
		}
	})
}

func TestSchedule_Ladder(t *testing.T) {
	today := date(2026, time.August, 28)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name         string
		interval     dal.Interval
		failCount    int
		wantInterval dal.Interval
	}{
		{"1 to 3", 1, 1, 3},
		{"3 to 7", 3, 1, 7},
		{"7 to 14", 7, 2, 14},
		{"14 to 60", 14, 1, 60},
		{"60 to 120", 60, 1, 120},
		{"120 stays 120", 120, 3, 120},
		{"no failures jumps to 60", 14, 0, 60},
		{"out-of-ladder snaps down first", 10, 1, 14},
		{"zero snaps to first step", 0, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := dal.ProgressRecord{
				WordID:       1,
				LastReviewed: &yesterday,
				NextReview:   today,
				Interval:     tt.interval,
				FailCount:    tt.failCount,
			}
			got := Schedule(&rec, 1, true, today)
			if got.Interval != tt.wantInterval {
				t.Errorf("interval = %d, want %d", got.Interval, tt.wantInterval)
			}
			if got.FailCount != tt.failCount {
				t.Errorf("fail count changed: %d, want %d", got.FailCount, tt.failCount)
			}
			if got.LastReviewed == nil || !got.LastReviewed.Equal(today) {
				t.Errorf("last reviewed = %v, want %v", got.LastReviewed, today)
			}
		})
	}
}

func TestSchedule_WrongResetsToTomorrow(t *testing.T) {
	today := date(2026, time.August, 28)
	yesterday := today.AddDate(0, 0, -1)
	rec := dal.ProgressRecord{
		WordID:       3,
		LastReviewed: &yesterday,
		NextReview:   today,
		Interval:     120,
		FailCount:    2,
	}

	got := Schedule(&rec, 3, false, today)
	if got.Interval != 1 {
		t.Errorf("interval = %d, want 1", got.Interval)
	}
	if got.FailCount != 3 {
		t.Errorf("fail count = %d, want 3", got.FailCount)
	}
	if want := today.AddDate(0, 0, 1); !got.NextReview.Equal(want) {
		t.Errorf("next review = %v, want %v", got.NextReview, want)
	}
}

func TestSchedule_Graduation(t *testing.T) {
	today := date(2026, time.August, 28)
	yesterday := today.AddDate(0, 0, -1)

	t.Run("correct at 240 retires the word", func(t *testing.T) {
		rec := dal.ProgressRecord{WordID: 5, LastReviewed: &yesterday, NextReview: today, Interval: 240}
		got := Schedule(&rec, 5, true, today)
		if !got.Retired() {
			t.Errorf("next review = %v, want retirement sentinel", got.NextReview)
		}
	})

	t.Run("correct on a retired word is a no-op", func(t *testing.T) {
		rec := dal.ProgressRecord{WordID: 5, LastReviewed: &yesterday, NextReview: dal.RetiredDate, Interval: 240}
		got := Schedule(&rec, 5, true, today)
		if got != rec {
			t.Errorf("retired record changed: %+v", got)
		}
	})

	t.Run("wrong on a retired word re-enters rotation", func(t *testing.T) {
		rec := dal.ProgressRecord{WordID: 5, LastReviewed: &yesterday, NextReview: dal.RetiredDate, Interval: 240}
		got := Schedule(&rec, 5, false, today)
		if got.Retired() {
			t.Error("record still retired after a miss")
		}
		if got.Interval != 1 || got.FailCount != 1 {
			t.Errorf("interval/fail = %d/%d, want 1/1", got.Interval, got.FailCount)
		}
	})
}

func TestSchedule_LongGapFastTrack(t *testing.T) {
	today := date(2026, time.August, 28)

	t.Run("30 day gap fast-tracks to 240", func(t *testing.T) {
		last := today.AddDate(0, 0, -30)
		rec := dal.ProgressRecord{WordID: 9, LastReviewed: &last, NextReview: today, Interval: 3, FailCount: 2}
		got := Schedule(&rec, 9, true, today)
		if got.Interval != 240 {
			t.Errorf("interval = %d, want 240", got.Interval)
		}
		if want := AddMonths(today, 8); !got.NextReview.Equal(want) {
			t.Errorf("next review = %v, want %v", got.NextReview, want)
		}
	})

	t.Run("29 day gap follows the ladder", func(t *testing.T) {
		last := today.AddDate(0, 0, -29)
		rec := dal.ProgressRecord{WordID: 9, LastReviewed: &last, NextReview: today, Interval: 3, FailCount: 2}
		got := Schedule(&rec, 9, true, today)
		if got.Interval != 7 {
			t.Errorf("interval = %d, want 7", got.Interval)
		}
	})
}

func TestApply(t *testing.T) {
	today := date(2026, time.August, 28)
	yesterday := today.AddDate(0, 0, -1)
	records := []dal.ProgressRecord{
		{WordID: 1, LastReviewed: &yesterday, NextReview: today, Interval: 1, FailCount: 1},
		{WordID: 2, LastReviewed: &yesterday, NextReview: today, Interval: 7, FailCount: 0},
	}

	t.Run("updates exactly the matching record", func(t *testing.T) {
		got := Apply(records, 1, true, today)
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Interval != 3 {
			t.Errorf("updated interval = %d, want 3", got[0].Interval)
		}
		if got[1] != records[1] {
			t.Errorf("untouched record changed: %+v", got[1])
		}
		if records[0].Interval != 1 {
			t.Errorf("input mutated: %+v", records[0])
		}
	})

	t.Run("inserts a record for an unseen word", func(t *testing.T) {
		got := Apply(records, 3, false, today)
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[2].WordID != 3 || got[2].Interval != 1 || got[2].FailCount != 1 {
			t.Errorf("inserted record = %+v", got[2])
		}
	})
}
