package dal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

const (
	// DateLayout is the storage rendering of day-granularity dates.
	DateLayout = "2006-01-02"
	// TimestampLayout is the storage rendering of full timestamps.
	TimestampLayout = time.RFC3339
)

func wordColumns() []string {
	return []string{
		"id", "target_word", "meaning", "level",
		"COALESCE(example_en, '')", "COALESCE(example_native, '')", "COALESCE(root_word, '')",
		"total_try", "total_wrong",
	}
}

// UpsertWordQuery builds a query to add or update a catalog word
func UpsertWordQuery(word Word) squirrel.Sqlizer {
	return squirrel.Insert("voca_db").
		Columns("target_word", "meaning", "level", "example_en", "example_native", "root_word").
		Values(word.TargetWord, word.Meaning, word.Level, word.ExampleEN, word.ExampleNative, word.RootWord).
		Suffix("ON CONFLICT (target_word) DO UPDATE SET " +
			"meaning = EXCLUDED.meaning, level = EXCLUDED.level, " +
			"example_en = EXCLUDED.example_en, example_native = EXCLUDED.example_native, " +
			"root_word = EXCLUDED.root_word").
		PlaceholderFormat(squirrel.Dollar)
}

// LoadCatalogQuery builds a query to load the full word catalog
func LoadCatalogQuery() squirrel.Sqlizer {
	return squirrel.Select(wordColumns()...).
		From("voca_db").
		OrderBy("id").
		PlaceholderFormat(squirrel.Dollar)
}

// FindWordsQuery builds paged select and count queries over the catalog
func FindWordsQuery(filter WordsFilter) (selectQuery, countQuery squirrel.Sqlizer) {
	baseQuery := squirrel.Select().
		From("voca_db").
		PlaceholderFormat(squirrel.Dollar)

	if filter.Search != "" {
		baseQuery = baseQuery.Where("LOWER(target_word) LIKE ?", fmt.Sprintf("%%%s%%", strings.ToLower(filter.Search)))
	}
	if filter.Level > 0 {
		baseQuery = baseQuery.Where(squirrel.Eq{"level": filter.Level})
	}

	selectQuery = baseQuery.
		Columns(wordColumns()...).
		OrderBy("level", "target_word").
		Offset(filter.Offset).
		Limit(filter.Limit)

	countQuery = baseQuery.Columns("COUNT(*)")

	return selectQuery, countQuery
}

// FindRandomWordQuery builds a query to pick a random word at an exact level
func FindRandomWordQuery(level int, excludeIDs []int64) squirrel.Sqlizer {
	query := squirrel.Select(wordColumns()...).
		From("voca_db").
		Where(squirrel.Eq{"level": level}).
		OrderBy("random()").
		Limit(1)

	if len(excludeIDs) > 0 {
		query = query.Where(squirrel.NotEq{"id": excludeIDs})
	}

	return query.PlaceholderFormat(squirrel.Dollar)
}

// NearestLevelQuery builds a query to find the level closest to the wanted
// one that still has candidate words
func NearestLevelQuery(level int, excludeIDs []int64) squirrel.Sqlizer {
	query := squirrel.Select("level").
		From("voca_db").
		OrderBy(fmt.Sprintf("ABS(level - %d)", level), "level").
		Limit(1)

	if len(excludeIDs) > 0 {
		query = query.Where(squirrel.NotEq{"id": excludeIDs})
	}

	return query.PlaceholderFormat(squirrel.Dollar)
}

// LoadProgressQuery builds a query to load all schedule records of a learner
func LoadProgressQuery(username string) squirrel.Sqlizer {
	return squirrel.Select("word_id", "last_reviewed", "next_review", "interval", "fail_count").
		From("user_progress").
		Where(squirrel.Eq{"username": username}).
		OrderBy("word_id").
		PlaceholderFormat(squirrel.Dollar)
}

// SaveProgressQuery builds a query to insert or replace one schedule record
func SaveProgressQuery(username string, record ProgressRecord) squirrel.Sqlizer {
	var lastReviewed any
	if record.LastReviewed != nil {
		lastReviewed = record.LastReviewed.Format(DateLayout)
	}

	return squirrel.Insert("user_progress").
		Columns("username", "word_id", "last_reviewed", "next_review", "interval", "fail_count").
		Values(username, record.WordID, lastReviewed, record.NextReview.Format(DateLayout), int(record.Interval), record.FailCount).
		Suffix("ON CONFLICT (username, word_id) DO UPDATE SET " +
			"last_reviewed = EXCLUDED.last_reviewed, next_review = EXCLUDED.next_review, " +
			"interval = EXCLUDED.interval, fail_count = EXCLUDED.fail_count").
		PlaceholderFormat(squirrel.Dollar)
}

// AppendStudyLogQuery builds a query to append one study log row
func AppendStudyLogQuery(entry StudyLogEntry) squirrel.Sqlizer {
	return squirrel.Insert("study_log").
		Columns("ts", "date", "username", "word_id", "level", "correct").
		Values(
			entry.Timestamp.UTC().Format(TimestampLayout),
			entry.Date.Format(DateLayout),
			entry.Username,
			entry.WordID,
			entry.Level,
			entry.Correct,
		).
		PlaceholderFormat(squirrel.Dollar)
}

// LoadRecentStudyLogQuery builds a query to load the newest log rows first
func LoadRecentStudyLogQuery(username string, limit int) squirrel.Sqlizer {
	return squirrel.Select("ts", "date", "username", "word_id", "level", "correct").
		From("study_log").
		Where(squirrel.Eq{"username": username}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)
}

// GetUserQuery builds a query to load a learner's level state
func GetUserQuery(username string) squirrel.Sqlizer {
	return squirrel.Select("username", "name", "level", "fail_streak", "level_shield", "qs_count", "pending_wrongs", "pending_session").
		From("users").
		Where(squirrel.Eq{"username": username}).
		PlaceholderFormat(squirrel.Dollar)
}

// CreateUserQuery builds a query to register a learner. Level starts NULL:
// the placement test fills it in.
func CreateUserQuery(username, name string) squirrel.Sqlizer {
	return squirrel.Insert("users").
		Columns("username", "name", "level_shield").
		Values(username, name, 3).
		Suffix("ON CONFLICT (username) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)
}

// SetUserLevelQuery builds a query to set the learner's level outright,
// resetting the shield and the evaluation counters.
func SetUserLevelQuery(username string, level int) squirrel.Sqlizer {
	return squirrel.Update("users").
		Set("level", level).
		Set("fail_streak", 0).
		Set("level_shield", 3).
		Set("qs_count", 0).
		Where(squirrel.Eq{"username": username}).
		PlaceholderFormat(squirrel.Dollar)
}

// UpdateUserQuery builds a partial update over the learner's level state.
// The second result is false when the update has no fields set.
func UpdateUserQuery(username string, update UserStateUpdate) (squirrel.Sqlizer, bool) {
	query := squirrel.Update("users").
		Where(squirrel.Eq{"username": username}).
		PlaceholderFormat(squirrel.Dollar)

	set := false
	if update.Level != nil {
		query = query.Set("level", *update.Level)
		set = true
	}
	if update.FailStreak != nil {
		query = query.Set("fail_streak", *update.FailStreak)
		set = true
	}
	if update.LevelShield != nil {
		query = query.Set("level_shield", *update.LevelShield)
		set = true
	}
	if update.QuestionCount != nil {
		query = query.Set("qs_count", *update.QuestionCount)
		set = true
	}
	if update.PendingWrongs != nil {
		query = query.Set("pending_wrongs", EncodeIDs(*update.PendingWrongs))
		set = true
	}
	if update.PendingSession != nil {
		query = query.Set("pending_session", EncodeIDs(*update.PendingSession))
		set = true
	}

	return query, set
}

// EncodeIDs renders an id set as a comma-separated list for storage.
func EncodeIDs(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

// DecodeIDs parses a stored comma-separated id list. Blank and malformed
// fragments are skipped so one bad row cannot wedge a learner's state.
func DecodeIDs(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	res := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		res = append(res, id)
	}
	return res
}
