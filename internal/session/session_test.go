package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

var errStorageDown = errors.New("storage down")

// fakeRepo is an in-memory dal.Repository.
type fakeRepo struct {
	words    []dal.Word
	progress map[string][]dal.ProgressRecord
	logs     []dal.StudyLogEntry
	users    map[string]*dal.UserLevelState

	stateUpdates []dal.UserStateUpdate
	failFlushes  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		progress: make(map[string][]dal.ProgressRecord),
		users:    make(map[string]*dal.UserLevelState),
	}
}

func (f *fakeRepo) Transact(_ context.Context, txFunc func(r dal.Repository) error) error {
	if f.failFlushes > 0 {
		f.failFlushes--
		return errStorageDown
	}
	return txFunc(f)
}

func (f *fakeRepo) LoadCatalog(context.Context) ([]dal.Word, error) { return f.words, nil }

func (f *fakeRepo) FindWords(context.Context, dal.WordsFilter) ([]dal.Word, int, error) {
	return f.words, len(f.words), nil
}

func (f *fakeRepo) FindRandomWord(_ context.Context, filter dal.RandomWordFilter) (*dal.Word, error) {
	for _, w := range f.words {
		if w.Level == filter.Level {
			return &w, nil
		}
	}
	return nil, dal.ErrNotFound
}

func (f *fakeRepo) UpsertWord(_ context.Context, w dal.Word) error {
	f.words = append(f.words, w)
	return nil
}

func (f *fakeRepo) LoadProgress(_ context.Context, username string) ([]dal.ProgressRecord, error) {
	return f.progress[username], nil
}

func (f *fakeRepo) SaveProgress(_ context.Context, username string, records []dal.ProgressRecord) error {
	for _, rec := range records {
		replaced := false
		for i := range f.progress[username] {
			if f.progress[username][i].WordID == rec.WordID {
				f.progress[username][i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			f.progress[username] = append(f.progress[username], rec)
		}
	}
	return nil
}

func (f *fakeRepo) AppendStudyLog(_ context.Context, entries []dal.StudyLogEntry) error {
	f.logs = append(f.logs, entries...)
	return nil
}

func (f *fakeRepo) LoadRecentStudyLog(_ context.Context, username string, limit int) ([]dal.StudyLogEntry, error) {
	var res []dal.StudyLogEntry
	for i := len(f.logs) - 1; i >= 0 && len(res) < limit; i-- {
		if f.logs[i].Username == username {
			res = append(res, f.logs[i])
		}
	}
	return res, nil
}

func (f *fakeRepo) GetUserLevelState(_ context.Context, username string) (*dal.UserLevelState, error) {
	state, ok := f.users[username]
	if !ok {
		return nil, dal.ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (f *fakeRepo) CreateUser(_ context.Context, username, name string) error {
	if _, ok := f.users[username]; !ok {
		f.users[username] = &dal.UserLevelState{Username: username, Name: name, LevelShield: 3}
	}
	return nil
}

func (f *fakeRepo) UpdateUserLevelState(_ context.Context, username string, update dal.UserStateUpdate) error {
	state, ok := f.users[username]
	if !ok {
		return dal.ErrNotFound
	}
	f.stateUpdates = append(f.stateUpdates, update)
	if update.Level != nil {
		lvl := *update.Level
		state.Level = &lvl
	}
	if update.FailStreak != nil {
		state.FailStreak = *update.FailStreak
	}
	if update.LevelShield != nil {
		state.LevelShield = *update.LevelShield
	}
	if update.QuestionCount != nil {
		state.QuestionCount = *update.QuestionCount
	}
	if update.PendingWrongs != nil {
		state.PendingWrongs = append([]int64(nil), (*update.PendingWrongs)...)
	}
	if update.PendingSession != nil {
		state.PendingSession = append([]int64(nil), (*update.PendingSession)...)
	}
	return nil
}

func (f *fakeRepo) SetUserLevel(_ context.Context, username string, lvl int) error {
	state, ok := f.users[username]
	if !ok {
		return dal.ErrNotFound
	}
	state.Level = &lvl
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func addUser(f *fakeRepo, username string, level int) {
	f.users[username] = &dal.UserLevelState{Username: username, Level: &level, LevelShield: 3}
}

func addWords(f *fakeRepo, fromID int64, n int, level int) {
	for i := 0; i < n; i++ {
		f.words = append(f.words, dal.Word{ID: fromID + int64(i), TargetWord: "w", Level: level})
	}
}

func TestStart_PlacementRequired(t *testing.T) {
	f := newFakeRepo()
	f.users["amy"] = &dal.UserLevelState{Username: "amy", LevelShield: 3}

	_, err := NewCoordinator(f, testLogger()).Start(context.Background(), "amy", 10, time.Now())
	if !errors.Is(err, ErrPlacementRequired) {
		t.Errorf("err = %v, want ErrPlacementRequired", err)
	}
}

func TestStart_ForcedReviewTakesPriority(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 10, 5)
	f.users["amy"].PendingWrongs = []int64{1, 2}
	f.users["amy"].PendingSession = []int64{3, 4}

	s, err := NewCoordinator(f, testLogger()).Start(context.Background(), "amy", 10, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Kind() != KindForcedReview {
		t.Errorf("kind = %v, want forced review", s.Kind())
	}
	got := map[int64]bool{}
	for _, w := range s.Words() {
		got[w.ID] = true
	}
	if len(got) != 2 || !got[1] || !got[2] {
		t.Errorf("queue ids = %v, want {1,2}", got)
	}
}

func TestStart_ResumesPendingSession(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 10, 5)
	f.users["amy"].PendingSession = []int64{3, 4, 5}

	s, err := NewCoordinator(f, testLogger()).Start(context.Background(), "amy", 10, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Kind() != KindNormal {
		t.Errorf("kind = %v, want normal", s.Kind())
	}
	if len(s.Words()) != 3 {
		t.Errorf("queue length = %d, want 3", len(s.Words()))
	}
}

func TestStart_FreshBatch(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 10, 5)  // new candidates at the exact level
	addWords(f, 20, 1, 4)  // band neighbor
	addWords(f, 100, 3, 5) // ids 100..102 carry progress

	today := time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	f.progress["amy"] = []dal.ProgressRecord{
		{WordID: 100, NextReview: yesterday, Interval: 3, FailCount: 1},                       // due
		{WordID: 101, LastReviewed: &today, NextReview: yesterday, Interval: 3, FailCount: 1}, // already reviewed today
		{WordID: 102, NextReview: dal.RetiredDate, Interval: 240},                             // retired
	}

	s, err := NewCoordinator(f, testLogger()).Start(context.Background(), "amy", 5, today)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(s.Words()) != 5 {
		t.Fatalf("queue length = %d, want 5", len(s.Words()))
	}
	ids := map[int64]bool{}
	for _, w := range s.Words() {
		ids[w.ID] = true
	}
	if !ids[100] {
		t.Error("due word 100 missing from batch")
	}
	if ids[101] {
		t.Error("word already reviewed today made it into the batch")
	}
	if ids[102] {
		t.Error("retired word made it into the batch")
	}

	// the planned batch must be persisted before the first question
	if len(f.users["amy"].PendingSession) == 0 {
		t.Error("pending session not persisted on start")
	}
}

func TestAnswer_BuffersUntilFlush(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 5, 5)
	ctx := context.Background()
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, today)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	w := s.Words()[0]
	if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if len(f.logs) != 0 {
		t.Errorf("log written before flush: %d entries", len(f.logs))
	}
	if !s.Dirty() {
		t.Error("session not dirty after an answer")
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(f.logs) != 1 || !f.logs[0].Correct {
		t.Errorf("logs after flush = %+v", f.logs)
	}
	if len(f.progress["amy"]) != 1 || f.progress["amy"][0].WordID != w.ID {
		t.Errorf("progress after flush = %+v", f.progress["amy"])
	}
	if s.Dirty() {
		t.Error("session still dirty after flush")
	}
}

func TestAnswer_SecondAttemptIgnored(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 5, 5)
	ctx := context.Background()

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	w := s.Words()[0]
	if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: false, Kind: s.Kind()}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if s.Dirty() {
		t.Error("retry attempt buffered a record")
	}
}

func TestGiveUp_PersistsMissedSetImmediately(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 5, 5)
	ctx := context.Background()

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	w := s.Words()[0]
	if err := s.GiveUp(ctx, w.ID); err != nil {
		t.Fatalf("give up: %v", err)
	}

	// before any flush: the missed set is already durable
	found := false
	for _, id := range f.users["amy"].PendingWrongs {
		if id == w.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("pending wrongs = %v, want %d in it", f.users["amy"].PendingWrongs, w.ID)
	}
	if len(f.logs) != 0 {
		t.Error("log rows written before flush")
	}
}

func TestFlush_FailureKeepsBuffers(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 5, 5)
	ctx := context.Background()

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	w := s.Words()[0]
	if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	f.failFlushes = 1
	if err := s.Flush(ctx); err == nil {
		t.Fatal("flush succeeded against a failing store")
	}
	if !s.Dirty() {
		t.Error("session lost its buffers after a failed flush")
	}
	if len(f.logs) != 0 {
		t.Errorf("partial write leaked: %d log entries", len(f.logs))
	}

	// next opportunity: the same buffers land
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(f.logs) != 1 {
		t.Errorf("logs after recovery = %d, want 1", len(f.logs))
	}
	if s.Dirty() {
		t.Error("session still dirty after recovered flush")
	}
}

func TestSession_Resumability(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 20, 5)
	ctx := context.Background()
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

	coord := NewCoordinator(f, testLogger())
	s, err := coord.Start(ctx, "amy", 5, today)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// answer two questions, then flush and walk away mid-batch
	for _, w := range s.Words()[:2] {
		if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	want := map[int64]bool{}
	for _, id := range f.users["amy"].PendingSession {
		want[id] = true
	}
	for _, w := range s.Words()[:2] {
		if want[w.ID] {
			t.Errorf("answered word %d still pending", w.ID)
		}
	}

	// a brand new coordinator reconstructs exactly the remaining batch
	s2, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 5, today)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if s2.Kind() != KindNormal {
		t.Errorf("kind = %v, want normal", s2.Kind())
	}
	got := map[int64]bool{}
	for _, w := range s2.Words() {
		got[w.ID] = true
	}
	if len(got) != len(want) {
		t.Fatalf("resumed %d words, want %d", len(got), len(want))
	}
	for id := range want {
		if !got[id] {
			t.Errorf("pending word %d missing from resumed batch", id)
		}
	}
}

func TestFinish_WrongReviewFollowUp(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 5, 5)
	ctx := context.Background()

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	missed := s.Words()[0]
	if err := s.Answer(ctx, missed.ID, false, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	for _, w := range s.Words()[1:] {
		if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	sum, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Answered != 3 || sum.Correct != 2 {
		t.Errorf("summary = %d/%d, want 3 answered 2 correct", sum.Answered, sum.Correct)
	}
	if sum.Next == nil {
		t.Fatal("no wrong-review follow-up")
	}
	if sum.Next.Kind() != KindWrongReview {
		t.Errorf("follow-up kind = %v, want wrong review", sum.Next.Kind())
	}
	if len(sum.Next.Words()) != 1 || sum.Next.Words()[0].ID != missed.ID {
		t.Errorf("follow-up words = %+v, want just %d", sum.Next.Words(), missed.ID)
	}
}

func TestFinish_RunsEvaluationAtWindow(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 10, 5)
	f.users["amy"].QuestionCount = 47
	ctx := context.Background()
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

	// a full window of correct answers at the current level already exists
	for i := 0; i < 50; i++ {
		f.logs = append(f.logs, dal.StudyLogEntry{Username: "amy", Level: 5, Correct: true, Date: today})
	}

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, today)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, w := range s.Words() {
		if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	sum, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Evaluation == nil {
		t.Fatal("no evaluation ran at 50 accumulated answers")
	}
	if got := f.users["amy"].CurrentLevel(); got != 7 {
		t.Errorf("level after perfect window = %d, want 7", got)
	}
	if got := f.users["amy"].QuestionCount; got != 0 {
		t.Errorf("question count remainder = %d, want 0", got)
	}
}

func TestFinish_AccumulatesBelowWindow(t *testing.T) {
	f := newFakeRepo()
	addUser(f, "amy", 5)
	addWords(f, 1, 10, 5)
	f.users["amy"].QuestionCount = 10
	ctx := context.Background()

	s, err := NewCoordinator(f, testLogger()).Start(ctx, "amy", 3, time.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, w := range s.Words() {
		if err := s.Answer(ctx, w.ID, true, AttemptContext{FirstAttempt: true, Kind: s.Kind()}); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	sum, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Evaluation != nil {
		t.Error("evaluation ran below the window")
	}
	if f.users["amy"].QuestionCount != 13 {
		t.Errorf("question count = %d, want 13", f.users["amy"].QuestionCount)
	}
	if got := f.users["amy"].CurrentLevel(); got != 5 {
		t.Errorf("level = %d, want unchanged 5", got)
	}
}
