package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	appctx "github.com/honest0623-ship-it/IDK-Voca/internal/context"
	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/session"
)

type (
	SessionsHandler struct {
		coord     *session.Coordinator
		registry  *session.Registry
		batchSize int

		// first-attempt tracking per learner; retries after a wrong answer
		// are graded but never recorded twice
		attempts map[string]map[int64]bool
		mx       sync.Mutex

		log *slog.Logger
	}

	sessionAnswerRequest struct {
		WordID int64  `json:"word_id" validate:"required"`
		Answer string `json:"answer" validate:"required,min=1"`
	}

	sessionGiveUpRequest struct {
		WordID int64 `json:"word_id" validate:"required"`
	}

	sessionWord struct {
		ID            int64  `json:"id"`
		Meaning       string `json:"meaning"`
		Level         int    `json:"level"`
		ExampleNative string `json:"example_native,omitempty"`
	}

	revealedWord struct {
		ID        int64  `json:"id"`
		Word      string `json:"word"`
		Meaning   string `json:"meaning"`
		ExampleEN string `json:"example_en,omitempty"`
		RootWord  string `json:"root_word,omitempty"`
	}

	sessionView struct {
		Kind  string        `json:"kind"`
		Level int           `json:"level"`
		Words []sessionWord `json:"words"`
	}
)

func NewSessionsHandler(coord *session.Coordinator, registry *session.Registry, batchSize int, log *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		coord:     coord,
		registry:  registry,
		batchSize: batchSize,

		attempts: make(map[string]map[int64]bool),

		log: log,
	}
}

// Start opens the next batch for the learner. A still-buffered previous
// session is flushed first so nothing graded gets lost.
func (h *SessionsHandler) Start(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	if old, ok := h.registry.Get(username); ok && old.Dirty() {
		if err := old.Flush(c.Request().Context()); err != nil {
			h.log.ErrorContext(c.Request().Context(), "failed to flush previous session", "error", err)
			return c.JSON(http.StatusInternalServerError, InternalServerError)
		}
	}

	s, err := h.coord.Start(c.Request().Context(), username, h.batchSize, time.Now())
	if err != nil {
		if errors.Is(err, session.ErrPlacementRequired) {
			return c.JSON(http.StatusConflict, ErrorResponse{Message: "placement test required"})
		}
		h.log.ErrorContext(c.Request().Context(), "failed to start session", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	h.registry.Put(s)
	h.resetAttempts(username)

	return c.JSON(http.StatusOK, sessionViewOf(s))
}

// Answer grades a typed answer against the target word.
func (h *SessionsHandler) Answer(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	var req sessionAnswerRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}
	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	s, ok := h.registry.Get(username)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "no session in progress"})
	}

	w, ok := wordInSession(s, req.WordID)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "word is not part of this session"})
	}

	correct := gradeAnswer(req.Answer, w)
	attempt := session.AttemptContext{FirstAttempt: h.markAttempt(username, req.WordID), Kind: s.Kind()}
	if err := s.Answer(c.Request().Context(), req.WordID, correct, attempt); err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to record answer", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	res := echo.Map{"correct": correct}
	if correct {
		res["word"] = revealedWordOf(w)
	}
	return c.JSON(http.StatusOK, res)
}

// GiveUp reveals the word and schedules it for forced review.
func (h *SessionsHandler) GiveUp(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	var req sessionGiveUpRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}
	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	s, ok := h.registry.Get(username)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "no session in progress"})
	}

	w, ok := wordInSession(s, req.WordID)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "word is not part of this session"})
	}

	if !h.markAttempt(username, req.WordID) {
		// already graded; just reveal again
		return c.JSON(http.StatusOK, echo.Map{"word": revealedWordOf(w)})
	}

	if err := s.GiveUp(c.Request().Context(), req.WordID); err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to record give-up", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{"word": revealedWordOf(w)})
}

// Finish flushes the batch and reports the summary. When the learner missed
// words, the response carries a wrong-review follow-up batch instead of
// closing the session.
func (h *SessionsHandler) Finish(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	s, ok := h.registry.Get(username)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "no session in progress"})
	}

	sum, err := s.Finish(c.Request().Context())
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to finish session", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	res := echo.Map{
		"answered":          sum.Answered,
		"correct":           sum.Correct,
		"accumulated_count": sum.AccumulatedCount,
	}
	if sum.Evaluation != nil {
		res["evaluation"] = echo.Map{
			"level":   sum.Evaluation.Level,
			"message": sum.Evaluation.Message,
		}
	}

	if sum.Next != nil {
		h.registry.Put(sum.Next)
		h.resetAttempts(username)
		res["next"] = sessionViewOf(sum.Next)
	} else {
		h.registry.Remove(username)
		h.resetAttempts(username)
	}

	return c.JSON(http.StatusOK, res)
}

// markAttempt reports whether this is the first attempt for the word and
// records it.
func (h *SessionsHandler) markAttempt(username string, wordID int64) bool {
	h.mx.Lock()
	defer h.mx.Unlock()

	seen := h.attempts[username]
	if seen == nil {
		seen = make(map[int64]bool)
		h.attempts[username] = seen
	}
	if seen[wordID] {
		return false
	}
	seen[wordID] = true
	return true
}

func (h *SessionsHandler) resetAttempts(username string) {
	h.mx.Lock()
	defer h.mx.Unlock()
	delete(h.attempts, username)
}

func sessionViewOf(s *session.Session) sessionView {
	words := make([]sessionWord, 0, len(s.Words()))
	for _, w := range s.Words() {
		words = append(words, sessionWord{
			ID:            w.ID,
			Meaning:       w.Meaning,
			Level:         w.Level,
			ExampleNative: w.ExampleNative,
		})
	}
	return sessionView{
		Kind:  s.Kind().String(),
		Level: s.Level(),
		Words: words,
	}
}

func revealedWordOf(w dal.Word) revealedWord {
	return revealedWord{
		ID:        w.ID,
		Word:      w.TargetWord,
		Meaning:   w.Meaning,
		ExampleEN: w.ExampleEN,
		RootWord:  w.RootWord,
	}
}

func wordInSession(s *session.Session, wordID int64) (dal.Word, bool) {
	for _, w := range s.Words() {
		if w.ID == wordID {
			return w, true
		}
	}
	return dal.Word{}, false
}

// gradeAnswer accepts the target word or, when present, its root form.
func gradeAnswer(answer string, w dal.Word) bool {
	if answersMatch(answer, w.TargetWord) {
		return true
	}
	return w.RootWord != "" && answersMatch(answer, w.RootWord)
}

func answersMatch(answer, target string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(target))
}
