package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	appctx "github.com/honest0623-ship-it/IDK-Voca/internal/context"
	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/placement"
)

type (
	// PlacementHandler keeps the in-flight test per learner in memory;
	// starting again while a test is underway re-serves its pending question.
	PlacementHandler struct {
		repo  dal.Repository
		tests map[string]*placement.Test
		mx    sync.Mutex

		log *slog.Logger
	}

	placementAnswerRequest struct {
		Outcome string `json:"outcome" validate:"required,oneof=correct wrong skip"`
	}

	placementQuestion struct {
		Round  int    `json:"round"`
		Total  int    `json:"total"`
		WordID int64  `json:"word_id"`
		Word   string `json:"word"`
	}
)

func NewPlacementHandler(repo dal.Repository, log *slog.Logger) *PlacementHandler {
	return &PlacementHandler{
		repo:  repo,
		tests: make(map[string]*placement.Test),

		log: log,
	}
}

// Start begins a placement test. A learner with a test already underway gets
// its pending question back instead of losing progress to a fresh one.
func (h *PlacementHandler) Start(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	h.mx.Lock()
	test, ok := h.tests[username]
	h.mx.Unlock()
	if ok {
		if word := test.Current(); word != nil {
			return c.JSON(http.StatusOK, echo.Map{
				"question": questionView(test, word),
			})
		}
	}

	test = placement.New(&catalogSource{repo: h.repo})
	word, err := test.Start(c.Request().Context())
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to start placement test", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	h.mx.Lock()
	h.tests[username] = test
	h.mx.Unlock()

	return c.JSON(http.StatusOK, echo.Map{
		"question": questionView(test, word),
	})
}

// Answer grades the current round. When the test completes, the resulting
// level is written through and the learner can start regular sessions.
func (h *PlacementHandler) Answer(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	var req placementAnswerRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}
	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	h.mx.Lock()
	test, ok := h.tests[username]
	h.mx.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "no placement test in progress"})
	}

	word, done, err := test.Answer(c.Request().Context(), toOutcome(req.Outcome))
	if err != nil {
		if errors.Is(err, placement.ErrFinished) {
			return c.JSON(http.StatusConflict, ErrorResponse{Message: "placement test already finished"})
		}
		h.log.ErrorContext(c.Request().Context(), "failed to process placement answer", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	if !done {
		return c.JSON(http.StatusOK, echo.Map{
			"question": questionView(test, word),
		})
	}

	if err := h.repo.SetUserLevel(c.Request().Context(), username, test.FinalLevel()); err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to set user level", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	h.mx.Lock()
	delete(h.tests, username)
	h.mx.Unlock()

	h.log.InfoContext(c.Request().Context(), "placement test finished",
		"username", username, "level", test.FinalLevel(), "rounds", test.RoundsAnswered())

	return c.JSON(http.StatusOK, echo.Map{
		"finished": true,
		"level":    test.FinalLevel(),
		"rounds":   test.RoundsAnswered(),
	})
}

func questionView(test *placement.Test, word *dal.Word) placementQuestion {
	return placementQuestion{
		Round:  test.RoundsAnswered() + 1,
		Total:  placement.TotalRounds,
		WordID: word.ID,
		Word:   word.TargetWord,
	}
}

func toOutcome(s string) placement.Outcome {
	switch s {
	case "correct":
		return placement.OutcomeCorrect
	case "skip":
		return placement.OutcomeSkip
	default:
		return placement.OutcomeWrong
	}
}

// catalogSource adapts the repository to the placement question source.
type catalogSource struct {
	repo dal.CatalogRepository
}

func (s *catalogSource) RandomWord(ctx context.Context, level int, excludeIDs []int64) (*dal.Word, error) {
	return s.repo.FindRandomWord(ctx, dal.RandomWordFilter{Level: level, ExcludeIDs: excludeIDs})
}
