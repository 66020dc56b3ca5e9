package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	appctx "github.com/honest0623-ship-it/IDK-Voca/internal/context"
	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/level"
	"github.com/honest0623-ship-it/IDK-Voca/internal/srs"
)

// words at two-month cadence or longer count as mastered
const masteredInterval = dal.Interval(60)

type (
	ProfileHandler struct {
		repo dal.Repository
		log  *slog.Logger
	}

	profileResponse struct {
		Username          string `json:"username"`
		Name              string `json:"name"`
		Level             *int   `json:"level"`
		RequiresPlacement bool   `json:"requires_placement"`
		FailStreak        int    `json:"fail_streak"`
		LevelShield       int    `json:"level_shield"`

		TotalTracked        int `json:"total_tracked"`
		Mastered            int `json:"mastered"`
		Retired             int `json:"retired"`
		DueToday            int `json:"due_today"`
		UntilNextEvaluation int `json:"until_next_evaluation"`
	}
)

func NewProfileHandler(repo dal.Repository, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		repo: repo,
		log:  log,
	}
}

func (h *ProfileHandler) Profile(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	var (
		state    *dal.UserLevelState
		progress []dal.ProgressRecord
	)
	group, ctx := errgroup.WithContext(c.Request().Context())
	group.Go(func() error {
		var err error
		state, err = h.repo.GetUserLevelState(ctx, username)
		return err
	})
	group.Go(func() error {
		var err error
		progress, err = h.repo.LoadProgress(ctx, username)
		return err
	})
	if err := group.Wait(); err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to load profile", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	res := profileResponse{
		Username:          state.Username,
		Name:              state.Name,
		Level:             state.Level,
		RequiresPlacement: state.RequiresPlacement(),
		FailStreak:        state.FailStreak,
		LevelShield:       state.LevelShield,

		TotalTracked:        len(progress),
		UntilNextEvaluation: level.WindowSize - state.QuestionCount,
	}

	today := srs.Day(time.Now())
	for _, rec := range progress {
		switch {
		case rec.Retired():
			res.Retired++
			res.Mastered++
		case rec.Interval >= masteredInterval:
			res.Mastered++
		}
		if rec.DueOn(today) {
			res.DueToday++
		}
	}

	return c.JSON(http.StatusOK, res)
}
