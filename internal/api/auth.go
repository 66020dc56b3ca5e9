package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	appctx "github.com/honest0623-ship-it/IDK-Voca/internal/context"
	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

type (
	AuthHandler struct {
		repo         dal.UserRepository
		jwtProcessor *JWTProcessor

		log *slog.Logger
	}

	loginRequest struct {
		Username string `json:"username" validate:"required,min=2,max=64"`
		Name     string `json:"name" validate:"omitempty,max=128"`
	}

	loginResponse struct {
		Token             string `json:"token"`
		Username          string `json:"username"`
		Level             *int   `json:"level"`
		RequiresPlacement bool   `json:"requires_placement"`
	}
)

func NewAuthHandler(repo dal.UserRepository, jwtProcessor *JWTProcessor, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		repo:         repo,
		jwtProcessor: jwtProcessor,

		log: log,
	}
}

// Login issues an access token for the learner, registering the account on
// first sight. A fresh account carries no level until the placement test
// assigns one.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}
	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	state, err := h.repo.GetUserLevelState(c.Request().Context(), req.Username)
	if errors.Is(err, dal.ErrNotFound) {
		name := req.Name
		if name == "" {
			name = req.Username
		}
		if err = h.repo.CreateUser(c.Request().Context(), req.Username, name); err != nil {
			h.log.ErrorContext(c.Request().Context(), "failed to create user", "error", err)
			return c.JSON(http.StatusInternalServerError, InternalServerError)
		}
		if state, err = h.repo.GetUserLevelState(c.Request().Context(), req.Username); err != nil {
			h.log.ErrorContext(c.Request().Context(), "failed to get created user", "error", err)
			return c.JSON(http.StatusInternalServerError, InternalServerError)
		}
	} else if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to get user state", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	token, err := h.jwtProcessor.ToAccessToken(req.Username)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to create access token", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:             token,
		Username:          state.Username,
		Level:             state.Level,
		RequiresPlacement: state.RequiresPlacement(),
	})
}

func (h *AuthHandler) Info(c echo.Context) error {
	username := appctx.MustUsernameFromContext(c.Request().Context())

	state, err := h.repo.GetUserLevelState(c.Request().Context(), username)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to get user state", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"username":           state.Username,
		"name":               state.Name,
		"level":              state.Level,
		"requires_placement": state.RequiresPlacement(),
	})
}
