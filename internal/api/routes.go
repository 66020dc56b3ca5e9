package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/honest0623-ship-it/IDK-Voca/internal/config"
	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	"github.com/honest0623-ship-it/IDK-Voca/internal/session"
)

type (
	Dependencies struct {
		Repo        dal.Repository
		Coordinator *session.Coordinator
		Registry    *session.Registry
		Logger      *slog.Logger
	}
)

func NewRouter(ctx context.Context, conf *config.API, deps Dependencies) http.Handler {
	e := echo.New()

	e.Use(middleware.RequestID())
	e.Use(loggingMiddleware(ctx, deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(conf.HTTP.RateLimit))))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.HTTP.CORS.AllowOrigins,
		AllowCredentials: true,
	}))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: conf.HTTP.ProcessTimeout,
	}))
	e.Use(middleware.Secure())

	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler(deps.Logger)

	jwtProcessor := NewJWTProcessor(conf.HTTP.JWT)
	authMiddleware := AuthMiddleware(jwtProcessor, deps.Logger)

	auth := NewAuthHandler(deps.Repo, jwtProcessor, deps.Logger)
	e.POST("/auth/login", auth.Login)

	securedGroup := e.Group("", authMiddleware)
	securedGroup.GET("/auth/info", auth.Info)

	profile := NewProfileHandler(deps.Repo, deps.Logger)
	securedGroup.GET("/profile", profile.Profile)

	placement := NewPlacementHandler(deps.Repo, deps.Logger)
	securedGroup.POST("/placement/start", placement.Start)
	securedGroup.POST("/placement/answer", placement.Answer)

	sessions := NewSessionsHandler(deps.Coordinator, deps.Registry, conf.Learning.BatchSize, deps.Logger)
	securedGroup.POST("/sessions", sessions.Start)
	securedGroup.POST("/sessions/answer", sessions.Answer)
	securedGroup.POST("/sessions/giveup", sessions.GiveUp)
	securedGroup.POST("/sessions/finish", sessions.Finish)

	words := NewWordsHandler(deps.Repo, deps.Logger)
	securedGroup.GET("/words", words.FindWords)
	securedGroup.POST("/words", words.UpsertWord)

	return e
}

func loggingMiddleware(ctx context.Context, log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true, // forwards error to the global error handler, so it can decide appropriate status code
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.LogAttrs(ctx, slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
				)
			} else {
				log.LogAttrs(ctx, slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
				)
			}
			return nil
		},
	})
}
