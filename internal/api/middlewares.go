package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	appctx "github.com/honest0623-ship-it/IDK-Voca/internal/context"
)

const usernameContextKey = "username"

// AuthMiddleware extracts the bearer token, validates it and injects the
// username into both the echo context and the request context.
func AuthMiddleware(jwtProcessor *JWTProcessor, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				log.DebugContext(c.Request().Context(), "missing bearer token")
				return c.JSON(http.StatusUnauthorized, UnauthorizedError)
			}

			username, err := jwtProcessor.ParseAccessToken(token)
			if err != nil {
				log.DebugContext(c.Request().Context(), "failed to parse access token", "error", err)
				return c.JSON(http.StatusUnauthorized, UnauthorizedError)
			}

			c.Set(usernameContextKey, username)
			ctx := appctx.WithUsername(c.Request().Context(), username)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
