package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Message string `json:"error"`
}

var (
	InternalServerError = ErrorResponse{"Internal server error"} //nolint:gochecknoglobals // constant response body
	BadRequestError     = ErrorResponse{"Bad request"}           //nolint:gochecknoglobals // constant response body
	UnauthorizedError   = ErrorResponse{"Unauthorized"}          //nolint:gochecknoglobals // constant response body
)

func HTTPErrorHandler(log *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		log.ErrorContext(c.Request().Context(), "failed to process request", "error", err)

		code := http.StatusInternalServerError
		message := InternalServerError.Message

		var echoError *echo.HTTPError
		if errors.As(err, &echoError) {
			code = echoError.Code
			if msg, ok := echoError.Message.(string); ok && msg != "" && code != http.StatusInternalServerError {
				message = msg
			}
		}

		if err := c.JSON(code, ErrorResponse{Message: message}); err != nil { //nolint:govet // ignore shadow declaration
			log.ErrorContext(c.Request().Context(), "failed to write error response", "error", err)
		}
	}
}
