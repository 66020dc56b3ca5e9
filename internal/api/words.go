package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

type (
	WordView struct {
		ID            int64  `json:"id"`
		Word          string `json:"word" validate:"required,min=1"`
		Meaning       string `json:"meaning" validate:"required,min=1"`
		Level         int    `json:"level" validate:"required,min=1,max=30"`
		ExampleEN     string `json:"example_en"`
		ExampleNative string `json:"example_native"`
		RootWord      string `json:"root_word"`
	}

	WordsQueryParams struct {
		Search string `query:"search"`
		Level  int    `query:"level" validate:"min=0,max=30"`
		Offset uint64 `query:"offset" validate:"min=0"`
		Limit  uint64 `query:"limit" validate:"required,min=1,max=100"`
	}

	WordsHandler struct {
		repo dal.CatalogRepository
		log  *slog.Logger
	}
)

func NewWordsHandler(repo dal.CatalogRepository, log *slog.Logger) *WordsHandler {
	return &WordsHandler{
		repo: repo,
		log:  log,
	}
}

func (h *WordsHandler) FindWords(c echo.Context) error {
	var qp WordsQueryParams
	if err := c.Bind(&qp); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}

	if err := c.Validate(&qp); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	filter := dal.WordsFilter{
		Search: qp.Search,
		Level:  qp.Level,
		Offset: qp.Offset,
		Limit:  qp.Limit,
	}
	words, total, err := h.repo.FindWords(c.Request().Context(), filter)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to find words", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	items := make([]WordView, len(words))
	for i, w := range words {
		items[i] = WordView{
			ID:            w.ID,
			Word:          w.TargetWord,
			Meaning:       w.Meaning,
			Level:         w.Level,
			ExampleEN:     w.ExampleEN,
			ExampleNative: w.ExampleNative,
			RootWord:      w.RootWord,
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": total,
	})
}

func (h *WordsHandler) UpsertWord(c echo.Context) error {
	var wv WordView
	if err := c.Bind(&wv); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}

	if err := c.Validate(&wv); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	word := dal.Word{
		TargetWord:    wv.Word,
		Meaning:       wv.Meaning,
		Level:         wv.Level,
		ExampleEN:     wv.ExampleEN,
		ExampleNative: wv.ExampleNative,
		RootWord:      wv.RootWord,
	}
	if err := h.repo.UpsertWord(c.Request().Context(), word); err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to upsert word", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "message": "word saved"})
}
