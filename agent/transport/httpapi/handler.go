// Package httpapi exposes the router over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/Chative-Travel-Router/agent/agents/router"
	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/ledger"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
)

const defaultHistoryLimit = 50

// Stepper runs one conversation turn.
type Stepper interface {
	Step(ctx context.Context, key statex.Key, text string) (router.TurnOutput, error)
}

// History lists the ledgered messages of a session.
type History interface {
	List(ctx context.Context, key statex.Key, limit int) ([]ledger.Entry, error)
}

type Handler struct {
	stepper Stepper
	history History
	logger  zerolog.Logger
}

func NewHandler(stepper Stepper, history History) *Handler {
	return &Handler{
		stepper: stepper,
		history: history,
		logger:  logx.Component("httpapi"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1/tenants/:tenant_id/users/:user_id/sessions/:session_id")
	g.POST("/messages", h.PostMessage)
	g.GET("/messages", h.ListMessages)

	e.GET("/health", h.Health)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type postMessageResponse struct {
	router.TurnOutput
	Paused bool `json:"paused"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// PostMessage runs one turn. An empty text resumes a paused turn.
// POST /v1/tenants/:tenant_id/users/:user_id/sessions/:session_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	key := keyFrom(c)
	out, err := h.stepper.Step(c.Request().Context(), key, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, contractx.ErrValidation):
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, router.ErrNothingToResume):
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		}
		h.logger.Error().Err(err).Str("session_id", key.SessionID).Msg("turn failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: contractx.FailureReply})
	}

	return c.JSON(http.StatusOK, postMessageResponse{TurnOutput: out, Paused: !out.Halted})
}

// ListMessages returns the newest ledgered messages of a session.
// GET /v1/tenants/:tenant_id/users/:user_id/sessions/:session_id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	limit := defaultHistoryLimit
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	entries, err := h.history.List(c.Request().Context(), keyFrom(c), limit)
	if err != nil {
		if errors.Is(err, statex.ErrInvalidKey) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		h.logger.Error().Err(err).Msg("list messages failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list messages"})
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"messages": entries,
		"has_more": len(entries) == limit,
	})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func keyFrom(c echo.Context) statex.Key {
	return statex.NewKey(c.Param("tenant_id"), c.Param("user_id"), c.Param("session_id"))
}
