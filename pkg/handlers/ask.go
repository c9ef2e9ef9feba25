package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/config"
	"github.com/queryglass/queryglass/pkg/gateway"
	"github.com/queryglass/queryglass/pkg/logging"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/repair"
	"github.com/queryglass/queryglass/pkg/synthesis"
)

// ChatListRefreshHeader signals the chat UI that a new chat record was
// created server-side and its list view should refresh.
const ChatListRefreshHeader = "X-Chat-List-Refresh"

// AskRequest is the inbound question payload.
type AskRequest struct {
	Question string `json:"question"`
	// ChatID continues an existing chat when set; a new chat id is
	// assigned otherwise.
	ChatID string `json:"chat_id,omitempty"`
	// ConnString optionally overrides the configured target database.
	ConnString string `json:"connection_string,omitempty"`
}

// Validator runs candidate SQL through the execution/repair loop.
type Validator interface {
	ValidateAndCorrect(ctx context.Context, sqlText, connString string, caller models.CallerContext, maxRetries int) (repair.Result, error)
}

var _ Validator = (*repair.Loop)(nil)

// AskHandler answers natural-language questions: synthesize, validate
// and repair, then stream the final SQL and its result.
type AskHandler struct {
	cfg          *config.Config
	orchestrator synthesis.Orchestrator
	validator    Validator
	logger       *zap.Logger
}

func NewAskHandler(cfg *config.Config, orchestrator synthesis.Orchestrator, validator Validator, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		cfg:          cfg,
		orchestrator: orchestrator,
		validator:    validator,
		logger:       logger.Named("ask"),
	}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
}

// Ask handles POST /api/ask requests.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	newChat := false
	if req.ChatID == "" {
		req.ChatID = uuid.NewString()
		newChat = true
	} else if _, err := uuid.Parse(req.ChatID); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_session", "chat_id must be a valid UUID")
		return
	}

	connString := req.ConnString
	if connString == "" {
		connString = h.cfg.Target.ConnString
	}
	caller := h.cfg.CallerFallback()

	// The streamed response has a hard server-side deadline regardless
	// of synthesis progress.
	timeout := time.Duration(h.cfg.Synthesis.ResponseTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	h.logger.Info("Question received",
		zap.String("chat_id", req.ChatID),
		zap.Bool("new_chat", newChat),
		zap.Int64("tenant_id", caller.TenantID))

	if newChat {
		w.Header().Set(ChatListRefreshHeader, "true")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	candidate, err := h.orchestrator.Synthesize(ctx, req.Question, caller)
	if err != nil {
		h.logger.Error("Synthesis failed", zap.Error(err))
		h.stream(w, "Unable to answer this question: "+logging.SanitizeError(err))
		return
	}
	if !candidate.IsValid {
		h.stream(w, candidate.Feedback)
		return
	}

	result, err := h.validator.ValidateAndCorrect(ctx, candidate.SQL, connString, caller, h.cfg.Synthesis.MaxRepairRetries)
	if err != nil {
		if errors.Is(err, gateway.ErrConnection) {
			h.logger.Error("Target database unreachable", zap.Error(err))
			h.stream(w, "The target database could not be reached.")
			return
		}
		h.logger.Error("Validation failed", zap.Error(err))
		h.stream(w, "Unable to answer this question: "+logging.SanitizeError(err))
		return
	}

	var body string
	switch {
	case result.IsValid:
		body = synthesis.InjectSQLBlock(result.SQL) + "\n\n" + result.Output
		if result.Corrections > 0 {
			body += fmt.Sprintf("\n\nNote: the query was corrected %d time(s) before it executed successfully.", result.Corrections)
		}
	default:
		body = synthesis.InjectSQLBlock(result.SQL) + "\n\nThe query could not be executed: " + result.Output
	}
	h.stream(w, body)
}

// stream writes the body and flushes so the client sees output before
// the connection closes.
func (h *AskHandler) stream(w http.ResponseWriter, body string) {
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
