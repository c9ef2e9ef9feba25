package handlers

import (
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/config"
)

// PingResponse reports service identity and the active synthesis setup.
type PingResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	GoVersion     string `json:"go_version"`
	SynthesisMode string `json:"synthesis_mode"`
}

// HealthHandler serves the liveness and identity endpoints.
type HealthHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
}

// Health answers liveness probes with a bare "ok".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping reports version and configuration identity for deploy checks.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	response := PingResponse{
		Status:        "ok",
		Service:       "queryglass",
		Version:       h.cfg.Version,
		Environment:   h.cfg.Env,
		GoVersion:     runtime.Version(),
		SynthesisMode: h.cfg.Synthesis.Mode,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
