// Package server exposes the service over HTTP: websocket ingest and coach
// endpoints, the call plan configuration API, debug endpoints, and Prometheus
// metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denisplykin/sales-coach-service/internal/callplan"
	"github.com/denisplykin/sales-coach-service/internal/metrics"
	"github.com/denisplykin/sales-coach-service/internal/session"
)

// debugLogLimit is how many decision entries the debug endpoint returns.
const debugLogLimit = 100

// HTTPServer provides the service's HTTP and websocket endpoints.
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	sessionMgr *session.Manager
	plans      *callplan.Store
	metrics    *metrics.Metrics

	startTime time.Time
}

// HTTPServerConfig contains HTTP server configuration.
type HTTPServerConfig struct {
	Port    int
	Address string
}

// NewHTTPServer creates the HTTP server with all routes configured.
func NewHTTPServer(cfg HTTPServerConfig, logger *slog.Logger, sessionMgr *session.Manager, plans *callplan.Store, m *metrics.Metrics) *HTTPServer {
	h := &HTTPServer{
		logger:     logger,
		sessionMgr: sessionMgr,
		plans:      plans,
		metrics:    m,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:     mux,
		ReadTimeout: 0, // websocket connections are long-lived
		IdleTimeout: 120 * time.Second,
	}

	return h
}

// setupRoutes configures all routes.
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Websocket endpoints
	mux.HandleFunc("/ingest", h.handleIngest)
	mux.HandleFunc("/coach", h.handleCoach)

	// Health check and statistics endpoints
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Call plan configuration
	mux.HandleFunc("/api/config/call-structure", h.withMetrics("/api/config/call-structure", h.handleCallStructure))
	mux.HandleFunc("/api/config/client-card", h.withMetrics("/api/config/client-card", h.handleClientCard))

	// Session state and manual overrides
	mux.HandleFunc("/api/sessions", h.withMetrics("/api/sessions", h.handleSessions))
	mux.HandleFunc("/api/sessions/", h.withMetrics("/api/sessions/{id}", h.handleSessionAction))

	// Debug endpoints
	mux.HandleFunc("/api/debug-log", h.withMetrics("/api/debug-log", h.handleDebugLog))
	mux.HandleFunc("/api/process-transcript", h.withMetrics("/api/process-transcript", h.handleProcessTranscript))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection.
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")
	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth implements the /health endpoint.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "sales-coach-service",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"session_manager": map[string]any{
				"status":          "running",
				"active_sessions": h.sessionMgr.ActiveSessionCount(),
			},
		},
	})
}

// handleStats implements the /stats endpoint.
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"sessions": map[string]any{
			"active": h.sessionMgr.ActiveSessionCount(),
		},
		"subscribers": h.sessionMgr.Hub().SubscriberCount(),
	})
}

// handleCallStructure implements GET and POST /api/config/call-structure.
func (h *HTTPServer) handleCallStructure(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"structure": h.plans.Structure(),
		})

	case http.MethodPost:
		var body struct {
			Structure callplan.Structure `json:"structure"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		if err := h.plans.SetStructure(body.Structure); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		h.logger.Info("Call structure updated",
			slog.Int("stages", len(body.Structure)),
			slog.Int("items", body.Structure.ItemCount()),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClientCard implements GET and POST /api/config/client-card.
func (h *HTTPServer) handleClientCard(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"fields": h.plans.ClientCardFields(),
		})

	case http.MethodPost:
		var body struct {
			Fields []callplan.ClientCardField `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		if err := h.plans.SetClientCardFields(body.Fields); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		h.logger.Info("Client card schema updated",
			slog.Int("fields", len(body.Fields)),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessions implements GET /api/sessions.
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active_sessions": h.sessionMgr.ActiveSessionCount(),
		"timestamp":       time.Now().UTC(),
	})
}

// handleSessionAction implements the per-session action endpoints:
// GET  /api/sessions/{id}            current snapshot
// POST /api/sessions/{id}/toggle-item
// POST /api/sessions/{id}/set-field
// POST /api/sessions/{id}/reset
func (h *HTTPServer) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	sessionID := parts[0]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s, exists := h.sessionMgr.GetSession(sessionID)
		if !exists {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, h.sessionMgr.BuildSnapshot(s))

	case action == "toggle-item" && r.Method == http.MethodPost:
		var body struct {
			ItemID string `json:"item_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == "" {
			writeError(w, http.StatusBadRequest, "item_id required")
			return
		}

		completed, err := h.sessionMgr.ToggleItem(sessionID, body.ItemID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"item_id":   body.ItemID,
			"completed": completed,
		})

	case action == "reset" && r.Method == http.MethodPost:
		if err := h.sessionMgr.ResetSession(sessionID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case action == "set-field" && r.Method == http.MethodPost:
		var body struct {
			FieldID string `json:"field_id"`
			Value   string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FieldID == "" {
			writeError(w, http.StatusBadRequest, "field_id required")
			return
		}

		if err := h.sessionMgr.SetField(sessionID, body.FieldID, body.Value); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDebugLog implements GET /api/debug-log?session={id}.
func (h *HTTPServer) handleDebugLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session query parameter required")
		return
	}

	s, exists := h.sessionMgr.GetSession(sessionID)
	if !exists {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"entries":    s.RecentDecisions(debugLogLimit),
	})
}

// handleProcessTranscript implements POST /api/process-transcript, feeding
// text straight into the analysis cycle without any audio. Debug only.
func (h *HTTPServer) handleProcessTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	if body.SessionID == "" {
		body.SessionID = "debug"
	}

	s := h.sessionMgr.CreateSession(body.SessionID)
	h.sessionMgr.AnalyzeText(r.Context(), s, body.Text)

	writeJSON(w, http.StatusOK, h.sessionMgr.BuildSnapshot(s))
}

// handleRoot implements the / endpoint with API documentation.
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Sales Coach Service",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"WS /ingest":                            "Audio ingest websocket (binary chunks + set_language)",
			"WS /coach":                             "Coaching UI state snapshots",
			"GET /health":                           "Service health check",
			"GET /stats":                            "Service statistics",
			"GET /api/config/call-structure":        "Get the call structure",
			"POST /api/config/call-structure":       "Replace the call structure",
			"GET /api/config/client-card":           "Get the client card schema",
			"POST /api/config/client-card":          "Replace the client card schema",
			"GET /api/sessions":                     "Active session count",
			"GET /api/sessions/{id}":                "Session state snapshot",
			"POST /api/sessions/{id}/toggle-item":   "Manually toggle a checklist item",
			"POST /api/sessions/{id}/set-field":     "Manually set a client card field",
			"POST /api/sessions/{id}/reset":         "Reset a session for a fresh call",
			"GET /api/debug-log?session={id}":       "Recent decision log entries",
			"POST /api/process-transcript":          "Analyze raw text without audio",
			"GET /metrics":                          "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
