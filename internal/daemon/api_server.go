package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cardsync/internal/api"
	"cardsync/internal/config"
	"cardsync/internal/logging"
	"cardsync/internal/scanqueue"
	"cardsync/internal/services"
)

const maxTagRequestBytes = 4096

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	token := cfg.API.Token

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("POST /api/v1/tag", authMiddleware(token, srv.handleTag))
	mux.HandleFunc("GET /api/assignments", authMiddleware(token, srv.handleAssignments))
	mux.HandleFunc("GET /api/assignments/{tag}", authMiddleware(token, srv.handleAssignment))
	mux.HandleFunc("DELETE /api/assignments/{tag}", authMiddleware(token, srv.handleRemoveAssignment))
	mux.HandleFunc("POST /api/notifications/test", authMiddleware(token, srv.handleTestNotification))

	var handler http.Handler = mux
	handler = rateLimitMiddleware(cfg.API.RequestsPerSecond, cfg.API.Burst, handler)
	handler = metricsMiddleware(handler)
	handler = loggingMiddleware(srv.logger, handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(srv.logger, handler)
	handler = otelhttp.NewHandler(handler, "cardsync-api",
		otelhttp.WithFilter(func(r *http.Request) bool { return !isNoisyPath(r.URL.Path) }),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + normalizeRoute(r.URL.Path)
		}),
	)
	srv.handler = handler

	srv.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) listen() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// serve blocks until ctx ends or the server fails, then shuts down gracefully.
func (s *apiServer) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:          status.Running,
		PID:              status.PID,
		StartedAt:        api.FormatTime(status.StartedAt),
		LockFilePath:     status.LockFilePath,
		StoreBackend:     status.StoreBackend,
		DatabasePath:     status.DatabasePath,
		StagingDir:       status.StagingDir,
		StagingFreeBytes: status.StagingFreeBytes,
		QueueLength:      status.QueueLength,
		QueueCapacity:    status.QueueCapacity,
		AgentURL:         status.AgentURL,
		Resolver:         api.FromResolverStatus(status.Resolver),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleTag(w http.ResponseWriter, r *http.Request) {
	var req api.TagRequest
	body := io.LimitReader(r.Body, maxTagRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}
	tagID, err := s.daemon.SubmitTag(req.UID, source)
	switch {
	case errors.Is(err, scanqueue.ErrInvalidTagID):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.TagResponse{
		TagID:       tagID,
		Queued:      true,
		QueueLength: s.daemon.queue.Len(),
	})
}

func (s *apiServer) handleAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssignmentListResponse{Items: api.FromAssignments(list)})
}

func (s *apiServer) handleAssignment(w http.ResponseWriter, r *http.Request) {
	tagID, ok := s.tagFromPath(w, r)
	if !ok {
		return
	}
	assignment, found, err := s.daemon.store.Get(r.Context(), tagID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssignmentResponse{Found: true, Item: api.FromAssignment(assignment)})
}

func (s *apiServer) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	tagID, ok := s.tagFromPath(w, r)
	if !ok {
		return
	}
	removed, err := s.daemon.store.Delete(r.Context(), tagID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	s.logger.Info("assignment removed", logging.String(logging.FieldTagID, tagID))
	s.writeJSON(w, http.StatusOK, api.AssignmentRemoveResponse{Removed: true})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotifyResponse{Sent: sent, Message: message})
}

// tagFromPath normalizes the {tag} path value so lookups accept the same
// spellings scans do.
func (s *apiServer) tagFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	tagID, err := scanqueue.NormalizeTagID(r.PathValue("tag"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return tagID, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
