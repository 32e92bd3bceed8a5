package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukex/flowport/pkg/events"
	"github.com/dukex/flowport/pkg/executions"
	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/otelhelper"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	readTimeout     = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
	maxBodySize     = 1024 * 1024
)

// ExecutionTracker stores the active execution of each execution preview.
type ExecutionTracker interface {
	ActiveExecutions
	SetActive(ctx context.Context, summary *models.ExecutionSummary) error
	Clear(ctx context.Context, executionID string) error
}

// Server hosts editor previews over websockets.
type Server struct {
	router    *mux.Router
	upgrader  websocket.Upgrader
	workflows persistence.WorkflowRepository
	tracker   ExecutionTracker
	sink      SignalSink
	tracer    trace.Tracer
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

type ServerOption func(*Server)

func WithTracker(tracker ExecutionTracker) ServerOption {
	return func(s *Server) {
		s.tracker = tracker
	}
}

func WithSink(sink SignalSink) ServerOption {
	return func(s *Server) {
		s.sink = sink
	}
}

func WithServerTracer(tracer trace.Tracer) ServerOption {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithCheckOrigin restricts which origins may open a preview.
func WithCheckOrigin(check func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

func NewServer(workflows persistence.WorkflowRepository, logger *slog.Logger, opts ...ServerOption) *Server {
	server := &Server{
		router:    mux.NewRouter(),
		workflows: workflows,
		logger:    logger.With("module", "preview_server"),
		sessions:  make(map[string]*Session),
		tracer:    otelhelper.NoopTracer(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, opt := range opts {
		opt(server)
	}

	if server.sink == nil {
		server.sink = NewEventSink(nil, server.logger)
	}

	server.routes()

	return server
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/workflows/{id}/preview", s.handleWorkflowPreview).Methods(http.MethodGet)
	s.router.HandleFunc("/executions/{id}/preview", s.handleExecutionPreview).Methods(http.MethodGet)
	s.router.HandleFunc("/executions/{id}/active", s.handleSetActive).Methods(http.MethodPost)
	s.router.HandleFunc("/executions/{id}/active", s.handleClearActive).Methods(http.MethodDelete)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.InfoContext(ctx, "Starting preview server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.logger.InfoContext(ctx, "Stopping preview server")

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("preview server shutdown: %w", err)
	}

	return nil
}

// SessionCount returns the number of open previews.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// HandleWorkflowImported reopens an imported workflow in every preview showing it.
func (s *Server) HandleWorkflowImported(ctx context.Context, event any) error {
	imported, ok := event.(*events.WorkflowImported)
	if !ok {
		s.logger.WarnContext(ctx, "Unexpected event for workflow refresh", "event", fmt.Sprintf("%T", event))

		return nil
	}

	sessions := s.sessionsFor(imported.WorkflowID)
	if len(sessions) == 0 {
		return nil
	}

	workflow, err := s.loadWorkflow(ctx, imported.WorkflowID)
	if persistence.IsWorkflowNotFound(err) {
		s.logger.WarnContext(ctx, "Imported workflow no longer exists, skipping preview refresh",
			"workflow_id", imported.WorkflowID, "sessions", len(sessions))

		return nil
	}

	if err != nil {
		return err
	}

	for _, session := range sessions {
		err := session.Refresh(ctx, workflow)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to refresh preview", "session_id", session.ID(), "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Refreshed previews of imported workflow", "workflow_id", imported.WorkflowID, "sessions", len(sessions))

	return nil
}

func (s *Server) sessionsFor(workflowID string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Session

	for _, session := range s.sessions {
		if session.WorkflowID() == workflowID {
			matches = append(matches, session)
		}
	}

	return matches
}

func (s *Server) loadWorkflow(ctx context.Context, id string) (json.RawMessage, error) {
	workflow, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow %s: %w", id, err)
	}

	return data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"sessions":  s.SessionCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWorkflowPreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	workflow, err := s.loadWorkflow(r.Context(), id)
	if persistence.IsWorkflowNotFound(err) {
		s.writeError(w, http.StatusNotFound, "Workflow not found")

		return
	}

	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load workflow for preview", "workflow_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load workflow")

		return
	}

	props := PropsFromQuery(r.URL.Query())
	props.Workflow = workflow

	s.serve(w, r, props, WithWorkflowID(id))
}

func (s *Server) handleExecutionPreview(w http.ResponseWriter, r *http.Request) {
	props := PropsFromQuery(r.URL.Query())
	props.ExecutionID = mux.Vars(r)["id"]

	s.serve(w, r, props)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, props Props, opts ...SessionOption) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Preview upgrade failed", "error", err)

		return
	}

	channel := &wsChannel{conn: conn}
	defer channel.close()

	conn.SetReadLimit(maxMessageSize)

	opts = append(opts, WithSignalSink(s.sink))
	if s.tracker != nil {
		opts = append(opts, WithActiveExecutions(s.tracker))
	}

	session := NewSession(uuid.NewString(), props, channel, s.logger, opts...)

	s.register(session)
	defer s.unregister(session)

	ctx, span := otelhelper.StartSpan(r.Context(), s.tracer, "preview.session",
		attribute.String(otelhelper.SessionIDKey, session.ID()),
		attribute.String(otelhelper.WorkflowIDKey, session.WorkflowID()),
		attribute.String(otelhelper.ExecutionIDKey, props.ExecutionID),
	)
	defer span.End()

	s.logger.InfoContext(ctx, "Preview opened", "session_id", session.ID(), "workflow_id", session.WorkflowID(), "execution_id", props.ExecutionID)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WarnContext(ctx, "Preview connection error", "session_id", session.ID(), "error", err)
			}

			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		err = session.Handle(ctx, string(data))
		if err != nil {
			otelhelper.SetError(span, err)
			s.logger.WarnContext(ctx, "Closing preview", "session_id", session.ID(), "error", err)

			return
		}
	}
}

func (s *Server) register(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID()] = session
}

func (s *Server) unregister(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, session.ID())
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Execution tracking is not configured")

		return
	}

	id := mux.Vars(r)["id"]

	var summary models.ExecutionSummary

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&summary)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")

		return
	}

	if summary.ID == "" {
		summary.ID = id
	}

	if summary.ID != id {
		s.writeError(w, http.StatusBadRequest, "Execution id does not match the path")

		return
	}

	err = s.tracker.SetActive(r.Context(), &summary)
	if errors.Is(err, executions.ErrInvalidSummary) {
		s.writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to store active execution", "execution_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to store active execution")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Execution tracking is not configured")

		return
	}

	id := mux.Vars(r)["id"]

	err := s.tracker.Clear(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to clear active execution", "execution_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to clear active execution")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
