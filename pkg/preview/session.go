package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/flowport/pkg/models"
)

// Channel delivers outbound commands to the editor.
type Channel interface {
	Send(ctx context.Context, data []byte) error
}

// SignalEvent is a signal raised by a session towards the host's parent.
type SignalEvent struct {
	SessionID   string
	WorkflowID  string
	ExecutionID string
	Signal      Signal
}

type SignalSink interface {
	Emit(ctx context.Context, event SignalEvent) error
}

// ActiveExecutions looks up the execution an editor should attach to.
type ActiveExecutions interface {
	Active(ctx context.Context, executionID string) (*models.ExecutionSummary, error)
}

// Session is one host-editor conversation. Messages are handled one at a time,
// each to completion, and effects are applied in order.
type Session struct {
	mu         sync.Mutex
	id         string
	workflowID string
	props      Props
	state      State
	channel    Channel
	sink       SignalSink
	executions ActiveExecutions
	logger     *slog.Logger
}

type SessionOption func(*Session)

func WithSignalSink(sink SignalSink) SessionOption {
	return func(s *Session) {
		s.sink = sink
	}
}

func WithActiveExecutions(executions ActiveExecutions) SessionOption {
	return func(s *Session) {
		s.executions = executions
	}
}

// WithWorkflowID ties the session to a stored workflow so it can be refreshed.
func WithWorkflowID(workflowID string) SessionOption {
	return func(s *Session) {
		s.workflowID = workflowID
	}
}

func NewSession(id string, props Props, channel Channel, logger *slog.Logger, opts ...SessionOption) *Session {
	session := &Session{
		id:      id,
		props:   props,
		channel: channel,
		logger:  logger.With("session_id", id),
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) WorkflowID() string {
	return s.workflowID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Handle processes one inbound message. Messages that are not recognized are
// dropped without any state change or effect. Only delivery failures are returned.
func (s *Session) Handle(ctx context.Context, payload any) error {
	envelope, ok := Decode(payload)
	if !ok || !Handles(envelope.Command) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	input := Input{Props: s.props}

	if envelope.Command == CommandReady {
		input.Active = s.activeExecution(ctx)
	}

	next, effects, _ := Dispatch(s.state, envelope.Command, input)
	s.state = next

	return s.apply(ctx, effects)
}

// Refresh replaces the workflow shown by the session. When the editor is
// already ready, the workflow is opened again.
func (s *Session) Refresh(ctx context.Context, workflow json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.Workflow = workflow

	if !s.state.Ready {
		return nil
	}

	return s.apply(ctx, workflowEffects(s.props))
}

func (s *Session) activeExecution(ctx context.Context) *models.ExecutionSummary {
	if s.executions == nil || s.props.ExecutionID == "" || s.props.Mode != ModeExecution {
		return nil
	}

	active, err := s.executions.Active(ctx, s.props.ExecutionID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to look up active execution", "execution_id", s.props.ExecutionID, "error", err)

		return nil
	}

	return active
}

func (s *Session) apply(ctx context.Context, effects []Effect) error {
	for _, effect := range effects {
		if effect.Signal != "" {
			s.emit(ctx, effect.Signal)

			continue
		}

		data, err := json.Marshal(effect.Message)
		if err != nil {
			return fmt.Errorf("failed to encode preview command: %w", err)
		}

		err = s.channel.Send(ctx, data)
		if err != nil {
			return fmt.Errorf("failed to send preview command: %w", err)
		}
	}

	return nil
}

func (s *Session) emit(ctx context.Context, signal Signal) {
	if s.sink == nil {
		return
	}

	err := s.sink.Emit(ctx, SignalEvent{
		SessionID:   s.id,
		WorkflowID:  s.workflowID,
		ExecutionID: s.props.ExecutionID,
		Signal:      signal,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to emit preview signal", "signal", signal, "error", err)
	}
}
