// Package executions tracks the execution an editor preview should attach to.
package executions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowport/pkg/models"
	"github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 30 * time.Minute
	DefaultPrefix = "flowport:execution:active:"
)

// Tracker stores the active execution summary per execution id in Redis.
// Entries expire after the configured TTL.
type Tracker struct {
	client   redis.UniversalClient
	logger   *slog.Logger
	ttl      time.Duration
	prefix   string
	validate *validator.Validate
}

type Option func(*Tracker)

func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		t.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(t *Tracker) {
		t.prefix = prefix
	}
}

func NewTracker(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *Tracker {
	tracker := &Tracker{
		client:   client,
		logger:   logger.With("module", "executions"),
		ttl:      DefaultTTL,
		prefix:   DefaultPrefix,
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(tracker)
	}

	return tracker
}

// Connect opens a client for a redis:// URL and checks it answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (t *Tracker) key(executionID string) string {
	return t.prefix + executionID
}

// SetActive records summary as the active execution for its id.
func (t *Tracker) SetActive(ctx context.Context, summary *models.ExecutionSummary) error {
	if summary == nil {
		return ErrInvalidSummary
	}

	err := t.validate.Struct(summary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSummary, err)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode execution %s: %w", summary.ID, err)
	}

	err = t.client.Set(ctx, t.key(summary.ID), data, t.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store active execution %s: %w", summary.ID, err)
	}

	t.logger.DebugContext(ctx, "Active execution stored", "execution_id", summary.ID, "workflow_id", summary.WorkflowID)

	return nil
}

// Active returns the active execution summary for executionID, or nil when none is known.
func (t *Tracker) Active(ctx context.Context, executionID string) (*models.ExecutionSummary, error) {
	data, err := t.client.Get(ctx, t.key(executionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read active execution %s: %w", executionID, err)
	}

	var summary models.ExecutionSummary

	err = json.Unmarshal(data, &summary)
	if err != nil {
		return nil, fmt.Errorf("failed to decode active execution %s: %w", executionID, err)
	}

	return &summary, nil
}

func (t *Tracker) Clear(ctx context.Context, executionID string) error {
	err := t.client.Del(ctx, t.key(executionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to clear active execution %s: %w", executionID, err)
	}

	return nil
}

var ErrInvalidSummary = errors.New("invalid execution summary")
