package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/workflow"
)

// ErrNoRequeueFunc is returned by Retry when no requeue callback has
// been configured. The retry budget is not consumed.
var ErrNoRequeueFunc = errors.New("cascade: dlq requeue callback not configured")

// RequeueFunc re-enters a message into the execution engine.
// This breaks the import cycle: the engine provides the implementation.
type RequeueFunc func(ctx context.Context, msg *Message) error

// Emitter emits DLQ lifecycle events.
// ext.Registry satisfies this interface.
type Emitter interface {
	EmitMessageQueued(ctx context.Context, msg *Message)
	EmitMessageRequeued(ctx context.Context, msg *Message)
	EmitMessageExpired(ctx context.Context, msg *Message)
}

// Config controls queue capacity, message lifetime, and the background
// sweeper.
type Config struct {
	// Capacity is the maximum number of messages held. Add fails with
	// ErrDLQFull once it is reached.
	Capacity int `json:"capacity"`
	// TTL is how long a message stays eligible after it is added.
	TTL time.Duration `json:"ttl"`
	// MaxRetries is the number of requeue attempts per message.
	MaxRetries int `json:"max_retries"`
	// SweepInterval is how often the background sweeper runs.
	SweepInterval time.Duration `json:"sweep_interval"`
	// RequeueBatch caps automatic requeues per sweep pass.
	RequeueBatch int `json:"requeue_batch"`
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      100,
		TTL:           24 * time.Hour,
		MaxRetries:    3,
		SweepInterval: time.Minute,
		RequeueBatch:  10,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.RequeueBatch <= 0 {
		c.RequeueBatch = def.RequeueBatch
	}
	return c
}

// Queue is a bounded in-memory dead letter queue. All methods are safe
// for concurrent use.
type Queue struct {
	mu       sync.RWMutex
	cfg      Config
	messages map[id.MessageID]*Message
	requeue  RequeueFunc
	emitter  Emitter
	logger   *slog.Logger

	// sweeping prevents overlapping sweep passes.
	sweeping atomic.Bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Queue with the given configuration. Zero config fields
// fall back to DefaultConfig values.
func New(cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:      cfg.withDefaults(),
		messages: make(map[id.MessageID]*Message),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// SetRequeueFunc installs the callback Retry and the sweeper use to
// re-enter messages into the engine.
func (q *Queue) SetRequeueFunc(fn RequeueFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requeue = fn
}

// SetEmitter installs the lifecycle event emitter.
func (q *Queue) SetEmitter(e Emitter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emitter = e
}

// Config returns the effective configuration.
func (q *Queue) Config() Config {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.cfg
}

// AddOption customizes a message before it is stored.
type AddOption func(*Message)

// WithMetadata attaches key/value context to the message. Repeated
// calls merge, later values winning on key collisions.
func WithMetadata(md map[string]string) AddOption {
	return func(m *Message) {
		if len(md) == 0 {
			return
		}
		if m.Metadata == nil {
			m.Metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			m.Metadata[k] = v
		}
	}
}

// Add moves a failed execution into the queue. It fails with ErrDLQFull
// at capacity, leaving the queue unchanged. An empty priority is
// derived from the cause kind. The execution's requeue lineage carries
// onto the message so a workflow that keeps failing after requeue runs
// out of budget instead of cycling through the queue forever.
func (q *Queue) Add(ctx context.Context, exec *workflow.Execution, cause workflow.ExecutionError, priority Priority, opts ...AddOption) (*Message, error) {
	if priority == "" {
		priority = PriorityForKind(cause.Kind)
	} else if !priority.Valid() {
		priority = PriorityNormal
	}

	q.mu.Lock()
	if len(q.messages) >= q.cfg.Capacity {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: capacity %d reached", cascade.ErrDLQFull, q.cfg.Capacity)
	}

	msg := &Message{
		Entity:      cascade.NewEntity(),
		ID:          id.NewMessageID(),
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Payload:     exec.Payload,
		Cause:       cause,
		RetryCount:  exec.RetryCount,
		Priority:    priority,
		ExpiresAt:   time.Now().UTC().Add(q.cfg.TTL),
	}
	for _, opt := range opts {
		opt(msg)
	}
	q.messages[msg.ID] = msg
	emitter := q.emitter
	q.mu.Unlock()

	q.logger.Warn("execution moved to dead letter queue",
		slog.String("message_id", msg.ID.String()),
		slog.String("execution_id", msg.ExecutionID.String()),
		slog.String("workflow_id", msg.WorkflowID),
		slog.String("priority", string(msg.Priority)),
		slog.String("cause", msg.Cause.Message),
	)
	if emitter != nil {
		emitter.EmitMessageQueued(ctx, msg.clone())
	}
	return msg.clone(), nil
}

// Retry requeues one message through the configured callback. It fails
// if the message is absent, its retry budget is exhausted, or it has
// expired. The attempt is counted before the callback runs; on success
// the message is removed, on failure it stays for a future attempt.
func (q *Queue) Retry(ctx context.Context, msgID id.MessageID) error {
	q.mu.Lock()
	msg, ok := q.messages[msgID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", cascade.ErrMessageNotFound, msgID)
	}
	if msg.RetryCount >= q.cfg.MaxRetries {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s used %d of %d requeue attempts",
			cascade.ErrMaxRetriesExceeded, msgID, msg.RetryCount, q.cfg.MaxRetries)
	}
	if msg.Expired(time.Now().UTC()) {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", cascade.ErrMessageExpired, msgID)
	}
	fn := q.requeue
	if fn == nil {
		q.mu.Unlock()
		return ErrNoRequeueFunc
	}
	msg.RetryCount++
	msg.Touch()
	attempt := msg.clone()
	emitter := q.emitter
	q.mu.Unlock()

	if err := fn(ctx, attempt); err != nil {
		q.logger.Warn("dlq requeue failed, message retained",
			slog.String("message_id", msgID.String()),
			slog.Int("retry_count", attempt.RetryCount),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("requeue message %s: %w", msgID, err)
	}

	q.mu.Lock()
	delete(q.messages, msgID)
	q.mu.Unlock()

	q.logger.Info("dlq message requeued",
		slog.String("message_id", msgID.String()),
		slog.String("execution_id", attempt.ExecutionID.String()),
		slog.Int("retry_count", attempt.RetryCount),
	)
	if emitter != nil {
		emitter.EmitMessageRequeued(ctx, attempt)
	}
	return nil
}

// Messages returns messages matching the filter, ordered by priority
// (critical > high > normal > low) then creation time ascending.
// Expired messages are never returned.
func (q *Queue) Messages(filter Filter) []*Message {
	now := time.Now().UTC()

	q.mu.RLock()
	matched := make([]*Message, 0, len(q.messages))
	for _, msg := range q.messages {
		if msg.Expired(now) {
			continue
		}
		if !filter.matches(msg) {
			continue
		}
		matched = append(matched, msg)
	}
	q.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		ri, rj := matched[i].Priority.rank(), matched[j].Priority.rank()
		if ri != rj {
			return ri < rj
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*Message, len(matched))
	for i, msg := range matched {
		out[i] = msg.clone()
	}
	return out
}

// Get retrieves one message by ID, expired or not.
func (q *Queue) Get(msgID id.MessageID) (*Message, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	msg, ok := q.messages[msgID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cascade.ErrMessageNotFound, msgID)
	}
	return msg.clone(), nil
}

// Remove deletes one message by ID.
func (q *Queue) Remove(msgID id.MessageID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.messages[msgID]; !ok {
		return fmt.Errorf("%w: %s", cascade.ErrMessageNotFound, msgID)
	}
	delete(q.messages, msgID)
	return nil
}

// Size returns the number of messages held, expired ones included
// until the sweeper drops them.
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.messages)
}

// OldestAge returns the age of the oldest message, or zero when the
// queue is empty.
func (q *Queue) OldestAge() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var oldest time.Time
	for _, msg := range q.messages {
		if oldest.IsZero() || msg.CreatedAt.Before(oldest) {
			oldest = msg.CreatedAt
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return time.Since(oldest)
}

// PurgeExpired drops every expired message and returns how many were
// removed.
func (q *Queue) PurgeExpired(ctx context.Context) int {
	now := time.Now().UTC()

	q.mu.Lock()
	var expired []*Message
	for msgID, msg := range q.messages {
		if msg.Expired(now) {
			expired = append(expired, msg)
			delete(q.messages, msgID)
		}
	}
	emitter := q.emitter
	q.mu.Unlock()

	for _, msg := range expired {
		q.logger.Warn("dlq message expired",
			slog.String("message_id", msg.ID.String()),
			slog.String("execution_id", msg.ExecutionID.String()),
			slog.String("workflow_id", msg.WorkflowID),
		)
		if emitter != nil {
			emitter.EmitMessageExpired(ctx, msg.clone())
		}
	}
	return len(expired)
}
