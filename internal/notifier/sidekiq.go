package notifier

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/roomcast/internal/event"
)

// Job layout expected by the downstream workers.
const (
	DefaultJobClass = "ChatNotifier"
	DefaultQueue    = "notification"
)

// Job is a Sidekiq-compatible job payload.
type Job struct {
	Class      string                `json:"class"`
	Queue      string                `json:"queue"`
	Args       []event.MessageRecord `json:"args"`
	JID        string                `json:"jid"`
	Retry      bool                  `json:"retry"`
	CreatedAt  float64               `json:"created_at"`
	EnqueuedAt float64               `json:"enqueued_at"`
}

// Sidekiq pushes one job per record onto a Redis-backed Sidekiq queue.
type Sidekiq struct {
	client    redis.Cmdable
	namespace string
	class     string
	queue     string
	now       func() time.Time
}

// SidekiqOption configures a Sidekiq notifier.
type SidekiqOption func(*Sidekiq)

// WithNamespace prefixes every key with "<ns>:".
func WithNamespace(ns string) SidekiqOption {
	return func(s *Sidekiq) {
		s.namespace = ns
	}
}

// NewSidekiq creates a notifier pushing jobs through client.
func NewSidekiq(client redis.Cmdable, opts ...SidekiqOption) *Sidekiq {
	s := &Sidekiq{
		client: client,
		class:  DefaultJobClass,
		queue:  DefaultQueue,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish enqueues rec as the sole argument of a new job.
func (s *Sidekiq) Publish(ctx context.Context, rec event.MessageRecord) error {
	payload, err := json.Marshal(s.newJob(rec))
	if err != nil {
		return fmt.Errorf("%w: encode job: %v", ErrPublishFailed, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.key("queues"), s.queue)
		pipe.LPush(ctx, s.key("queue:"+s.queue), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

func (s *Sidekiq) newJob(rec event.MessageRecord) Job {
	now := unixFloat(s.now())
	return Job{
		Class:      s.class,
		Queue:      s.queue,
		Args:       []event.MessageRecord{rec},
		JID:        newJID(),
		Retry:      true,
		CreatedAt:  now,
		EnqueuedAt: now,
	}
}

func (s *Sidekiq) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + ":" + name
}

// newJID returns 24 hex characters, the width Sidekiq uses for job ids.
func newJID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:12])
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
