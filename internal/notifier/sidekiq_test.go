package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/notifier"
)

// captureHook intercepts commands before they reach the network.
type captureHook struct {
	mu   sync.Mutex
	cmds []redis.Cmder
	err  error
}

func (h *captureHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled in tests")
	}
}

func (h *captureHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.cmds = append(h.cmds, cmd)
		return h.err
	}
}

func (h *captureHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.cmds = append(h.cmds, cmds...)
		return h.err
	}
}

func (h *captureHook) byName(name string) []redis.Cmder {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []redis.Cmder
	for _, c := range h.cmds {
		if c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

func newHookedClient(t *testing.T, hook *captureHook) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSidekiqPublishPushesJob(t *testing.T) {
	hook := &captureHook{}
	n := notifier.NewSidekiq(newHookedClient(t, hook))

	rec := event.MessageRecord{
		Room:      "hello/world",
		Sender:    "dGhlIHNhbXBsZSBub25jZQ==",
		Payload:   "hi there",
		Address:   "10.0.0.1:5000",
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, n.Publish(context.Background(), rec))

	sadd := hook.byName("sadd")
	require.Len(t, sadd, 1)
	assert.Equal(t, []any{"sadd", "queues", "notification"}, sadd[0].Args())

	lpush := hook.byName("lpush")
	require.Len(t, lpush, 1)
	args := lpush[0].Args()
	require.Len(t, args, 3)
	assert.Equal(t, "queue:notification", args[1])

	raw, ok := args[2].([]byte)
	require.True(t, ok, "job payload is sent as bytes")

	var job map[string]any
	require.NoError(t, json.Unmarshal(raw, &job))
	assert.Equal(t, "ChatNotifier", job["class"])
	assert.Equal(t, "notification", job["queue"])
	assert.Equal(t, true, job["retry"])
	assert.Len(t, job["jid"], 24)
	assert.NotZero(t, job["created_at"])

	jobArgs, ok := job["args"].([]any)
	require.True(t, ok)
	require.Len(t, jobArgs, 1)
	record := jobArgs[0].(map[string]any)
	assert.Equal(t, "hello/world", record["channel"])
	assert.Equal(t, "hi there", record["message"])
	assert.Equal(t, "10.0.0.1:5000", record["ip"])
	assert.Equal(t, "dGhlIHNhbXBsZSBub25jZQ==", record["sender"])
	assert.Equal(t, "2024-01-02T03:04:05Z", record["created_at"])

	assert.Len(t, hook.byName("multi"), 1, "push is transactional")
	assert.Len(t, hook.byName("exec"), 1)
}

func TestSidekiqNamespace(t *testing.T) {
	hook := &captureHook{}
	n := notifier.NewSidekiq(newHookedClient(t, hook), notifier.WithNamespace("chat"))

	require.NoError(t, n.Publish(context.Background(), event.NewMessageRecord("r", "s", "p", "a")))

	assert.Equal(t, []any{"sadd", "chat:queues", notifier.DefaultQueue}, hook.byName("sadd")[0].Args())
	lpush := hook.byName("lpush")[0].Args()
	assert.Equal(t, "chat:queue:"+notifier.DefaultQueue, lpush[1])

	var job notifier.Job
	require.NoError(t, json.Unmarshal(lpush[2].([]byte), &job))
	assert.Equal(t, notifier.DefaultJobClass, job.Class)
	assert.Equal(t, notifier.DefaultQueue, job.Queue)
}

func TestSidekiqUniqueJobIDs(t *testing.T) {
	hook := &captureHook{}
	n := notifier.NewSidekiq(newHookedClient(t, hook))

	for i := 0; i < 3; i++ {
		require.NoError(t, n.Publish(context.Background(), event.NewMessageRecord("r", "s", "p", "a")))
	}

	seen := map[string]bool{}
	for _, cmd := range hook.byName("lpush") {
		var job notifier.Job
		require.NoError(t, json.Unmarshal(cmd.Args()[2].([]byte), &job))
		assert.False(t, seen[job.JID], "duplicate jid %s", job.JID)
		seen[job.JID] = true
	}
	assert.Len(t, seen, 3)
}

func TestSidekiqPublishError(t *testing.T) {
	hook := &captureHook{err: errors.New("connection refused")}
	n := notifier.NewSidekiq(newHookedClient(t, hook))

	err := n.Publish(context.Background(), event.NewMessageRecord("r", "s", "p", "a"))
	assert.ErrorIs(t, err, notifier.ErrPublishFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHealthcheck(t *testing.T) {
	hook := &captureHook{}
	check := notifier.Healthcheck(newHookedClient(t, hook))
	assert.NoError(t, check(context.Background()))
	assert.Len(t, hook.byName("ping"), 1)

	failing := &captureHook{err: errors.New("down")}
	check = notifier.Healthcheck(newHookedClient(t, failing))
	assert.ErrorIs(t, check(context.Background()), notifier.ErrHealthcheckFailed)
}

func TestConnectValidation(t *testing.T) {
	_, err := notifier.Connect(context.Background(), notifier.Config{})
	assert.ErrorIs(t, err, notifier.ErrEmptyConnectionURL)

	_, err = notifier.Connect(context.Background(), notifier.Config{URL: "http://not-redis"})
	assert.ErrorIs(t, err, notifier.ErrFailedToParseRedisConnString)
}
