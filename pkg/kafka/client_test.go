package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"sales-voice-go/pkg/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProcessor 前 failures 次调用返回错误。
type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Process(ctx context.Context, task tasks.SpeechTask) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("tts unavailable")
	}
	return nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestProcessWithRetryRecovers(t *testing.T) {
	mr, rdb := newTestRedis(t)
	p := &flakyProcessor{failures: 2}

	err := processWithRetry(context.Background(), p, rdb, tasks.SpeechTask{TurnID: "t1"}, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
	assert.False(t, mr.Exists(attemptsKey("t1")))
}

func TestProcessWithRetryGivesUp(t *testing.T) {
	mr, rdb := newTestRedis(t)
	p := &flakyProcessor{failures: 10}

	err := processWithRetry(context.Background(), p, rdb, tasks.SpeechTask{TurnID: "t1"}, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tts unavailable")
	assert.Equal(t, maxAttempts, p.calls)
	assert.False(t, mr.Exists(attemptsKey("t1")))
}

func TestProcessWithRetryResumesAttemptCount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	// 之前的消费者已经失败过两次
	require.NoError(t, mr.Set(attemptsKey("t1"), "2"))
	p := &flakyProcessor{failures: 10}

	err := processWithRetry(context.Background(), p, rdb, tasks.SpeechTask{TurnID: "t1"}, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestProcessWithRetryStopsOnCancel(t *testing.T) {
	_, rdb := newTestRedis(t)
	p := &flakyProcessor{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- processWithRetry(ctx, p, rdb, tasks.SpeechTask{TurnID: "t1"}, time.Hour)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop after cancel")
	}
}
