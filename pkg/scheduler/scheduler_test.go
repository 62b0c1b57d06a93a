package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/clusterd/pkg/action"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActionStore(t *testing.T) *action.Store {
	t.Helper()
	s, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return action.New(s)
}

func readyAction(t *testing.T, as *action.Store, actionName string) *domain.Action {
	t.Helper()
	a := action.NewAction("target-1", actionName, domain.Owner{}, domain.CauseRPC, time.Second)
	require.NoError(t, as.Create(a))
	require.NoError(t, as.MarkReady(a.ID))
	return a
}

func TestSchedulerRunsHandlerToSuccess(t *testing.T) {
	as := newActionStore(t)
	s := New(as, 2)
	var calls int32
	s.RegisterHandler(domain.NodeCreate, func(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		return domain.ResultOK, map[string]any{"physical_id": "srv-1"}, nil
	})

	a := readyAction(t, as, domain.NodeCreate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := as.Get(a.ID)
		return err == nil && got.Status == domain.ActionSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSchedulerFailsWhenNoHandlerRegistered(t *testing.T) {
	as := newActionStore(t)
	s := New(as, 2)
	a := readyAction(t, as, "UNKNOWN_ACTION")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := as.Get(a.ID)
		return err == nil && got.Status == domain.ActionFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerTimeoutPromotesResTimeout(t *testing.T) {
	as := newActionStore(t)
	s := New(as, 2)
	s.RegisterHandler(domain.NodeCreate, func(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
		<-ctx.Done()
		return domain.ResultError, nil, ctx.Err()
	})

	a := action.NewAction("target-1", domain.NodeCreate, domain.Owner{}, domain.CauseRPC, 20*time.Millisecond)
	require.NoError(t, as.Create(a))
	require.NoError(t, as.MarkReady(a.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := as.Get(a.ID)
		return err == nil && got.Status == domain.ActionFailed && got.ResultReason == domain.CodeResTimeout
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerCancelStopsRunningAction(t *testing.T) {
	as := newActionStore(t)
	s := New(as, 2)
	started := make(chan struct{})
	s.RegisterHandler(domain.NodeCreate, func(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
		close(started)
		<-ctx.Done()
		return domain.ResultCancel, nil, ctx.Err()
	})

	a := readyAction(t, as, domain.NodeCreate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}
	s.Cancel(a.ID)

	require.Eventually(t, func() bool {
		got, err := as.Get(a.ID)
		return err == nil && got.Status == domain.ActionCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBackoffDelayDoublesUntilCap(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 100 * time.Millisecond, MaxRetries: 5}
	assert.Equal(t, 10*time.Millisecond, b.delay(0))
	assert.Equal(t, 20*time.Millisecond, b.delay(1))
	assert.Equal(t, 40*time.Millisecond, b.delay(2))
	assert.Equal(t, 100*time.Millisecond, b.delay(10))
}
