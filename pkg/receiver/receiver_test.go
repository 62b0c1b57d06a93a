package receiver

import (
	"context"
	"testing"

	"github.com/cuemby/clusterd/pkg/action"
	"github.com/cuemby/clusterd/pkg/authctx"
	"github.com/cuemby/clusterd/pkg/credential"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/engine/cluster"
	"github.com/cuemby/clusterd/pkg/lock"
	"github.com/cuemby/clusterd/pkg/policy"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*Runtime, store.Store) {
	t.Helper()
	repo, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	actions := action.New(repo)
	locks := lock.New(repo, repo, nil)
	engine := policy.New(repo, policy.NewRegistry())
	drv := driver.NewFake()
	creds := credential.New(repo, drv)
	clusterRT := cluster.New(repo, actions, locks, engine, drv, creds)

	return New(repo, clusterRT), repo
}

func TestCreateBindsReceiverToClusterAndOwner(t *testing.T) {
	rt, repo := newHarness(t)
	c := &domain.Cluster{ID: "c1", Name: "c1", ProfileID: "p1", MaxSize: domain.Unbounded}
	require.NoError(t, repo.CreateCluster(c))

	ctx := authctx.With(context.Background(), authctx.Context{User: "alice", Project: "proj-1"})
	rec, err := rt.Create(ctx, "scale-hook", c.ID, domain.ClusterScaleOut, map[string]any{"count": 1})
	require.NoError(t, err)
	require.Equal(t, "alice", rec.Owner.User)
	require.Equal(t, domain.ReceiverWebhook, rec.Type)
	require.NotEmpty(t, rec.Channel["alarm_url"])

	got, err := rt.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ClusterID)
}

func TestCreateRejectsUnknownCluster(t *testing.T) {
	rt, _ := newHarness(t)
	_, err := rt.Create(context.Background(), "hook", "missing-cluster", domain.ClusterScaleOut, nil)
	require.Error(t, err)
}

func TestNotifySubmitsActionUnderReceiverOwner(t *testing.T) {
	rt, repo := newHarness(t)
	c := &domain.Cluster{ID: "c1", Name: "c1", ProfileID: "p1", MaxSize: domain.Unbounded}
	require.NoError(t, repo.CreateCluster(c))

	ctx := authctx.With(context.Background(), authctx.Context{User: "alice", Project: "proj-1"})
	rec, err := rt.Create(ctx, "scale-hook", c.ID, domain.ClusterScaleOut, map[string]any{"count": 1})
	require.NoError(t, err)

	// Notify is invoked by an anonymous webhook caller with no identity
	// of its own; the submitted action still runs as the receiver owner.
	a, err := rt.Notify(context.Background(), rec.ID, map[string]any{"count": 3})
	require.NoError(t, err)
	require.Equal(t, "alice", a.Owner.User)
	require.Equal(t, c.ID, a.TargetID)
	require.Equal(t, 3, a.Inputs["count"])

	actions := action.New(repo)
	got, err := actions.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionReady, got.Status)
}

func TestNotifyUnknownReceiverFails(t *testing.T) {
	rt, _ := newHarness(t)
	_, err := rt.Notify(context.Background(), "nope", nil)
	require.Error(t, err)
}
