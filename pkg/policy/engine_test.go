package policy

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vetoKind struct {
	Base
	decision Decision
}

func (v vetoKind) PreOp(context.Context, *domain.ClusterPolicyBinding, *domain.Cluster, *domain.Action) Decision {
	return v.decision
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEngineEvaluateShortCircuitsOnCheckError(t *testing.T) {
	repo := newStore(t)
	reg := NewRegistry()
	key := domain.Key{Type: "veto", Version: "1.0"}
	reg.Register(key, vetoKind{decision: Decision{Status: CheckError, Reason: "cooldown active"}})

	p := &domain.Policy{ID: "pol-1", Type: "veto", Version: "1.0", Triggers: []domain.Trigger{
		{Phase: domain.PhaseBefore, ActionName: domain.ClusterScaleOut},
	}}
	require.NoError(t, repo.CreatePolicy(p))

	binding := &domain.ClusterPolicyBinding{ClusterID: "c1", PolicyID: "pol-1", Enabled: true, Priority: 50, AttachedAt: time.Now()}
	require.NoError(t, repo.CreateBinding(binding))

	e := New(repo, reg)
	d, err := e.Evaluate(context.Background(), domain.PhaseBefore, domain.ClusterScaleOut, "c1", &domain.Cluster{ID: "c1"}, &domain.Action{})
	require.NoError(t, err)
	assert.Equal(t, CheckError, d.Status)
	assert.Equal(t, "cooldown active", d.Reason)
}

func TestEngineEvaluateSkipsNonMatchingTrigger(t *testing.T) {
	repo := newStore(t)
	reg := NewRegistry()

	p := &domain.Policy{ID: "pol-1", Type: "noop", Version: "1.0", Triggers: []domain.Trigger{
		{Phase: domain.PhaseBefore, ActionName: domain.ClusterScaleIn},
	}}
	require.NoError(t, repo.CreatePolicy(p))
	binding := &domain.ClusterPolicyBinding{ClusterID: "c1", PolicyID: "pol-1", Enabled: true}
	require.NoError(t, repo.CreateBinding(binding))

	e := New(repo, reg)
	d, err := e.Evaluate(context.Background(), domain.PhaseBefore, domain.ClusterScaleOut, "c1", &domain.Cluster{ID: "c1"}, &domain.Action{})
	require.NoError(t, err)
	assert.Equal(t, CheckOK, d.Status)
}

func TestEngineEvaluateSkipsDisabledBinding(t *testing.T) {
	repo := newStore(t)
	reg := NewRegistry()
	key := domain.Key{Type: "veto", Version: "1.0"}
	reg.Register(key, vetoKind{decision: Decision{Status: CheckError}})

	p := &domain.Policy{ID: "pol-1", Type: "veto", Version: "1.0", Triggers: []domain.Trigger{
		{Phase: domain.PhaseBefore, ActionName: domain.ClusterScaleOut},
	}}
	require.NoError(t, repo.CreatePolicy(p))
	binding := &domain.ClusterPolicyBinding{ClusterID: "c1", PolicyID: "pol-1", Enabled: false}
	require.NoError(t, repo.CreateBinding(binding))

	e := New(repo, reg)
	d, err := e.Evaluate(context.Background(), domain.PhaseBefore, domain.ClusterScaleOut, "c1", &domain.Cluster{ID: "c1"}, &domain.Action{})
	require.NoError(t, err)
	assert.Equal(t, CheckOK, d.Status)
}

func TestEngineEvaluateCooldownSuppresses(t *testing.T) {
	repo := newStore(t)
	reg := NewRegistry()
	key := domain.Key{Type: "veto", Version: "1.0"}
	reg.Register(key, vetoKind{decision: Decision{Status: CheckError}})

	p := &domain.Policy{ID: "pol-1", Type: "veto", Version: "1.0", Triggers: []domain.Trigger{
		{Phase: domain.PhaseBefore, ActionName: domain.ClusterScaleOut},
	}}
	require.NoError(t, repo.CreatePolicy(p))
	binding := &domain.ClusterPolicyBinding{
		ClusterID: "c1", PolicyID: "pol-1", Enabled: true,
		Cooldown: time.Hour, LastFiredAt: time.Now(),
	}
	require.NoError(t, repo.CreateBinding(binding))

	e := New(repo, reg)
	d, err := e.Evaluate(context.Background(), domain.PhaseBefore, domain.ClusterScaleOut, "c1", &domain.Cluster{ID: "c1"}, &domain.Action{})
	require.NoError(t, err)
	assert.Equal(t, CheckOK, d.Status, "cooldown-suppressed binding must not veto")
}
