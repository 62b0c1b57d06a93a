package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/cuemby/clusterd/pkg/action"
	"github.com/cuemby/clusterd/pkg/credential"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/lock"
	"github.com/cuemby/clusterd/pkg/policy"
	"github.com/cuemby/clusterd/pkg/policy/deletion"
	"github.com/cuemby/clusterd/pkg/policy/scaling"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*Runtime, store.Store, *action.Store) {
	t.Helper()
	repo, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	actions := action.New(repo)
	locks := lock.New(repo, repo, nil)
	reg := policy.NewRegistry()
	reg.Register(deletion.Key, deletion.Policy{})
	reg.Register(scaling.Key, scaling.Policy{})
	engine := policy.New(repo, reg)
	drv := driver.NewFake()
	creds := credential.New(repo, drv)

	return New(repo, actions, locks, engine, drv, creds), repo, actions
}

func newTestProfile(t *testing.T, repo store.Store) *domain.Profile {
	t.Helper()
	p := &domain.Profile{ID: "prof-1", Name: "web", Type: "compute", Version: "1.0", Spec: map[string]any{"name": "web", "image": "ubuntu-22.04", "flavor": "m1.small"}}
	require.NoError(t, repo.CreateProfile(p))
	return p
}

func newTestCluster(t *testing.T, repo store.Store, profileID string, desired int) *domain.Cluster {
	t.Helper()
	c := &domain.Cluster{ID: "c1", Name: "c1", ProfileID: profileID, DesiredCapacity: desired, MinSize: 0, MaxSize: domain.Unbounded, Status: domain.ClusterActive}
	require.NoError(t, repo.CreateCluster(c))
	return c
}

func newClusterAction(actions *action.Store, clusterID, actionName string) *domain.Action {
	a := action.NewAction(clusterID, actionName, domain.Owner{User: "u1", Project: "p1"}, domain.CauseRPC, DefaultTimeout)
	a.Inputs = map[string]any{}
	return a
}

// succeedChild fast-forwards a spawned child action straight to
// SUCCEEDED, standing in for a Node Action Runtime dispatch the
// scheduler would otherwise have driven.
func succeedChild(t *testing.T, actions *action.Store, childID string) {
	t.Helper()
	require.NoError(t, actions.UpdateStatus(childID, domain.ActionRunning, ""))
	require.NoError(t, actions.UpdateStatus(childID, domain.ActionSucceeded, ""))
}

func failChild(t *testing.T, actions *action.Store, childID, reason string) {
	t.Helper()
	require.NoError(t, actions.UpdateStatus(childID, domain.ActionRunning, ""))
	require.NoError(t, actions.UpdateStatus(childID, domain.ActionFailed, reason))
}

func TestSubmitCreatesReadyAction(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	newTestCluster(t, repo, p.ID, 0)

	a, err := rt.Submit(context.Background(), "c1", domain.ClusterScaleOut, map[string]any{"count": 2})
	require.NoError(t, err)

	got, err := actions.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionReady, got.Status)
}

func TestHandleClusterCreateSpawnsChildrenThenCommitsOnSuccess(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 0)
	c.DesiredCapacity = 2
	require.NoError(t, repo.UpdateCluster(c))

	a := newClusterAction(actions, c.ID, domain.ClusterCreate)
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultRetry, code)

	got, err := repo.GetCluster(c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClusterCreating, got.Status)

	children, err := actions.ListDependencies(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		require.Equal(t, domain.NodeCreate, child.ActionName)
		succeedChild(t, actions, child.ID)
	}

	reloaded, err := actions.Get(a.ID)
	require.NoError(t, err)
	code, outputs, err := rt.Handle(context.Background(), reloaded)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)
	require.Equal(t, c.ID, outputs["cluster_id"])

	final, err := repo.GetCluster(c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClusterActive, final.Status)
}

func TestHandleClusterDeleteSetsWarningOnChildFailure(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 1)
	n := &domain.Node{ID: "n1", Name: "n1", ProfileID: p.ID, ClusterID: c.ID, Index: 1, Status: domain.NodeActive}
	require.NoError(t, repo.CreateNode(n))

	a := newClusterAction(actions, c.ID, domain.ClusterDelete)
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultRetry, code)

	children, err := actions.ListDependencies(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	failChild(t, actions, children[0].ID, "boom")

	reloaded, err := actions.Get(a.ID)
	require.NoError(t, err)
	code, _, err = rt.Handle(context.Background(), reloaded)
	require.Error(t, err)
	require.Equal(t, domain.ResultError, code)

	final, err := repo.GetCluster(c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClusterWarning, final.Status)
	require.Equal(t, fmt.Sprintf("ACTION [%s] failed: boom", children[0].ID), final.StatusReason)
}

func TestHandleClusterScaleOutBumpsDesiredCapacity(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 1)

	a := newClusterAction(actions, c.ID, domain.ClusterScaleOut)
	a.Inputs["count"] = 2
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultRetry, code)

	children, err := actions.ListDependencies(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		succeedChild(t, actions, child.ID)
	}

	reloaded, err := actions.Get(a.ID)
	require.NoError(t, err)
	code, outputs, err := rt.Handle(context.Background(), reloaded)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)
	require.Equal(t, 2, outputs["nodes_added"])

	final, err := repo.GetCluster(c.ID)
	require.NoError(t, err)
	require.Equal(t, 3, final.DesiredCapacity)
	require.Equal(t, domain.ClusterActive, final.Status)
}

func TestHandleClusterScaleInDropsDesiredCapacity(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 3)
	for i := 1; i <= 3; i++ {
		n := &domain.Node{ID: fmt.Sprintf("n%d", i), Name: fmt.Sprintf("n%d", i), ProfileID: p.ID, ClusterID: c.ID, Index: i, Status: domain.NodeActive}
		require.NoError(t, repo.CreateNode(n))
	}

	a := newClusterAction(actions, c.ID, domain.ClusterScaleIn)
	a.Inputs["count"] = 1
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultRetry, code)

	children, err := actions.ListDependencies(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	for _, child := range children {
		succeedChild(t, actions, child.ID)
	}

	reloaded, err := actions.Get(a.ID)
	require.NoError(t, err)
	code, _, err = rt.Handle(context.Background(), reloaded)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	final, err := repo.GetCluster(c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, final.DesiredCapacity)
	require.Equal(t, domain.ClusterActive, final.Status)
}

func TestHandleClusterDelNodesRespectsGracePeriod(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 1)
	n := &domain.Node{ID: "n1", Name: "n1", ProfileID: p.ID, ClusterID: c.ID, Index: 1, Status: domain.NodeActive}
	require.NoError(t, repo.CreateNode(n))

	pol := &domain.Policy{ID: "pol-1", Name: "del", Type: deletion.Key.Type, Version: deletion.Key.Version,
		Spec:     map[string]any{"grace_period": 60.0},
		Triggers: []domain.Trigger{{Phase: domain.PhaseBefore, ActionName: domain.ClusterDelNodes}},
	}
	require.NoError(t, repo.CreatePolicy(pol))
	binding := &domain.ClusterPolicyBinding{ClusterID: c.ID, PolicyID: pol.ID, Enabled: true, Data: map[string]any{}}
	deletion.SeedBindingData(pol, binding)
	require.NoError(t, repo.CreateBinding(binding))

	a := newClusterAction(actions, c.ID, domain.ClusterDelNodes)
	a.Inputs["node_ids"] = []string{n.ID}
	require.NoError(t, actions.Create(a))

	code, outputs, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultRetry, code)
	require.Equal(t, true, outputs[domain.DependentsWaitKey])

	reloaded, err := actions.Get(a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, reloaded.Data["grace_until"])
	require.Equal(t, stageBefore, stageOf(reloaded))
}

func TestHandleAttachPolicyCreatesBindingAndSeedsData(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 0)

	pol := &domain.Policy{ID: "pol-scale", Name: "scale", Type: scaling.Key.Type, Version: scaling.Key.Version,
		Spec: map[string]any{"creation_count": 3.0, "deletion_count": 2.0},
	}
	require.NoError(t, repo.CreatePolicy(pol))

	a := newClusterAction(actions, c.ID, domain.ClusterAttachPolicy)
	a.Inputs["policy_id"] = pol.ID
	a.Inputs["priority"] = 50
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	binding, err := repo.GetBinding(c.ID, pol.ID)
	require.NoError(t, err)
	require.True(t, binding.Enabled)
	require.Equal(t, 50, binding.Priority)
	require.Equal(t, float64(3), binding.Data["creation.count"])
}

func TestHandleAttachPolicyRejectsDuplicate(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 0)

	pol := &domain.Policy{ID: "pol-scale", Name: "scale", Type: scaling.Key.Type, Version: scaling.Key.Version, Spec: map[string]any{}}
	require.NoError(t, repo.CreatePolicy(pol))
	require.NoError(t, repo.CreateBinding(&domain.ClusterPolicyBinding{ClusterID: c.ID, PolicyID: pol.ID, Enabled: true, Data: map[string]any{}}))

	a := newClusterAction(actions, c.ID, domain.ClusterAttachPolicy)
	a.Inputs["policy_id"] = pol.ID
	require.NoError(t, actions.Create(a))

	_, _, err := rt.Handle(context.Background(), a)
	require.Error(t, err)
}

func TestHandleDetachPolicyRemovesBinding(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 0)

	pol := &domain.Policy{ID: "pol-scale", Name: "scale", Type: scaling.Key.Type, Version: scaling.Key.Version, Spec: map[string]any{}}
	require.NoError(t, repo.CreatePolicy(pol))
	require.NoError(t, repo.CreateBinding(&domain.ClusterPolicyBinding{ClusterID: c.ID, PolicyID: pol.ID, Enabled: true, Data: map[string]any{}}))

	a := newClusterAction(actions, c.ID, domain.ClusterDetachPolicy)
	a.Inputs["policy_id"] = pol.ID
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	_, err = repo.GetBinding(c.ID, pol.ID)
	require.Error(t, err)
}

func TestHandleUpdatePolicyMutatesBinding(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 0)

	pol := &domain.Policy{ID: "pol-scale", Name: "scale", Type: scaling.Key.Type, Version: scaling.Key.Version, Spec: map[string]any{}}
	require.NoError(t, repo.CreatePolicy(pol))
	require.NoError(t, repo.CreateBinding(&domain.ClusterPolicyBinding{ClusterID: c.ID, PolicyID: pol.ID, Priority: 10, Enabled: true, Data: map[string]any{}}))

	a := newClusterAction(actions, c.ID, domain.ClusterUpdatePolicy)
	a.Inputs["policy_id"] = pol.ID
	a.Inputs["priority"] = 90
	a.Inputs["enabled"] = false
	require.NoError(t, actions.Create(a))

	code, _, err := rt.Handle(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	binding, err := repo.GetBinding(c.ID, pol.ID)
	require.NoError(t, err)
	require.Equal(t, 90, binding.Priority)
	require.False(t, binding.Enabled)
}

func TestHandleRejectsUnknownAction(t *testing.T) {
	rt, repo, actions := newHarness(t)
	p := newTestProfile(t, repo)
	c := newTestCluster(t, repo, p.ID, 0)

	a := newClusterAction(actions, c.ID, "CLUSTER_BOGUS")
	require.NoError(t, actions.Create(a))

	_, _, err := rt.Handle(context.Background(), a)
	require.Error(t, err)
}
