package node

import (
	"context"
	"testing"

	"github.com/cuemby/clusterd/pkg/credential"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/profile"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*Runtime, store.Store) {
	t.Helper()
	repo, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	drv := driver.NewFake()
	reg := profile.NewDefaultRegistry()
	creds := credential.New(repo, drv)
	return New(repo, reg, drv, creds), repo
}

func newComputeProfile(t *testing.T, repo store.Store) *domain.Profile {
	t.Helper()
	p := &domain.Profile{
		ID:      "prof-1",
		Name:    "web",
		Type:    "compute",
		Version: "1.0",
		Spec:    map[string]any{"name": "web", "image": "ubuntu-22.04", "flavor": "m1.small"},
	}
	require.NoError(t, repo.CreateProfile(p))
	return p
}

func newOrphanNode(t *testing.T, repo store.Store, profileID string) *domain.Node {
	t.Helper()
	n := &domain.Node{ID: "node-1", Name: "node-1", ProfileID: profileID, Index: domain.OrphanIndex, Status: domain.NodeInit}
	require.NoError(t, repo.CreateNode(n))
	return n
}

func newAction(targetID, actionName string) *domain.Action {
	return &domain.Action{ID: "act-1", TargetID: targetID, ActionName: actionName, Inputs: map[string]any{}, Outputs: map[string]any{}, Data: map[string]any{}, Cause: domain.CauseRPC}
}

func TestHandleCreateActivatesNode(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := newOrphanNode(t, repo, p.ID)

	code, outputs, err := rt.HandleCreate(context.Background(), newAction(n.ID, domain.NodeCreate))
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)
	require.NotEmpty(t, outputs["physical_id"])

	got, err := repo.GetNode(n.ID)
	require.NoError(t, err)
	require.Equal(t, domain.NodeActive, got.Status)
	require.NotEmpty(t, got.PhysicalID)
}

func TestHandleCreateRollsBackToErrorOnFailure(t *testing.T) {
	rt, repo := newHarness(t)
	p := &domain.Profile{ID: "prof-bad", Name: "bad", Type: "compute", Version: "1.0", Spec: map[string]any{"name": "bad"}}
	require.NoError(t, repo.CreateProfile(p))
	n := newOrphanNode(t, repo, p.ID)

	code, _, err := rt.HandleCreate(context.Background(), newAction(n.ID, domain.NodeCreate))
	require.Error(t, err)
	require.Equal(t, domain.ResultError, code)

	got, err := repo.GetNode(n.ID)
	require.NoError(t, err)
	require.Equal(t, domain.NodeError, got.Status)
	require.NotEmpty(t, got.StatusReason)
}

func TestHandleDeleteTombstonesNode(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := newOrphanNode(t, repo, p.ID)
	_, _, err := rt.HandleCreate(context.Background(), newAction(n.ID, domain.NodeCreate))
	require.NoError(t, err)

	code, _, err := rt.HandleDelete(context.Background(), newAction(n.ID, domain.NodeDelete))
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	_, err = repo.GetNode(n.ID)
	require.Error(t, err)
}

func TestHandleJoinAssignsIndexAndBumpsCapacityForRPC(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := newOrphanNode(t, repo, p.ID)
	c := &domain.Cluster{ID: "c1", Name: "c1", ProfileID: p.ID, DesiredCapacity: 2, MinSize: 0, MaxSize: domain.Unbounded}
	require.NoError(t, repo.CreateCluster(c))

	a := newAction(n.ID, domain.NodeJoin)
	a.Inputs["cluster_id"] = c.ID
	code, outputs, err := rt.HandleJoin(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)
	require.Equal(t, 1, outputs["index"])

	got, err := repo.GetNode(n.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ClusterID)
	require.Equal(t, 1, got.Index)

	gotCluster, err := repo.GetCluster(c.ID)
	require.NoError(t, err)
	require.Equal(t, 3, gotCluster.DesiredCapacity)
}

func TestHandleJoinRejectsNonOrphan(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := &domain.Node{ID: "node-2", Name: "node-2", ProfileID: p.ID, ClusterID: "other", Index: 1}
	require.NoError(t, repo.CreateNode(n))

	a := newAction(n.ID, domain.NodeJoin)
	a.Inputs["cluster_id"] = "c1"
	_, _, err := rt.HandleJoin(context.Background(), a)
	require.Error(t, err)
}

func TestHandleLeaveClearsClusterMembership(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := &domain.Node{ID: "node-3", Name: "node-3", ProfileID: p.ID, ClusterID: "c1", Index: 1}
	require.NoError(t, repo.CreateNode(n))

	code, _, err := rt.HandleLeave(context.Background(), newAction(n.ID, domain.NodeLeave))
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	got, err := repo.GetNode(n.ID)
	require.NoError(t, err)
	require.True(t, got.IsOrphan())
	require.Equal(t, domain.OrphanIndex, got.Index)
}

func TestHandleUpdateSwapsProfile(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := newOrphanNode(t, repo, p.ID)
	_, _, err := rt.HandleCreate(context.Background(), newAction(n.ID, domain.NodeCreate))
	require.NoError(t, err)

	newProfile := &domain.Profile{ID: "prof-2", Name: "web-v2", Type: "compute", Version: "1.0", Spec: map[string]any{"name": "web", "image": "ubuntu-24.04"}}
	require.NoError(t, repo.CreateProfile(newProfile))

	a := newAction(n.ID, domain.NodeUpdate)
	a.Inputs["profile_id"] = newProfile.ID
	code, _, err := rt.HandleUpdate(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOK, code)

	got, err := repo.GetNode(n.ID)
	require.NoError(t, err)
	require.Equal(t, newProfile.ID, got.ProfileID)
	require.Equal(t, domain.NodeActive, got.Status)
}

func TestHandleUpdateRejectsNonActiveNode(t *testing.T) {
	rt, repo := newHarness(t)
	p := newComputeProfile(t, repo)
	n := newOrphanNode(t, repo, p.ID) // still INIT, never created

	a := newAction(n.ID, domain.NodeUpdate)
	a.Inputs["profile_id"] = "whatever"
	_, _, err := rt.HandleUpdate(context.Background(), a)
	require.Error(t, err)
}

func TestRegisterHandlersWiresAllFiveOps(t *testing.T) {
	rt, _ := newHarness(t)
	registered := map[string]bool{}
	rt.RegisterHandlers(func(actionName string, h func(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error)) {
		registered[actionName] = true
	})
	for _, name := range []string{domain.NodeCreate, domain.NodeDelete, domain.NodeUpdate, domain.NodeJoin, domain.NodeLeave} {
		require.True(t, registered[name], "expected %s to be registered", name)
	}
}
