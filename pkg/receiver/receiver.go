// Package receiver implements the Receiver entity (GLOSSARY): an
// external trigger pre-bound to a cluster, an action name, and a
// caller's identity, grounded in senlin's engine/receiver.py webhook
// model. Notify is the single operation a receiver exposes: it
// resolves the bound caller, merges the request's parameters over the
// receiver's stored defaults, and submits the same CLUSTER_* intent
// any other caller would through the Cluster Action Runtime (C5).
package receiver

import (
	"context"
	"time"

	"github.com/cuemby/clusterd/pkg/authctx"
	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/engine/cluster"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/google/uuid"
)

// Runtime creates receivers and fires their bound action on Notify.
type Runtime struct {
	repo    store.Store
	cluster *cluster.Runtime
}

// New builds a receiver Runtime over repo and the Cluster Action Runtime.
func New(repo store.Store, clusterRuntime *cluster.Runtime) *Runtime {
	return &Runtime{repo: repo, cluster: clusterRuntime}
}

// Create registers a new receiver bound to clusterID/actionName, owned
// by the caller found in ctx.
func (r *Runtime) Create(ctx context.Context, name string, clusterID, actionName string, params map[string]any) (*domain.Receiver, error) {
	if _, err := r.repo.GetCluster(clusterID); err != nil {
		return nil, err
	}
	owner := domain.Owner{}
	if ac, ok := authctx.From(ctx); ok {
		owner = domain.Owner{User: ac.User, Project: ac.Project, Domain: ac.Domain}
	}
	rec := &domain.Receiver{
		ID:         uuid.New().String(),
		Name:       name,
		Type:       domain.ReceiverWebhook,
		ClusterID:  clusterID,
		ActionName: actionName,
		Params:     params,
		Owner:      owner,
		Channel:    map[string]string{"alarm_url": "/v1/receivers/" + name + "/notify"},
		CreatedAt:  time.Now(),
	}
	if err := r.repo.CreateReceiver(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Notify fires receiverID's bound action: inputs override the
// receiver's stored Params key-by-key, and the submitted action runs
// under the receiver owner's identity, not the webhook caller's (the
// webhook carries no credential of its own, per senlin's receiver
// design).
func (r *Runtime) Notify(ctx context.Context, receiverID string, inputs map[string]any) (*domain.Action, error) {
	rec, err := r.repo.GetReceiver(receiverID)
	if err != nil {
		return nil, err
	}
	if rec.Type != domain.ReceiverWebhook {
		return nil, clustererr.New(clustererr.KindValidation, "receiver %s has unsupported type %s", rec.ID, rec.Type)
	}

	merged := map[string]any{}
	for k, v := range rec.Params {
		merged[k] = v
	}
	for k, v := range inputs {
		merged[k] = v
	}

	notifyCtx := authctx.With(ctx, authctx.Context{User: rec.Owner.User, Project: rec.Owner.Project, Domain: rec.Owner.Domain})
	return r.cluster.Submit(notifyCtx, rec.ClusterID, rec.ActionName, merged)
}

// Delete removes receiverID.
func (r *Runtime) Delete(id string) error { return r.repo.DeleteReceiver(id) }

// Get returns receiverID.
func (r *Runtime) Get(id string) (*domain.Receiver, error) { return r.repo.GetReceiver(id) }

// List returns every registered receiver.
func (r *Runtime) List() ([]*domain.Receiver, error) { return r.repo.ListReceivers() }
