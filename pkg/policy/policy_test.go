package policy

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestBaseHooksReturnCheckOK(t *testing.T) {
	var k Kind = Base{}
	d := k.PreOp(context.Background(), &domain.ClusterPolicyBinding{}, &domain.Cluster{}, &domain.Action{})
	assert.Equal(t, CheckOK, d.Status)
	d = k.PostOp(context.Background(), &domain.ClusterPolicyBinding{}, &domain.Cluster{}, &domain.Action{})
	assert.Equal(t, CheckOK, d.Status)
}

func TestRegistryGetUnregisteredReturnsBase(t *testing.T) {
	r := NewRegistry()
	k := r.Get(domain.Key{Type: "nope", Version: "1.0"})
	_, ok := k.(Base)
	assert.True(t, ok)
}

func TestOnCooldown(t *testing.T) {
	now := time.Now()
	b := &domain.ClusterPolicyBinding{Cooldown: time.Minute, LastFiredAt: now.Add(-30 * time.Second)}
	assert.True(t, onCooldown(b, now))

	b2 := &domain.ClusterPolicyBinding{Cooldown: time.Minute, LastFiredAt: now.Add(-2 * time.Minute)}
	assert.False(t, onCooldown(b2, now))

	b3 := &domain.ClusterPolicyBinding{Cooldown: 0, LastFiredAt: now}
	assert.False(t, onCooldown(b3, now))
}
