package profile

import (
	"context"
	"testing"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLBMemberRequiresPoolID(t *testing.T) {
	l := LBMember{}
	p := &domain.Profile{ID: "p1", Spec: map[string]any{}}
	assert.Error(t, l.Validate(p))
}

func TestLBMemberCreateDelete(t *testing.T) {
	drv := driver.NewFake()
	l := LBMember{}
	p := &domain.Profile{ID: "p1", Spec: map[string]any{"pool_id": "pool-1", "port": 8080}}
	n := &domain.Node{ID: "n1", Data: map[string]any{"address": "10.0.0.5"}}

	memberID, err := l.DoCreate(context.Background(), drv, driver.Params{}, p, n)
	require.NoError(t, err)
	assert.NotEmpty(t, memberID)
	n.PhysicalID = memberID

	ok, err := l.DoCheck(context.Background(), drv, driver.Params{}, n)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.DoDelete(context.Background(), drv, driver.Params{}, p, n))
}

func TestLBMemberCreateRequiresAddress(t *testing.T) {
	l := LBMember{}
	p := &domain.Profile{ID: "p1", Spec: map[string]any{"pool_id": "pool-1"}}
	n := &domain.Node{ID: "n1"}

	_, err := l.DoCreate(context.Background(), driver.NewFake(), driver.Params{}, p, n)
	require.Error(t, err)
}
