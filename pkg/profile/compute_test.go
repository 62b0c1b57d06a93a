package profile

import (
	"context"
	"testing"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDoCreateRequiresImage(t *testing.T) {
	c := Compute{}
	p := &domain.Profile{ID: "p1", Name: "web", Spec: map[string]any{}}
	n := &domain.Node{ID: "n1", Index: 1}

	_, err := c.DoCreate(context.Background(), driver.NewFake(), driver.Params{}, p, n)
	require.Error(t, err)
}

func TestComputeCreateGetDelete(t *testing.T) {
	drv := driver.NewFake()
	c := Compute{}
	p := &domain.Profile{
		ID:   "p1",
		Name: "web",
		Spec: map[string]any{"image": "ubuntu:24.04", "flavor": "small"},
	}
	n := &domain.Node{ID: "n1", Index: 1}

	physicalID, err := c.DoCreate(context.Background(), drv, driver.Params{}, p, n)
	require.NoError(t, err)
	assert.NotEmpty(t, physicalID)
	n.PhysicalID = physicalID

	details, err := c.DoGetDetails(context.Background(), drv, driver.Params{}, n)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", details["status"])

	ok, err := c.DoCheck(context.Background(), drv, driver.Params{}, n)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.DoDelete(context.Background(), drv, driver.Params{}, p, n))
}

func TestComputeValidate(t *testing.T) {
	c := Compute{}
	assert.Error(t, c.Validate(&domain.Profile{Spec: map[string]any{}}))
	assert.NoError(t, c.Validate(&domain.Profile{Spec: map[string]any{"image": "x"}}))
}
