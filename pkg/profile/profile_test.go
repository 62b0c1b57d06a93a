package profile

import (
	"testing"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	k := r.Get(domain.Key{Type: "nope", Version: "1.0"})
	err := k.Validate(&domain.Profile{})
	require.Error(t, err)
	assert.Equal(t, clustererr.KindValidation, clustererr.KindOf(err))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(ComputeKey, Compute{})

	k := r.Get(ComputeKey)
	_, ok := k.(Compute)
	assert.True(t, ok)
}

func TestRegistryForProfile(t *testing.T) {
	r := NewDefaultRegistry()
	p := &domain.Profile{Type: "compute", Version: "1.0"}
	_, ok := r.ForProfile(p).(Compute)
	assert.True(t, ok)

	p2 := &domain.Profile{Type: "loadbalancer-member", Version: "1.0"}
	_, ok = r.ForProfile(p2).(LBMember)
	assert.True(t, ok)
}

func TestBaseDefaults(t *testing.T) {
	var b Kind = Base{}
	_, err := b.DoCreate(nil, nil, driver.Params{}, nil, nil) //nolint:staticcheck // Base ignores all args
	require.Error(t, err)
	assert.Equal(t, clustererr.KindValidation, clustererr.KindOf(err))

	ok, err := b.DoCheck(nil, nil, driver.Params{}, nil) //nolint:staticcheck
	require.NoError(t, err)
	assert.True(t, ok)
}
