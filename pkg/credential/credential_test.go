package credential

import (
	"context"
	"testing"

	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveCreatesAndCaches(t *testing.T) {
	repo := newTestStore(t)
	fake := driver.NewFake()
	r := New(repo, fake)

	c1, err := r.Resolve(context.Background(), "alice", "proj-a")
	require.NoError(t, err)
	assert.NotEmpty(t, c1.TrustID)

	c2, err := r.Resolve(context.Background(), "alice", "proj-a")
	require.NoError(t, err)
	assert.Equal(t, c1.TrustID, c2.TrustID)
}

func TestParamsThreadsTrustID(t *testing.T) {
	repo := newTestStore(t)
	fake := driver.NewFake()
	r := New(repo, fake)

	params, err := r.Params(context.Background(), "bob", "proj-b", "us-east")
	require.NoError(t, err)
	assert.NotEmpty(t, params.TrustID)
	assert.Equal(t, "us-east", params.Region)
}
