package election

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// freePort grabs an ephemeral TCP port and releases it immediately so
// raft's transport can bind it; good enough for a single-process test.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestElector(t *testing.T) *Elector {
	t.Helper()
	port := freePort(t)
	e, err := New(Config{
		NodeID:   "node-1",
		BindAddr: fmt.Sprintf("127.0.0.1:%d", port),
		DataDir:  t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func TestBootstrapSingleNodeBecomesLeader(t *testing.T) {
	e := newTestElector(t)
	require.NoError(t, e.Bootstrap())

	require.Eventually(t, e.IsLeader, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, string(e.localAddr), e.LeaderAddr())
}

func TestLeaderChNotifiesOnElection(t *testing.T) {
	e := newTestElector(t)
	require.NoError(t, e.Bootstrap())

	select {
	case leader := <-e.LeaderCh():
		require.True(t, leader)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for leadership notification")
	}
}

func TestAddVoterRejectsNonLeader(t *testing.T) {
	port := freePort(t)
	e, err := New(Config{
		NodeID:   "node-2",
		BindAddr: fmt.Sprintf("127.0.0.1:%d", port),
		DataDir:  t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })

	// Never bootstrapped or joined: this instance has no configuration
	// at all, so it can never become leader.
	require.False(t, e.IsLeader())
	err = e.AddVoter("node-3", "127.0.0.1:1")
	require.Error(t, err)
}

func TestShutdownIsClean(t *testing.T) {
	e := newTestElector(t)
	require.NoError(t, e.Bootstrap())
	require.Eventually(t, e.IsLeader, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, e.Shutdown())
}
