package federation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogdedup/internal/chunk"
	"cogdedup/internal/hasher"
	"cogdedup/internal/store"
)

func newLocal() (store.Store, error) {
	return store.NewMemory(5, 10000, 30*24*3600, 1)
}

func TestPromotionToSharedAtThreshold(t *testing.T) {
	shared, err := store.NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)

	agentA := New("agent-a", mustLocal(t), shared, 3)

	payload := []byte("a common tool-call header format shared across agents")
	for i := 0; i < 3; i++ {
		_, err := agentA.Store(payload)
		require.NoError(t, err)
	}

	stats := agentA.AgentStats()
	assert.Equal(t, 1, stats.PromotedChunks)
	assert.Equal(t, 1, stats.IDRemaps)
}

func TestLookupExactPrefersShared(t *testing.T) {
	shared, err := store.NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	agentA := New("agent-a", mustLocal(t), shared, 2)

	payload := []byte("content present only in the shared tier for this test")
	_, err = shared.Store(payload)
	require.NoError(t, err)

	sha := chunk.SHA(hasher.SHA256(payload))
	found, ok := agentA.LookupExact(sha)
	require.True(t, ok)
	assert.Equal(t, payload, found.Data)
}

func TestManagerCreatesOneStorePerAgent(t *testing.T) {
	shared, err := store.NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	mgr := NewManager(shared, 5, newLocal)

	a1, err := mgr.CreateAgentStore("agent-a")
	require.NoError(t, err)
	a2, err := mgr.CreateAgentStore("agent-a")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	assert.ElementsMatch(t, []string{"agent-a"}, mgr.AgentIDs())
}

func mustLocal(t *testing.T) store.Store {
	t.Helper()
	s, err := newLocal()
	require.NoError(t, err)
	return s
}
