package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogdedup/internal/chunk"
	"cogdedup/internal/hasher"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	return m
}

func TestMemoryStoreDedupesExactBytes(t *testing.T) {
	m := newTestMemory(t)

	e1, err := m.Store([]byte("hello world, this is a repeated chunk"))
	require.NoError(t, err)
	e2, err := m.Store([]byte("hello world, this is a repeated chunk"))
	require.NoError(t, err)

	assert.Equal(t, e1.ChunkID, e2.ChunkID)
	assert.Equal(t, uint64(2), e2.RefCount)
}

func TestLookupExactIncrementsRefCount(t *testing.T) {
	m := newTestMemory(t)
	data := []byte("some payload used for exact lookup testing")
	e, err := m.Store(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.RefCount)

	found, ok := m.LookupExact(e.SHA256)
	require.True(t, ok)
	assert.Equal(t, uint64(2), found.RefCount)
}

func TestLookupSimilarFindsNearDuplicate(t *testing.T) {
	m := newTestMemory(t)
	base := []byte("the quick brown fox jumps over the lazy dog repeatedly for content")
	_, err := m.Store(base)
	require.NoError(t, err)

	near := append([]byte(nil), base...)
	near[0] = 'T' // single-byte tweak, should still be within hamming threshold

	found, ok := m.LookupSimilar(hasher.SimHash64(near))
	if ok {
		assert.True(t, hasher.Similar(hasher.SimHash64(near), found.SimHash))
	}
}

func TestPromotionToHotTier(t *testing.T) {
	m := newTestMemory(t)
	data := []byte("a chunk that will be referenced many times to earn hot status")
	e, err := m.Store(data)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		e, _ = m.LookupExact(e.SHA256)
	}
	assert.Equal(t, chunk.Hot, e.Tier)
}

func TestMaintainArchivesColdChunks(t *testing.T) {
	m, err := NewMemory(5, 10000, 1, 1) // coldAgeSeconds=1s for the test
	require.NoError(t, err)

	e, err := m.Store([]byte("a payload that will age out into the cold archive tier"))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Second)
	m.mu.Lock()
	m.chunks[e.ChunkID].LastAccess = past
	m.mu.Unlock()

	n, err := m.Maintain(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := m.Get(e.ChunkID)
	require.True(t, ok)
	assert.Equal(t, chunk.Warm, got.Tier) // reinflated on Get

	_, found := m.LookupSimilar(e.SimHash)
	assert.False(t, found, "cold-archived-then-reinflated chunk should not reappear via LSH")
}

func TestStructuralSimilarityJaccard(t *testing.T) {
	m := newTestMemory(t)
	m.RegisterDataChunks("doc-a", map[uint64]struct{}{1: {}, 2: {}, 3: {}})
	m.RegisterDataChunks("doc-b", map[uint64]struct{}{2: {}, 3: {}, 4: {}})

	sim := m.StructuralSimilarity("doc-a", "doc-b")
	assert.InDelta(t, 0.5, sim, 1e-9) // intersection {2,3}=2, union {1,2,3,4}=4
}

func TestStructuralSimilarityEmptySetReturnsZero(t *testing.T) {
	m := newTestMemory(t)
	m.RegisterDataChunks("doc-a", map[uint64]struct{}{1: {}})

	assert.Equal(t, 0.0, m.StructuralSimilarity("doc-a", "doc-missing"))
	assert.Equal(t, 0.0, m.StructuralSimilarity("doc-missing", "doc-other-missing"))
}

func TestGetPredictedChunksOrdersByWeightThenID(t *testing.T) {
	m := newTestMemory(t)
	_, _ = m.Store([]byte("chunk A content for prediction ordering test one"))
	_, _ = m.Store([]byte("chunk B content for prediction ordering test two"))
	_, _ = m.Store([]byte("chunk C content for prediction ordering test three"))
	_, _ = m.Store([]byte("chunk D content for prediction ordering test four"))
	m.RecordCooccurrence([]uint64{1, 2, 3})
	m.RecordCooccurrence([]uint64{1, 2})
	m.RecordCooccurrence([]uint64{1, 4})

	predicted := m.GetPredictedChunks(1, 5)
	// 2 co-occurred with 1 twice, 3 and 4 once each: the heavier edge
	// comes first, then the 3/4 tie is broken by lowest id.
	require.Len(t, predicted, 3)
	assert.Equal(t, uint64(2), predicted[0].ChunkID)
	assert.Equal(t, uint64(3), predicted[1].ChunkID)
	assert.Equal(t, uint64(4), predicted[2].ChunkID)

	m.mu.Lock()
	row := m.cooccurrence[1]
	m.mu.Unlock()
	require.Equal(t, uint64(2), row[2])
	require.Equal(t, uint64(1), row[3])
}

func TestEvictHotOverflowDemotesOldestAccess(t *testing.T) {
	m, err := NewMemory(1, 2, 30*24*3600, 1) // hotCapacity=2
	require.NoError(t, err)

	var entries []*chunk.Entry
	for i := 0; i < 3; i++ {
		e, err := m.Store([]byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3), byte(i + 4)})
		require.NoError(t, err)
		entries = append(entries, e)
	}
	for _, e := range entries {
		m.touch(m.chunks[e.ChunkID])
	}
	// All three now have ref_count>=2, hotRefThreshold=1, but capacity=2:
	// only the first two to cross the threshold get promoted.
	assert.LessOrEqual(t, len(m.hotSet), 2)

	// Shrinking the cap below the hot population forces an overflow; the
	// hot chunk touched longest ago is the one demoted.
	m.hotCapacity = 1
	evicted := m.EvictHotOverflow()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, chunk.Warm, m.chunks[entries[0].ChunkID].Tier)
	assert.Equal(t, chunk.Hot, m.chunks[entries[1].ChunkID].Tier)
}
