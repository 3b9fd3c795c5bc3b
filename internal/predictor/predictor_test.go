package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogdedup/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	m, err := store.NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	return m
}

func TestGetDictionaryAndIDsMissThenHit(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Store([]byte("trigger chunk content that is reasonably long for predictor tests"))
	require.NoError(t, err)
	b, err := s.Store([]byte("predicted companion chunk content also reasonably long for dict building"))
	require.NoError(t, err)

	s.RecordCooccurrence([]uint64{a.ChunkID, b.ChunkID})

	p := New(s, 256, 5, 64)
	dict, ids, ok := p.GetDictionaryAndIDs(a.ChunkID)
	require.True(t, ok)
	assert.Contains(t, ids, b.ChunkID)
	assert.NotEmpty(t, dict)

	// Second call should be served from the cache.
	dict2, ids2, ok2 := p.GetDictionaryAndIDs(a.ChunkID)
	require.True(t, ok2)
	assert.Equal(t, dict, dict2)
	assert.Equal(t, ids, ids2)
}

func TestGetDictionaryAndIDsBelowMinSizeReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Store([]byte("short trigger"))
	require.NoError(t, err)
	b, err := s.Store([]byte("tiny"))
	require.NoError(t, err)
	s.RecordCooccurrence([]uint64{a.ChunkID, b.ChunkID})

	p := New(s, 256, 5, 4096) // force below-threshold
	_, _, ok := p.GetDictionaryAndIDs(a.ChunkID)
	assert.False(t, ok)
}

func TestCacheEvictsLRUAtCapacity(t *testing.T) {
	s := newTestStore(t)
	p := New(s, 2, 5, 1)

	p.putLocked(1, []byte("one"), []uint64{1})
	p.putLocked(2, []byte("two"), []uint64{2})
	assert.Equal(t, 2, p.CacheSize())

	p.putLocked(3, []byte("three"), []uint64{3})
	assert.Equal(t, 2, p.CacheSize())

	_, _, ok := p.GetDictionaryAndIDs(1)
	// id 1 should have been evicted (oldest), and since the store has no
	// co-occurrence data for id 1 it returns false rather than rebuilding.
	assert.False(t, ok)
}

func TestUpdateAfterEncodeRecordsCooccurrence(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Store([]byte("first chunk content for update after encode test case"))
	require.NoError(t, err)
	b, err := s.Store([]byte("second chunk content for update after encode test case"))
	require.NoError(t, err)

	p := New(s, 256, 5, 64)
	p.UpdateAfterEncode([]uint64{a.ChunkID, b.ChunkID})

	predicted := s.GetPredictedChunks(a.ChunkID, 5)
	require.Len(t, predicted, 1)
	assert.Equal(t, b.ChunkID, predicted[0].ChunkID)
}
