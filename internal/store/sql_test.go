package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQL(t *testing.T) *SQL {
	t.Helper()
	s, err := OpenSQL(t.TempDir(), 5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreDedupesAndPersistsRefCount(t *testing.T) {
	s := newTestSQL(t)

	e1, err := s.Store([]byte("persisted payload for the sqlite-backed store"))
	require.NoError(t, err)
	e2, err := s.Store([]byte("persisted payload for the sqlite-backed store"))
	require.NoError(t, err)

	assert.Equal(t, e1.ChunkID, e2.ChunkID)
	assert.Equal(t, uint64(2), e2.RefCount)
}

func TestSQLGetRoundTripsData(t *testing.T) {
	s := newTestSQL(t)
	payload := []byte("round trip payload through sqlite chunk rows")
	e, err := s.Store(payload)
	require.NoError(t, err)

	got, ok := s.Get(e.ChunkID)
	require.True(t, ok)
	assert.Equal(t, payload, got.Data)
}

func TestSQLStructuralSimilarity(t *testing.T) {
	s := newTestSQL(t)
	s.RegisterDataChunks("a", map[uint64]struct{}{1: {}, 2: {}})
	s.RegisterDataChunks("b", map[uint64]struct{}{2: {}, 3: {}})

	assert.InDelta(t, 1.0/3.0, s.StructuralSimilarity("a", "b"), 1e-9)
	assert.Equal(t, 0.0, s.StructuralSimilarity("a", "missing"))
}

func TestSQLCooccurrenceAndPrediction(t *testing.T) {
	s := newTestSQL(t)
	e, err := s.Store([]byte("chunk content used as a cooccurrence trigger for sql test"))
	require.NoError(t, err)

	other, err := s.Store([]byte("a second distinct chunk content for cooccurrence testing"))
	require.NoError(t, err)

	s.RecordCooccurrence([]uint64{e.ChunkID, other.ChunkID})
	s.RecordCooccurrence([]uint64{e.ChunkID, other.ChunkID})

	predicted := s.GetPredictedChunks(e.ChunkID, 5)
	require.Len(t, predicted, 1)
	assert.Equal(t, other.ChunkID, predicted[0].ChunkID)
}
