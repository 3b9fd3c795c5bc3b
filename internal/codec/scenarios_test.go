package codec

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogdedup/internal/chunker"
	"cogdedup/internal/integrity"
	"cogdedup/internal/predictor"
	"cogdedup/internal/store"
)

// TestScenarioS2DeltaOnNearDuplicate exercises spec scenario S2: two
// payloads that differ only in a date and a port number should dedup
// through REF/DELTA tokens, not fall back to FULL for everything.
func TestScenarioS2DeltaOnNearDuplicate(t *testing.T) {
	c, _ := newTestCodec(t)

	var a, b []byte
	for i := 0; i < 300; i++ {
		a = append(a, []byte("Log entry: 2025-01-01 INFO Starting service on port 8080\n")...)
		b = append(b, []byte("Log entry: 2025-01-02 INFO Starting service on port 8081\n")...)
	}

	_, _, err := c.Encode(a, "a")
	require.NoError(t, err)

	blobB, statsB, err := c.Encode(b, "b")
	require.NoError(t, err)
	assert.Greater(t, statsB.Ref+statsB.Delta, 0,
		"near-duplicate payload should dedup via REF or DELTA against the first encode")

	decoded, err := c.Decode(blobB)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
}

// TestScenarioS4PredDeltaSurvivesMutation exercises spec scenario S4:
// a PRED_DELTA token's embedded source-chunk ids must let decode
// reconstruct the original bytes even after later encodes mutate
// co-occurrence data and the predictor's dictionary cache is cleared.
func TestScenarioS4PredDeltaSurvivesMutation(t *testing.T) {
	s, err := store.NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	pred := predictor.New(s, 256, 5, 64)
	c := New(chunker.New(), s, pred, integrity.NewVerifier(integrity.DefaultSecurityPolicy()), 10, nil)

	for i := 0; i < 10; i++ {
		var payload []byte
		for j := 0; j < 500; j++ {
			payload = append(payload, []byte(fmt.Sprintf("Session %d: common pattern across sessions ", i))...)
		}
		_, _, err := c.Encode(payload, fmt.Sprintf("warm-%d", i))
		require.NoError(t, err)
	}

	var final []byte
	for j := 0; j < 500; j++ {
		final = append(final, []byte("Session final: common pattern across sessions ")...)
	}
	blobF, _, err := c.Encode(final, "final")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		var payload []byte
		for j := 0; j < 50; j++ {
			payload = append(payload, []byte(fmt.Sprintf("unrelated noise batch %d entry %d ", i, j))...)
		}
		_, _, err := c.Encode(payload, fmt.Sprintf("unrelated-%d", i))
		require.NoError(t, err)
	}

	pred.ClearCache()

	decoded, err := c.Decode(blobF)
	require.NoError(t, err)
	assert.Equal(t, final, decoded)
}

// TestScenarioS6ColdRoundTrip exercises spec scenario S6: decoding a
// blob whose chunks have since been archived to the cold tier must
// still succeed, even though those chunks are no longer LSH candidates.
func TestScenarioS6ColdRoundTrip(t *testing.T) {
	s, err := store.NewMemory(1000, 10000, 0, 1) // coldAgeSeconds=0, coldMaxRefCount=1: single-use chunks archive immediately
	require.NoError(t, err)
	c := New(chunker.New(), s, predictor.New(s, 256, 5, 64), integrity.NewVerifier(integrity.DefaultSecurityPolicy()), 10, nil)

	var firstBlob []byte
	for i := 0; i < 20; i++ {
		payload := []byte(fmt.Sprintf("single use payload number %d, unique content padded out to cross a chunk boundary reliably across the whole test run.", i))
		blob, _, err := c.Encode(payload, fmt.Sprintf("doc-%d", i))
		require.NoError(t, err)
		if i == 0 {
			firstBlob = blob
		}
	}

	archived, err := s.Maintain(time.Now())
	require.NoError(t, err)
	assert.Greater(t, archived, 0)

	decoded, err := c.Decode(firstBlob)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "single use payload number 0")
}
