package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDetectsRepeatingMotif(t *testing.T) {
	tr := NewTracker(3, 10, 2)
	seq := []string{"search", "read_results", "think", "tool_call", "observe"}

	tr.ObserveBatch(seq)
	var last *Motif
	for _, ev := range seq {
		last = tr.Observe(ev)
	}
	require.NotNil(t, last)
	assert.GreaterOrEqual(t, last.Length(), 3)

	motifs := tr.DetectedMotifs(0)
	require.NotEmpty(t, motifs)
}

func TestDetectedMotifsSortedByOccurrencesTimesLength(t *testing.T) {
	tr := NewTracker(2, 5, 2)
	for i := 0; i < 4; i++ {
		tr.ObserveBatch([]string{"a", "b", "c"})
	}
	motifs := tr.DetectedMotifs(0)
	require.NotEmpty(t, motifs)
	for i := 1; i < len(motifs); i++ {
		wPrev := motifs[i-1].Occurrences * motifs[i-1].Length()
		wCur := motifs[i].Occurrences * motifs[i].Length()
		assert.GreaterOrEqual(t, wPrev, wCur)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tr := NewTracker(3, 10, 2)
	motif := []string{"search", "read_results", "think"}
	for i := 0; i < 3; i++ {
		tr.ObserveBatch(motif)
	}

	enc := NewEncoder(tr)
	events := append(append([]string{}, motif...), motif...)
	result := enc.Encode(events)
	assert.Greater(t, result.MotifsUsed, 0)
	assert.Less(t, result.CompressedTokens, result.OriginalEvents)

	decoded, err := enc.Decode(result)
	require.NoError(t, err)
	assert.Equal(t, events, decoded)
}

func TestEncodeWithNoMotifsEmitsAllLiterals(t *testing.T) {
	tr := NewTracker(3, 10, 2)
	enc := NewEncoder(tr)
	events := []string{"a", "b", "c"}
	result := enc.Encode(events)
	assert.Equal(t, 0, result.MotifsUsed)
	assert.Equal(t, len(events), result.CompressedTokens)
	assert.Equal(t, 0.0, result.SavingsPct)
}

func TestDecodeUnknownMotifIDErrors(t *testing.T) {
	tr := NewTracker(3, 10, 2)
	enc := NewEncoder(tr)
	bad := CompressionResult{Tokens: []Token{{Kind: TokenMotif, MotifID: 9999}}}
	_, err := enc.Decode(bad)
	assert.Error(t, err)
}

func TestStatsReportsTopMotif(t *testing.T) {
	tr := NewTracker(3, 10, 2)
	for i := 0; i < 3; i++ {
		tr.ObserveBatch([]string{"x", "y", "z"})
	}
	stats := tr.Stats()
	assert.Greater(t, stats.EventsObserved, 0)
	assert.Greater(t, stats.MotifsDetected, 0)
	assert.Greater(t, stats.TopMotifOccurrences, 0)
}
