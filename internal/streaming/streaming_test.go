package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogdedup/internal/chunker"
	"cogdedup/internal/codec"
	"cogdedup/internal/integrity"
	"cogdedup/internal/predictor"
	"cogdedup/internal/store"
)

func newTestCodec(t *testing.T) *codec.Codec {
	t.Helper()
	s, err := store.NewMemory(5, 10000, 30*24*3600, 1)
	require.NoError(t, err)
	return codec.New(chunker.New(), s, predictor.New(s, 256, 5, 64), integrity.NewVerifier(integrity.DefaultSecurityPolicy()), 10, nil)
}

func TestStreamFeedInChunksMatchesWholeFeed(t *testing.T) {
	payload := []byte("[TOOL_CALL] web_search query='go concurrency patterns'\n" +
		"[TOOL_RESULT] found 12 articles on goroutines and channels\n" +
		"[THINKING] summarizing the key points about select statements\n")

	c1 := newTestCodec(t)
	whole := New(c1, "session-whole")
	_, err := whole.Feed(payload)
	require.NoError(t, err)
	blobWhole, _, err := whole.Finish()
	require.NoError(t, err)

	c2 := newTestCodec(t)
	pieces := New(c2, "session-pieces")
	for off := 0; off < len(payload); off += 10 {
		end := off + 10
		if end > len(payload) {
			end = len(payload)
		}
		_, err := pieces.Feed(payload[off:end])
		require.NoError(t, err)
	}
	blobPieces, _, err := pieces.Finish()
	require.NoError(t, err)
	assert.Equal(t, blobWhole, blobPieces)

	decoded, err := c1.Decode(blobWhole)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestStreamFeedByteAtATimeDecodesCorrectly(t *testing.T) {
	payload := []byte("a long repeated streaming payload. a long repeated streaming payload. a long repeated streaming payload.")
	c := newTestCodec(t)
	s := New(c, "")

	for _, b := range payload {
		_, err := s.Feed([]byte{b})
		require.NoError(t, err)
	}
	blob, stats, err := s.Finish()
	require.NoError(t, err)
	assert.Greater(t, stats.Chunks, 0)

	decoded, err := c.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestStreamMisuseAfterFinish(t *testing.T) {
	c := newTestCodec(t)
	s := New(c, "")
	_, _, err := s.Finish()
	require.NoError(t, err)

	_, err = s.Feed([]byte("x"))
	assert.Error(t, err)

	_, _, err = s.Finish()
	assert.Error(t, err)
}

func TestCurrentRatioDefaultsToOneBeforeAnyFeed(t *testing.T) {
	c := newTestCodec(t)
	s := New(c, "")
	assert.Equal(t, 1.0, s.CurrentRatio())
}

// TestStreamEqualsBatchEncodeByteForByte exercises spec scenario S3 and
// property §8.4: streaming and batch encoding of the same bytes, each
// against a fresh store in the same configuration, must agree
// byte-for-byte, not just decode to the same payload.
func TestStreamEqualsBatchEncodeByteForByte(t *testing.T) {
	payload := []byte("[TOOL_CALL] search\n[TOOL_RESULT] ok\n")
	for i := 0; i < 99; i++ {
		payload = append(payload, []byte("[TOOL_CALL] search\n[TOOL_RESULT] ok\n")...)
	}

	streamCodec := newTestCodec(t)
	stream := New(streamCodec, "c-stream")
	for off := 0; off < len(payload); off += 7 {
		end := off + 7
		if end > len(payload) {
			end = len(payload)
		}
		_, err := stream.Feed(payload[off:end])
		require.NoError(t, err)
	}
	streamBlob, _, err := stream.Finish()
	require.NoError(t, err)

	batchCodec := newTestCodec(t)
	batchBlob, _, err := batchCodec.Encode(payload, "c-batch")
	require.NoError(t, err)

	assert.Equal(t, batchBlob, streamBlob)

	decoded, err := streamCodec.Decode(streamBlob)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}
