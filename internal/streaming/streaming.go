// Package streaming implements an incremental UCOG encoder for live
// byte streams (e.g. an agent session's tool-call/thinking/result
// traffic): each chunk boundary is encoded the moment it is detected,
// rather than buffering the whole input for a single batch Encode call
// (spec §6, streaming encoder). Grounded on original_source's
// streaming.py, translated from its write-ahead-log-of-tokens design
// into a Go Stream type that accumulates tokens and asserts, as an
// invariant tested alongside the codec, that its output is byte-for-byte
// identical to a batch Encode of the same bytes.
package streaming

import (
	"bytes"
	"encoding/binary"

	"cogdedup/internal/apperrors"
	"cogdedup/internal/audit"
	"cogdedup/internal/chunker"
	"cogdedup/internal/codec"
)

const (
	magic   = "UCOG"
	version = 2
)

// Stream is an open-then-closed incremental encoder. Feed/FeedLine may
// be called any number of times before Finish; calling either after
// Finish, or calling Finish twice, raises StreamMisuseError.
type Stream struct {
	codec  *codec.Codec
	state  *chunker.State
	dataID string

	tokens   [][]byte
	chunkIDs []uint64
	stats    codec.Stats

	totalFed int64
	finished bool
}

// New opens a Stream against c, optionally tagging the eventual blob's
// chunks under dataID for later structural-similarity queries.
func New(c *codec.Codec, dataID string) *Stream {
	return &Stream{
		codec:  c,
		state:  c.Chunker.NewState(),
		dataID: dataID,
	}
}

// Feed appends data to the stream, encoding and appending any chunk
// whose boundary is crossed immediately. Returns the number of chunks
// emitted by the stream so far.
func (s *Stream) Feed(data []byte) (int, error) {
	if s.finished {
		return 0, apperrors.StreamMisuseError{Operation: "feed"}
	}
	for _, b := range data {
		s.totalFed++
		if s.state.Feed(b) {
			if err := s.emit(s.state.Take()); err != nil {
				return len(s.tokens), err
			}
		}
	}
	return len(s.tokens), nil
}

// FeedLine is a convenience wrapper feeding line plus a trailing newline.
func (s *Stream) FeedLine(line string) (int, error) {
	return s.Feed(append([]byte(line), '\n'))
}

func (s *Stream) emit(ch []byte) error {
	token, kind, chunkID, err := s.codec.EncodeChunkToken(ch, s.chunkIDs)
	if err != nil {
		return err
	}
	s.tokens = append(s.tokens, token)
	s.chunkIDs = append(s.chunkIDs, chunkID)
	s.stats.Chunks++
	tallyInto(&s.stats, kind)
	return nil
}

// tallyInto mirrors codec's unexported tallyKind; duplicated here since
// the tag constants are codec-internal and Stream only needs the four
// counters, not the tags themselves.
func tallyInto(stats *codec.Stats, kind byte) {
	switch kind {
	case 0x00:
		stats.Ref++
	case 0x01:
		stats.Delta++
	case 0x02:
		stats.Full++
	case 0x03:
		stats.PredDelta++
	}
}

// Finish flushes any trailing partial chunk, assembles the write-ahead
// token log into a complete UCOG blob, and runs the same post-encode
// bookkeeping (cooccurrence, data→chunks registration) as a batch
// Encode. The stream cannot be fed or finished again afterward.
func (s *Stream) Finish() ([]byte, codec.Stats, error) {
	if s.finished {
		return nil, s.stats, apperrors.StreamMisuseError{Operation: "finish"}
	}
	s.finished = true

	if remaining := s.state.Flush(); remaining != nil {
		if err := s.emit(remaining); err != nil {
			return nil, s.stats, err
		}
	}

	out := new(bytes.Buffer)
	out.WriteString(magic)
	out.WriteByte(version)
	writeUvarint(out, uint64(len(s.tokens)))
	for _, t := range s.tokens {
		out.Write(t)
	}

	if s.codec.Predictor != nil && len(s.chunkIDs) >= 2 {
		s.codec.Predictor.UpdateAfterEncode(s.chunkIDs)
	}
	if s.dataID != "" {
		set := make(map[uint64]struct{}, len(s.chunkIDs))
		for _, id := range s.chunkIDs {
			set[id] = struct{}{}
		}
		s.codec.Store.RegisterDataChunks(s.dataID, set)
	}

	audit.Emit(s.codec.Hook, audit.KindBatchEncode, s.dataID, map[string]interface{}{
		"chunks": s.stats.Chunks, "ref": s.stats.Ref, "delta": s.stats.Delta,
		"full": s.stats.Full, "pred_delta": s.stats.PredDelta,
	})

	return out.Bytes(), s.stats, nil
}

// ChunksEmitted reports how many chunks have been encoded so far.
func (s *Stream) ChunksEmitted() int { return len(s.tokens) }

// BytesFed reports the total number of bytes fed so far.
func (s *Stream) BytesFed() int64 { return s.totalFed }

// CurrentRatio reports the running compression ratio (bytes fed over
// encoded-so-far size, counting the header as 6 bytes, its size when
// fewer than 128 chunks have been emitted). It changes
// as more data arrives and is only meaningful as a live progress signal,
// not a final figure.
func (s *Stream) CurrentRatio() float64 {
	if s.totalFed == 0 {
		return 1.0
	}
	encoded := 6
	for _, t := range s.tokens {
		encoded += len(t)
	}
	return float64(s.totalFed) / float64(encoded)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}
