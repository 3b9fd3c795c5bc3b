// Package codec implements the UCOG wire format: four-way chunk
// encoding (REF/DELTA/FULL/PRED_DELTA) over a content-defined chunk
// stream, picking the smallest representation per chunk (spec §6).
//
// Grounded on the teacher's storage/local.Storage use of
// klauspost/compress/zstd for compression (storage/local/storage.go),
// generalized here to zstd's dictionary-compression API for DELTA and
// PRED_DELTA tokens — a concern the teacher doesn't need (it only ever
// compresses whole chunks) but the rest of the zstd API surface in the
// example pack supports directly.
package codec

import (
	"bytes"
	"encoding/binary"

	"cogdedup/internal/apperrors"
	"cogdedup/internal/audit"
	"cogdedup/internal/chunk"
	"cogdedup/internal/chunker"
	"cogdedup/internal/hasher"
	"cogdedup/internal/integrity"
	"cogdedup/internal/predictor"
	"cogdedup/internal/store"
)

const (
	magic   = "UCOG"
	version = 2

	tokenREF       byte = 0x00
	tokenDELTA     byte = 0x01
	tokenFULL      byte = 0x02
	tokenPREDDELTA byte = 0x03
)

// Stats counts how many chunks of each wire token were emitted by one
// Encode call, plus the total chunk count (spec §6).
type Stats struct {
	Ref       int
	Delta     int
	Full      int
	PredDelta int
	Chunks    int
}

// Codec bundles the chunker, store, predictor, and integrity verifier
// an Encode/Decode pair needs. A zero predictor.Predictor (nil) is
// valid — PRED_DELTA is simply never attempted.
type Codec struct {
	Chunker   *chunker.Chunker
	Store     store.Store
	Predictor *predictor.Predictor
	Verifier  *integrity.Verifier
	ZstdLevel int
	Hook      audit.Hook
}

// New builds a Codec with the given collaborators. predictor and hook
// may be nil.
func New(c *chunker.Chunker, s store.Store, p *predictor.Predictor, v *integrity.Verifier, zstdLevel int, hook audit.Hook) *Codec {
	return &Codec{Chunker: c, Store: s, Predictor: p, Verifier: v, ZstdLevel: zstdLevel, Hook: hook}
}

// Encode splits data into content-defined chunks and emits a UCOG blob,
// storing any newly-seen chunk in the backing Store and, if dataID is
// non-empty, registering the data→chunks mapping for later structural
// similarity queries (spec §6).
func (c *Codec) Encode(data []byte, dataID string) ([]byte, Stats, error) {
	chunks := c.Chunker.Split(data)
	if len(chunks) == 0 && len(data) > 0 {
		chunks = [][]byte{data}
	}

	out := new(bytes.Buffer)
	out.WriteString(magic)
	out.WriteByte(version)
	writeUvarint(out, uint64(len(chunks)))

	stats := Stats{Chunks: len(chunks)}
	var idsInBatch []uint64

	for _, ch := range chunks {
		token, kind, chunkID, err := c.EncodeChunkToken(ch, idsInBatch)
		if err != nil {
			return nil, stats, err
		}
		out.Write(token)
		tallyKind(&stats, kind)
		idsInBatch = append(idsInBatch, chunkID)
	}

	if c.Predictor != nil && len(idsInBatch) >= 2 {
		c.Predictor.UpdateAfterEncode(idsInBatch)
	}
	if dataID != "" {
		set := make(map[uint64]struct{}, len(idsInBatch))
		for _, id := range idsInBatch {
			set[id] = struct{}{}
		}
		c.Store.RegisterDataChunks(dataID, set)
	}

	audit.Emit(c.Hook, audit.KindBatchEncode, dataID, map[string]interface{}{
		"chunks": stats.Chunks, "ref": stats.Ref, "delta": stats.Delta,
		"full": stats.Full, "pred_delta": stats.PredDelta,
	})

	return out.Bytes(), stats, nil
}

// EncodeChunkToken encodes a single chunk against the codec's store,
// trying exact match first and otherwise the smallest of FULL/DELTA/
// PRED_DELTA, storing the chunk if it was newly seen. idsInBatch is the
// ordered list of chunk ids already emitted earlier in the same
// data_id's encode (batch or streaming) — needed for PRED_DELTA's
// trigger lookup. Exported for internal/streaming, which emits tokens
// one at a time as boundaries are detected rather than all at once.
func (c *Codec) EncodeChunkToken(ch []byte, idsInBatch []uint64) (token []byte, kind byte, chunkID uint64, err error) {
	sha := hasher.SHA256(ch)
	simhash := hasher.SimHash64(ch)

	if exact, ok := c.Store.LookupExact(chunk.SHA(sha)); ok {
		t := buildToken(tokenREF, func(buf *bytes.Buffer) { writeUvarint(buf, exact.ChunkID) })
		return t, tokenREF, exact.ChunkID, nil
	}

	bestToken, bestKind, err := c.bestEncoding(ch, simhash, idsInBatch)
	if err != nil {
		return nil, 0, 0, err
	}

	entry, err := c.Store.Store(ch)
	if err != nil {
		return nil, 0, 0, err
	}
	return bestToken, bestKind, entry.ChunkID, nil
}

// tallyKind increments the Stats field matching a token kind returned by
// EncodeChunkToken.
func tallyKind(stats *Stats, kind byte) {
	switch kind {
	case tokenREF:
		stats.Ref++
	case tokenDELTA:
		stats.Delta++
	case tokenFULL:
		stats.Full++
	case tokenPREDDELTA:
		stats.PredDelta++
	}
}

// bestEncoding computes FULL, DELTA (if a similar chunk exists), and
// PRED_DELTA (if a predictor and a trigger id are available) tokens for
// ch and returns the smallest. A similar chunk whose ref_count exceeds
// the verifier's MaxRefCountForSimilarity is not used as a DELTA base.
func (c *Codec) bestEncoding(ch []byte, simhash uint64, idsInBatch []uint64) ([]byte, byte, error) {
	fullBytes, err := zstdCompress(ch, c.ZstdLevel)
	if err != nil {
		return nil, 0, apperrors.DecompressionFailureError{Op: "compress_full", Err: err}
	}
	best := buildToken(tokenFULL, func(buf *bytes.Buffer) {
		writeUvarint(buf, uint64(len(fullBytes)))
		buf.Write(fullBytes)
	})
	bestKind := tokenFULL

	if similar, ok := c.Store.LookupSimilar(simhash); ok && (c.Verifier == nil || c.Verifier.CheckRefCount(similar.RefCount)) {
		deltaBytes, err := zstdCompressWithDict(ch, similar.Data, c.ZstdLevel)
		if err == nil {
			candidate := buildToken(tokenDELTA, func(buf *bytes.Buffer) {
				writeUvarint(buf, similar.ChunkID)
				writeUvarint(buf, uint64(len(deltaBytes)))
				buf.Write(deltaBytes)
			})
			if len(candidate) < len(best) {
				best, bestKind = candidate, tokenDELTA
			}
		}
	}

	if c.Predictor != nil && len(idsInBatch) > 0 {
		lastID := idsInBatch[len(idsInBatch)-1]
		if dict, dictIDs, ok := c.Predictor.GetDictionaryAndIDs(lastID); ok {
			predBytes, err := zstdCompressWithDict(ch, dict, c.ZstdLevel)
			if err == nil {
				candidate := buildToken(tokenPREDDELTA, func(buf *bytes.Buffer) {
					writeUvarint(buf, uint64(len(dictIDs)))
					for _, id := range dictIDs {
						writeUvarint(buf, id)
					}
					writeUvarint(buf, uint64(len(predBytes)))
					buf.Write(predBytes)
				})
				if len(candidate) < len(best) {
					best, bestKind = candidate, tokenPREDDELTA
				}
			}
		}
	}

	return best, bestKind, nil
}

func buildToken(tag byte, body func(*bytes.Buffer)) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(tag)
	body(buf)
	return buf.Bytes()
}

// Decode reconstructs the original byte stream from a UCOG blob. It
// requires the same Store used at encode time.
func (c *Codec) Decode(blob []byte) ([]byte, error) {
	if len(blob) < 5 || string(blob[:4]) != magic {
		got := blob
		if len(got) > 4 {
			got = got[:4]
		}
		return nil, apperrors.InvalidMagicError{Got: got}
	}
	off := 4
	ver := blob[off]
	off++
	if ver != 1 && ver != 2 {
		return nil, apperrors.UnsupportedVersionError{Version: ver}
	}

	nChunks, off, err := readUvarint(blob, off)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for i := uint64(0); i < nChunks; i++ {
		if off >= len(blob) {
			return nil, apperrors.TruncatedInputError{Offset: off, Need: 1, Have: len(blob) - off}
		}
		tag := blob[off]
		off++

		switch tag {
		case tokenREF:
			var chunkID uint64
			chunkID, off, err = readUvarint(blob, off)
			if err != nil {
				return nil, err
			}
			entry, ok := c.Store.Get(chunkID)
			if !ok {
				return nil, apperrors.UnknownChunkError{ChunkID: chunkID}
			}
			out.Write(entry.Data)

		case tokenDELTA:
			var refID uint64
			refID, off, err = readUvarint(blob, off)
			if err != nil {
				return nil, err
			}
			var deltaLen uint64
			deltaLen, off, err = readUvarint(blob, off)
			if err != nil {
				return nil, err
			}
			if off+int(deltaLen) > len(blob) {
				return nil, apperrors.TruncatedInputError{Offset: off, Need: int(deltaLen), Have: len(blob) - off}
			}
			deltaBytes := blob[off : off+int(deltaLen)]
			off += int(deltaLen)

			refEntry, ok := c.Store.Get(refID)
			if !ok {
				return nil, apperrors.UnknownChunkError{ChunkID: refID}
			}
			reconstructed, err := zstdDecompressWithDict(deltaBytes, refEntry.Data)
			if err != nil {
				return nil, apperrors.DecompressionFailureError{Op: "decompress_delta", Err: err}
			}
			if c.Verifier != nil && c.Verifier.Policy().VerifyDeltas {
				if !c.Verifier.CheckDeltaExpansion(len(deltaBytes), len(reconstructed)) {
					audit.Emit(c.Hook, audit.KindExpansionViolation, "", map[string]interface{}{"src_len": len(deltaBytes), "result_len": len(reconstructed)})
					return nil, apperrors.ExpansionLimitExceededError{SrcLen: len(deltaBytes), ResultLen: len(reconstructed), MaxRatio: c.Verifier.Policy().MaxDeltaExpansion}
				}
			}
			out.Write(reconstructed)

		case tokenFULL:
			var dataLen uint64
			dataLen, off, err = readUvarint(blob, off)
			if err != nil {
				return nil, err
			}
			if off+int(dataLen) > len(blob) {
				return nil, apperrors.TruncatedInputError{Offset: off, Need: int(dataLen), Have: len(blob) - off}
			}
			compressed := blob[off : off+int(dataLen)]
			off += int(dataLen)
			decompressed, err := zstdDecompress(compressed)
			if err != nil {
				return nil, apperrors.DecompressionFailureError{Op: "decompress_full", Err: err}
			}
			out.Write(decompressed)

		case tokenPREDDELTA:
			var nDictIDs uint64
			nDictIDs, off, err = readUvarint(blob, off)
			if err != nil {
				return nil, err
			}
			dictIDs := make([]uint64, nDictIDs)
			for j := range dictIDs {
				dictIDs[j], off, err = readUvarint(blob, off)
				if err != nil {
					return nil, err
				}
			}
			var deltaLen uint64
			deltaLen, off, err = readUvarint(blob, off)
			if err != nil {
				return nil, err
			}
			if off+int(deltaLen) > len(blob) {
				return nil, apperrors.TruncatedInputError{Offset: off, Need: int(deltaLen), Have: len(blob) - off}
			}
			deltaBytes := blob[off : off+int(deltaLen)]
			off += int(deltaLen)

			var dictContent []byte
			for _, did := range dictIDs {
				e, ok := c.Store.Get(did)
				if !ok {
					return nil, apperrors.UnknownChunkError{ChunkID: did}
				}
				dictContent = append(dictContent, e.Data...)
			}
			if len(dictContent) == 0 {
				return nil, apperrors.MalformedTokenError{Offset: off, Reason: "empty PRED_DELTA dictionary"}
			}
			reconstructed, err := zstdDecompressWithDict(deltaBytes, dictContent)
			if err != nil {
				return nil, apperrors.DecompressionFailureError{Op: "decompress_pred_delta", Err: err}
			}
			out.Write(reconstructed)

		default:
			return nil, apperrors.MalformedTokenError{Offset: off - 1, Reason: "unknown chunk type tag"}
		}
	}

	return out.Bytes(), nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(blob []byte, off int) (uint64, int, error) {
	v, n := binary.Uvarint(blob[off:])
	if n <= 0 {
		return 0, off, apperrors.TruncatedInputError{Offset: off, Need: 1, Have: len(blob) - off}
	}
	return v, off + n, nil
}
