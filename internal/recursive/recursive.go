// Package recursive runs the engine against its own bookkeeping data:
// memory batches, reasoning-bank entries, and audit-log events are
// JSONL-serialized and pushed through the same codec used for arbitrary
// agent text, so the engine's compression ratio improves on its own
// growing corpus of internal structures (spec-adjacent; grounded on
// original_source's recursive.py, "RecursiveCompressor").
package recursive

import (
	"encoding/json"
	"strings"
	"sync"

	"cogdedup/internal/codec"
)

// Result mirrors recursive.py's CompressionResult dataclass.
type Result struct {
	Blob           []byte
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	SavingsPct     float64
	ItemsCount     int
	Stats          codec.Stats
}

// Compressor applies a Codec to JSON- or plain-text-serialized
// collections of records, under a fixed data_id prefix so their chunks
// are trackable via StructuralSimilarity like any other encoded data.
type Compressor struct {
	mu sync.Mutex

	codec  *codec.Codec
	prefix string

	totalOriginal   int64
	totalCompressed int64
	batches         int
}

// New builds a Compressor sharing c with the rest of the engine, so
// internal-bookkeeping chunks and agent-text chunks can dedup against
// each other.
func New(c *codec.Codec, dataIDPrefix string) *Compressor {
	if dataIDPrefix == "" {
		dataIDPrefix = "engine-internal"
	}
	return &Compressor{codec: c, prefix: dataIDPrefix}
}

// CompressMemories JSON-serializes each memory (one compact object per
// line, in JSONL form) and encodes the concatenated batch.
func (c *Compressor) CompressMemories(memories []map[string]interface{}, batchID string) (Result, error) {
	lines := make([]string, len(memories))
	for i, m := range memories {
		// encoding/json sorts map keys when marshaling, matching
		// original_source's sort_keys=True with no extra work.
		b, err := json.Marshal(m)
		if err != nil {
			return Result{}, err
		}
		lines[i] = string(b)
	}
	raw := []byte(strings.Join(lines, "\n"))

	dataID := ""
	if batchID != "" {
		dataID = c.prefix + ":" + batchID
	}
	return c.encode(raw, dataID, len(memories))
}

// DecompressMemories reverses CompressMemories.
func (c *Compressor) DecompressMemories(blob []byte) ([]map[string]interface{}, error) {
	raw, err := c.codec.Decode(blob)
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// CompressReasoningBank encodes plain-text reasoning entries, delimited
// the way original_source's reasoning-bank compressor does ("\n---\n").
func (c *Compressor) CompressReasoningBank(entries []string, batchID string) (Result, error) {
	raw := []byte(strings.Join(entries, "\n---\n"))
	dataID := ""
	if batchID != "" {
		dataID = c.prefix + ":reasoning:" + batchID
	}
	return c.encode(raw, dataID, len(entries))
}

// DecompressReasoningBank reverses CompressReasoningBank.
func (c *Compressor) DecompressReasoningBank(blob []byte) ([]string, error) {
	raw, err := c.codec.Decode(blob)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(raw), "\n---\n"), nil
}

// CompressAuditLog is CompressMemories under an "audit:" batch
// namespace, matching original_source's delegation.
func (c *Compressor) CompressAuditLog(events []map[string]interface{}, batchID string) (Result, error) {
	return c.CompressMemories(events, "audit:"+batchID)
}

// DecompressAuditLog reverses CompressAuditLog.
func (c *Compressor) DecompressAuditLog(blob []byte) ([]map[string]interface{}, error) {
	return c.DecompressMemories(blob)
}

func (c *Compressor) encode(raw []byte, dataID string, itemsCount int) (Result, error) {
	blob, stats, err := c.codec.Encode(raw, dataID)
	if err != nil {
		return Result{}, err
	}

	original := len(raw)
	compressed := len(blob)
	ratio := float64(original) / float64(max1(compressed))
	savings := (float64(original-compressed) / float64(max1(original))) * 100.0

	c.mu.Lock()
	c.totalOriginal += int64(original)
	c.totalCompressed += int64(compressed)
	c.batches++
	c.mu.Unlock()

	return Result{
		Blob:           blob,
		OriginalSize:   original,
		CompressedSize: compressed,
		Ratio:          ratio,
		SavingsPct:     savings,
		ItemsCount:     itemsCount,
		Stats:          stats,
	}, nil
}

// Stats reports cumulative figures across every batch compressed so far.
type Stats struct {
	BatchesCompressed    int
	TotalOriginalBytes   int64
	TotalCompressedBytes int64
	OverallRatio         float64
	OverallSavingsPct    float64
}

func (c *Compressor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		BatchesCompressed:    c.batches,
		TotalOriginalBytes:   c.totalOriginal,
		TotalCompressedBytes: c.totalCompressed,
		OverallRatio:         float64(c.totalOriginal) / float64(max1i64(c.totalCompressed)),
		OverallSavingsPct:    (float64(c.totalOriginal-c.totalCompressed) / float64(max1i64(c.totalOriginal))) * 100.0,
	}
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func max1i64(v int64) int64 {
	if v < 1 {
		return 1
	}
	return v
}
