// Package engine wires chunking, hashing, storage, the wire codec,
// prediction, anomaly detection, and the supplemented bookkeeping
// features (federation, recursive self-compression, temporal motifs)
// into one façade, the way the teacher's forge.Repository composes its
// storage/index/workspace/timeline managers behind a single entry
// point (forge/repository.go: Initialize constructs every collaborator
// and returns one Repository). Callers only ever touch an *Engine.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cogdedup/internal/anomaly"
	"cogdedup/internal/audit"
	"cogdedup/internal/chunker"
	"cogdedup/internal/codec"
	"cogdedup/internal/config"
	"cogdedup/internal/federation"
	"cogdedup/internal/integrity"
	"cogdedup/internal/logging"
	"cogdedup/internal/metrics"
	"cogdedup/internal/predictor"
	"cogdedup/internal/recursive"
	"cogdedup/internal/store"
	"cogdedup/internal/streaming"
	"cogdedup/internal/temporal"
)

// Engine is the top-level façade over a single store's worth of
// deduplicated content: one chunker, one store (in-memory or SQLite),
// one codec, and the supplementary trackers layered on top of it.
type Engine struct {
	root string
	cfg  config.EngineConfig

	chunker   *chunker.Chunker
	store     store.Store
	codec     *codec.Codec
	predictor *predictor.Predictor
	verifier  *integrity.Verifier
	anomalyD  *anomaly.Detector

	metrics *metrics.Collector
	logger  *logging.Logger
	hook    audit.Hook

	recursiveC *recursive.Compressor
	temporalT  *temporal.Tracker
	temporalE  *temporal.Encoder

	closer func() error
}

// Open creates (or reopens) a durable engine rooted at dir, backed by a
// SQLite-indexed store under <dir>/.cogdedup, matching the teacher's
// forge.Initialize's on-disk layout convention.
func Open(dir string, cfg config.EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ".cogdedup"), 0755); err != nil {
		return nil, fmt.Errorf("engine: creating root: %w", err)
	}

	sqlStore, err := store.OpenSQL(dir, cfg.HotRefCountThreshold, cfg.HotCapacity, cfg.ColdAgeSeconds, cfg.ColdMaxRefCount)
	if err != nil {
		return nil, fmt.Errorf("engine: opening store: %w", err)
	}

	e := buildEngine(filepath.Clean(dir), cfg, sqlStore)
	e.closer = sqlStore.Close
	return e, nil
}

// OpenInMemory creates an ephemeral engine backed entirely by
// in-process maps, suited to short-lived agent sessions, tests, or
// scratch workspaces that never need to survive a restart.
func OpenInMemory(cfg config.EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	memStore, err := store.NewMemory(cfg.HotRefCountThreshold, cfg.HotCapacity, cfg.ColdAgeSeconds, cfg.ColdMaxRefCount)
	if err != nil {
		return nil, fmt.Errorf("engine: opening store: %w", err)
	}
	return buildEngine("", cfg, memStore), nil
}

func buildEngine(root string, cfg config.EngineConfig, s store.Store) *Engine {
	logger := logging.WithPrefix("engine")
	mcol := metrics.New()

	ck := chunker.NewWithSizes(cfg.MinChunkSize, cfg.AvgChunkSize, cfg.MaxChunkSize)
	pred := predictor.New(s, cfg.PredictorCacheSize, cfg.PredictorTopK, cfg.PredictorMinDictBytes)
	verifier := integrity.NewVerifier(integrity.SecurityPolicy{
		MaxRefCountForSimilarity: uint64(cfg.MaxRefCountForSimilarity),
		VerifyDeltas:             cfg.VerifyDeltas,
		MaxDeltaExpansion:        cfg.MaxDeltaExpansion,
	})
	anomalyD := anomaly.New(cfg.AnomalyWindowSize,
		anomaly.WithZThresholds(cfg.AnomalyZLow, cfg.AnomalyZHigh),
		anomaly.WithMinStdDev(cfg.AnomalyMinStdDev))

	e := &Engine{
		root:      root,
		cfg:       cfg,
		chunker:   ck,
		store:     s,
		predictor: pred,
		verifier:  verifier,
		anomalyD:  anomalyD,
		metrics:   mcol,
		logger:    logger,
		temporalT: temporal.NewTracker(3, 10, 2),
	}
	e.temporalE = temporal.NewEncoder(e.temporalT)
	e.hook = audit.HookFunc(e.onAuditEvent)
	e.codec = codec.New(ck, s, pred, verifier, cfg.ZstdLevel, e.hook)
	e.recursiveC = recursive.New(e.codec, "engine-internal")
	return e
}

// onAuditEvent is the engine's own subscriber to its codec's audit
// hook: it counts every event by kind and logs the ones operators care
// about (spec §6). The anomaly check itself runs in Encode, which has
// the original/compressed sizes on hand; the codec's batch_encode event
// carries only token-kind tallies, not size.
func (e *Engine) onAuditEvent(kind audit.Kind, target string, detail map[string]interface{}) {
	e.metrics.IncrCounter("audit_events", map[string]string{"kind": string(kind)})

	switch kind {
	case audit.KindExpansionViolation:
		e.logger.Error("delta expansion limit exceeded", "target", target, "detail", detail)
	}
}

// Encode compresses data under the UCOG wire format, tracking it under
// dataID for later StructuralSimilarity queries.
func (e *Engine) Encode(data []byte, dataID string) ([]byte, codec.Stats, error) {
	blob, stats, err := e.codec.Encode(data, dataID)
	if err != nil {
		return nil, codec.Stats{}, err
	}
	if len(data) > 0 {
		ratio := float64(len(data)) / float64(max1(len(blob)))
		e.metrics.ObserveHistogram("compression_ratio", ratio, nil)
		e.metrics.SetGauge("last_compression_ratio", ratio, nil)

		if alert := e.anomalyD.Observe(ratio, dataID); alert != nil {
			e.metrics.IncrCounter("anomaly_alerts", map[string]string{"severity": string(alert.Severity)})
			e.logger.Warn("compression ratio anomaly", "target", dataID, "ratio", ratio,
				"zscore", alert.ZScore, "severity", alert.Severity)
			audit.Emit(e.hook, audit.KindAnomalyAlert, dataID, map[string]interface{}{
				"ratio": ratio, "zscore": alert.ZScore, "severity": string(alert.Severity),
			})
		}
	}
	e.metrics.AddCounter("chunks_encoded", int64(stats.Chunks), nil)
	return blob, stats, nil
}

// Decode reverses Encode.
func (e *Engine) Decode(blob []byte) ([]byte, error) {
	return e.codec.Decode(blob)
}

// NewStream opens an incremental encoder over the engine's codec,
// suitable for feeding a live agent event stream byte by byte.
func (e *Engine) NewStream(dataID string) *streaming.Stream {
	return streaming.New(e.codec, dataID)
}

// ObserveEvent feeds one event type into the temporal motif tracker,
// a read-only companion signal kept deliberately outside the UCOG wire
// format (spec §4: "the UCOG format is normative and closed").
func (e *Engine) ObserveEvent(eventType string) *temporal.Motif {
	return e.temporalT.Observe(eventType)
}

// CompressEventSequence replaces recognized temporal motifs in events
// with references, returning a standalone result never passed through
// the byte-oriented codec.
func (e *Engine) CompressEventSequence(events []string) temporal.CompressionResult {
	return e.temporalE.Encode(events)
}

// DecompressEventSequence reverses CompressEventSequence.
func (e *Engine) DecompressEventSequence(result temporal.CompressionResult) ([]string, error) {
	return e.temporalE.Decode(result)
}

// TemporalStats reports the motif tracker's current state.
func (e *Engine) TemporalStats() temporal.Stats {
	return e.temporalT.Stats()
}

// CompressMemories runs a batch of agent memory records through the
// engine's own codec, letting bookkeeping structures dedup against
// accumulated agent text (spec §4's recursive self-compression).
func (e *Engine) CompressMemories(memories []map[string]interface{}, batchID string) (recursive.Result, error) {
	return e.recursiveC.CompressMemories(memories, batchID)
}

// DecompressMemories reverses CompressMemories.
func (e *Engine) DecompressMemories(blob []byte) ([]map[string]interface{}, error) {
	return e.recursiveC.DecompressMemories(blob)
}

// CompressReasoningBank compresses a batch of reasoning-trace strings.
func (e *Engine) CompressReasoningBank(entries []string, batchID string) (recursive.Result, error) {
	return e.recursiveC.CompressReasoningBank(entries, batchID)
}

// DecompressReasoningBank reverses CompressReasoningBank.
func (e *Engine) DecompressReasoningBank(blob []byte) ([]string, error) {
	return e.recursiveC.DecompressReasoningBank(blob)
}

// NewFederationManager builds a federation.Manager that treats this
// engine's store as the shared tier, so per-agent federated stores can
// be layered on top without re-opening a second durable backend.
func (e *Engine) NewFederationManager(promoteThreshold uint64, newLocal func() (store.Store, error)) *federation.Manager {
	return federation.NewManager(e.store, promoteThreshold, newLocal)
}

// StructuralSimilarity reports the Jaccard similarity of two data_ids'
// registered chunk sets.
func (e *Engine) StructuralSimilarity(a, b string) float64 {
	return e.store.StructuralSimilarity(a, b)
}

// Maintain runs the store's cold-archival sweep and reports how many
// chunks were archived.
func (e *Engine) Maintain(now time.Time) (int, error) {
	n, err := e.store.Maintain(now)
	if err != nil {
		return n, err
	}
	e.metrics.AddCounter("chunks_archived", int64(n), nil)
	return n, nil
}

// Stats aggregates every subsystem's current figures into one snapshot.
type Stats struct {
	Store         store.Stats
	Drift         anomaly.DriftReport
	Verifier      integrity.Stats
	Temporal      temporal.Stats
	Recursive     recursive.Stats
	PredictorSize int
	Metrics       *metrics.Report
}

func (e *Engine) Stats() Stats {
	return Stats{
		Store:         e.store.Stats(),
		Drift:         e.anomalyD.DriftReport(),
		Verifier:      e.verifier.Stats(),
		Temporal:      e.temporalT.Stats(),
		Recursive:     e.recursiveC.Stats(),
		PredictorSize: e.predictor.CacheSize(),
		Metrics:       e.metrics.Report(),
	}
}

// Root returns the engine's durable root directory, or "" for an
// in-memory engine.
func (e *Engine) Root() string { return e.root }

// Close releases any durable resources (the SQLite connection, for a
// disk-backed engine). In-memory engines are a no-op.
func (e *Engine) Close() error {
	if e.closer != nil {
		return e.closer()
	}
	return nil
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
