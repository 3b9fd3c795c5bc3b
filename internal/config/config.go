// Package config loads and saves the engine's tuning parameters as a
// JSON file, the way the teacher codebase's config manager persists
// settings under a root directory — except here the payload is chunk
// sizing, tiering, and compression knobs instead of remote credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EngineConfig holds every tunable parameter named or implied by the
// specification. Zero-value EngineConfig is invalid; use Default().
type EngineConfig struct {
	// Chunker
	MinChunkSize int `json:"min_chunk_size"`
	AvgChunkSize int `json:"avg_chunk_size"`
	MaxChunkSize int `json:"max_chunk_size"`

	// Hasher / LSH
	SimilarityThreshold int `json:"similarity_threshold"`

	// Store tiering
	HotRefCountThreshold int     `json:"hot_ref_count_threshold"`
	HotCapacity          int     `json:"hot_capacity"`
	ColdAgeSeconds       float64 `json:"cold_age_seconds"`
	ColdMaxRefCount      int     `json:"cold_max_ref_count"`

	// Codec
	ZstdLevel int `json:"zstd_level"`

	// Predictor
	PredictorCacheSize    int `json:"predictor_cache_size"`
	PredictorTopK         int `json:"predictor_top_k"`
	PredictorMinDictBytes int `json:"predictor_min_dict_bytes"`

	// Anomaly detector
	AnomalyWindowSize int     `json:"anomaly_window_size"`
	AnomalyZLow       float64 `json:"anomaly_z_low"`
	AnomalyZHigh      float64 `json:"anomaly_z_high"`
	AnomalyMinStdDev  float64 `json:"anomaly_min_std_dev"`

	// Integrity / security policy
	MaxRefCountForSimilarity int     `json:"max_ref_count_for_similarity"`
	VerifyDeltas             bool    `json:"verify_deltas"`
	MaxDeltaExpansion        float64 `json:"max_delta_expansion"`
}

// Default returns the specification's recommended defaults.
func Default() EngineConfig {
	return EngineConfig{
		MinChunkSize: 1024,
		AvgChunkSize: 4096,
		MaxChunkSize: 16384,

		SimilarityThreshold: 8,

		HotRefCountThreshold: 5,
		HotCapacity:          10_000,
		ColdAgeSeconds:       30 * 24 * 3600,
		ColdMaxRefCount:      1,

		ZstdLevel: 10,

		PredictorCacheSize:    256,
		PredictorTopK:         5,
		PredictorMinDictBytes: 64,

		AnomalyWindowSize: 50,
		AnomalyZLow:       -2.0,
		AnomalyZHigh:      3.0,
		AnomalyMinStdDev:  0.001,

		MaxRefCountForSimilarity: 1000,
		VerifyDeltas:             true,
		MaxDeltaExpansion:        100.0,
	}
}

// Validate checks the invariant that MIN < AVG < MAX and that AVG-1 is
// a power-of-two mask, per spec §4.1.
func (c EngineConfig) Validate() error {
	if !(c.MinChunkSize > 0 && c.MinChunkSize < c.AvgChunkSize && c.AvgChunkSize < c.MaxChunkSize) {
		return fmt.Errorf("chunk sizes must satisfy 0 < min < avg < max, got %d/%d/%d",
			c.MinChunkSize, c.AvgChunkSize, c.MaxChunkSize)
	}
	mask := c.AvgChunkSize - 1
	if mask&(c.AvgChunkSize) != 0 {
		return fmt.Errorf("avg_chunk_size-1 (%d) must be a power-of-two mask derived from a power-of-two avg_chunk_size", mask)
	}
	return nil
}

// Manager loads and persists an EngineConfig as JSON under <root>/.cogdedup/config.json.
type Manager struct {
	configPath string
}

func NewManager(root string) *Manager {
	return &Manager{configPath: filepath.Join(root, ".cogdedup", "config.json")}
}

// Load reads the config file, returning Default() if it doesn't exist yet.
func (m *Manager) Load() (EngineConfig, error) {
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return EngineConfig{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, err
	}
	return cfg, cfg.Validate()
}

// Save writes the config file, creating its parent directory if needed.
func (m *Manager) Save(cfg EngineConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}
