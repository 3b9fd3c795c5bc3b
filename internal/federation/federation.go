// Package federation lets multiple agents share structural patterns
// (tool-call formats, error templates, protocol headers) through a
// common shared store while keeping the bulk of their content in a
// private local store. Grounded on original_source's federation.py,
// translated from its sha256-keyed "promoted" set and chunk-id remap
// into Go's typed chunk.SHA and map[uint64]uint64, and implemented as
// composition over two store.Store values (spec §9: "composition, not
// subclass").
package federation

import (
	"sync"
	"time"

	"cogdedup/internal/chunk"
	"cogdedup/internal/hasher"
	"cogdedup/internal/store"
)

// Store is a federated view over a private local store.Store and a
// shared store.Store: reads consult shared first, writes land locally,
// and a local chunk is promoted to shared once its local ref_count
// crosses promoteThreshold. Store implements store.Store so it is a
// drop-in collaborator for codec.Codec and internal/streaming.
type Store struct {
	mu sync.Mutex

	agentID          string
	local            store.Store
	shared           store.Store
	promoteThreshold uint64
	promoted         map[chunk.SHA]struct{}
	localToSharedID  map[uint64]uint64
}

var _ store.Store = (*Store)(nil)

// New builds a federated Store for agentID, backed by local and shared.
func New(agentID string, local, shared store.Store, promoteThreshold uint64) *Store {
	return &Store{
		agentID:          agentID,
		local:            local,
		shared:           shared,
		promoteThreshold: promoteThreshold,
		promoted:         make(map[chunk.SHA]struct{}),
		localToSharedID:  make(map[uint64]uint64),
	}
}

func (s *Store) AgentID() string { return s.agentID }

func (s *Store) LookupExact(sha chunk.SHA) (*chunk.Entry, bool) {
	if e, ok := s.shared.LookupExact(sha); ok {
		return e, true
	}
	return s.local.LookupExact(sha)
}

func (s *Store) LookupSimilar(simhash uint64) (*chunk.Entry, bool) {
	if e, ok := s.shared.LookupSimilar(simhash); ok {
		return e, true
	}
	return s.local.LookupSimilar(simhash)
}

func (s *Store) Store(data []byte) (*chunk.Entry, error) {
	sha := chunk.SHA(hasher.SHA256(data))

	if e, ok := s.shared.LookupExact(sha); ok {
		return e, nil
	}

	entry, err := s.local.Store(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, alreadyPromoted := s.promoted[sha]
	s.mu.Unlock()

	if entry.RefCount >= s.promoteThreshold && !alreadyPromoted {
		if err := s.promote(sha, entry); err != nil {
			return entry, nil // promotion failure never fails the store call
		}
	}
	return entry, nil
}

// promote copies a local chunk's data into the shared store and records
// the local→shared id remap so future Get(local_id) calls resolve
// through the shared tier.
func (s *Store) promote(sha chunk.SHA, entry *chunk.Entry) error {
	if len(entry.Data) == 0 {
		return nil
	}
	sharedEntry, err := s.shared.Store(entry.Data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.promoted[sha] = struct{}{}
	s.localToSharedID[entry.ChunkID] = sharedEntry.ChunkID
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(chunkID uint64) (*chunk.Entry, bool) {
	if e, ok := s.shared.Get(chunkID); ok {
		return e, true
	}
	s.mu.Lock()
	sharedID, remapped := s.localToSharedID[chunkID]
	s.mu.Unlock()
	if remapped {
		if e, ok := s.shared.Get(sharedID); ok {
			return e, true
		}
	}
	return s.local.Get(chunkID)
}

func (s *Store) RecordCooccurrence(ids []uint64) {
	s.local.RecordCooccurrence(ids)
}

// GetPredictedChunks merges predictions from both tiers, shared first,
// deduplicated by SHA-256 and capped at topK — matching federation.py's
// "shared_pred + local_pred, dedup by sha256" merge order.
func (s *Store) GetPredictedChunks(chunkID uint64, topK int) []*chunk.Entry {
	sharedPred := s.shared.GetPredictedChunks(chunkID, topK)
	localPred := s.local.GetPredictedChunks(chunkID, topK)

	seen := make(map[chunk.SHA]struct{})
	var result []*chunk.Entry
	for _, e := range append(append([]*chunk.Entry{}, sharedPred...), localPred...) {
		if _, ok := seen[e.SHA256]; ok {
			continue
		}
		seen[e.SHA256] = struct{}{}
		result = append(result, e)
		if len(result) >= topK {
			break
		}
	}
	return result
}

func (s *Store) RegisterDataChunks(dataID string, ids map[uint64]struct{}) {
	s.local.RegisterDataChunks(dataID, ids)
}

func (s *Store) GetChunkIDsForData(dataID string) map[uint64]struct{} {
	return s.local.GetChunkIDsForData(dataID)
}

func (s *Store) StructuralSimilarity(a, b string) float64 {
	return s.local.StructuralSimilarity(a, b)
}

// Maintain archives this agent's local tier only; the shared tier is
// maintained once, centrally, by Manager.MaintainShared, since it is
// common to every agent.
func (s *Store) Maintain(now time.Time) (int, error) {
	return s.local.Maintain(now)
}

func (s *Store) Stats() store.Stats {
	return s.local.Stats()
}

// FederationStats describes one agent's federated view: its own local
// tier's figures, the shared tier's figures, and promotion bookkeeping.
type FederationStats struct {
	AgentID        string
	Local          store.Stats
	Shared         store.Stats
	PromotedChunks int
	IDRemaps       int
}

func (s *Store) AgentStats() FederationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FederationStats{
		AgentID:        s.agentID,
		Local:          s.local.Stats(),
		Shared:         s.shared.Stats(),
		PromotedChunks: len(s.promoted),
		IDRemaps:       len(s.localToSharedID),
	}
}

// Manager owns a single shared store and lazily creates one federated
// Store per agent_id, each with its own private local store, matching
// original_source's CogstoreFederation.
type Manager struct {
	mu               sync.Mutex
	shared           store.Store
	promoteThreshold uint64
	newLocal         func() (store.Store, error)
	agents           map[string]*Store
}

// NewManager builds a federation manager around an already-open shared
// store. newLocal constructs a fresh private store for each new agent_id
// (typically store.NewMemory or store.OpenSQL under an agent-scoped
// path).
func NewManager(shared store.Store, promoteThreshold uint64, newLocal func() (store.Store, error)) *Manager {
	return &Manager{
		shared:           shared,
		promoteThreshold: promoteThreshold,
		newLocal:         newLocal,
		agents:           make(map[string]*Store),
	}
}

// CreateAgentStore returns the federated Store for agentID, creating its
// private local store on first use.
func (m *Manager) CreateAgentStore(agentID string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.agents[agentID]; ok {
		return s, nil
	}
	local, err := m.newLocal()
	if err != nil {
		return nil, err
	}
	s := New(agentID, local, m.shared, m.promoteThreshold)
	m.agents[agentID] = s
	return s, nil
}

// GetAgentStore returns a previously created agent store, if any.
func (m *Manager) GetAgentStore(agentID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.agents[agentID]
	return s, ok
}

// AgentIDs lists every agent with a federated store so far.
func (m *Manager) AgentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	return ids
}

// MaintainShared runs the shared tier's cold-archival sweep once,
// centrally, since the shared store is common to every agent.
func (m *Manager) MaintainShared(now time.Time) (int, error) {
	return m.shared.Maintain(now)
}

// FederationStats reports the shared store's figures plus every agent's
// individual stats.
func (m *Manager) FederationStats() map[string]FederationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]FederationStats, len(m.agents))
	for id, s := range m.agents {
		out[id] = s.AgentStats()
	}
	return out
}
