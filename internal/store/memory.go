package store

import (
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"cogdedup/internal/apperrors"
	"cogdedup/internal/chunk"
	"cogdedup/internal/hasher"
	"cogdedup/internal/lsh"
)

// Memory is an in-process Store: every warm/hot chunk's data lives in
// memory, cold chunks hold only their zstd-compressed archive bytes.
// Modeled on the teacher's storage/local.Storage use of a single shared
// zstd.Encoder/Decoder pair (storage/local/storage.go), generalized from
// a flat object store to a ref-counted, tiered one.
type Memory struct {
	mu sync.Mutex

	hotRefThreshold int
	hotCapacity     int
	coldAgeSeconds  float64
	coldMaxRefCount int

	nextID  uint64
	chunks  map[uint64]*chunk.Entry
	byHash  map[chunk.SHA]uint64
	lshIdx  *lsh.Index
	hotSet  map[uint64]struct{}
	archive map[uint64][]byte // zstd-compressed original bytes, cold chunks only

	cooccurrence map[uint64]map[uint64]uint64
	dataChunks   map[string]map[uint64]struct{}

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewMemory builds a Memory store with the given tiering policy. hotRefThreshold
// and hotCapacity gate warm→hot promotion; coldAgeSeconds/coldMaxRefCount gate
// the Maintain() archival sweep (spec §4.4).
func NewMemory(hotRefThreshold, hotCapacity int, coldAgeSeconds float64, coldMaxRefCount int) (*Memory, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Memory{
		hotRefThreshold: hotRefThreshold,
		hotCapacity:     hotCapacity,
		coldAgeSeconds:  coldAgeSeconds,
		coldMaxRefCount: coldMaxRefCount,
		nextID:          1,
		chunks:          make(map[uint64]*chunk.Entry),
		byHash:          make(map[chunk.SHA]uint64),
		lshIdx:          lsh.New(),
		hotSet:          make(map[uint64]struct{}),
		archive:         make(map[uint64][]byte),
		cooccurrence:    make(map[uint64]map[uint64]uint64),
		dataChunks:      make(map[string]map[uint64]struct{}),
		enc:             enc,
		dec:             dec,
	}, nil
}

var _ Store = (*Memory)(nil)

func (m *Memory) LookupExact(sha chunk.SHA) (*chunk.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[sha]
	if !ok {
		return nil, false
	}
	e := m.chunks[id]
	m.touch(e)
	return e.Clone(), true
}

func (m *Memory) LookupSimilar(simhash uint64) (*chunk.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.lshIdx.QueryNearest(simhash, hasher.SimilarityThreshold)
	if !ok {
		return nil, false
	}
	e := m.chunks[id]
	if e == nil || e.Tier == chunk.Cold {
		// The LSH index never holds cold ids (removed on archival), but
		// guard defensively in case of a stale entry.
		return nil, false
	}
	m.touch(e)
	return e.Clone(), true
}

func (m *Memory) Store(data []byte) (*chunk.Entry, error) {
	sha := chunk.SHA(hasher.SHA256(data))

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byHash[sha]; ok {
		e := m.chunks[id]
		if e.Tier == chunk.Cold {
			if err := m.reinflateLocked(e); err != nil {
				return nil, err
			}
		}
		m.touch(e)
		return e.Clone(), nil
	}

	id := m.nextID
	m.nextID++

	sh := hasher.SimHash64(data)
	e := &chunk.Entry{
		ChunkID:    id,
		SHA256:     sha,
		SimHash:    sh,
		Data:       append([]byte(nil), data...),
		RefCount:   1,
		LastAccess: time.Now(),
		Tier:       chunk.Warm,
	}
	m.chunks[id] = e
	m.byHash[sha] = id
	m.lshIdx.Insert(id, sh)
	m.promoteIfHot(e)
	return e.Clone(), nil
}

func (m *Memory) Get(chunkID uint64) (*chunk.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.chunks[chunkID]
	if !ok {
		return nil, false
	}
	if e.Tier == chunk.Cold {
		if err := m.reinflateLocked(e); err != nil {
			return nil, false
		}
	}
	m.touch(e)
	return e.Clone(), true
}

// touch applies the read-side-effect ref_count/last_access bump kept per
// spec §9 open question 4.
func (m *Memory) touch(e *chunk.Entry) {
	e.RefCount++
	e.LastAccess = time.Now()
	m.promoteIfHot(e)
}

// promoteIfHot moves a warm chunk into the hot tier once its ref_count
// clears the threshold and the hot tier still has room. No forced
// eviction of existing hot chunks happens here: promotion is
// capacity-gated, not capacity-enforced by demotion (spec §4.4 describes
// hot-cap eviction as a separate, explicit concern).
func (m *Memory) promoteIfHot(e *chunk.Entry) {
	if e.Tier != chunk.Warm {
		return
	}
	if int(e.RefCount) < m.hotRefThreshold {
		return
	}
	if len(m.hotSet) >= m.hotCapacity {
		return
	}
	e.Tier = chunk.Hot
	m.hotSet[e.ChunkID] = struct{}{}
}

// reinflateLocked decompresses a cold chunk's archive back to Data and
// marks it Warm, per spec §4.4's "cold→warm is never automatic except
// implicitly on Get()" rule. It does not re-insert into the LSH index:
// a re-inflated chunk is fetchable by id but is no longer a similarity
// candidate, and Store of the same bytes does not re-index it either.
// Caller must hold m.mu.
func (m *Memory) reinflateLocked(e *chunk.Entry) error {
	archived, ok := m.archive[e.ChunkID]
	if !ok {
		return apperrors.ArchiveReadError{ChunkID: e.ChunkID, Err: nil}
	}
	data, err := m.dec.DecodeAll(archived, nil)
	if err != nil {
		return apperrors.ArchiveReadError{ChunkID: e.ChunkID, Err: err}
	}
	e.Data = data
	e.Tier = chunk.Warm
	delete(m.archive, e.ChunkID)
	return nil
}

func (m *Memory) RecordCooccurrence(ids []uint64) {
	if len(ids) < 2 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			row, ok := m.cooccurrence[a]
			if !ok {
				row = make(map[uint64]uint64)
				m.cooccurrence[a] = row
			}
			row[b]++
		}
	}
}

func (m *Memory) GetPredictedChunks(chunkID uint64, topK int) []*chunk.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.cooccurrence[chunkID]
	if len(row) == 0 {
		return nil
	}
	type pair struct {
		id     uint64
		weight uint64
	}
	pairs := make([]pair, 0, len(row))
	for id, w := range row {
		pairs = append(pairs, pair{id, w})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].weight != pairs[j].weight {
			return pairs[i].weight > pairs[j].weight
		}
		return pairs[i].id < pairs[j].id
	})
	if len(pairs) > topK {
		pairs = pairs[:topK]
	}
	out := make([]*chunk.Entry, 0, len(pairs))
	for _, p := range pairs {
		if e, ok := m.chunks[p.id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

func (m *Memory) RegisterDataChunks(dataID string, ids map[uint64]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.dataChunks[dataID]
	if !ok {
		set = make(map[uint64]struct{})
		m.dataChunks[dataID] = set
	}
	for id := range ids {
		set[id] = struct{}{}
	}
}

func (m *Memory) GetChunkIDsForData(dataID string) map[uint64]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.dataChunks[dataID]
	out := make(map[uint64]struct{}, len(src))
	for id := range src {
		out[id] = struct{}{}
	}
	return out
}

// StructuralSimilarity returns the Jaccard index of the chunk-id sets
// registered for a and b. Returns 0.0 whenever either set is empty or
// unregistered (spec §9 open question 1, decided in SPEC_FULL.md §5.1:
// "undefined" and "disjoint" are deliberately conflated, matching the
// original).
func (m *Memory) StructuralSimilarity(a, b string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	sa, sb := m.dataChunks[a], m.dataChunks[b]
	if len(sa) == 0 || len(sb) == 0 {
		return 0.0
	}

	inter := 0
	for id := range sa {
		if _, ok := sb[id]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// Maintain archives every warm chunk untouched for at least
// coldAgeSeconds with ref_count <= coldMaxRefCount: its data is replaced
// by a zstd-compressed archive form and it is removed from the LSH index
// (spec §4.4, cold chunks are never similarity candidates). Hot chunks
// are never archived directly by Maintain; they must first fall back to
// warm via hot-capacity eviction.
func (m *Memory) Maintain(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	archived := 0
	for id, e := range m.chunks {
		if e.Tier != chunk.Warm {
			continue
		}
		age := now.Sub(e.LastAccess).Seconds()
		if age < m.coldAgeSeconds || e.RefCount > uint64(m.coldMaxRefCount) {
			continue
		}
		compressed := m.enc.EncodeAll(e.Data, nil)
		m.archive[id] = compressed
		e.Data = nil
		e.Tier = chunk.Cold
		m.lshIdx.Remove(id)
		archived++
	}
	return archived, nil
}

// EvictHotOverflow demotes the least-recently-accessed hot chunks back
// to warm once the hot tier exceeds capacity (spec §4.4 hot→warm
// eviction). Exposed separately from promoteIfHot since eviction is a
// maintenance-time sweep, not a per-access concern.
func (m *Memory) EvictHotOverflow() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.hotSet) <= m.hotCapacity {
		return 0
	}
	type aged struct {
		id   uint64
		last time.Time
	}
	hot := make([]aged, 0, len(m.hotSet))
	for id := range m.hotSet {
		hot = append(hot, aged{id, m.chunks[id].LastAccess})
	}
	sort.Slice(hot, func(i, j int) bool { return hot[i].last.Before(hot[j].last) })

	evicted := 0
	overflow := len(m.hotSet) - m.hotCapacity
	for i := 0; i < overflow; i++ {
		id := hot[i].id
		m.chunks[id].Tier = chunk.Warm
		delete(m.hotSet, id)
		evicted++
	}
	return evicted
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Stats
	s.UniqueChunks = len(m.chunks)
	s.LSHIndexSize = m.lshIdx.Size()
	for _, e := range m.chunks {
		switch e.Tier {
		case chunk.Hot:
			s.HotChunks++
			s.WarmBytes += int64(len(e.Data))
		case chunk.Warm:
			s.WarmChunks++
			s.WarmBytes += int64(len(e.Data))
		case chunk.Cold:
			s.ColdChunks++
		}
		s.TotalReferences += e.RefCount
	}
	for id := range m.archive {
		s.ColdBytesCompressed += int64(len(m.archive[id]))
	}
	if s.UniqueChunks > 0 {
		s.DedupRatio = float64(s.TotalReferences) / float64(s.UniqueChunks)
	}
	pairs := 0
	for _, row := range m.cooccurrence {
		pairs += len(row)
	}
	s.CooccurrencePairs = pairs
	return s
}
