// Package predictor anticipates which chunks are likely to follow a
// trigger chunk, based on co-occurrence data the codec feeds it after
// every encode, and keeps small pre-built delta dictionaries warm so
// the next matching chunk compresses against real content rather than
// cold FULL/DELTA candidates (spec §4.8).
package predictor

import (
	"container/list"
	"sync"

	"cogdedup/internal/store"
)

const minDictBytesDefault = 64

// lruEntry is the cache payload: a trigger chunk's pre-built dictionary
// bytes plus the ordered source chunk ids that built it — the ids are
// what gets embedded in a PRED_DELTA token so decode is deterministic
// even if co-occurrence data changes later.
type lruEntry struct {
	triggerID uint64
	dict      []byte
	sourceIDs []uint64
}

// Predictor wraps a Store with an LRU cache of trigger_chunk_id →
// (dictionary, source ids). No LRU library exists anywhere in the
// example pack (confirmed by grep — a false-positive hit on
// "mailru/easyjson" was the only near-match), so the cache is hand-rolled
// with container/list, the same general technique the standard library
// itself documents for LRU construction.
type Predictor struct {
	mu sync.Mutex

	store       store.Store
	capacity    int
	topK        int
	minDictSize int

	ll    *list.List               // front = most recently used
	cache map[uint64]*list.Element // trigger_id -> element wrapping *lruEntry
}

// New builds a Predictor backed by s, caching up to capacity dictionaries
// and consulting s.GetPredictedChunks for up to topK candidates per
// trigger. minDictSize is the minimum concatenated dictionary size in
// bytes below which prediction is skipped (spec §4.8, default 64).
func New(s store.Store, capacity, topK, minDictSize int) *Predictor {
	if minDictSize <= 0 {
		minDictSize = minDictBytesDefault
	}
	return &Predictor{
		store:       s,
		capacity:    capacity,
		topK:        topK,
		minDictSize: minDictSize,
		ll:          list.New(),
		cache:       make(map[uint64]*list.Element),
	}
}

// GetDictionaryAndIDs returns a pre-built dictionary and the ordered
// chunk ids that built it for triggerChunkID, building and caching one
// on a miss from the store's co-occurrence predictions. Returns
// (nil, nil, false) if no prediction is available or the resulting
// dictionary would be smaller than minDictSize.
func (p *Predictor) GetDictionaryAndIDs(triggerChunkID uint64) ([]byte, []uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.cache[triggerChunkID]; ok {
		p.ll.MoveToFront(el)
		e := el.Value.(*lruEntry)
		return e.dict, e.sourceIDs, true
	}

	predicted := p.store.GetPredictedChunks(triggerChunkID, p.topK)
	if len(predicted) == 0 {
		return nil, nil, false
	}

	var dict []byte
	var sourceIDs []uint64
	for _, entry := range predicted {
		if len(entry.Data) == 0 {
			continue
		}
		dict = append(dict, entry.Data...)
		sourceIDs = append(sourceIDs, entry.ChunkID)
	}
	if len(dict) < p.minDictSize {
		return nil, nil, false
	}

	p.putLocked(triggerChunkID, dict, sourceIDs)
	return dict, sourceIDs, true
}

// putLocked inserts trigger→(dict, sourceIDs) into the cache, evicting
// the least-recently-used entry if at capacity. Caller must hold p.mu.
func (p *Predictor) putLocked(triggerChunkID uint64, dict []byte, sourceIDs []uint64) {
	if p.ll.Len() >= p.capacity {
		back := p.ll.Back()
		if back != nil {
			evicted := back.Value.(*lruEntry)
			delete(p.cache, evicted.triggerID)
			p.ll.Remove(back)
		}
	}
	el := p.ll.PushFront(&lruEntry{triggerID: triggerChunkID, dict: dict, sourceIDs: sourceIDs})
	p.cache[triggerChunkID] = el
}

// UpdateAfterEncode records co-occurrence across chunkIDs and
// speculatively warms the dictionary cache for the last three emitted
// ids, matching the original's cache-warming heuristic.
func (p *Predictor) UpdateAfterEncode(chunkIDs []uint64) {
	if len(chunkIDs) < 2 {
		return
	}
	p.store.RecordCooccurrence(chunkIDs)

	warm := chunkIDs
	if len(warm) > 3 {
		warm = warm[len(warm)-3:]
	}
	for _, id := range warm {
		p.mu.Lock()
		_, cached := p.cache[id]
		p.mu.Unlock()
		if !cached {
			p.GetDictionaryAndIDs(id)
		}
	}
}

// Invalidate removes a trigger chunk's cached dictionary, if present.
func (p *Predictor) Invalidate(chunkID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.cache[chunkID]; ok {
		p.ll.Remove(el)
		delete(p.cache, chunkID)
	}
}

// CacheSize reports the current number of cached dictionaries.
func (p *Predictor) CacheSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ll.Len()
}

// ClearCache drops every cached dictionary, forcing the next
// GetDictionaryAndIDs call for any trigger to rebuild from the store's
// current co-occurrence data. PRED_DELTA tokens already written to a
// blob remain decodable regardless: decode rebuilds its dictionary from
// the embedded source chunk ids, never from this cache (spec §8.7).
func (p *Predictor) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ll.Init()
	p.cache = make(map[uint64]*list.Element)
}
