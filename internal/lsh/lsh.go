// Package lsh implements the banded locality-sensitive-hashing index
// that turns similarity search from an O(n) scan into O(1) candidate
// retrieval per band (spec §4.3).
package lsh

import "cogdedup/internal/hasher"

const (
	NumBands  = 8
	BandWidth = 8 // bits per band
)

func extractBands(simhash uint64) [NumBands]uint8 {
	var bands [NumBands]uint8
	for i := 0; i < NumBands; i++ {
		bands[i] = uint8((simhash >> uint(i*BandWidth)) & 0xFF)
	}
	return bands
}

// Index is an in-memory LSH index over 64-bit SimHashes, partitioned
// into NumBands bands of BandWidth bits each.
type Index struct {
	buckets   [NumBands]map[uint8]map[uint64]struct{}
	simhashes map[uint64]uint64 // chunk_id -> simhash
}

func New() *Index {
	idx := &Index{simhashes: make(map[uint64]uint64)}
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint8]map[uint64]struct{})
	}
	return idx
}

// Insert records chunkID under each of its 8 band buckets.
func (idx *Index) Insert(chunkID uint64, simhash uint64) {
	idx.simhashes[chunkID] = simhash
	bands := extractBands(simhash)
	for bandID, val := range bands {
		bucket, ok := idx.buckets[bandID][val]
		if !ok {
			bucket = make(map[uint64]struct{})
			idx.buckets[bandID][val] = bucket
		}
		bucket[chunkID] = struct{}{}
	}
}

// Remove deletes chunkID from all bands. Idempotent on unknown ids.
func (idx *Index) Remove(chunkID uint64) {
	simhash, ok := idx.simhashes[chunkID]
	if !ok {
		return
	}
	delete(idx.simhashes, chunkID)
	bands := extractBands(simhash)
	for bandID, val := range bands {
		if bucket, ok := idx.buckets[bandID][val]; ok {
			delete(bucket, chunkID)
			if len(bucket) == 0 {
				delete(idx.buckets[bandID], val)
			}
		}
	}
}

// QueryCandidates returns the union of chunk ids sharing any band value
// with simhash.
func (idx *Index) QueryCandidates(simhash uint64) map[uint64]struct{} {
	candidates := make(map[uint64]struct{})
	bands := extractBands(simhash)
	for bandID, val := range bands {
		for id := range idx.buckets[bandID][val] {
			candidates[id] = struct{}{}
		}
	}
	return candidates
}

// QueryNearest returns the candidate chunk id with the smallest hamming
// distance to simhash, provided that distance is strictly below
// threshold. Ties are broken by the lowest chunk_id. Returns (0, false)
// if no candidate qualifies.
func (idx *Index) QueryNearest(simhash uint64, threshold int) (uint64, bool) {
	candidates := idx.QueryCandidates(simhash)

	bestDist := threshold
	var bestID uint64
	found := false

	for id := range candidates {
		d := hasher.HammingDistance(simhash, idx.simhashes[id])
		if d >= threshold {
			continue
		}
		if !found || d < bestDist || (d == bestDist && id < bestID) {
			bestDist = d
			bestID = id
			found = true
		}
	}
	return bestID, found
}

// Size returns the number of chunks currently indexed.
func (idx *Index) Size() int {
	return len(idx.simhashes)
}

// Entry is one (chunk_id, simhash) pair, used by Rebuild.
type Entry struct {
	ChunkID uint64
	SimHash uint64
}

// Rebuild atomically clears and repopulates the index, for startup
// recovery of persistent backends.
func (idx *Index) Rebuild(entries []Entry) {
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint8]map[uint64]struct{})
	}
	idx.simhashes = make(map[uint64]uint64, len(entries))
	for _, e := range entries {
		idx.Insert(e.ChunkID, e.SimHash)
	}
}
