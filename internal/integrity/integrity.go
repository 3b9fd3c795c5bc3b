// Package integrity provides adversarial-robustness checks for the
// codec: a fast non-cryptographic hash for post-decode verification, and
// a security policy bounding ref-count eligibility and delta expansion
// (spec §4.10). Grounded on the rest of the example pack's use of
// cespare/xxhash for fast, non-cryptographic fingerprints.
package integrity

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// FastHash returns a fast 64-bit non-cryptographic hash of data, for
// callers verifying decoded output; the codec itself neither computes
// nor checks it.
func FastHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// FastHashBytes returns FastHash as 8 little-endian bytes, suitable for
// embedding in a wire format or stats record.
func FastHashBytes(data []byte) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], FastHash(data))
	return b[:]
}

// VerifyHash reports whether data's fast hash matches expected.
func VerifyHash(data []byte, expected []byte) bool {
	if len(expected) != 8 {
		return false
	}
	got := FastHashBytes(data)
	for i := range got {
		if got[i] != expected[i] {
			return false
		}
	}
	return true
}

// SecurityPolicy bounds adversarial use of the store as a delta source
// and bounds delta decompression blow-up.
type SecurityPolicy struct {
	// MaxRefCountForSimilarity caps ref_count for a chunk to be eligible
	// as a delta/similarity base, preventing a single adversarial chunk
	// from becoming a universal dictionary.
	MaxRefCountForSimilarity uint64
	// VerifyDeltas toggles the MaxDeltaExpansion check on each decoded
	// DELTA token.
	VerifyDeltas bool
	// MaxDeltaExpansion bounds the ratio of decompressed-to-source size
	// for a delta, guarding against decompression bombs.
	MaxDeltaExpansion float64
}

// DefaultSecurityPolicy matches spec §4.10's recommended defaults.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		MaxRefCountForSimilarity: 1000,
		VerifyDeltas:             true,
		MaxDeltaExpansion:        100.0,
	}
}

// Verifier tracks integrity-check outcomes under a SecurityPolicy.
type Verifier struct {
	policy   SecurityPolicy
	verified uint64
	failed   uint64
}

func NewVerifier(policy SecurityPolicy) *Verifier {
	return &Verifier{policy: policy}
}

func (v *Verifier) Policy() SecurityPolicy { return v.policy }

// ComputeHash returns the embeddable fast-hash bytes for data.
func (v *Verifier) ComputeHash(data []byte) []byte {
	return FastHashBytes(data)
}

// Verify checks data against expectedHash, tracking pass/fail counts.
func (v *Verifier) Verify(data []byte, expectedHash []byte) bool {
	if VerifyHash(data, expectedHash) {
		v.verified++
		return true
	}
	v.failed++
	return false
}

// CheckDeltaExpansion reports whether decompressing srcLen bytes of
// source into resultLen bytes stays within the configured bound.
func (v *Verifier) CheckDeltaExpansion(srcLen, resultLen int) bool {
	if srcLen == 0 {
		return resultLen < 1024*1024
	}
	ratio := float64(resultLen) / float64(srcLen)
	return ratio <= v.policy.MaxDeltaExpansion
}

// CheckRefCount reports whether a chunk with the given ref_count is
// still eligible as a similarity/delta base.
func (v *Verifier) CheckRefCount(refCount uint64) bool {
	return refCount <= v.policy.MaxRefCountForSimilarity
}

// Stats summarizes verification outcomes so far.
type Stats struct {
	Verified    uint64
	Failed      uint64
	FailureRate float64
}

func (v *Verifier) Stats() Stats {
	total := v.verified + v.failed
	rate := 0.0
	if total > 0 {
		rate = float64(v.failed) / float64(total)
	}
	return Stats{Verified: v.verified, Failed: v.failed, FailureRate: rate}
}
