package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastHashDeterministic(t *testing.T) {
	a := FastHash([]byte("payload"))
	b := FastHash([]byte("payload"))
	assert.Equal(t, a, b)
}

func TestVerifyHashRoundTrip(t *testing.T) {
	data := []byte("some chunk content")
	expected := FastHashBytes(data)
	assert.True(t, VerifyHash(data, expected))
	assert.False(t, VerifyHash([]byte("different"), expected))
}

func TestVerifyHashRejectsWrongLength(t *testing.T) {
	assert.False(t, VerifyHash([]byte("x"), []byte{1, 2, 3}))
}

func TestVerifierTracksPassAndFail(t *testing.T) {
	v := NewVerifier(DefaultSecurityPolicy())
	data := []byte("chunk")
	good := v.ComputeHash(data)

	assert.True(t, v.Verify(data, good))
	assert.False(t, v.Verify(data, []byte{0, 0, 0, 0, 0, 0, 0, 0}))

	stats := v.Stats()
	assert.Equal(t, uint64(1), stats.Verified)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, 0.5, stats.FailureRate)
}

func TestCheckDeltaExpansionWithinBound(t *testing.T) {
	v := NewVerifier(DefaultSecurityPolicy())
	assert.True(t, v.CheckDeltaExpansion(100, 500))
	assert.False(t, v.CheckDeltaExpansion(10, 100000))
}

func TestCheckRefCountEligibility(t *testing.T) {
	v := NewVerifier(DefaultSecurityPolicy())
	assert.True(t, v.CheckRefCount(10))
	assert.False(t, v.CheckRefCount(10000))
}
