package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierString(t *testing.T) {
	assert.Equal(t, "hot", Hot.String())
	assert.Equal(t, "warm", Warm.String())
	assert.Equal(t, "cold", Cold.String())
	assert.Equal(t, "unknown", Tier(99).String())
}

func TestSHAIsZeroAndEqual(t *testing.T) {
	var zero SHA
	assert.True(t, zero.IsZero())

	var a SHA
	a[0] = 1
	assert.False(t, a.IsZero())
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(zero))
}

func TestEntryCloneDeepCopiesData(t *testing.T) {
	e := &Entry{ChunkID: 1, Data: []byte("hello")}
	cp := e.Clone()
	assert.Equal(t, e.Data, cp.Data)

	cp.Data[0] = 'H'
	assert.Equal(t, byte('h'), e.Data[0])
}

func TestEntryCloneNil(t *testing.T) {
	var e *Entry
	assert.Nil(t, e.Clone())
}
