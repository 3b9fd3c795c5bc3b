package chunker

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyYieldsNoChunks(t *testing.T) {
	c := New()
	assert.Nil(t, c.Split(nil))
}

func TestSplitShortInputYieldsOneChunk(t *testing.T) {
	c := New()
	data := []byte("short")
	chunks := c.Split(data)
	require.Len(t, chunks, 1)
	assert.Equal(t, data, chunks[0])
}

func TestSplitReconstructsOriginal(t *testing.T) {
	c := New()
	r := rand.New(rand.NewSource(42))
	data := make([]byte, 200*1024)
	r.Read(data)

	chunks := c.Split(data)
	require.NotEmpty(t, chunks)

	var out bytes.Buffer
	for _, ch := range chunks {
		out.Write(ch)
	}
	assert.Equal(t, data, out.Bytes())
}

func TestSplitRespectsMaxSize(t *testing.T) {
	c := New()
	data := make([]byte, 100*1024)
	for i := range data {
		data[i] = 0xAA // never trips the boundary mask
	}
	chunks := c.Split(data)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), c.MaxSize)
	}
}

func TestStateFeedMatchesSplit(t *testing.T) {
	c := New()
	r := rand.New(rand.NewSource(7))
	data := make([]byte, 50*1024)
	r.Read(data)

	want := c.Split(data)

	var got [][]byte
	s := c.NewState()
	for _, b := range data {
		if s.Feed(b) {
			got = append(got, s.Take())
		}
	}
	if tail := s.Flush(); tail != nil {
		got = append(got, tail)
	}

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestStateFlushOnEmptyBufferReturnsNil(t *testing.T) {
	c := New()
	s := c.NewState()
	assert.Nil(t, s.Flush())
}
