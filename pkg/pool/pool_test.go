package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetsObjects(t *testing.T) {
	type item struct{ values []float64 }

	p := New(
		func() *item { return &item{values: make([]float64, 0, 4)} },
		func(i *item) { i.values = i.values[:0] },
	)

	obj := p.Get()
	obj.values = append(obj.values, 1, 2, 3)
	p.Put(obj)

	again := p.Get()
	assert.Empty(t, again.values)

	allocated, inUse, _, misses := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(1), inUse)
	assert.GreaterOrEqual(t, misses, int64(1))
}

func TestScratchBuffers(t *testing.T) {
	b := GetScratch()
	require.NotNil(t, b)
	assert.Len(t, *b, 0)

	*b = append(*b, "1.25"...)
	_, inUse, _, _ := ScratchStats()
	assert.GreaterOrEqual(t, inUse, int64(1))
	PutScratch(b)
	PutScratch(nil)

	again := GetScratch()
	assert.Len(t, *again, 0)
	PutScratch(again)
}

func TestBufferPoolBuckets(t *testing.T) {
	p := NewBufferPool()

	tests := []struct {
		request int
		wantCap int
	}{
		{16, 512},
		{512, 512},
		{2048, 4096},
		{1 << 20, 1 << 20},
	}

	for _, tt := range tests {
		buf := p.Get(tt.request)
		assert.Len(t, buf, tt.request)
		assert.Equal(t, tt.wantCap, cap(buf))
		p.Put(buf)
	}

	huge := p.Get(32 << 20)
	assert.Len(t, huge, 32<<20)
	p.Put(huge)
}

func TestBufferPoolReturnsFullLength(t *testing.T) {
	p := NewBufferPool()

	small := p.Get(10)
	p.Put(small)

	next := p.Get(400)
	assert.Len(t, next, 400)
	assert.Equal(t, 512, cap(next))
}
