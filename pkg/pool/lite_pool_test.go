package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resettableBuf struct {
	data  []byte
	reset bool
}

func (b *resettableBuf) Reset() {
	b.data = b.data[:0]
	b.reset = true
}

func TestNewLitePoolRejectsNilConstructor(t *testing.T) {
	_, err := NewLitePool[*resettableBuf](nil)
	require.Error(t, err)
}

func TestNewLitePoolRejectsNilValues(t *testing.T) {
	_, err := NewLitePool(func() *resettableBuf { return nil })
	require.Error(t, err)
}

func TestPoolGetReturnsConstructedValue(t *testing.T) {
	p, err := NewLitePool(func() []byte { return make([]byte, 64) })
	require.NoError(t, err)

	buf := p.Get()
	assert.Len(t, buf, 64)
	p.Put(buf)
}

func TestPoolPutResetsResettable(t *testing.T) {
	p, err := NewLitePool(func() *resettableBuf {
		return &resettableBuf{data: make([]byte, 0, 8)}
	})
	require.NoError(t, err)

	b := p.Get()
	b.data = append(b.data, 1, 2, 3)
	p.Put(b)

	assert.True(t, b.reset)
	assert.Empty(t, b.data)
}
