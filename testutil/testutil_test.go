package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	rng := NewRNG(4711)

	b := rng.Bytes(64)
	assert.Len(t, b, 64)
	assert.NotEqual(t, make([]byte, 64), b)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	b1 := rng.Bytes(32)

	rng.Reset()
	b2 := rng.Bytes(32)

	assert.Equal(t, b1, b2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestPerm(t *testing.T) {
	rng := NewRNG(1)
	p := rng.Perm(8)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, p)
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	WriteFile(t, dir, "x", []byte("abc"))
	assert.Equal(t, []byte("abc"), ReadFile(t, dir, "x"))
}
