package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt64ToUint64(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := Int64ToUint64(4096)
		assert.NoError(t, err)
		assert.Equal(t, uint64(4096), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := Int64ToUint64(-1)
		assert.ErrorIs(t, err, ErrOverflow)
	})
}

func TestIntToUint64(t *testing.T) {
	got, err := IntToUint64(0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	_, err = IntToUint64(-5)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(123)
	assert.NoError(t, err)
	assert.Equal(t, 123, got)

	_, err = Uint64ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUint64ToInt32(t *testing.T) {
	assert.Equal(t, int32(-1), Uint64ToInt32(math.MaxUint64))
	assert.Equal(t, int32(7), Uint64ToInt32(7))
	assert.Equal(t, int32(-2), Uint64ToInt32(0xFFFF_FFFE))
}
