package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFramePool(t *testing.T) {
	t.Run("hands out every frame then fails", func(t *testing.T) {
		p := NewFramePool(3)

		seen := map[Frame]bool{}
		for i := 0; i < 3; i++ {
			f, err := p.AllocFrame()
			require.NoError(t, err)
			require.False(t, seen[f])
			seen[f] = true
		}

		_, err := p.AllocFrame()
		require.Equal(t, ErrOutOfMemory, errors.Cause(err))
		require.Equal(t, 0, p.Free())
	})

	t.Run("reuses the most recently freed frame", func(t *testing.T) {
		p := NewFramePool(4)

		a, err := p.AllocFrame()
		require.NoError(t, err)

		b, err := p.AllocFrame()
		require.NoError(t, err)

		p.FreeFrame(a)
		p.FreeFrame(b)

		f, err := p.AllocFrame()
		require.NoError(t, err)
		require.Equal(t, b, f)
	})

	t.Run("zeroes frames on allocation", func(t *testing.T) {
		p := NewFramePool(1)

		f, err := p.AllocFrame()
		require.NoError(t, err)

		copy(p.Bytes(f), []byte("dirty"))
		p.FreeFrame(f)

		f, err = p.AllocFrame()
		require.NoError(t, err)
		require.Equal(t, make([]byte, PageSize), p.Bytes(f))
	})

	t.Run("converts between frames and addresses", func(t *testing.T) {
		f := Frame(7)
		require.Equal(t, uint64(7*PageSize), f.Address())
		require.Equal(t, f, FrameFromAddress(f.Address()+123))
	})
}
