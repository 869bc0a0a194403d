package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestPageTable(t *testing.T) {
	t.Run("maps and translates", func(t *testing.T) {
		pool := NewFramePool(16)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		f, err := pool.AllocFrame()
		require.NoError(t, err)

		err = pt.Map(0x40000000, f, FlagRead|FlagWrite|FlagUser)
		require.NoError(t, err)

		pa, err := pt.Translate(0x40000123)
		require.NoError(t, err)
		require.Equal(t, f.Address()+0x123, pa)

		_, flags, err := pt.Lookup(0x40000000)
		require.NoError(t, err)
		require.Equal(t, FlagValid|FlagRead|FlagWrite|FlagUser, flags)
	})

	t.Run("allocates intermediate nodes only on map", func(t *testing.T) {
		pool := NewFramePool(16)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		before := pool.Free()

		_, err = pt.Translate(0x1000)
		require.Equal(t, ErrUnmapped, errors.Cause(err))
		require.Equal(t, before, pool.Free())

		f, err := pool.AllocFrame()
		require.NoError(t, err)

		require.NoError(t, pt.Map(0x1000, f, FlagRead|FlagUser))

		// leaf frame plus two intermediate nodes
		require.Equal(t, before-3, pool.Free())
	})

	t.Run("rolls back nodes when the pool runs dry", func(t *testing.T) {
		pool := NewFramePool(3)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		f, err := pool.AllocFrame()
		require.NoError(t, err)

		// one frame left: enough for the level 1 node but not level 2
		err = pt.Map(0x2000, f, FlagRead)
		require.Equal(t, ErrOutOfMemory, errors.Cause(err))
		require.Equal(t, 1, pool.Free())

		_, err = pt.Translate(0x2000)
		require.Equal(t, ErrUnmapped, errors.Cause(err))
	})

	t.Run("refuses to remap a live page", func(t *testing.T) {
		pool := NewFramePool(8)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		require.NoError(t, pt.Map(0x3000, 5, FlagRead))
		err = pt.Map(0x3000, 6, FlagRead)
		require.Equal(t, ErrRemap, errors.Cause(err))
	})

	t.Run("unmaps and optionally releases", func(t *testing.T) {
		pool := NewFramePool(8)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		f, err := pool.AllocFrame()
		require.NoError(t, err)

		require.NoError(t, pt.Map(0x5000, f, FlagRead))
		free := pool.Free()

		got, err := pt.Unmap(0x5000, true)
		require.NoError(t, err)
		require.Equal(t, f, got)
		require.Equal(t, free+1, pool.Free())

		_, err = pt.Unmap(0x5000, true)
		require.Equal(t, ErrUnmapped, errors.Cause(err))
	})

	t.Run("rejects addresses above the user range", func(t *testing.T) {
		pool := NewFramePool(8)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		err = pt.Map(MaxVA, 1, FlagRead)
		require.Equal(t, ErrBadAddress, errors.Cause(err))
	})

	t.Run("destroy returns every frame", func(t *testing.T) {
		pool := NewFramePool(32)

		pt, err := NewPageTable(pool)
		require.NoError(t, err)

		for _, va := range []uint64{0x1000, 0x2000, 0x40000000, 0x7ff000} {
			f, err := pool.AllocFrame()
			require.NoError(t, err)
			require.NoError(t, pt.Map(va, f, FlagRead|FlagUser))
		}

		var vas []uint64
		pt.Visit(func(va uint64, _ Frame, _ PageTableEntryFlag) error {
			vas = append(vas, va)
			return nil
		})
		require.Equal(t, []uint64{0x1000, 0x2000, 0x7ff000, 0x40000000}, vas)

		pt.Destroy()
		require.Equal(t, 32, pool.Free())
	})
}
