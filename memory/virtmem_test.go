package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const userRW = FlagRead | FlagWrite | FlagUser

func TestVirtualMemory(t *testing.T) {
	t.Run("maps a segment and reads back through the walk", func(t *testing.T) {
		pool := NewFramePool(32)

		vm, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		seg, err := vm.MapSegment(SegData, 0x10000, 2, userRW)
		require.NoError(t, err)
		require.Equal(t, uint64(0x12000), seg.End())

		msg := []byte("hello across pages")
		n, err := vm.WriteAt(msg, 0x11000-5)
		require.NoError(t, err)
		require.Equal(t, len(msg), n)

		buf := make([]byte, len(msg))
		_, err = vm.ReadAt(buf, 0x11000-5)
		require.NoError(t, err)
		require.Equal(t, msg, buf)

		found, ok := vm.FindSegment(0x11fff)
		require.True(t, ok)
		require.Equal(t, SegData, found.Kind)
	})

	t.Run("faults outside mapped pages", func(t *testing.T) {
		pool := NewFramePool(32)

		vm, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		_, err = vm.Translate(0xdead000)
		require.Equal(t, ErrUnmapped, errors.Cause(err))

		_, err = vm.ReadAt(make([]byte, 1), 0xdead000)
		require.Equal(t, ErrUnmapped, errors.Cause(err))
	})

	t.Run("enforces permissions on projection", func(t *testing.T) {
		pool := NewFramePool(32)

		vm, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		_, err = vm.MapSegment(SegCode, 0x1000, 1, FlagRead|FlagExec|FlagUser)
		require.NoError(t, err)

		_, err = vm.Project(0x1000, 8, FlagExec)
		require.NoError(t, err)

		_, err = vm.Project(0x1000, 8, FlagWrite)
		require.Equal(t, ErrProtection, errors.Cause(err))

		_, err = vm.Project(0x1ffc, 8, FlagRead)
		require.Equal(t, ErrInvalidMemoryAccess, errors.Cause(err))
	})

	t.Run("drops cached translations on unmap", func(t *testing.T) {
		pool := NewFramePool(32)

		vm, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		_, err = vm.MapPage(0x20000, userRW)
		require.NoError(t, err)

		_, err = vm.Translate(0x20010)
		require.NoError(t, err)

		require.NoError(t, vm.UnmapPage(0x20000))

		_, err = vm.Translate(0x20010)
		require.Equal(t, ErrUnmapped, errors.Cause(err))
	})

	t.Run("fork copies contents without aliasing", func(t *testing.T) {
		pool := NewFramePool(64)

		parent, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		_, err = parent.MapSegment(SegData, 0x10000, 1, userRW)
		require.NoError(t, err)

		_, err = parent.WriteAt([]byte("shared"), 0x10000)
		require.NoError(t, err)

		child, err := parent.Fork()
		require.NoError(t, err)

		buf := make([]byte, 6)
		_, err = child.ReadAt(buf, 0x10000)
		require.NoError(t, err)
		require.Equal(t, "shared", string(buf))

		_, err = child.WriteAt([]byte("CHILD!"), 0x10000)
		require.NoError(t, err)

		_, err = parent.ReadAt(buf, 0x10000)
		require.NoError(t, err)
		require.Equal(t, "shared", string(buf))

		ppa, err := parent.Translate(0x10000)
		require.NoError(t, err)
		cpa, err := child.Translate(0x10000)
		require.NoError(t, err)
		require.NotEqual(t, ppa, cpa)

		require.Len(t, child.Segments(), 1)
	})

	t.Run("failed fork leaves the pool untouched", func(t *testing.T) {
		pool := NewFramePool(8)

		parent, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		// root + 2 nodes + 3 pages
		_, err = parent.MapSegment(SegData, 0x10000, 3, userRW)
		require.NoError(t, err)

		free := pool.Free()

		_, err = parent.Fork()
		require.Equal(t, ErrOutOfMemory, errors.Cause(err))
		require.Equal(t, free, pool.Free())
	})

	t.Run("destroy releases everything", func(t *testing.T) {
		pool := NewFramePool(32)

		vm, err := NewVirtualMemory(pool)
		require.NoError(t, err)

		_, err = vm.MapSegment(SegStack, 0x7f000, 2, userRW)
		require.NoError(t, err)
		require.Equal(t, 2, vm.Pages())

		vm.Destroy()
		require.Equal(t, 32, pool.Free())
	})
}
