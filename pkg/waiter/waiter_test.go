package waiter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	evA EventType = 1 << iota
	evB
)

func TestWaiter(t *testing.T) {
	t.Run("signals channels whose mask matches", func(t *testing.T) {
		var w Waiter

		a := make(chan struct{}, 1)
		b := make(chan struct{}, 1)

		ea := w.RegisterChannel(evA, a)
		w.RegisterChannel(evB, b)

		require.Equal(t, 1, w.Notify(evA))
		require.Len(t, a, 1)
		require.Len(t, b, 0)

		// the buffered slot is already taken, the second send is dropped
		require.Equal(t, 1, w.Notify(evA))
		require.Len(t, a, 1)

		w.Unregister(ea)
		require.Equal(t, 1, w.Len())
		require.Equal(t, 0, w.Notify(evA))
	})

	t.Run("passes the fired mask to functions", func(t *testing.T) {
		var w Waiter

		var got []EventType
		w.RegisterFunc(evA|evB, func(ev EventType) {
			got = append(got, ev)
		})

		w.Notify(evB)
		w.Notify(evA | evB)

		require.Equal(t, []EventType{evB, evA | evB}, got)
	})
}
