package ilist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	Entry
	v int
}

func values(l *List) []int {
	var out []int
	for it := l.Front(); it != nil; it = it.Next() {
		out = append(out, it.(*item).v)
	}
	return out
}

func TestList(t *testing.T) {
	var l List
	require.True(t, l.Empty())

	a, b, c := &item{v: 1}, &item{v: 2}, &item{v: 3}

	l.PushBack(a)
	l.PushBack(b)
	l.PushFront(c)
	require.Equal(t, []int{3, 1, 2}, values(&l))

	l.Remove(a)
	require.Equal(t, []int{3, 2}, values(&l))
	require.Nil(t, a.Next())
	require.Nil(t, a.Prev())

	l.Remove(c)
	l.Remove(b)
	require.True(t, l.Empty())
	require.Nil(t, l.Back())
}
