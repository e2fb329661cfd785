package adlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func values(l *List, direction int) []interface{} {
	var out []interface{}
	iter := l.Iterator(direction)
	for node := iter.Next(); node != nil; node = iter.Next() {
		out = append(out, node.NodeValue())
	}
	return out
}

func TestAddAndIterate(t *testing.T) {
	l := Create()
	l.AddNodeTail(2).AddNodeTail(3).AddNodeHead(1)
	require.Equal(t, 3, l.Len())
	require.Equal(t, []interface{}{1, 2, 3}, values(l, StartHead))
	require.Equal(t, []interface{}{3, 2, 1}, values(l, StartTail))
	require.Equal(t, 1, l.First().NodeValue())
	require.Equal(t, 3, l.Last().NodeValue())
	require.Nil(t, l.First().Prev())
	require.Equal(t, 2, l.First().Next().NodeValue())

	l.InsertNode(l.First(), "a", true)
	l.InsertNode(l.First(), "b", false)
	l.InsertNode(l.Last(), "z", true)
	require.Equal(t, []interface{}{"b", 1, "a", 2, 3, "z"}, values(l, StartHead))
	require.Equal(t, "z", l.Last().NodeValue())
	require.Equal(t, 6, l.Len())
}

func TestDelNodeWhileIterating(t *testing.T) {
	var freed []interface{}
	l := Create()
	l.SetFreeMethod(func(v interface{}) { freed = append(freed, v) })
	for i := 0; i < 6; i++ {
		l.AddNodeTail(i)
	}

	iter := l.Iterator(StartHead)
	for node := iter.Next(); node != nil; node = iter.Next() {
		if node.NodeValue().(int)%2 == 0 {
			l.DelNode(node)
		}
	}
	require.Equal(t, []interface{}{1, 3, 5}, values(l, StartHead))
	require.Equal(t, []interface{}{0, 2, 4}, freed)

	l.DelNode(l.Last())
	l.DelNode(l.First())
	require.Equal(t, []interface{}{3}, values(l, StartTail))
	l.DelNode(l.First())
	require.Zero(t, l.Len())
	require.Nil(t, l.First())
	require.Nil(t, l.Last())
}

func TestDupSearchEmpty(t *testing.T) {
	l := Create()
	l.SetDupMethod(func(v interface{}) interface{} { return v.(string) + "'" })
	l.SetMatchMethod(func(ptr, key interface{}) bool { return ptr.(string)[0] == key.(string)[0] })
	l.AddNodeTail("x").AddNodeTail("y")

	cp := l.Dup()
	require.Equal(t, []interface{}{"x'", "y'"}, values(cp, StartHead))
	require.Equal(t, "y'", cp.SearchKey("y").NodeValue())
	require.Nil(t, cp.SearchKey("q"))

	var nilList List
	nilList.AddNodeTail(7)
	require.Equal(t, 7, nilList.SearchKey(7).NodeValue())

	l.Empty()
	require.Zero(t, l.Len())
	require.Nil(t, values(l, StartHead))
	require.Equal(t, 2, cp.Len())
}
