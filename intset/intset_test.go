package intset

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func members(is *IntSet) []int64 {
	var out []int64
	for i := 0; ; i++ {
		v, ok := is.Get(i)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestValueEncoding(t *testing.T) {
	require.EqualValues(t, EncInt16, valueEncoding(-32768))
	require.EqualValues(t, EncInt16, valueEncoding(32767))
	require.EqualValues(t, EncInt32, valueEncoding(-32769))
	require.EqualValues(t, EncInt32, valueEncoding(32768))
	require.EqualValues(t, EncInt32, valueEncoding(math.MinInt32))
	require.EqualValues(t, EncInt64, valueEncoding(math.MaxInt32+1))
	require.EqualValues(t, EncInt64, valueEncoding(math.MinInt64))
}

func TestAddRemove(t *testing.T) {
	is := New()
	require.True(t, is.Add(5))
	require.True(t, is.Add(6))
	require.True(t, is.Add(4))
	require.False(t, is.Add(4))
	require.Equal(t, []int64{4, 5, 6}, members(is))
	require.EqualValues(t, EncInt16, is.Encoding())
	require.Equal(t, 8+3*2, is.BlobLen())

	require.True(t, is.Find(5))
	require.False(t, is.Find(7))
	require.False(t, is.Find(math.MaxInt64))

	require.True(t, is.Remove(5))
	require.False(t, is.Remove(5))
	require.False(t, is.Remove(math.MinInt64))
	require.Equal(t, []int64{4, 6}, members(is))

	_, ok := is.Get(-1)
	require.False(t, ok)
}

func TestUpgrade(t *testing.T) {
	is := New()
	require.True(t, is.Add(32))
	require.True(t, is.Add(65535))
	require.EqualValues(t, EncInt32, is.Encoding())
	require.Equal(t, []int64{32, 65535}, members(is))

	require.True(t, is.Add(-4294967295))
	require.EqualValues(t, EncInt64, is.Encoding())
	require.Equal(t, []int64{-4294967295, 32, 65535}, members(is))

	// Never downgraded.
	require.True(t, is.Remove(-4294967295))
	require.EqualValues(t, EncInt64, is.Encoding())
	require.Equal(t, []int64{32, 65535}, members(is))
}

func TestStaysSorted(t *testing.T) {
	is := New()
	want := make(map[int64]bool)
	for i := 0; i < 1024; i++ {
		v := rand.Int63n(1<<20) - 1<<19
		require.Equal(t, !want[v], is.Add(v))
		want[v] = true
	}
	for v := range want {
		if v%2 == 0 {
			require.True(t, is.Remove(v))
			delete(want, v)
		}
	}

	var sorted []int64
	for v := range want {
		sorted = append(sorted, v)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	require.Equal(t, sorted, members(is))
	require.Equal(t, len(want), is.Len())

	for i := 0; i < 100; i++ {
		require.True(t, want[is.Random()])
	}
	is.Free()
	require.Zero(t, is.Len())
}
