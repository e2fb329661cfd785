package dict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// rehashingDict returns a dict holding keys [0,n) in the middle of a rehash.
func rehashingDict(t *testing.T, n int64) *Dict {
	t.Helper()
	d := Create(intType, nil)
	for i := int64(0); i < n; i++ {
		require.NoError(t, d.Add(ik(i), nil))
	}
	finishRehash(d)
	require.NoError(t, d.Expand(d.Slots()*4))
	d.Rehash(10)
	require.True(t, d.IsRehashing())
	return d
}

func TestIteratorEmpty(t *testing.T) {
	d := Create(intType, nil)
	iter := d.GetIterator()
	require.Nil(t, iter.Next())
	require.NotPanics(t, iter.Release)

	safe := d.GetSafeIterator()
	require.Nil(t, safe.Next())
	safe.Release()
	require.Empty(t, d.safeIters)
}

func TestIteratorVisitsBothTables(t *testing.T) {
	d := rehashingDict(t, 300)
	require.NotZero(t, d.ht[0].used)
	require.NotZero(t, d.ht[1].used)

	seen := make(map[int64]int)
	iter := d.GetIterator()
	for de := iter.Next(); de != nil; de = iter.Next() {
		seen[iv(GetKey(de))]++
	}
	require.NotPanics(t, iter.Release)

	require.Len(t, seen, 300)
	for k, n := range seen {
		require.Equal(t, 1, n, "key %d", k)
	}
}

func TestSafeIteratorAllowsModification(t *testing.T) {
	d := rehashingDict(t, 500)
	rehashIdx := d.rehashIdx

	seen := make(map[int64]int)
	iter := d.GetSafeIterator()
	for de := iter.Next(); de != nil; de = iter.Next() {
		k := iv(GetKey(de))
		seen[k]++
		require.NotNil(t, d.Find(ik(k)))
		if k%3 == 0 {
			require.NoError(t, d.Delete(ik(k)))
		}
		// No implicit rehash step while the iterator is alive.
		require.Equal(t, rehashIdx, d.rehashIdx)
	}
	require.Len(t, d.safeIters, 1)
	iter.Release()
	require.Empty(t, d.safeIters)

	require.Len(t, seen, 500)
	for k, n := range seen {
		require.Equal(t, 1, n, "key %d", k)
	}
	require.EqualValues(t, 500-167, d.Size())

	// Steps resume once the iterator is gone.
	d.Find(ik(1))
	require.NotEqual(t, rehashIdx, d.rehashIdx)
}

// walkRehashing drains a safe iterator over d, calling step after every
// returned key, and checks that each key is returned exactly once.
func walkRehashing(t *testing.T, d *Dict, step func(k int64)) map[int64]int {
	t.Helper()
	seen := make(map[int64]int)
	iter := d.GetSafeIterator()
	for de := iter.Next(); de != nil; de = iter.Next() {
		k := iv(GetKey(de))
		seen[k]++
		step(k)
	}
	iter.Release()
	require.Empty(t, d.safeIters)
	for k, n := range seen {
		require.Equal(t, 1, n, "key %d", k)
	}
	return seen
}

func TestSafeIteratorWithExplicitRehash(t *testing.T) {
	d := rehashingDict(t, 2100)
	seen := walkRehashing(t, d, func(int64) {
		d.Rehash(1)
	})
	require.Len(t, seen, 2100)

	finishRehash(d)
	require.EqualValues(t, 2100, d.Size())
}

func TestSafeIteratorRehashCompletesMidWalk(t *testing.T) {
	d := rehashingDict(t, 700)
	n := 0
	seen := walkRehashing(t, d, func(int64) {
		// The tables swap after a few keys; the walk continues on the new ht[0].
		if n++; n == 5 {
			finishRehash(d)
			require.False(t, d.IsRehashing())
		}
	})
	require.Len(t, seen, 700)
}

func TestSafeIteratorExplicitRehashAndDelete(t *testing.T) {
	d := rehashingDict(t, 1000)
	seen := walkRehashing(t, d, func(k int64) {
		if k%3 == 0 {
			require.NoError(t, d.Delete(ik(k)))
		}
		d.Rehash(3)
	})
	require.Len(t, seen, 1000)
	require.EqualValues(t, 1000-334, d.Size())
}

func TestSafeIteratorRehashStartedMidWalk(t *testing.T) {
	d := Create(intType, nil)
	for i := int64(0); i < 600; i++ {
		require.NoError(t, d.Add(ik(i), nil))
	}
	finishRehash(d)

	n := 0
	seen := walkRehashing(t, d, func(int64) {
		if n++; n == 300 {
			require.NoError(t, d.Expand(d.Slots()*2))
		}
		d.Rehash(4)
	})
	require.Len(t, seen, 600)
	require.False(t, d.IsRehashing())
}

func TestEmptyKeepsSafeIteratorBound(t *testing.T) {
	d := rehashingDict(t, 100)
	iter := d.GetSafeIterator()
	require.NotNil(t, iter.Next())

	d.Empty(nil)
	require.Len(t, d.safeIters, 1)
	require.Nil(t, iter.Next())
	iter.Release()
	require.Empty(t, d.safeIters)
	iter.Release()
	require.Empty(t, d.safeIters)

	// Implicit steps run again: the 5th key starts a rehash that Find finishes.
	for i := int64(0); i < 5; i++ {
		require.NoError(t, d.Add(ik(i), nil))
	}
	require.True(t, d.IsRehashing())
	for i := 0; i < 8 && d.IsRehashing(); i++ {
		d.Find(ik(0))
	}
	require.False(t, d.IsRehashing())
}

func TestUnsafeIteratorDetectsModification(t *testing.T) {
	d := Create(intType, nil)
	for i := int64(0); i < 50; i++ {
		require.NoError(t, d.Add(ik(i), nil))
	}
	finishRehash(d)

	iter := d.GetIterator()
	for de := iter.Next(); de != nil; de = iter.Next() {
	}
	require.NotPanics(t, iter.Release)

	iter = d.GetIterator()
	require.NotNil(t, iter.Next())
	require.NoError(t, d.Add(ik(1000), nil))
	require.Panics(t, iter.Release)

	iter = d.GetIterator()
	require.NotNil(t, iter.Next())
	require.NoError(t, d.Delete(ik(1000)))
	require.Panics(t, iter.Release)

	// A never started iterator has nothing to check.
	iter = d.GetIterator()
	require.NoError(t, d.Add(ik(2000), nil))
	require.NotPanics(t, iter.Release)
}

func TestFingerprint(t *testing.T) {
	d := Create(intType, nil)
	fp := d.Fingerprint()
	require.Equal(t, fp, d.Fingerprint())

	require.NoError(t, d.Add(ik(1), nil))
	fp1 := d.Fingerprint()
	require.NotEqual(t, fp, fp1)
	require.NotNil(t, d.Find(ik(1)))
	require.Equal(t, fp1, d.Fingerprint())

	// Same counters, different history.
	require.NoError(t, d.Delete(ik(1)))
	require.NoError(t, d.Add(ik(2), nil))
	require.NotEqual(t, fp1, d.Fingerprint())
}
