package dict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRandomKeyEmpty(t *testing.T) {
	d := Create(intType, nil)
	require.Nil(t, d.GetRandomKey())
	require.Nil(t, d.GetRandomKeys(10))

	require.NoError(t, d.Add(ik(1), nil))
	require.NoError(t, d.Delete(ik(1)))
	require.Nil(t, d.GetRandomKey())
}

func TestGetRandomKeyReturnsEveryKey(t *testing.T) {
	d := Create(intType, nil)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, d.Add(ik(i), nil))
	}

	seen := make(map[int64]bool)
	for i := 0; i < 2000; i++ {
		de := d.GetRandomKey()
		require.NotNil(t, de)
		k := iv(GetKey(de))
		require.True(t, k >= 0 && k < 10, "unexpected key %d", k)
		seen[k] = true
	}
	require.Len(t, seen, 10)
}

func TestGetRandomKeyWhileRehashing(t *testing.T) {
	d := rehashingDict(t, 300)
	for i := 0; i < 500 && d.IsRehashing(); i++ {
		de := d.GetRandomKey()
		require.NotNil(t, de)
		require.Same(t, de, d.Find(GetKey(de)))
	}
}

func TestGetRandomKeys(t *testing.T) {
	d := Create(intType, nil)
	for i := int64(0); i < 100; i++ {
		require.NoError(t, d.Add(ik(i), nil))
	}

	des := d.GetRandomKeys(10)
	require.Len(t, des, 10)
	distinct := make(map[*Entry]bool)
	for _, de := range des {
		distinct[de] = true
	}
	require.Len(t, distinct, 10)

	// Asking for more than the dict holds returns everything once.
	des = d.GetRandomKeys(500)
	require.Len(t, des, 100)
	keys := make(map[int64]bool)
	for _, de := range des {
		keys[iv(GetKey(de))] = true
	}
	require.Len(t, keys, 100)

	require.Nil(t, d.GetRandomKeys(0))
}

func TestGetRandomKeysWhileRehashing(t *testing.T) {
	d := rehashingDict(t, 300)
	des := d.GetRandomKeys(300)
	require.Len(t, des, 300)

	keys := make(map[int64]bool)
	for _, de := range des {
		keys[iv(GetKey(de))] = true
	}
	require.Len(t, keys, 300)
}
