package dict

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"

	"github.com/pengdafu/redis-dict/util"
)

// The seed must be set before any dict hashing strings starts receiving
// keys: changing it afterwards leaves existing elements in the wrong bucket.
var (
	dictSeedKey = [16]byte{'r', 'e', 'd', 'i', 's', '-', 'd', 'i', 'c', 't', '-', 's', 'e', 'e', 'd', 0}
	dictSeedK0  = binary.LittleEndian.Uint64(dictSeedKey[:8])
	dictSeedK1  = binary.LittleEndian.Uint64(dictSeedKey[8:])
)

// SetHashFunctionSeed sets the process wide key of the string hash
// functions. Only the first 16 bytes are used; shorter seeds are zero padded.
func SetHashFunctionSeed(seed []byte) {
	dictSeedKey = [16]byte{}
	copy(dictSeedKey[:], seed)
	dictSeedK0 = binary.LittleEndian.Uint64(dictSeedKey[:8])
	dictSeedK1 = binary.LittleEndian.Uint64(dictSeedKey[8:])
}

func GetHashFunctionSeed() []byte {
	seed := dictSeedKey
	return seed[:]
}

// GenHashFunction is SipHash-2-4 of buf keyed by the seed.
func GenHashFunction(buf []byte) uint64 {
	return siphash.Hash(dictSeedK0, dictSeedK1, buf)
}

// GenCaseHashFunction is GenHashFunction of buf with ASCII letters lowered,
// so "KEY" and "key" hash the same.
func GenCaseHashFunction(buf []byte) uint64 {
	h := siphash.New(dictSeedKey[:])
	writeLower(h, buf)
	return h.Sum64()
}

// GenFastHashFunction is a seeded xxhash64 of buf. It is cheaper than
// GenHashFunction and meant for tables whose keys are not user controlled.
func GenFastHashFunction(buf []byte) uint64 {
	var d xxhash.Digest
	d.ResetWithSeed(dictSeedK0 ^ dictSeedK1)
	_, _ = d.Write(buf)
	return d.Sum64()
}

// GenFastCaseHashFunction is GenFastHashFunction of buf with ASCII letters
// lowered.
func GenFastCaseHashFunction(buf []byte) uint64 {
	var d xxhash.Digest
	d.ResetWithSeed(dictSeedK0 ^ dictSeedK1)
	writeLower(&d, buf)
	return d.Sum64()
}

// writeLower feeds buf to w lowered, 64 bytes at a time.
func writeLower(w io.Writer, buf []byte) {
	var lower [64]byte
	for len(buf) > 0 {
		n := copy(lower[:], buf)
		for i := 0; i < n; i++ {
			lower[i] = util.ToLower(lower[i])
		}
		_, _ = w.Write(lower[:n])
		buf = buf[n:]
	}
}

// IntHashFunction is Thomas Wang's 32 bit mix function.
func IntHashFunction(key uint32) uint32 {
	key += ^(key << 15)
	key ^= key >> 10
	key += key << 3
	key ^= key >> 6
	key += ^(key << 11)
	key ^= key >> 16
	return key
}

func IdentityHashFunction(key uint64) uint64 {
	return key
}
