// Package intset implements a sorted set of integers stored in a compact
// byte array. Every member uses the encoding of the widest one, upgraded on
// demand and never downgraded.
package intset

import (
	"math"
	"math/rand"

	"github.com/pengdafu/redis-dict/util"
	"github.com/pengdafu/redis-dict/zmalloc"
)

const (
	EncInt16 = 2
	EncInt32 = 4
	EncInt64 = 8
)

type IntSet struct {
	encoding uint8
	length   uint32
	contents []byte // little endian
}

func New() *IntSet {
	is := zmalloc.New[IntSet]()
	is.encoding = EncInt16
	return is
}

func valueEncoding(v int64) uint8 {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return EncInt64
	} else if v < math.MinInt16 || v > math.MaxInt16 {
		return EncInt32
	}
	return EncInt16
}

func (is *IntSet) getEncoded(pos int, enc uint8) int64 {
	return util.GetInt(is.contents[pos*int(enc):], int(enc))
}

func (is *IntSet) get(pos int) int64 {
	return is.getEncoded(pos, is.encoding)
}

func (is *IntSet) set(pos int, value int64) {
	util.PutInt(is.contents[pos*int(is.encoding):], value, int(is.encoding))
}

func (is *IntSet) resize(length uint32) {
	is.contents = zmalloc.Realloc(is.contents, int(length)*int(is.encoding))
}

// search 查找value的位置，没找到时pos为可以插入的位置
func (is *IntSet) search(value int64) (pos int, found bool) {
	if is.length == 0 {
		return 0, false
	}
	lo, hi := 0, int(is.length)-1
	if value > is.get(hi) {
		return int(is.length), false
	} else if value < is.get(0) {
		return 0, false
	}

	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		cur := is.get(mid)
		if value > cur {
			lo = mid + 1
		} else if value < cur {
			hi = mid - 1
		} else {
			return mid, true
		}
	}
	return lo, false
}

// upgradeAndAdd widens the encoding to fit value. value is out of the range
// of every current member so it is either the new head or the new tail.
func (is *IntSet) upgradeAndAdd(value int64) {
	curEnc := is.encoding
	prepend := 0
	if value < 0 {
		prepend = 1
	}

	old := is.contents
	is.encoding = valueEncoding(value)
	is.contents = zmalloc.MakeSlice[byte](int(is.length+1) * int(is.encoding))
	for i := 0; i < int(is.length); i++ {
		is.set(i+prepend, util.GetInt(old[i*int(curEnc):], int(curEnc)))
	}
	zmalloc.FreeSlice(old)

	if prepend > 0 {
		is.set(0, value)
	} else {
		is.set(int(is.length), value)
	}
	is.length++
}

func (is *IntSet) moveTail(from, to int) {
	enc := int(is.encoding)
	copy(is.contents[to*enc:], is.contents[from*enc:int(is.length)*enc])
}

// Add inserts value and reports whether it was not already a member.
func (is *IntSet) Add(value int64) bool {
	if valueEncoding(value) > is.encoding {
		is.upgradeAndAdd(value)
		return true
	}
	pos, found := is.search(value)
	if found {
		return false
	}
	is.resize(is.length + 1)
	if pos < int(is.length) {
		is.moveTail(pos, pos+1)
	}
	is.set(pos, value)
	is.length++
	return true
}

// Remove deletes value and reports whether it was a member.
func (is *IntSet) Remove(value int64) bool {
	if valueEncoding(value) > is.encoding {
		return false
	}
	pos, found := is.search(value)
	if !found {
		return false
	}
	if pos < int(is.length)-1 {
		is.moveTail(pos+1, pos)
	}
	is.length--
	is.resize(is.length)
	return true
}

func (is *IntSet) Find(value int64) bool {
	if valueEncoding(value) > is.encoding {
		return false
	}
	_, found := is.search(value)
	return found
}

// Get returns the member at pos in ascending order.
func (is *IntSet) Get(pos int) (int64, bool) {
	if pos < 0 || pos >= int(is.length) {
		return 0, false
	}
	return is.get(pos), true
}

// Random returns a random member. The set must not be empty.
func (is *IntSet) Random() int64 {
	return is.get(rand.Intn(int(is.length)))
}

func (is *IntSet) Len() int {
	return int(is.length)
}

func (is *IntSet) Encoding() uint8 {
	return is.encoding
}

// BlobLen is the serialized size: the encoding, the length and the members.
func (is *IntSet) BlobLen() int {
	return 4 + 4 + int(is.length)*int(is.encoding)
}

// Free releases the contents of is.
func (is *IntSet) Free() {
	zmalloc.FreeSlice(is.contents)
	is.contents = nil
	is.length = 0
	zmalloc.Release(is)
}
