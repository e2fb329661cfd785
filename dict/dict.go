// Package dict implements an in-memory hash table with chained buckets.
//
// Tables are always sized to a power of two. Growing (and shrinking) is done
// incrementally: a second table is allocated and buckets are moved from the
// old table to the new one a few at a time, piggybacking on normal operations
// or driven explicitly through Rehash and RehashMilliseconds.
//
// A Dict is not safe for concurrent use.
package dict

import (
	"errors"
	"math"
	"unsafe"

	"github.com/pengdafu/redis-dict/util"
	"github.com/pengdafu/redis-dict/zmalloc"
)

const HtInitialSize = int64(4)

var (
	dictCanResize        = true
	dictForceResizeRatio = int64(5)
)

var (
	ErrKeyExists      = errors.New("dict: key already exists")
	ErrKeyNotFound    = errors.New("dict: key not found")
	ErrRehashing      = errors.New("dict: rehashing in progress")
	ErrExpandTooSmall = errors.New("dict: requested size is smaller than the number of elements")
	ErrExpandSameSize = errors.New("dict: table already has the requested size")
	ErrResizeDisabled = errors.New("dict: resize is disabled")
)

type Dict struct {
	typ       *Type
	privData  interface{}
	ht        [2]dictHt
	rehashIdx int64 // -1 表示没有进行rehash
	// 已经开始遍历、尚未Release的安全迭代器
	safeIters []*Iterator
	// gen changes on every structural modification; mixed into Fingerprint.
	gen uint64
}

// Type bundles the callbacks a Dict uses to deal with its keys and values.
// Only HashFunction is mandatory. A nil KeyCompare compares the pointers, a
// nil KeyDup/ValDup stores the caller's pointer as is.
type Type struct {
	HashFunction  func(key unsafe.Pointer) uint64
	KeyDup        func(privData interface{}, key unsafe.Pointer) unsafe.Pointer
	ValDup        func(privData interface{}, obj unsafe.Pointer) unsafe.Pointer
	KeyCompare    func(privData interface{}, key1, key2 unsafe.Pointer) bool
	KeyDestructor func(privData interface{}, key unsafe.Pointer)
	ValDestructor func(privData interface{}, obj unsafe.Pointer)
}

func Create(tp *Type, privData interface{}) *Dict {
	d := zmalloc.New[Dict]()
	d.init(tp, privData)
	return d
}

func (dict *Dict) init(typ *Type, privData interface{}) {
	dict.ht[0].reset()
	dict.ht[1].reset()

	dict.typ = typ
	dict.privData = privData
	dict.rehashIdx = -1
	dict.safeIters = nil
}

func EnableResize() {
	dictCanResize = true
}

func DisableResize() {
	dictCanResize = false
}

func CanResize() bool {
	return dictCanResize
}

func (dict *Dict) Size() int64 {
	return dict.ht[0].used + dict.ht[1].used
}

func (dict *Dict) Slots() int64 {
	return dict.ht[0].size + dict.ht[1].size
}

func (dict *Dict) IsRehashing() bool {
	return dict.rehashIdx != -1
}

func (dict *Dict) PrivData() interface{} {
	return dict.privData
}

func (dict *Dict) setKey(entry *Entry, key unsafe.Pointer) {
	if dict.typ.KeyDup != nil {
		entry.key = dict.typ.KeyDup(dict.privData, key)
	} else {
		entry.key = key
	}
}

// SetVal stores obj in entry, duplicating it when the type has a ValDup.
func (dict *Dict) SetVal(entry *Entry, obj unsafe.Pointer) {
	if dict.typ.ValDup != nil {
		entry.v.val = dict.typ.ValDup(dict.privData, obj)
	} else {
		entry.v.val = obj
	}
}

func (dict *Dict) GetVal(entry *Entry) unsafe.Pointer {
	return entry.v.val
}

func (dict *Dict) freeKey(entry *Entry) {
	if dict.typ.KeyDestructor != nil {
		dict.typ.KeyDestructor(dict.privData, entry.key)
	}
}

func (dict *Dict) freeVal(entry *Entry) {
	if dict.typ.ValDestructor != nil {
		dict.typ.ValDestructor(dict.privData, entry.v.val)
	}
}

func (dict *Dict) compareKey(key1, key2 unsafe.Pointer) bool {
	if key1 == key2 {
		return true
	}
	if dict.typ.KeyCompare == nil {
		return false
	}
	return dict.typ.KeyCompare(dict.privData, key1, key2)
}

func (dict *Dict) hashKey(key unsafe.Pointer) uint64 {
	return dict.typ.HashFunction(key)
}

// Expand creates or grows the table so it can hold at least size elements.
// When the dict already has a table the new one is filled incrementally.
func (dict *Dict) Expand(size int64) error {
	if dict.IsRehashing() {
		return ErrRehashing
	}
	if dict.ht[0].used > size {
		return ErrExpandTooSmall
	}
	realSize := nextPower(size)
	if realSize == dict.ht[0].size {
		return ErrExpandSameSize
	}

	n := newDictHt(realSize)
	dict.gen++
	// 第一次初始化，直接作为ht[0]
	if dict.ht[0].table == nil {
		dict.ht[0] = n
		return nil
	}
	dict.ht[1] = n
	dict.rehashIdx = 0
	return nil
}

// Resize shrinks or grows the table to the smallest power of two that holds
// every element, with a load factor near 1.
func (dict *Dict) Resize() error {
	if dict.IsRehashing() {
		return ErrRehashing
	}
	if !dictCanResize && !dict.overForceRatio() {
		return ErrResizeDisabled
	}
	minimal := dict.ht[0].used
	if minimal < HtInitialSize {
		minimal = HtInitialSize
	}
	return dict.Expand(minimal)
}

func (dict *Dict) overForceRatio() bool {
	return dict.ht[0].size > 0 && dict.ht[0].used/dict.ht[0].size > dictForceResizeRatio
}

func nextPower(size int64) int64 {
	if size >= math.MaxInt64/2 {
		return math.MaxInt64/2 + 1
	}
	i := HtInitialSize
	for i < size {
		i *= 2
	}
	return i
}

func (dict *Dict) expandIfNeeded() error {
	if dict.IsRehashing() {
		return nil
	}

	if dict.ht[0].size == 0 {
		return dict.Expand(HtInitialSize)
	}

	if dict.ht[0].used >= dict.ht[0].size && (dictCanResize || dict.overForceRatio()) {
		return dict.Expand(dict.ht[0].used * 2)
	}
	return nil
}

// Rehash moves up to n non empty buckets from the old table to the new one.
// At most 10*n empty buckets are skipped per call so a sparse table cannot
// stall the caller. It reports whether there is still work left.
func (dict *Dict) Rehash(n int) bool {
	if !dict.IsRehashing() {
		return false
	}
	emptyVisits := n * 10

	for ; n > 0 && dict.ht[0].used != 0; n-- {
		if dict.rehashIdx >= dict.ht[0].size {
			panic("dict: rehash index out of range with entries left")
		}
		for dict.ht[0].table[dict.rehashIdx] == nil {
			dict.rehashIdx++
			emptyVisits--
			if emptyVisits == 0 {
				return true
			}
		}
		de := dict.ht[0].table[dict.rehashIdx]
		for _, iter := range dict.safeIters {
			iter.moving(dict.rehashIdx, de)
		}
		for de != nil {
			nextDe := de.next
			h := dict.hashKey(de.key) & dict.ht[1].sizeMask
			de.next = dict.ht[1].table[h]
			dict.ht[1].table[h] = de
			dict.ht[0].used--
			dict.ht[1].used++
			de = nextDe
		}
		dict.ht[0].table[dict.rehashIdx] = nil
		dict.rehashIdx++
		dict.gen++
	}

	// 迁移完成，ht[1] 变成 ht[0]
	if dict.ht[0].used == 0 {
		dict.ht[0].free()
		dict.ht[0] = dict.ht[1]
		dict.ht[1].reset()
		dict.rehashIdx = -1
		dict.gen++
		for _, iter := range dict.safeIters {
			iter.rebase()
		}
		return false
	}
	return true
}

// unbind forgets a released safe iterator. Releasing twice is a no-op.
func (dict *Dict) unbind(iter *Iterator) {
	for i, it := range dict.safeIters {
		if it == iter {
			last := len(dict.safeIters) - 1
			dict.safeIters[i] = dict.safeIters[last]
			dict.safeIters[last] = nil
			dict.safeIters = dict.safeIters[:last]
			return
		}
	}
}

// RehashMilliseconds rehashes in batches of 100 buckets for roughly ms
// milliseconds and returns the number of buckets scheduled.
func (dict *Dict) RehashMilliseconds(ms int64) int {
	start := util.GetMillionSeconds()
	rehashes := 0

	for dict.Rehash(100) {
		rehashes += 100
		if util.GetMillionSeconds()-start > ms {
			break
		}
	}
	return rehashes
}

// rehashStep performs a single bucket move, unless safe iterators are bound
// to the dict: they rely on the layout staying put.
func (dict *Dict) rehashStep() {
	if len(dict.safeIters) == 0 {
		dict.Rehash(1)
	}
}

// keyIndex returns the bucket where key should be inserted, or -1 when the
// key is already there (stored in *existing if not nil).
func (dict *Dict) keyIndex(key unsafe.Pointer, hash uint64, existing **Entry) int64 {
	if existing != nil {
		*existing = nil
	}

	if dict.expandIfNeeded() != nil {
		return -1
	}
	var idx uint64
	for table := 0; table <= 1; table++ {
		idx = hash & dict.ht[table].sizeMask
		he := dict.ht[table].table[idx]
		for he != nil {
			if dict.compareKey(key, he.key) {
				if existing != nil {
					*existing = he
				}
				return -1
			}
			he = he.next
		}
		if !dict.IsRehashing() {
			break
		}
	}
	return int64(idx)
}

// AddRaw adds key without setting a value and returns the new entry, so the
// caller can fill the value field of its choice. It returns nil if the key
// already exists, in which case *existing (when given) points to it.
func (dict *Dict) AddRaw(key unsafe.Pointer, existing **Entry) *Entry {
	if dict.IsRehashing() {
		dict.rehashStep()
	}

	index := dict.keyIndex(key, dict.hashKey(key), existing)
	if index == -1 {
		return nil
	}

	// rehash 期间新节点只插入 ht[1]
	ht := &dict.ht[0]
	if dict.IsRehashing() {
		ht = &dict.ht[1]
	}
	entry := zmalloc.New[Entry]()
	entry.next = ht.table[index]
	ht.table[index] = entry
	ht.used++
	dict.gen++

	dict.setKey(entry, key)
	return entry
}

func (dict *Dict) Add(key, value unsafe.Pointer) error {
	entry := dict.AddRaw(key, nil)
	if entry == nil {
		return ErrKeyExists
	}

	dict.SetVal(entry, value)
	return nil
}

// Replace adds key or overwrites its value. It returns true if the key was
// added and false if an existing value was replaced.
func (dict *Dict) Replace(key, value unsafe.Pointer) bool {
	var existing *Entry
	if entry := dict.AddRaw(key, &existing); entry != nil {
		dict.SetVal(entry, value)
		return true
	}

	// Set the new value before freeing the old one: both may be the same
	// reference counted object.
	aux := *existing
	dict.SetVal(existing, value)
	dict.freeVal(&aux)
	return false
}

// AddOrFind returns the entry of key, adding it first if needed.
func (dict *Dict) AddOrFind(key unsafe.Pointer) *Entry {
	var existing *Entry
	if entry := dict.AddRaw(key, &existing); entry != nil {
		return entry
	}
	return existing
}

func (dict *Dict) Find(key unsafe.Pointer) *Entry {
	if dict.Size() == 0 {
		return nil
	}
	if dict.IsRehashing() {
		dict.rehashStep()
	}

	h := dict.hashKey(key)
	for table := 0; table <= 1; table++ {
		idx := h & dict.ht[table].sizeMask
		he := dict.ht[table].table[idx]
		for he != nil {
			if dict.compareKey(key, he.key) {
				return he
			}
			he = he.next
		}
		if !dict.IsRehashing() {
			return nil
		}
	}
	return nil
}

func (dict *Dict) FetchValue(key unsafe.Pointer) unsafe.Pointer {
	he := dict.Find(key)
	if he != nil {
		return dict.GetVal(he)
	}
	return nil
}

func (dict *Dict) genericDelete(key unsafe.Pointer, noFree bool) error {
	if dict.ht[0].size == 0 {
		return ErrKeyNotFound
	}
	if dict.IsRehashing() {
		dict.rehashStep()
	}

	h := dict.hashKey(key)
	for table := 0; table <= 1; table++ {
		idx := h & dict.ht[table].sizeMask
		var prevHe *Entry
		he := dict.ht[table].table[idx]
		for he != nil {
			if dict.compareKey(key, he.key) {
				if prevHe != nil {
					prevHe.next = he.next
				} else {
					dict.ht[table].table[idx] = he.next
				}
				if !noFree {
					dict.freeKey(he)
					dict.freeVal(he)
				}
				zmalloc.Release(he)
				dict.ht[table].used--
				dict.gen++
				return nil
			}
			prevHe = he
			he = he.next
		}
		if !dict.IsRehashing() {
			break
		}
	}
	return ErrKeyNotFound
}

// Delete removes key, calling the key and value destructors.
func (dict *Dict) Delete(key unsafe.Pointer) error {
	return dict.genericDelete(key, false)
}

// DeleteNoFree removes key without calling the destructors.
func (dict *Dict) DeleteNoFree(key unsafe.Pointer) error {
	return dict.genericDelete(key, true)
}

func (dict *Dict) clear(ht *dictHt, callback func(privData interface{})) {
	for i := int64(0); i < ht.size && ht.used > 0; i++ {
		if callback != nil && i&65535 == 0 {
			callback(dict.privData)
		}

		he := ht.table[i]
		for he != nil {
			nextHe := he.next
			dict.freeKey(he)
			dict.freeVal(he)
			zmalloc.Release(he)
			ht.used--
			he = nextHe
		}
	}
	ht.free()
	dict.gen++
}

// Release destroys every element and the tables. The dict must not be used
// afterwards.
func (dict *Dict) Release() {
	dict.clear(&dict.ht[0], nil)
	dict.clear(&dict.ht[1], nil)
	zmalloc.Release(dict)
}

// Empty removes every element, leaving the dict as if freshly created.
// callback, when not nil, is invoked every 65536 buckets so long clears can
// yield to other work.
func (dict *Dict) Empty(callback func(privData interface{})) {
	dict.clear(&dict.ht[0], callback)
	dict.clear(&dict.ht[1], callback)
	dict.rehashIdx = -1
	// 绑定的安全迭代器仍需调用方Release，这里把它们移回起点
	for _, iter := range dict.safeIters {
		iter.reset()
	}
}
