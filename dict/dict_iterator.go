package dict

import (
	"fmt"
	"unsafe"
)

// Iterator walks every entry of a Dict.
//
// A safe iterator may be used while the dict is modified (Add, Find,
// Delete...): it stops the implicit rehash steps until it is released. An
// explicit Rehash may still run; entries it moves out of buckets the iterator
// already walked are remembered and not returned a second time. An unsafe
// iterator only allows Next to be called until Release; any other structural
// change is detected on Release and panics.
type Iterator struct {
	d                *Dict
	index            int64
	table            int
	safe             bool
	begun            bool
	entry, nextEntry *Entry
	fingerprint      int64
	// 已经返回过、之后被rehash迁到ht[1]的节点
	returned map[*Entry]struct{}
}

func (dict *Dict) GetIterator() *Iterator {
	return &Iterator{
		d:     dict,
		index: -1,
	}
}

func (dict *Dict) GetSafeIterator() *Iterator {
	iter := dict.GetIterator()
	iter.safe = true
	return iter
}

// moving is called before bucket idx of ht[0], headed by de, is migrated to
// ht[1]. Entries the iterator already returned from it are remembered so the
// walk of ht[1] skips them.
func (iter *Iterator) moving(idx int64, de *Entry) {
	if iter.table == 0 && iter.index < idx {
		return
	}
	current := iter.table == 0 && iter.index == idx && iter.entry != nil
	for ; de != nil; de = de.next {
		if current && de == iter.nextEntry {
			break
		}
		if iter.returned == nil {
			iter.returned = make(map[*Entry]struct{})
		}
		iter.returned[de] = struct{}{}
	}
	// 剩下的节点会在ht[1]里遇到
	if current {
		iter.entry, iter.nextEntry = nil, nil
	}
}

// rebase follows the table swap at the end of a rehash: ht[1] becomes ht[0].
// Everything an iterator returned from the old ht[0] has been remembered by
// moving, so one still on the old ht[0] restarts on the new table.
func (iter *Iterator) rebase() {
	if iter.table == 1 {
		iter.table = 0
		return
	}
	iter.index = -1
	iter.entry, iter.nextEntry = nil, nil
}

// reset moves the iterator back to the start of an emptied dict.
func (iter *Iterator) reset() {
	iter.table = 0
	iter.index = -1
	iter.entry, iter.nextEntry = nil, nil
	iter.returned = nil
}

func (iter *Iterator) Next() *Entry {
	for {
		if iter.entry == nil {
			ht := &iter.d.ht[iter.table]
			if !iter.begun {
				iter.begun = true
				if iter.safe {
					iter.d.safeIters = append(iter.d.safeIters, iter)
				} else {
					iter.fingerprint = iter.d.Fingerprint()
				}
			}
			iter.index++
			if iter.index >= ht.size {
				if iter.d.IsRehashing() && iter.table == 0 {
					iter.table++
					iter.index = 0
					ht = &iter.d.ht[1]
				} else {
					break
				}
			}
			iter.entry = ht.table[iter.index]
		} else {
			iter.entry = iter.nextEntry
		}
		if iter.entry != nil {
			// 保存next，调用方可以删除当前返回的节点
			iter.nextEntry = iter.entry.next
			if _, ok := iter.returned[iter.entry]; ok {
				delete(iter.returned, iter.entry)
				continue
			}
			return iter.entry
		}
	}
	return nil
}

func (iter *Iterator) Release() {
	if !iter.begun {
		return
	}
	if iter.safe {
		iter.d.unbind(iter)
		iter.returned = nil
		return
	}
	if fp := iter.d.Fingerprint(); fp != iter.fingerprint {
		panic(fmt.Sprintf("dict: unsafe iterator fingerprint mismatch (%d != %d): dict modified during iteration", iter.fingerprint, fp))
	}
}

// Fingerprint summarizes the state of the dict at a given time. If it
// changed, the dict was structurally modified (add, delete, rehash step...).
func (dict *Dict) Fingerprint() int64 {
	integers := [7]int64{
		int64(uintptr(unsafe.Pointer(unsafe.SliceData(dict.ht[0].table)))),
		dict.ht[0].size,
		dict.ht[0].used,
		int64(uintptr(unsafe.Pointer(unsafe.SliceData(dict.ht[1].table)))),
		dict.ht[1].size,
		dict.ht[1].used,
		int64(dict.gen),
	}

	// hash = hash(hash(hash(int1)+int2)+int3) ...
	var hash int64
	for _, v := range integers {
		hash += v
		hash = (^hash) + (hash << 21)
		hash = hash ^ int64(uint64(hash)>>24)
		hash = (hash + (hash << 3)) + (hash << 8)
		hash = hash ^ int64(uint64(hash)>>14)
		hash = (hash + (hash << 2)) + (hash << 4)
		hash = hash ^ int64(uint64(hash)>>28)
		hash = hash + (hash << 31)
	}
	return hash
}
