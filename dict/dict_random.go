package dict

import "math/rand"

// GetRandomKey returns a random entry, or nil if the dict is empty.
//
// A random non empty bucket is picked first, then a random element of its
// chain, so elements in long chains are less likely to be returned than
// elements alone in their bucket.
func (dict *Dict) GetRandomKey() *Entry {
	if dict.Size() == 0 {
		return nil
	}
	if dict.IsRehashing() {
		dict.rehashStep()
	}

	var he *Entry
	if dict.IsRehashing() {
		// Buckets of ht[0] below rehashIdx are empty, skip them.
		for he == nil {
			h := dict.rehashIdx + rand.Int63n(dict.Slots()-dict.rehashIdx)
			if h >= dict.ht[0].size {
				he = dict.ht[1].table[h-dict.ht[0].size]
			} else {
				he = dict.ht[0].table[h]
			}
		}
	} else {
		for he == nil {
			h := rand.Uint64() & dict.ht[0].sizeMask
			he = dict.ht[0].table[h]
		}
	}

	listLen := 0
	for orig := he; orig != nil; orig = orig.next {
		listLen++
	}
	for listEle := rand.Intn(listLen); listEle > 0; listEle-- {
		he = he.next
	}
	return he
}

// GetRandomKeys returns up to count entries, starting at a random bucket and
// collecting whole chains from consecutive buckets of both tables. Every
// bucket is visited at most once, so fewer than count entries are returned
// only when the dict holds fewer elements. The result is not a uniform
// sample and the entries are only valid until the next modification.
func (dict *Dict) GetRandomKeys(count int) []*Entry {
	if size := dict.Size(); int64(count) > size {
		count = int(size)
	}
	if count <= 0 {
		return nil
	}

	des := make([]*Entry, 0, count)
	s0 := dict.ht[0].size
	slots := dict.Slots()
	i := rand.Int63n(slots)
	for visited := int64(0); visited < slots; visited++ {
		var he *Entry
		if i < s0 {
			he = dict.ht[0].table[i]
		} else {
			he = dict.ht[1].table[i-s0]
		}
		for ; he != nil; he = he.next {
			des = append(des, he)
			if len(des) == count {
				return des
			}
		}
		if i++; i == slots {
			i = 0
		}
	}
	return des
}
