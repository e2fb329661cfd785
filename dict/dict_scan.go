package dict

import "math/bits"

type ScanFunc func(privData interface{}, de *Entry)

// Scan iterates the dict with a cursor held by the caller. Start with v = 0,
// call Scan with the returned cursor until it is 0 again. fn is called for
// every entry of the buckets visited by this call.
//
// Every element present from the first to the last call is returned at least
// once, even if the table grows or shrinks in between. Elements may be
// returned more than once.
//
// The cursor is incremented on its reversed bits: the high bits are bumped
// first. Masking the cursor with a bigger or smaller table size then always
// lands on buckets that were not fully visited yet, because a bucket of the
// 2^n table expands to the buckets of the 2^(n+k) table that share its low n
// bits, and those are visited next to each other in reversed order.
func (dict *Dict) Scan(v uint64, fn ScanFunc, privData interface{}) uint64 {
	if dict.Size() == 0 {
		return 0
	}

	var m0 uint64
	if !dict.IsRehashing() {
		t0 := &dict.ht[0]
		m0 = t0.sizeMask

		scanBucket(t0.table[v&m0], fn, privData)
	} else {
		t0, t1 := &dict.ht[0], &dict.ht[1]
		// t0 为较小的表
		if t0.size > t1.size {
			t0, t1 = t1, t0
		}
		m0 = t0.sizeMask
		m1 := t1.sizeMask

		scanBucket(t0.table[v&m0], fn, privData)

		// Visit every bucket of the larger table that is an expansion of
		// the bucket of the smaller one.
		for {
			scanBucket(t1.table[v&m1], fn, privData)

			v = (((v | m0) + 1) &^ m0) | (v & m0)
			if v&(m0^m1) == 0 {
				break
			}
		}
	}

	// 反转二进制位加一
	v |= ^m0
	v = bits.Reverse64(v)
	v++
	v = bits.Reverse64(v)
	return v
}

func scanBucket(de *Entry, fn ScanFunc, privData interface{}) {
	for de != nil {
		next := de.next
		fn(privData, de)
		de = next
	}
}
