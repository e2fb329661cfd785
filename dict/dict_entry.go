package dict

import "unsafe"

type Entry struct {
	key unsafe.Pointer
	v   struct {
		val unsafe.Pointer
		u64 uint64
		s64 int64
		d   float64
	}
	next *Entry
}

func (e *Entry) Next() *Entry {
	return e.next
}

func GetKey(e *Entry) unsafe.Pointer {
	return e.key
}

func GetVal(e *Entry) unsafe.Pointer {
	return e.v.val
}

func GetSignedIntegerVal(e *Entry) int64 {
	return e.v.s64
}

func SetSignedIntegerVal(e *Entry, v int64) {
	e.v.s64 = v
}

func GetUnsignedIntegerVal(e *Entry) uint64 {
	return e.v.u64
}

func SetUnsignedIntegerVal(e *Entry, v uint64) {
	e.v.u64 = v
}

func GetDoubleVal(e *Entry) float64 {
	return e.v.d
}

func SetDoubleVal(e *Entry, v float64) {
	e.v.d = v
}
