package server

import (
	"strconv"
	"unsafe"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/intset"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
	"github.com/pengdafu/redis-dict/zmalloc"
)

const (
	typeBitMask       = 0xF
	encodingMask      = 0xF0
	encodingBitOffset = 4
)

const (
	ObjString = iota
	ObjList
	ObjSet
)

const (
	ObjEncodingRaw = iota
	ObjEncodingInt
	ObjEncodingHt
	ObjEncodingIntSet = 6
)

type robj struct {
	// 4bit type, 4bit encoding
	__  uint8
	ptr unsafe.Pointer // *sds.SDS | *int64 | *intset.IntSet | *dict.Dict
}

func (o *robj) getType() int {
	return int(o.__ & typeBitMask)
}

func (o *robj) getEncoding() int {
	return int(o.__ & encodingMask >> encodingBitOffset)
}

func (o *robj) setType(typ int) {
	o.__ = o.__&^typeBitMask | uint8(typ&typeBitMask)
}

func (o *robj) setEncoding(encoding int) {
	o.__ = o.__&^encodingMask | uint8(encoding<<encodingBitOffset)&encodingMask
}

func createObject(typ int, ptr unsafe.Pointer) *robj {
	o := zmalloc.New[robj]()
	o.setType(typ)
	o.setEncoding(ObjEncodingRaw)
	o.ptr = ptr
	return o
}

func createStringObject(b []byte) *robj {
	return createObject(ObjString, unsafe.Pointer(sds.NewLen(b)))
}

func createStringObjectFromLongLong(v int64) *robj {
	o := createObject(ObjString, unsafe.Pointer(zmalloc.New[int64]()))
	*(*int64)(o.ptr) = v
	o.setEncoding(ObjEncodingInt)
	return o
}

func createIntsetObject() *robj {
	o := createObject(ObjSet, unsafe.Pointer(intset.New()))
	o.setEncoding(ObjEncodingIntSet)
	return o
}

func createSetObject() *robj {
	o := createObject(ObjSet, unsafe.Pointer(dict.Create(setDictType, nil)))
	o.setEncoding(ObjEncodingHt)
	return o
}

func (o *robj) sdsEncodedObject() bool {
	return o.getEncoding() == ObjEncodingRaw
}

// tryObjectEncoding 尝试把能表示为整数的字符串转换为int编码
func (o *robj) tryObjectEncoding() *robj {
	if o.getType() != ObjString || !o.sdsEncodedObject() {
		return o
	}
	s := (*sds.SDS)(o.ptr)
	var value int64
	if sds.Len(s) <= 20 && isSdsRepresentableAsLongLong(s, &value) {
		sds.Free(s)
		p := zmalloc.New[int64]()
		*p = value
		o.ptr = unsafe.Pointer(p)
		o.setEncoding(ObjEncodingInt)
	}
	return o
}

// stringBytes returns the content of a string object, formatting integers.
func (o *robj) stringBytes() []byte {
	if o.getType() != ObjString {
		serverPanic("stringBytes on a non string object")
	}
	if o.sdsEncodedObject() {
		return (*sds.SDS)(o.ptr).Bytes()
	}
	return strconv.AppendInt(nil, *(*int64)(o.ptr), 10)
}

func (o *robj) free() {
	switch o.getType() {
	case ObjString:
		if o.sdsEncodedObject() {
			sds.Free((*sds.SDS)(o.ptr))
		} else {
			zmalloc.Release((*int64)(o.ptr))
		}
	case ObjSet:
		switch o.getEncoding() {
		case ObjEncodingHt:
			(*dict.Dict)(o.ptr).Release()
		case ObjEncodingIntSet:
			(*intset.IntSet)(o.ptr).Free()
		default:
			serverPanic("Unknown set encoding type")
		}
	default:
		serverPanic("Unknown object type")
	}
	o.ptr = nil
	zmalloc.Release(o)
}

func (o *robj) checkType(c *Client, typ int) bool {
	if o.getType() != typ {
		addReplyBytes(c, shared.wrongTypeErr)
		return true
	}
	return false
}

// isSdsRepresentableAsLongLong accepts only the canonical form of an
// integer, so converting back yields the same string.
func isSdsRepresentableAsLongLong(s *sds.SDS, llval *int64) bool {
	var v int64
	if !util.String2Int64(s.Bytes(), &v) {
		return false
	}
	if util.Bytes2String(s.Bytes()) != strconv.FormatInt(v, 10) {
		return false
	}
	if llval != nil {
		*llval = v
	}
	return true
}

func getLongLongFromSds(s *sds.SDS) (int64, bool) {
	var v int64
	if !util.String2Int64(s.Bytes(), &v) {
		return 0, false
	}
	return v, true
}

func getLongLongOrReply(c *Client, s *sds.SDS, msg string) (int64, bool) {
	v, ok := getLongLongFromSds(s)
	if !ok {
		if msg == "" {
			msg = "value is not an integer or out of range"
		}
		addReplyError(c, msg)
	}
	return v, ok
}
