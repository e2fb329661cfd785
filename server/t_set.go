package server

import (
	"math/rand"
	"strconv"
	"unsafe"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/intset"
	"github.com/pengdafu/redis-dict/sds"
)

// srandmemberSubStrategyMul 请求的数量乘以它仍然大于集合大小时，
// 复制整个集合再随机删除，而不是随机挑选
const srandmemberSubStrategyMul = 3

// setTypeCreate returns an empty set able to hold value: an intset when
// value is an integer.
func setTypeCreate(value *sds.SDS) *robj {
	if isSdsRepresentableAsLongLong(value, nil) {
		return createIntsetObject()
	}
	return createSetObject()
}

func (srv *Server) setTypeAdd(subject *robj, value *sds.SDS) bool {
	switch subject.getEncoding() {
	case ObjEncodingHt:
		d := (*dict.Dict)(subject.ptr)
		if d.Find(unsafe.Pointer(value)) != nil {
			return false
		}
		return d.Add(unsafe.Pointer(sds.Dup(value)), nil) == nil
	case ObjEncodingIntSet:
		var llval int64
		if isSdsRepresentableAsLongLong(value, &llval) {
			is := (*intset.IntSet)(subject.ptr)
			if !is.Add(llval) {
				return false
			}
			// 元素太多，转换为hash表
			if is.Len() > srv.cfg.SetMaxIntsetEntries {
				setTypeConvert(subject, ObjEncodingHt)
			}
			return true
		}
		setTypeConvert(subject, ObjEncodingHt)
		err := (*dict.Dict)(subject.ptr).Add(unsafe.Pointer(sds.Dup(value)), nil)
		serverAssert(err == nil, "new member already in a converted intset")
		return true
	}
	serverPanic("Unknown set encoding")
	return false
}

func setTypeRemove(subject *robj, value *sds.SDS) bool {
	switch subject.getEncoding() {
	case ObjEncodingHt:
		d := (*dict.Dict)(subject.ptr)
		if d.Delete(unsafe.Pointer(value)) == nil {
			if htNeedsResize(d) {
				_ = d.Resize()
			}
			return true
		}
		return false
	case ObjEncodingIntSet:
		var llval int64
		if isSdsRepresentableAsLongLong(value, &llval) {
			return (*intset.IntSet)(subject.ptr).Remove(llval)
		}
		return false
	}
	serverPanic("Unknown set encoding")
	return false
}

func setTypeIsMember(subject *robj, value *sds.SDS) bool {
	switch subject.getEncoding() {
	case ObjEncodingHt:
		return (*dict.Dict)(subject.ptr).Find(unsafe.Pointer(value)) != nil
	case ObjEncodingIntSet:
		var llval int64
		if isSdsRepresentableAsLongLong(value, &llval) {
			return (*intset.IntSet)(subject.ptr).Find(llval)
		}
		return false
	}
	serverPanic("Unknown set encoding")
	return false
}

func setTypeSize(subject *robj) int64 {
	switch subject.getEncoding() {
	case ObjEncodingHt:
		return (*dict.Dict)(subject.ptr).Size()
	case ObjEncodingIntSet:
		return int64((*intset.IntSet)(subject.ptr).Len())
	}
	serverPanic("Unknown set encoding")
	return 0
}

// setTypeRandomElement returns a random member, as bytes for hash tables
// or as an integer for intsets, along with the encoding it came from.
func setTypeRandomElement(subject *robj) ([]byte, int64, int) {
	switch subject.getEncoding() {
	case ObjEncodingHt:
		de := (*dict.Dict)(subject.ptr).GetRandomKey()
		return (*sds.SDS)(dict.GetKey(de)).Bytes(), 0, ObjEncodingHt
	case ObjEncodingIntSet:
		return nil, (*intset.IntSet)(subject.ptr).Random(), ObjEncodingIntSet
	}
	serverPanic("Unknown set encoding")
	return nil, 0, 0
}

type setTypeIterator struct {
	subject  *robj
	encoding int
	ii       int
	di       *dict.Iterator
}

func setTypeInitIterator(subject *robj) *setTypeIterator {
	si := &setTypeIterator{subject: subject, encoding: subject.getEncoding()}
	switch si.encoding {
	case ObjEncodingHt:
		si.di = (*dict.Dict)(subject.ptr).GetIterator()
	case ObjEncodingIntSet:
	default:
		serverPanic("Unknown set encoding")
	}
	return si
}

func (si *setTypeIterator) release() {
	if si.encoding == ObjEncodingHt {
		si.di.Release()
	}
}

// next returns the next member, as bytes for hash tables or as an integer
// for intsets. ok is false once the set is exhausted.
func (si *setTypeIterator) next() (sdsele []byte, llele int64, ok bool) {
	if si.encoding == ObjEncodingHt {
		de := si.di.Next()
		if de == nil {
			return nil, 0, false
		}
		return (*sds.SDS)(dict.GetKey(de)).Bytes(), 0, true
	}
	llele, ok = (*intset.IntSet)(si.subject.ptr).Get(si.ii)
	si.ii++
	return nil, llele, ok
}

// setTypeConvert converts an intset encoded set into a hash table, sized
// upfront for every member.
func setTypeConvert(setobj *robj, enc int) {
	serverAssert(setobj.getType() == ObjSet && setobj.getEncoding() == ObjEncodingIntSet, "wrong set to convert")
	if enc != ObjEncodingHt {
		serverPanic("Unsupported set conversion")
	}

	is := (*intset.IntSet)(setobj.ptr)
	d := dict.Create(setDictType, nil)
	// 提前扩容，避免插入时rehash
	_ = d.Expand(int64(is.Len()))

	si := setTypeInitIterator(setobj)
	for {
		_, intele, ok := si.next()
		if !ok {
			break
		}
		err := d.Add(unsafe.Pointer(sds.FromLongLong(intele)), nil)
		serverAssert(err == nil, "duplicate member in intset")
	}
	si.release()

	is.Free()
	setobj.setEncoding(ObjEncodingHt)
	setobj.ptr = unsafe.Pointer(d)
}

func addReplySetMember(c *Client, sdsele []byte, llele int64, encoding int) {
	if encoding == ObjEncodingIntSet {
		addReplyBulkLongLong(c, llele)
	} else {
		addReplyBulkBuffer(c, sdsele)
	}
}

func saddCommand(c *Client) {
	set := c.db.lookupKeyWrite(c.argv[1])
	if set == nil {
		set = setTypeCreate(c.argv[2])
		c.db.dbAdd(c.argv[1], set)
	} else if set.checkType(c, ObjSet) {
		return
	}

	var added int64
	for _, member := range c.argv[2:] {
		if c.srv.setTypeAdd(set, member) {
			added++
		}
	}
	addReplyLongLong(c, added)
}

func sremCommand(c *Client) {
	set := c.db.lookupKeyWrite(c.argv[1])
	if set == nil {
		addReplyBytes(c, shared.czero)
		return
	}
	if set.checkType(c, ObjSet) {
		return
	}

	var deleted int64
	for _, member := range c.argv[2:] {
		if setTypeRemove(set, member) {
			deleted++
			if setTypeSize(set) == 0 {
				c.db.dbDelete(c.argv[1])
				break
			}
		}
	}
	addReplyLongLong(c, deleted)
}

func sismemberCommand(c *Client) {
	set := lookupKeyReadOrReply(c, c.argv[1], shared.czero)
	if set == nil || set.checkType(c, ObjSet) {
		return
	}
	if setTypeIsMember(set, c.argv[2]) {
		addReplyBytes(c, shared.cone)
	} else {
		addReplyBytes(c, shared.czero)
	}
}

func scardCommand(c *Client) {
	set := lookupKeyReadOrReply(c, c.argv[1], shared.czero)
	if set == nil || set.checkType(c, ObjSet) {
		return
	}
	addReplyLongLong(c, setTypeSize(set))
}

func smembersCommand(c *Client) {
	set := lookupKeyReadOrReply(c, c.argv[1], shared.emptyArray)
	if set == nil || set.checkType(c, ObjSet) {
		return
	}

	replyLen := addReplyDeferredLen(c)
	cardinality := 0
	si := setTypeInitIterator(set)
	for {
		sdsele, llele, ok := si.next()
		if !ok {
			break
		}
		addReplySetMember(c, sdsele, llele, si.encoding)
		cardinality++
	}
	si.release()
	setDeferredArrayLen(c, replyLen, cardinality)
}

// SRANDMEMBER key [count]
//
// A positive count returns distinct members, at most the whole set. A
// negative count returns -count members that may repeat.
func srandmemberCommand(c *Client) {
	if len(c.argv) == 3 {
		srandmemberWithCountCommand(c)
		return
	}
	if len(c.argv) > 3 {
		addReplyBytes(c, shared.syntaxErr)
		return
	}

	set := lookupKeyReadOrReply(c, c.argv[1], shared.nullBulk)
	if set == nil || set.checkType(c, ObjSet) {
		return
	}
	sdsele, llele, encoding := setTypeRandomElement(set)
	addReplySetMember(c, sdsele, llele, encoding)
}

func srandmemberWithCountCommand(c *Client) {
	l, ok := getLongLongOrReply(c, c.argv[2], "")
	if !ok {
		return
	}
	uniq := true
	count := l
	if l < 0 {
		count = -l
		uniq = false
	}

	set := lookupKeyReadOrReply(c, c.argv[1], shared.emptyArray)
	if set == nil || set.checkType(c, ObjSet) {
		return
	}
	size := setTypeSize(set)

	if count == 0 {
		addReplyBytes(c, shared.emptyArray)
		return
	}

	// 可以重复：每次独立随机
	if !uniq {
		addReplyArrayLen(c, int(count))
		for ; count > 0; count-- {
			sdsele, llele, encoding := setTypeRandomElement(set)
			addReplySetMember(c, sdsele, llele, encoding)
		}
		return
	}

	// 请求的数量不小于集合大小：返回整个集合
	if count >= size {
		addReplyArrayLen(c, int(size))
		si := setTypeInitIterator(set)
		for {
			sdsele, llele, ok := si.next()
			if !ok {
				break
			}
			addReplySetMember(c, sdsele, llele, si.encoding)
		}
		si.release()
		return
	}

	members := make([][]byte, 0, size)
	if count*srandmemberSubStrategyMul > size {
		// 复制整个集合，再随机删除多余的元素
		si := setTypeInitIterator(set)
		for {
			sdsele, llele, ok := si.next()
			if !ok {
				break
			}
			members = append(members, memberBytes(sdsele, llele, si.encoding))
		}
		si.release()
		rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		members = members[:count]
	} else {
		// 随机挑选直到凑够 count 个不同的元素
		seen := make(map[string]bool, count)
		for int64(len(members)) < count {
			sdsele, llele, encoding := setTypeRandomElement(set)
			m := memberBytes(sdsele, llele, encoding)
			if seen[string(m)] {
				continue
			}
			seen[string(m)] = true
			members = append(members, m)
		}
	}

	addReplyArrayLen(c, len(members))
	for _, m := range members {
		addReplyBulkBuffer(c, m)
	}
}

func memberBytes(sdsele []byte, llele int64, encoding int) []byte {
	if encoding == ObjEncodingIntSet {
		return strconv.AppendInt(nil, llele, 10)
	}
	return append([]byte(nil), sdsele...)
}

func sscanCommand(c *Client) {
	cursor, ok := parseScanCursorOrReply(c, c.argv[2])
	if !ok {
		return
	}
	set := lookupKeyReadOrReply(c, c.argv[1], []byte("*2\r\n$1\r\n0\r\n*0\r\n"))
	if set == nil || set.checkType(c, ObjSet) {
		return
	}
	scanGenericCommand(c, set, cursor, 3)
}
