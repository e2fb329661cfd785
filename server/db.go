package server

import (
	"strconv"
	"unsafe"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/intset"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

type redisDb struct {
	srv     *Server
	dict    *dict.Dict // keyspace
	expires *dict.Dict // 设置了过期时间的key
	id      int
	avgTTL  int64
}

func newRedisDb(srv *Server, id int) *redisDb {
	return &redisDb{
		srv:     srv,
		dict:    dict.Create(dbDictType, nil),
		expires: dict.Create(keyptrDictType, nil),
		id:      id,
	}
}

func (db *redisDb) lookupKey(key *sds.SDS) *robj {
	if v := db.dict.FetchValue(unsafe.Pointer(key)); v != nil {
		return (*robj)(v)
	}
	return nil
}

func (db *redisDb) lookupKeyRead(key *sds.SDS) *robj {
	db.expireIfNeeded(key)
	val := db.lookupKey(key)
	if val == nil {
		db.srv.statKeyspaceMisses++
	} else {
		db.srv.statKeyspaceHits++
	}
	return val
}

func (db *redisDb) lookupKeyWrite(key *sds.SDS) *robj {
	db.expireIfNeeded(key)
	return db.lookupKey(key)
}

func lookupKeyReadOrReply(c *Client, key *sds.SDS, reply []byte) *robj {
	o := c.db.lookupKeyRead(key)
	if o == nil {
		addReplyBytes(c, reply)
	}
	return o
}

// dbAdd adds key, which must not exist. The key is copied.
func (db *redisDb) dbAdd(key *sds.SDS, val *robj) {
	copied := sds.Dup(key)
	err := db.dict.Add(unsafe.Pointer(copied), unsafe.Pointer(val))
	serverAssertWithInfo(err == nil, key, "key already exists in dbAdd")
}

// dbOverwrite replaces the value of an existing key, keeping its expire.
func (db *redisDb) dbOverwrite(key *sds.SDS, val *robj) {
	de := db.dict.Find(unsafe.Pointer(key))
	serverAssertWithInfo(de != nil, key, "key not found in dbOverwrite")
	old := db.dict.GetVal(de)
	db.dict.SetVal(de, unsafe.Pointer(val))
	dictObjectDestructor(nil, old)
}

// setKey sets key to val whether or not it exists, dropping any expire.
func (db *redisDb) setKey(key *sds.SDS, val *robj) {
	if db.lookupKeyWrite(key) == nil {
		db.dbAdd(key, val)
	} else {
		db.dbOverwrite(key, val)
	}
	db.removeExpire(key)
}

func (db *redisDb) dbExists(key *sds.SDS) bool {
	return db.dict.Find(unsafe.Pointer(key)) != nil
}

// dbDelete removes key and its expire. The expires entry goes first: it
// shares the key with the keyspace entry.
func (db *redisDb) dbDelete(key *sds.SDS) bool {
	if db.expires.Size() > 0 {
		_ = db.expires.Delete(unsafe.Pointer(key))
	}
	return db.dict.Delete(unsafe.Pointer(key)) == nil
}

// dbRandomKey returns a random key that is not expired, or nil.
func (db *redisDb) dbRandomKey() *sds.SDS {
	for {
		de := db.dict.GetRandomKey()
		if de == nil {
			return nil
		}
		key := sds.Dup((*sds.SDS)(dict.GetKey(de)))
		if db.expires.Find(unsafe.Pointer(key)) != nil && db.expireIfNeeded(key) {
			// 过期被删除，重新选一个
			sds.Free(key)
			continue
		}
		return key
	}
}

// emptyDb removes every key of every db and returns how many were removed.
func (srv *Server) emptyDb(dbnum int) int64 {
	var removed int64
	for j, db := range srv.db {
		if dbnum != -1 && dbnum != j {
			continue
		}
		removed += db.dict.Size()
		db.dict.Empty(nil)
		db.expires.Empty(nil)
		db.avgTTL = 0
	}
	return removed
}

func (c *Client) selectDb(id int) bool {
	if id < 0 || id >= len(c.srv.db) {
		return false
	}
	c.db = c.srv.db[id]
	return true
}

func selectCommand(c *Client) {
	id, ok := getLongLongFromSds(c.argv[1])
	if !ok {
		addReplyError(c, "invalid DB index")
		return
	}
	if !c.selectDb(int(id)) {
		addReplyError(c, "DB index is out of range")
		return
	}
	addReplyBytes(c, shared.ok)
}

func dbsizeCommand(c *Client) {
	addReplyLongLong(c, c.db.dict.Size())
}

func flushdbCommand(c *Client) {
	c.srv.emptyDb(c.db.id)
	addReplyBytes(c, shared.ok)
}

func flushallCommand(c *Client) {
	c.srv.emptyDb(-1)
	addReplyBytes(c, shared.ok)
}

func delCommand(c *Client) {
	var deleted int64
	for _, key := range c.argv[1:] {
		c.db.expireIfNeeded(key)
		if c.db.dbDelete(key) {
			deleted++
		}
	}
	addReplyLongLong(c, deleted)
}

func existsCommand(c *Client) {
	var count int64
	for _, key := range c.argv[1:] {
		if c.db.lookupKeyRead(key) != nil {
			count++
		}
	}
	addReplyLongLong(c, count)
}

func randomkeyCommand(c *Client) {
	key := c.db.dbRandomKey()
	if key == nil {
		addReplyNull(c)
		return
	}
	addReplyBulkBuffer(c, key.Bytes())
	sds.Free(key)
}

// parseScanCursorOrReply 解析无符号的游标
func parseScanCursorOrReply(c *Client, o *sds.SDS) (uint64, bool) {
	cursor, err := strconv.ParseUint(util.Bytes2String(o.Bytes()), 10, 64)
	if err != nil {
		addReplyError(c, "invalid cursor")
		return 0, false
	}
	return cursor, true
}

// scanGenericCommand implements SCAN and SSCAN. o is nil for the keyspace,
// otherwise the set being scanned; options start at argv[firstOpt].
func scanGenericCommand(c *Client, o *robj, cursor uint64, firstOpt int) {
	count := int64(10)
	for i := firstOpt; i < len(c.argv); i += 2 {
		if !util.StrCaseCmp(c.argv[i].Bytes(), "count") || i+1 >= len(c.argv) {
			addReplyBytes(c, shared.syntaxErr)
			return
		}
		v, ok := getLongLongOrReply(c, c.argv[i+1], "")
		if !ok {
			return
		}
		if v < 1 {
			addReplyBytes(c, shared.syntaxErr)
			return
		}
		count = v
	}

	var keys [][]byte
	var ht *dict.Dict
	if o == nil {
		ht = c.db.dict
	} else if o.getType() == ObjSet && o.getEncoding() == ObjEncodingHt {
		ht = (*dict.Dict)(o.ptr)
	}

	if ht != nil {
		// 每次调用最多访问 count*10 个桶，防止表很稀疏时阻塞太久
		maxIterations := count * 10
		collect := func(privData interface{}, de *dict.Entry) {
			keys = append(keys, append([]byte(nil), (*sds.SDS)(dict.GetKey(de)).Bytes()...))
		}
		for {
			cursor = ht.Scan(cursor, collect, nil)
			maxIterations--
			if cursor == 0 || maxIterations == 0 || int64(len(keys)) >= count {
				break
			}
		}
	} else {
		// intset 一次全部返回
		is := (*intset.IntSet)(o.ptr)
		for i := 0; i < is.Len(); i++ {
			v, _ := is.Get(i)
			keys = append(keys, strconv.AppendInt(nil, v, 10))
		}
		cursor = 0
	}

	// 过滤掉已经过期的key
	if o == nil {
		filtered := keys[:0]
		for _, k := range keys {
			key := sds.NewLen(k)
			if !c.db.expireIfNeeded(key) {
				filtered = append(filtered, k)
			}
			sds.Free(key)
		}
		keys = filtered
	}

	addReplyArrayLen(c, 2)
	addReplyBulkString(c, strconv.FormatUint(cursor, 10))
	addReplyArrayLen(c, len(keys))
	for _, k := range keys {
		addReplyBulkBuffer(c, k)
	}
}

func scanCommand(c *Client) {
	cursor, ok := parseScanCursorOrReply(c, c.argv[1])
	if !ok {
		return
	}
	scanGenericCommand(c, nil, cursor, 2)
}
