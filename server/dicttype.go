package server

import (
	"bytes"
	"unsafe"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

func dictSdsHash(key unsafe.Pointer) uint64 {
	return dict.GenHashFunction((*sds.SDS)(key).Bytes())
}

func dictSdsKeyCompare(privData interface{}, key1, key2 unsafe.Pointer) bool {
	return bytes.Equal((*sds.SDS)(key1).Bytes(), (*sds.SDS)(key2).Bytes())
}

func dictSdsDestructor(privData interface{}, val unsafe.Pointer) {
	sds.Free((*sds.SDS)(val))
}

func dictObjectDestructor(privData interface{}, val unsafe.Pointer) {
	if val == nil {
		return
	}
	(*robj)(val).free()
}

// dictSdsCaseHash uses the fast hash: command names are not user controlled.
func dictSdsCaseHash(key unsafe.Pointer) uint64 {
	return dict.GenFastCaseHashFunction((*sds.SDS)(key).Bytes())
}

func dictSdsKeyCaseCompare(privData interface{}, key1, key2 unsafe.Pointer) bool {
	return util.BytesCaseCmp((*sds.SDS)(key1).Bytes(), (*sds.SDS)(key2).Bytes())
}

var (
	// 数据库 keyspace: sds -> robj
	dbDictType = &dict.Type{
		HashFunction:  dictSdsHash,
		KeyCompare:    dictSdsKeyCompare,
		KeyDestructor: dictSdsDestructor,
		ValDestructor: dictObjectDestructor,
	}

	// expires 与 keyspace 共享 key，值为 s64 毫秒过期时间
	keyptrDictType = &dict.Type{
		HashFunction: dictSdsHash,
		KeyCompare:   dictSdsKeyCompare,
	}

	// set 的元素: sds -> nil
	setDictType = &dict.Type{
		HashFunction:  dictSdsHash,
		KeyCompare:    dictSdsKeyCompare,
		KeyDestructor: dictSdsDestructor,
	}

	// 命令表，大小写不敏感: sds -> *redisCommand
	commandTableDictType = &dict.Type{
		HashFunction:  dictSdsCaseHash,
		KeyCompare:    dictSdsKeyCaseCompare,
		KeyDestructor: dictSdsDestructor,
	}
)

// htNeedsResize reports whether the table is filled below 10%.
func htNeedsResize(d *dict.Dict) bool {
	size := d.Slots()
	used := d.Size()
	return size > dict.HtInitialSize && used*100/size < hashtableMinFill
}
