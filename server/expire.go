package server

import (
	"unsafe"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

const (
	activeExpireCycleLookupsPerLoop = 20
	activeExpireCycleSlowTimePerc   = 25 // 最多使用多少CPU
)

const (
	unitSeconds = iota
	unitMilliseconds
)

// setExpire sets the unix time in ms at which key expires. The key must
// exist; the expires entry reuses the keyspace key.
func (db *redisDb) setExpire(key *sds.SDS, when int64) {
	kde := db.dict.Find(unsafe.Pointer(key))
	serverAssertWithInfo(kde != nil, key, "setExpire on a missing key")
	de := db.expires.AddOrFind(dict.GetKey(kde))
	dict.SetSignedIntegerVal(de, when)
}

// getExpire returns the expire of key, or -1 when it has none.
func (db *redisDb) getExpire(key *sds.SDS) int64 {
	if db.expires.Size() == 0 {
		return -1
	}
	de := db.expires.Find(unsafe.Pointer(key))
	if de == nil {
		return -1
	}
	serverAssertWithInfo(db.dict.Find(unsafe.Pointer(key)) != nil, key, "expire set on a missing key")
	return dict.GetSignedIntegerVal(de)
}

func (db *redisDb) removeExpire(key *sds.SDS) bool {
	if db.expires.Size() == 0 {
		return false
	}
	return db.expires.Delete(unsafe.Pointer(key)) == nil
}

func (db *redisDb) keyIsExpired(key *sds.SDS) bool {
	when := db.getExpire(key)
	if when < 0 {
		return false
	}
	return db.srv.mstime() > when
}

// expireIfNeeded deletes key if it is logically expired and reports
// whether it did.
func (db *redisDb) expireIfNeeded(key *sds.SDS) bool {
	if !db.keyIsExpired(key) {
		return false
	}
	db.srv.statExpiredKeys++
	return db.dbDelete(key)
}

func (db *redisDb) activeExpireCycleTryExpire(de *dict.Entry, now int64) bool {
	t := dict.GetSignedIntegerVal(de)
	if now > t {
		key := sds.Dup((*sds.SDS)(dict.GetKey(de)))
		db.dbDelete(key)
		sds.Free(key)
		db.srv.statExpiredKeys++
		return true
	}
	return false
}

// activeExpireCycle samples random keys with an expire in every db and
// deletes the expired ones, repeating on a db while more than a quarter of
// the sample was expired. It stops after 25% of a cron period.
func (srv *Server) activeExpireCycle() {
	start := util.UsTime()
	timeLimit := int64(activeExpireCycleSlowTimePerc * 1000000 / srv.hz / 100)
	if timeLimit <= 0 {
		timeLimit = 1
	}

	dbsPerCall := min(cronDbsPerCall, len(srv.db))
	// 上次超时了，这次把所有db都过一遍
	if srv.expireTimeLimitHit {
		dbsPerCall = len(srv.db)
	}
	srv.expireTimeLimitHit = false

	iteration := 0
	for j := 0; j < dbsPerCall && !srv.expireTimeLimitHit; j++ {
		db := srv.db[srv.expireDb%len(srv.db)]
		srv.expireDb++

		for {
			num := db.expires.Size()
			if num == 0 {
				db.avgTTL = 0
				break
			}
			// 填充率低于1%时随机取key太慢，等待resize
			slots := db.expires.Slots()
			if slots > dict.HtInitialSize && num*100/slots < 1 {
				break
			}

			now := srv.mstime()
			var expired, ttlSum, ttlSamples int64
			num = min(num, activeExpireCycleLookupsPerLoop)
			for ; num > 0; num-- {
				de := db.expires.GetRandomKey()
				if de == nil {
					break
				}
				ttl := dict.GetSignedIntegerVal(de) - now
				if db.activeExpireCycleTryExpire(de, now) {
					expired++
				}
				if ttl > 0 {
					ttlSum += ttl
					ttlSamples++
				}
			}

			if ttlSamples > 0 {
				avgTTL := ttlSum / ttlSamples
				if db.avgTTL == 0 {
					db.avgTTL = avgTTL
				}
				db.avgTTL = (db.avgTTL/50)*49 + avgTTL/50
			}

			iteration++
			if iteration&0xf == 0 && util.UsTime()-start > timeLimit {
				srv.expireTimeLimitHit = true
				break
			}
			if expired <= activeExpireCycleLookupsPerLoop/4 {
				break
			}
		}
	}
}

func expireGenericCommand(c *Client, basetime int64, unit int) {
	key := c.argv[1]
	when, ok := getLongLongOrReply(c, c.argv[2], "")
	if !ok {
		return
	}
	if unit == unitSeconds {
		when *= 1000
	}
	when += basetime

	if c.db.lookupKeyWrite(key) == nil {
		addReplyBytes(c, shared.czero)
		return
	}
	if when <= c.srv.mstime() {
		c.db.dbDelete(key)
		addReplyBytes(c, shared.cone)
		return
	}
	c.db.setExpire(key, when)
	addReplyBytes(c, shared.cone)
}

func expireCommand(c *Client) {
	expireGenericCommand(c, c.srv.mstime(), unitSeconds)
}

func pexpireCommand(c *Client) {
	expireGenericCommand(c, c.srv.mstime(), unitMilliseconds)
}

func ttlGenericCommand(c *Client, outputMs bool) {
	if c.db.lookupKeyRead(c.argv[1]) == nil {
		addReplyLongLong(c, -2)
		return
	}
	expire := c.db.getExpire(c.argv[1])
	if expire == -1 {
		addReplyLongLong(c, -1)
		return
	}
	ttl := max(expire-c.srv.mstime(), 0)
	if outputMs {
		addReplyLongLong(c, ttl)
	} else {
		addReplyLongLong(c, (ttl+500)/1000)
	}
}

func ttlCommand(c *Client) {
	ttlGenericCommand(c, false)
}

func pttlCommand(c *Client) {
	ttlGenericCommand(c, true)
}

func persistCommand(c *Client) {
	if c.db.lookupKeyWrite(c.argv[1]) == nil {
		addReplyBytes(c, shared.czero)
		return
	}
	if c.db.removeExpire(c.argv[1]) {
		addReplyBytes(c, shared.cone)
	} else {
		addReplyBytes(c, shared.czero)
	}
}
