package server

import (
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

const (
	objSetNoFlags = 0
	objSetNX      = 1 << iota
	objSetXX
	objSetEX
	objSetPX
)

func getCommand(c *Client) {
	o := lookupKeyReadOrReply(c, c.argv[1], shared.nullBulk)
	if o == nil {
		return
	}
	if o.getType() != ObjString {
		addReplyBytes(c, shared.wrongTypeErr)
		return
	}
	addReplyBulk(c, o)
}

// SET key value [NX|XX] [EX seconds|PX milliseconds]
func setCommand(c *Client) {
	flags := objSetNoFlags
	var expire *sds.SDS
	unit := unitSeconds
	for i := 3; i < len(c.argv); i++ {
		buf := c.argv[i].Bytes()
		var next *sds.SDS
		if i != len(c.argv)-1 {
			next = c.argv[i+1]
		}

		if util.StrCaseCmp(buf, "nx") && flags&objSetXX == 0 {
			flags |= objSetNX
		} else if util.StrCaseCmp(buf, "xx") && flags&objSetNX == 0 {
			flags |= objSetXX
		} else if util.StrCaseCmp(buf, "ex") && flags&objSetPX == 0 && next != nil {
			flags |= objSetEX
			unit = unitSeconds
			expire = next
			i++
		} else if util.StrCaseCmp(buf, "px") && flags&objSetEX == 0 && next != nil {
			flags |= objSetPX
			unit = unitMilliseconds
			expire = next
			i++
		} else {
			addReplyBytes(c, shared.syntaxErr)
			return
		}
	}
	setGenericCommand(c, flags, c.argv[1], c.argv[2], expire, unit)
}

func setGenericCommand(c *Client, flags int, key, val, expire *sds.SDS, unit int) {
	var milliseconds int64
	if expire != nil {
		var ok bool
		if milliseconds, ok = getLongLongOrReply(c, expire, ""); !ok {
			return
		}
		if milliseconds <= 0 {
			addReplyErrorFormat(c, "invalid expire time in '%s' command", c.cmd.name)
			return
		}
		if unit == unitSeconds {
			milliseconds *= 1000
		}
	}

	exists := c.db.lookupKeyWrite(key) != nil
	if (flags&objSetNX != 0 && exists) || (flags&objSetXX != 0 && !exists) {
		addReplyNull(c)
		return
	}

	c.db.setKey(key, createStringObject(val.Bytes()).tryObjectEncoding())
	if expire != nil {
		c.db.setExpire(key, c.srv.mstime()+milliseconds)
	}
	addReplyBytes(c, shared.ok)
}
