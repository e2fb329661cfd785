package server

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

func serverAssert(cond bool, msg string) {
	if cond {
		return
	}
	slog.Error("=== ASSERTION FAILED ===", "assertion", msg)
	panic("assertion failed: " + msg)
}

// serverAssertWithInfo is serverAssert logging the key involved.
func serverAssertWithInfo(cond bool, key *sds.SDS, msg string) {
	if cond {
		return
	}
	slog.Error("=== ASSERTION FAILED ===", "assertion", msg, "key", key.String())
	panic("assertion failed: " + msg)
}

func serverPanic(msg string) {
	slog.Error("!!! Software Failure. Press left mouse button to continue", "reason", msg)
	panic(msg)
}

// DEBUG HTSTATS <dbid>
// DEBUG HTSTATS-KEY <key>
// DEBUG REHASH <dbid> <milliseconds>
// DEBUG ACTIVEREHASHING <0|1>
func debugCommand(c *Client) {
	sub := c.argv[1].Bytes()
	switch {
	case util.StrCaseCmp(sub, "help"):
		lines := []string{
			"HTSTATS <dbid> -- Return hash table statistics of the specified Redis database.",
			"HTSTATS-KEY <key> -- Like htstats but for the hash table stored as key's value.",
			"REHASH <dbid> <ms> -- Rehash the keyspace and the expires of the database for about ms milliseconds each.",
			"ACTIVEREHASHING <0|1> -- Switch the incremental rehashing done by the cron.",
		}
		addReplyArrayLen(c, len(lines))
		for _, l := range lines {
			addReplyStatus(c, l)
		}
	case util.StrCaseCmp(sub, "htstats") && len(c.argv) == 3:
		dbid, ok := getLongLongOrReply(c, c.argv[2], "")
		if !ok {
			return
		}
		if dbid < 0 || dbid >= int64(len(c.srv.db)) {
			addReplyError(c, "Out of range database")
			return
		}
		db := c.srv.db[dbid]
		var b strings.Builder
		b.WriteString("[Dictionary HT]\n")
		b.WriteString(db.dict.GetStats())
		b.WriteString("[Expires HT]\n")
		b.WriteString(db.expires.GetStats())
		addReplyBulkString(c, b.String())
	case util.StrCaseCmp(sub, "htstats-key") && len(c.argv) == 3:
		o := c.db.lookupKey(c.argv[2])
		if o == nil {
			addReplyBytes(c, shared.noSuchKey)
			return
		}
		if o.getType() != ObjSet || o.getEncoding() != ObjEncodingHt {
			addReplyError(c, "The value stored at the specified key is not represented using an hash table")
			return
		}
		addReplyBulkString(c, (*dict.Dict)(o.ptr).GetStats())
	case util.StrCaseCmp(sub, "rehash") && len(c.argv) == 4:
		dbid, ok := getLongLongOrReply(c, c.argv[2], "")
		if !ok {
			return
		}
		if dbid < 0 || dbid >= int64(len(c.srv.db)) {
			addReplyError(c, "Out of range database")
			return
		}
		ms, ok := getLongLongOrReply(c, c.argv[3], "")
		if !ok {
			return
		}
		db := c.srv.db[dbid]
		rehashed := db.dict.RehashMilliseconds(ms) + db.expires.RehashMilliseconds(ms)
		addReplyLongLong(c, int64(rehashed))
	case util.StrCaseCmp(sub, "activerehashing") && len(c.argv) == 3:
		v, ok := getLongLongOrReply(c, c.argv[2], "")
		if !ok {
			return
		}
		c.srv.activeRehashing = v != 0
		addReplyBytes(c, shared.ok)
	default:
		addReplyErrorFormat(c, "Unknown subcommand or wrong number of arguments for '%s'. Try DEBUG HELP.", sub)
	}
}

func bytesToHuman(n int64) string {
	d := float64(n)
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2fK", d/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.2fM", d/(1024*1024))
	case n < 1024*1024*1024*1024:
		return fmt.Sprintf("%.2fG", d/(1024*1024*1024))
	}
	return fmt.Sprintf("%.2fT", d/(1024*1024*1024*1024))
}
