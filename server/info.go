package server

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pengdafu/redis-dict/util"
	"github.com/pengdafu/redis-dict/zmalloc"
)

// genRedisInfoString renders the INFO sections, "default" and "all" meaning
// every one of them.
func (srv *Server) genRedisInfoString(section string) string {
	section = strings.ToLower(section)
	all := section == "all" || section == "default"
	var b strings.Builder
	sections := 0
	begin := func(name string) bool {
		if !all && section != name {
			return false
		}
		if sections > 0 {
			b.WriteString("\r\n")
		}
		sections++
		fmt.Fprintf(&b, "# %s\r\n", strings.ToUpper(name[:1])+name[1:])
		return true
	}

	if begin("server") {
		uptime := time.Since(srv.startTime)
		fmt.Fprintf(&b, "redis_version:%s\r\n", Version)
		fmt.Fprintf(&b, "os:%s %s\r\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(&b, "go_version:%s\r\n", runtime.Version())
		fmt.Fprintf(&b, "process_id:%d\r\n", os.Getpid())
		fmt.Fprintf(&b, "hz:%d\r\n", srv.hz)
		fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", int64(uptime.Seconds()))
		fmt.Fprintf(&b, "uptime_in_days:%d\r\n", int64(uptime.Hours()/24))
	}

	if begin("memory") {
		used := zmalloc.UsedMemory()
		fmt.Fprintf(&b, "used_memory:%d\r\n", used)
		fmt.Fprintf(&b, "used_memory_human:%s\r\n", bytesToHuman(used))
		fmt.Fprintf(&b, "used_memory_rss:%d\r\n", zmalloc.GetRSS())
		total := zmalloc.GetMemorySize()
		fmt.Fprintf(&b, "total_system_memory:%d\r\n", total)
		fmt.Fprintf(&b, "total_system_memory_human:%s\r\n", bytesToHuman(total))
		maxMemory := zmalloc.GetMaxMemory()
		fmt.Fprintf(&b, "maxmemory:%d\r\n", maxMemory)
		fmt.Fprintf(&b, "maxmemory_human:%s\r\n", bytesToHuman(maxMemory))
	}

	if begin("stats") {
		fmt.Fprintf(&b, "total_commands_processed:%d\r\n", srv.statNumCommands)
		fmt.Fprintf(&b, "expired_keys:%d\r\n", srv.statExpiredKeys)
		fmt.Fprintf(&b, "keyspace_hits:%d\r\n", srv.statKeyspaceHits)
		fmt.Fprintf(&b, "keyspace_misses:%d\r\n", srv.statKeyspaceMisses)
		fmt.Fprintf(&b, "rehashed_buckets:%d\r\n", srv.statRehashBuckets)
		fmt.Fprintf(&b, "resized_tables:%d\r\n", srv.statResizes)
		fmt.Fprintf(&b, "active_rehashing:%d\r\n", boolToInt(srv.activeRehashing))
	}

	if begin("keyspace") {
		for j, db := range srv.db {
			keys := db.dict.Size()
			if keys == 0 {
				continue
			}
			fmt.Fprintf(&b, "db%d:keys=%d,expires=%d,avg_ttl=%d\r\n", j, keys, db.expires.Size(), db.avgTTL)
		}
	}
	return b.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// INFO [section]
func infoCommand(c *Client) {
	section := "default"
	if len(c.argv) > 2 {
		addReplyBytes(c, shared.syntaxErr)
		return
	}
	if len(c.argv) == 2 {
		section = util.Bytes2String(c.argv[1].Bytes())
	}
	addReplyBulkString(c, c.srv.genRedisInfoString(section))
}
