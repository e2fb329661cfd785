// Package server is a small keyspace server built on package dict: numbered
// databases of string and set values with expires, driven by a RESP command
// interface and an event loop that keeps the tables rehashed and resized in
// the background.
package server

import (
	"log/slog"
	"time"

	"github.com/pengdafu/redis-dict/ae"
	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
	"github.com/pengdafu/redis-dict/zmalloc"
)

const (
	Version = "0.3.0"

	cronDbsPerCall   = 16
	hashtableMinFill = 10 // 最小填充率百分比
)

type Server struct {
	cfg      *Config
	el       *ae.EventLoop
	db       []*redisDb
	commands *dict.Dict

	hz              int
	activeRehashing bool
	cronloops       int64
	startTime       time.Time
	// mstime returns the current unix time in milliseconds.
	mstime func() int64

	// databasesCron 的游标，每次从上次结束的db开始
	resizeDb, rehashDb int
	expireDb           int
	expireTimeLimitHit bool

	statNumCommands    int64
	statExpiredKeys    int64
	statKeyspaceHits   int64
	statKeyspaceMisses int64
	statRehashBuckets  int64
	statResizes        int64
}

// New creates a server from cfg. The hash seed and the memory limit it
// carries are process wide.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	srv := &Server{
		cfg:             cfg,
		el:              ae.CreateEventLoop(),
		hz:              cfg.Hz,
		activeRehashing: cfg.ActiveRehashing,
		startTime:       time.Now(),
		mstime:          util.GetMillionSeconds,
	}
	srv.hz = min(max(srv.hz, ConfigMinHz), ConfigMaxHz)

	seed := cfg.HashSeed
	if seed == nil {
		seed = util.GetRandomBytes(16)
	}
	dict.SetHashFunctionSeed(seed)

	zmalloc.SetOOMHandler(redisOutOfMemoryHandler)
	if cfg.MaxMemory > 0 {
		if total := zmalloc.GetMemorySize(); total > 0 && cfg.MaxMemory > total {
			slog.Warn("maxmemory is bigger than the physical memory of the system", "maxmemory", cfg.MaxMemory, "total", total)
		}
		zmalloc.SetMaxMemory(cfg.MaxMemory)
	}

	srv.db = make([]*redisDb, cfg.Databases)
	for j := range srv.db {
		srv.db[j] = newRedisDb(srv, j)
	}
	srv.populateCommandTable()

	srv.el.CreateTimeEvent(1, srv.serverCron, nil, nil)
	return srv
}

func redisOutOfMemoryHandler(allocationSize uintptr) {
	slog.Error("Out Of Memory allocating bytes!", "bytes", allocationSize)
	serverPanic("Redis aborting for OUT OF MEMORY")
}

// EventLoop returns the loop driving the server cron. Commands must run on
// it, through Post.
func (srv *Server) EventLoop() *ae.EventLoop {
	return srv.el
}

// Main runs the event loop until Stop.
func (srv *Server) Main() {
	slog.Info("Server initialized", "version", Version, "databases", len(srv.db), "hz", srv.hz)
	srv.el.Main()
}

func (srv *Server) Stop() {
	srv.el.Stop()
}

// serverCron runs hz times per second.
func (srv *Server) serverCron(el *ae.EventLoop, id int64, clientData interface{}) int {
	srv.databasesCron()
	srv.cronloops++
	return 1000 / srv.hz
}

// databasesCron expires keys in the background and keeps the tables of
// the databases at a good fill level, resizing and rehashing them
// incrementally.
func (srv *Server) databasesCron() {
	srv.activeExpireCycle()

	dbsPerCall := min(cronDbsPerCall, len(srv.db))
	for j := 0; j < dbsPerCall; j++ {
		srv.tryResizeHashTables(srv.resizeDb % len(srv.db))
		srv.resizeDb++
	}

	if srv.activeRehashing {
		for j := 0; j < dbsPerCall; j++ {
			if srv.incrementallyRehash(srv.rehashDb) {
				// 已经用掉了这次的时间
				break
			}
			srv.rehashDb = (srv.rehashDb + 1) % len(srv.db)
		}
	}
}

func (srv *Server) tryResizeHashTables(dbid int) {
	db := srv.db[dbid]
	if htNeedsResize(db.dict) && db.dict.Resize() == nil {
		srv.statResizes++
	}
	if htNeedsResize(db.expires) && db.expires.Resize() == nil {
		srv.statResizes++
	}
}

// incrementallyRehash spends a millisecond rehashing the keyspace or the
// expires of dbid. It reports whether there was work to do.
func (srv *Server) incrementallyRehash(dbid int) bool {
	db := srv.db[dbid]
	if db.dict.IsRehashing() {
		srv.statRehashBuckets += int64(db.dict.RehashMilliseconds(1))
		return true
	}
	if db.expires.IsRehashing() {
		srv.statRehashBuckets += int64(db.expires.RehashMilliseconds(1))
		return true
	}
	return false
}

// Call runs one command for c on the current goroutine, which must be the
// event loop's. The reply is queued on c.
func (srv *Server) Call(c *Client, argv []*sds.SDS) {
	c.argv = argv
	defer func() { c.argv = nil }()
	srv.processCommand(c)
}
