package server

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"unsafe"

	"github.com/pengdafu/redis-dict/ae"
	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/zmalloc"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, options string) (*Server, *Client) {
	t.Helper()
	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromString(options))

	seed := dict.GetHashFunctionSeed()
	t.Cleanup(func() {
		dict.SetHashFunctionSeed(seed)
		zmalloc.SetOOMHandler(nil)
		zmalloc.SetMaxMemory(0)
	})
	srv := New(cfg)
	return srv, srv.NewClient()
}

func makeArgv(args ...string) []*sds.SDS {
	argv := make([]*sds.SDS, len(args))
	for i, a := range args {
		argv[i] = sds.New(a)
	}
	return argv
}

// call runs a command and returns the raw reply.
func call(srv *Server, c *Client, args ...string) string {
	argv := makeArgv(args...)
	srv.Call(c, argv)
	for _, a := range argv {
		sds.Free(a)
	}
	return string(c.TakeReply())
}

// readReply decodes one RESP value: string for status and bulk replies,
// int64 for integers, error for errors, []interface{} for arrays and nil
// for null replies.
func readReply(t *testing.T, r *bufio.Reader) interface{} {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	line = strings.TrimSuffix(line, "\r\n")
	switch line[0] {
	case '+':
		return line[1:]
	case '-':
		return fmt.Errorf("%s", line[1:])
	case ':':
		n, err := strconv.ParseInt(line[1:], 10, 64)
		require.NoError(t, err)
		return n
	case '$':
		n, err := strconv.Atoi(line[1:])
		require.NoError(t, err)
		if n < 0 {
			return nil
		}
		buf := make([]byte, n+2)
		_, err = io.ReadFull(r, buf)
		require.NoError(t, err)
		return string(buf[:n])
	case '*':
		n, err := strconv.Atoi(line[1:])
		require.NoError(t, err)
		arr := make([]interface{}, n)
		for i := range arr {
			arr[i] = readReply(t, r)
		}
		return arr
	}
	t.Fatalf("bad reply line %q", line)
	return nil
}

func parse(t *testing.T, reply string) interface{} {
	t.Helper()
	r := bufio.NewReader(strings.NewReader(reply))
	v := readReply(t, r)
	_, err := r.ReadByte()
	require.ErrorIs(t, err, io.EOF, "trailing data in %q", reply)
	return v
}

func bulkStrings(t *testing.T, reply string) []string {
	t.Helper()
	arr, ok := parse(t, reply).([]interface{})
	require.True(t, ok, reply)
	out := make([]string, len(arr))
	for i, v := range arr {
		out[i] = v.(string)
	}
	return out
}

func TestPingEcho(t *testing.T) {
	srv, c := newTestServer(t, "")
	require.Equal(t, "+PONG\r\n", call(srv, c, "PING"))
	require.Equal(t, "+PONG\r\n", call(srv, c, "pInG"))
	require.Equal(t, "$5\r\nhello\r\n", call(srv, c, "ping", "hello"))
	require.Equal(t, "$2\r\nhi\r\n", call(srv, c, "echo", "hi"))
	require.Equal(t, "-ERR wrong number of arguments for 'ping' command\r\n", call(srv, c, "ping", "a", "b"))
}

func TestProcessCommandErrors(t *testing.T) {
	srv, c := newTestServer(t, "")
	require.Equal(t, "-ERR unknown command `foo`, with args beginning with: `a`, `b`, \r\n", call(srv, c, "foo", "a", "b"))
	require.Equal(t, "-ERR unknown command `foo`, with args beginning with: \r\n", call(srv, c, "foo"))
	require.Equal(t, "-ERR wrong number of arguments for 'get' command\r\n", call(srv, c, "get"))
	require.Equal(t, "-ERR wrong number of arguments for 'set' command\r\n", call(srv, c, "set", "k"))

	// 空命令什么都不回
	srv.Call(c, nil)
	require.False(t, c.HasPendingReplies())
}

func TestCommandStats(t *testing.T) {
	srv, c := newTestServer(t, "")
	for i := 0; i < 3; i++ {
		call(srv, c, "GET", "k")
	}
	name := sds.New("get")
	defer sds.Free(name)
	cmd := srv.lookupCommand(name)
	require.NotNil(t, cmd)
	require.EqualValues(t, 3, cmd.calls)
	require.EqualValues(t, 3, srv.statNumCommands)

	// 每个 server 有自己的命令表
	other, _ := newTestServer(t, "")
	require.Zero(t, other.lookupCommand(name).calls)
}

func TestLookupCommandIgnoresCase(t *testing.T) {
	srv, _ := newTestServer(t, "")
	get := sds.New("get")
	defer sds.Free(get)
	want := srv.lookupCommand(get)
	require.NotNil(t, want)
	for _, name := range []string{"GET", "Get", "gEt"} {
		s := sds.New(name)
		require.Same(t, want, srv.lookupCommand(s), name)
		require.Equal(t, dictSdsCaseHash(unsafe.Pointer(get)), dictSdsCaseHash(unsafe.Pointer(s)), name)
		sds.Free(s)
	}
	nope := sds.New("GETX")
	defer sds.Free(nope)
	require.Nil(t, srv.lookupCommand(nope))
}

func TestSelectFlush(t *testing.T) {
	srv, c := newTestServer(t, "databases 4")
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "a", "1"))
	require.Equal(t, "+OK\r\n", call(srv, c, "select", "1"))
	require.Equal(t, 1, c.DB())
	require.Equal(t, ":0\r\n", call(srv, c, "dbsize"))
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "b", "1"))
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "c", "1"))
	require.Equal(t, ":2\r\n", call(srv, c, "dbsize"))

	require.Equal(t, "-ERR DB index is out of range\r\n", call(srv, c, "select", "4"))
	require.Equal(t, "-ERR invalid DB index\r\n", call(srv, c, "select", "x"))
	require.Equal(t, 1, c.DB())

	require.Equal(t, "+OK\r\n", call(srv, c, "flushdb"))
	require.Equal(t, ":0\r\n", call(srv, c, "dbsize"))
	call(srv, c, "select", "0")
	require.Equal(t, ":1\r\n", call(srv, c, "dbsize"))
	require.Equal(t, "+OK\r\n", call(srv, c, "flushall"))
	require.Equal(t, ":0\r\n", call(srv, c, "dbsize"))
}

func TestStrings(t *testing.T) {
	srv, c := newTestServer(t, "")
	require.Equal(t, "$-1\r\n", call(srv, c, "get", "k"))
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "k", "v"))
	require.Equal(t, "$1\r\nv\r\n", call(srv, c, "get", "k"))
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "k", "value2"))
	require.Equal(t, "$6\r\nvalue2\r\n", call(srv, c, "get", "k"))

	require.Equal(t, "+OK\r\n", call(srv, c, "set", "n", "123"))
	require.Equal(t, "$3\r\n123\r\n", call(srv, c, "get", "n"))
	n := sds.New("n")
	require.Equal(t, ObjEncodingInt, c.db.lookupKey(n).getEncoding())
	sds.Free(n)

	require.Equal(t, ":2\r\n", call(srv, c, "exists", "k", "n", "missing"))
	require.Equal(t, ":1\r\n", call(srv, c, "del", "k", "missing"))
	require.Equal(t, ":0\r\n", call(srv, c, "exists", "k"))
	require.EqualValues(t, 5, srv.statKeyspaceHits)
	require.EqualValues(t, 3, srv.statKeyspaceMisses)
}

func TestSetOptions(t *testing.T) {
	srv, c := newTestServer(t, "")
	require.Equal(t, "$-1\r\n", call(srv, c, "set", "k", "v", "XX"))
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "k", "v", "NX"))
	require.Equal(t, "$-1\r\n", call(srv, c, "set", "k", "w", "nx"))
	require.Equal(t, "+OK\r\n", call(srv, c, "set", "k", "w", "xx"))
	require.Equal(t, "$1\r\nw\r\n", call(srv, c, "get", "k"))

	require.Equal(t, "-ERR syntax error\r\n", call(srv, c, "set", "k", "v", "NX", "XX"))
	require.Equal(t, "-ERR syntax error\r\n", call(srv, c, "set", "k", "v", "EX", "1", "PX", "1"))
	require.Equal(t, "-ERR syntax error\r\n", call(srv, c, "set", "k", "v", "EX"))
	require.Equal(t, "-ERR syntax error\r\n", call(srv, c, "set", "k", "v", "foo"))
	require.Equal(t, "-ERR invalid expire time in 'set' command\r\n", call(srv, c, "set", "k", "v", "EX", "0"))
	require.Equal(t, "-ERR value is not an integer or out of range\r\n", call(srv, c, "set", "k", "v", "PX", "abc"))
}

func TestWrongType(t *testing.T) {
	srv, c := newTestServer(t, "")
	call(srv, c, "sadd", "s", "a")
	call(srv, c, "set", "k", "v")
	wrongType := "-WRONGTYPE Operation against a key holding the wrong kind of value\r\n"
	require.Equal(t, wrongType, call(srv, c, "get", "s"))
	require.Equal(t, wrongType, call(srv, c, "sadd", "k", "a"))
	require.Equal(t, wrongType, call(srv, c, "smembers", "k"))
	require.Equal(t, wrongType, call(srv, c, "scard", "k"))
	require.Equal(t, wrongType, call(srv, c, "sscan", "k", "0"))
}

func TestRandomKey(t *testing.T) {
	srv, c := newTestServer(t, "")
	require.Equal(t, "$-1\r\n", call(srv, c, "randomkey"))
	call(srv, c, "set", "a", "1")
	require.Equal(t, "$1\r\na\r\n", call(srv, c, "randomkey"))

	for i := 0; i < 20; i++ {
		call(srv, c, "set", fmt.Sprintf("key:%d", i), "v")
	}
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		seen[parse(t, call(srv, c, "randomkey")).(string)] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestScan(t *testing.T) {
	srv, c := newTestServer(t, "")
	for i := 0; i < 500; i++ {
		call(srv, c, "set", fmt.Sprintf("key:%d", i), "v")
	}

	seen := map[string]int{}
	cursor := "0"
	for calls := 0; ; calls++ {
		require.Less(t, calls, 1000)
		reply := parse(t, call(srv, c, "scan", cursor, "COUNT", "20")).([]interface{})
		require.Len(t, reply, 2)
		cursor = reply[0].(string)
		for _, k := range reply[1].([]interface{}) {
			seen[k.(string)]++
		}
		if cursor == "0" {
			break
		}
	}
	require.Len(t, seen, 500)

	require.Equal(t, "-ERR invalid cursor\r\n", call(srv, c, "scan", "abc"))
	require.Equal(t, "-ERR syntax error\r\n", call(srv, c, "scan", "0", "COUNT", "0"))
	require.Equal(t, "-ERR syntax error\r\n", call(srv, c, "scan", "0", "MATCH"))
	require.Equal(t, "-ERR value is not an integer or out of range\r\n", call(srv, c, "scan", "0", "count", "x"))
}

func TestScanSkipsExpiredKeys(t *testing.T) {
	srv, c := newTestServer(t, "")
	now := int64(1_000_000)
	srv.mstime = func() int64 { return now }

	call(srv, c, "set", "live", "v")
	call(srv, c, "set", "dead", "v", "PX", "10")
	now += 100

	reply := parse(t, call(srv, c, "scan", "0", "count", "100")).([]interface{})
	require.Equal(t, "0", reply[0])
	require.Equal(t, []interface{}{"live"}, reply[1])
	require.EqualValues(t, 1, srv.statExpiredKeys)
}

func TestDatabasesCronResizes(t *testing.T) {
	srv, c := newTestServer(t, "")
	db := srv.db[0]
	for i := 0; i < 1000; i++ {
		call(srv, c, "set", fmt.Sprintf("key:%d", i), "v")
	}
	for srv.incrementallyRehash(0) {
	}
	require.EqualValues(t, 1024, db.dict.Slots())

	for i := 10; i < 1000; i++ {
		call(srv, c, "del", fmt.Sprintf("key:%d", i))
	}
	require.EqualValues(t, 10, db.dict.Size())
	require.True(t, htNeedsResize(db.dict))

	srv.tryResizeHashTables(0)
	require.EqualValues(t, 1, srv.statResizes)
	require.True(t, db.dict.IsRehashing())
	for srv.incrementallyRehash(0) {
	}
	require.False(t, db.dict.IsRehashing())
	require.EqualValues(t, 16, db.dict.Slots())
	require.Equal(t, ":10\r\n", call(srv, c, "dbsize"))
}

func TestDatabasesCronRehashesInBackground(t *testing.T) {
	srv, c := newTestServer(t, "databases 2")
	for i := 0; i < 200; i++ {
		call(srv, c, "set", fmt.Sprintf("key:%d", i), "v")
	}
	db := srv.db[0]
	for db.dict.IsRehashing() {
		db.dict.Rehash(100)
	}
	require.NoError(t, db.dict.Expand(db.dict.Slots()*4))

	for i := 0; i < 1000 && db.dict.IsRehashing(); i++ {
		srv.databasesCron()
	}
	require.False(t, db.dict.IsRehashing())

	// 关闭后不再在后台rehash
	require.Equal(t, "+OK\r\n", call(srv, c, "debug", "activerehashing", "0"))
	require.NoError(t, db.dict.Expand(db.dict.Slots()*4))
	srv.databasesCron()
	require.True(t, db.dict.IsRehashing())
}

func TestServerCron(t *testing.T) {
	srv, _ := newTestServer(t, "hz 100")
	require.Equal(t, 10, srv.serverCron(srv.el, 0, nil))
	require.EqualValues(t, 1, srv.cronloops)
}

func TestMainRunsCronUntilStop(t *testing.T) {
	srv, c := newTestServer(t, "hz 500")
	srv.EventLoop().Post(func() {
		call(srv, c, "set", "k", "v")
	})
	srv.EventLoop().CreateTimeEvent(20, func(el *ae.EventLoop, id int64, clientData interface{}) int {
		srv.Stop()
		return ae.NoMore
	}, nil, nil)
	srv.Main()
	require.Positive(t, srv.cronloops)
	require.Equal(t, ":1\r\n", call(srv, c, "dbsize"))
}

func TestOutOfMemory(t *testing.T) {
	srv, c := newTestServer(t, "")
	argv := makeArgv("set", "k", strings.Repeat("x", 1<<20))
	defer func() {
		zmalloc.SetMaxMemory(0)
		for _, a := range argv {
			sds.Free(a)
		}
	}()

	zmalloc.SetMaxMemory(zmalloc.UsedMemory() + 1024)
	require.Panics(t, func() { srv.Call(c, argv) })
}
