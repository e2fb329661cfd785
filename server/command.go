package server

import (
	"strings"
	"unsafe"

	"github.com/pengdafu/redis-dict/dict"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

type commandProc func(c *Client)

// arity 为负数时表示参数个数 >= -arity
type redisCommand struct {
	name  string
	proc  commandProc
	arity int

	calls        int64
	microseconds int64
}

var redisCommandTable = []redisCommand{
	{name: "ping", proc: pingCommand, arity: -1},
	{name: "echo", proc: echoCommand, arity: 2},
	{name: "select", proc: selectCommand, arity: 2},
	{name: "dbsize", proc: dbsizeCommand, arity: 1},
	{name: "flushdb", proc: flushdbCommand, arity: 1},
	{name: "flushall", proc: flushallCommand, arity: 1},
	{name: "set", proc: setCommand, arity: -3},
	{name: "get", proc: getCommand, arity: 2},
	{name: "del", proc: delCommand, arity: -2},
	{name: "exists", proc: existsCommand, arity: -2},
	{name: "randomkey", proc: randomkeyCommand, arity: 1},
	{name: "scan", proc: scanCommand, arity: -2},
	{name: "expire", proc: expireCommand, arity: 3},
	{name: "pexpire", proc: pexpireCommand, arity: 3},
	{name: "ttl", proc: ttlCommand, arity: 2},
	{name: "pttl", proc: pttlCommand, arity: 2},
	{name: "persist", proc: persistCommand, arity: 2},
	{name: "sadd", proc: saddCommand, arity: -3},
	{name: "srem", proc: sremCommand, arity: -3},
	{name: "sismember", proc: sismemberCommand, arity: 3},
	{name: "scard", proc: scardCommand, arity: 2},
	{name: "smembers", proc: smembersCommand, arity: 2},
	{name: "srandmember", proc: srandmemberCommand, arity: -2},
	{name: "sscan", proc: sscanCommand, arity: -3},
	{name: "debug", proc: debugCommand, arity: -2},
	{name: "info", proc: infoCommand, arity: -1},
}

func (srv *Server) populateCommandTable() {
	srv.commands = dict.Create(commandTableDictType, nil)
	for j := range redisCommandTable {
		// 每个 server 一份，统计信息互不影响
		cmd := redisCommandTable[j]
		if err := srv.commands.Add(unsafe.Pointer(sds.New(cmd.name)), unsafe.Pointer(&cmd)); err != nil {
			serverPanic("duplicate command " + cmd.name)
		}
	}
}

func (srv *Server) lookupCommand(name *sds.SDS) *redisCommand {
	return (*redisCommand)(srv.commands.FetchValue(unsafe.Pointer(name)))
}

func (srv *Server) processCommand(c *Client) {
	if len(c.argv) == 0 {
		return
	}
	c.cmd = srv.lookupCommand(c.argv[0])
	if c.cmd == nil {
		var args strings.Builder
		for _, a := range c.argv[1:] {
			if args.Len() >= 128 {
				break
			}
			args.WriteString("`")
			args.Write(a.Bytes()[:min(sds.Len(a), 128-args.Len())])
			args.WriteString("`, ")
		}
		name := c.argv[0].Bytes()
		addReplyErrorFormat(c, "unknown command `%s`, with args beginning with: %s", name[:min(len(name), 128)], args.String())
		return
	}
	if (c.cmd.arity > 0 && c.cmd.arity != len(c.argv)) || len(c.argv) < -c.cmd.arity {
		addReplyErrorFormat(c, "wrong number of arguments for '%s' command", c.cmd.name)
		return
	}
	srv.call(c)
}

func (srv *Server) call(c *Client) {
	start := util.UsTime()
	c.cmd.proc(c)
	c.cmd.microseconds += util.UsTime() - start
	c.cmd.calls++
	srv.statNumCommands++
}

func pingCommand(c *Client) {
	if len(c.argv) > 2 {
		addReplyErrorFormat(c, "wrong number of arguments for '%s' command", c.cmd.name)
		return
	}
	if len(c.argv) == 1 {
		addReplyBytes(c, shared.pong)
	} else {
		addReplyBulkBuffer(c, c.argv[1].Bytes())
	}
}

func echoCommand(c *Client) {
	addReplyBulkBuffer(c, c.argv[1].Bytes())
}
