package server

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pengdafu/redis-dict/adlist"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/util"
)

const (
	ProtoReplyChunkBytes = 16 * 1024
	objSharedBulkHdrLen  = 32
)

type clientReplyBlock struct {
	buf  []byte // len(buf) 为已使用的长度
	size int
}

// Client holds the state of one connection: the selected db, the current
// command and the pending replies. The replies are kept in a fixed buffer
// first, then in a list of blocks.
type Client struct {
	srv  *Server
	db   *redisDb
	argv []*sds.SDS
	cmd  *redisCommand

	buf        [ProtoReplyChunkBytes]byte
	bufpos     int
	reply      *adlist.List
	replyBytes int
}

type sharedObjects struct {
	crlf, ok, czero, cone, nullBulk, emptyArray, pong []byte
	wrongTypeErr, syntaxErr, outOfRangeErr, noSuchKey []byte
	mBulkHdr, bulkHdr                                 [objSharedBulkHdrLen][]byte
}

var shared = createSharedObjects()

func createSharedObjects() *sharedObjects {
	s := &sharedObjects{
		crlf:          []byte("\r\n"),
		ok:            []byte("+OK\r\n"),
		czero:         []byte(":0\r\n"),
		cone:          []byte(":1\r\n"),
		nullBulk:      []byte("$-1\r\n"),
		emptyArray:    []byte("*0\r\n"),
		pong:          []byte("+PONG\r\n"),
		wrongTypeErr:  []byte("-WRONGTYPE Operation against a key holding the wrong kind of value\r\n"),
		syntaxErr:     []byte("-ERR syntax error\r\n"),
		outOfRangeErr: []byte("-ERR index out of range\r\n"),
		noSuchKey:     []byte("-ERR no such key\r\n"),
	}
	for j := 0; j < objSharedBulkHdrLen; j++ {
		s.mBulkHdr[j] = []byte(fmt.Sprintf("*%d\r\n", j))
		s.bulkHdr[j] = []byte(fmt.Sprintf("$%d\r\n", j))
	}
	return s
}

// NewClient creates a client bound to db 0.
func (srv *Server) NewClient() *Client {
	c := &Client{
		srv:   srv,
		reply: adlist.Create(),
	}
	c.db = srv.db[0]
	return c
}

// DB returns the index of the selected db.
func (c *Client) DB() int {
	return c.db.id
}

func (c *Client) HasPendingReplies() bool {
	return c.bufpos > 0 || c.reply.Len() > 0
}

func (c *Client) addReplyToBuffer(s []byte) bool {
	// 如果有list buffer等回包，则直接加到list中
	if c.reply.Len() > 0 {
		return false
	}
	available := len(c.buf) - c.bufpos
	if available < len(s) {
		return false
	}
	copy(c.buf[c.bufpos:], s)
	c.bufpos += len(s)
	return true
}

func (c *Client) addReplyProtoToList(s []byte) {
	if ln := c.reply.Last(); ln != nil {
		if tail, ok := ln.NodeValue().(*clientReplyBlock); ok {
			n := copy(tail.buf[len(tail.buf):tail.size], s)
			tail.buf = tail.buf[:len(tail.buf)+n]
			s = s[n:]
		}
	}
	if len(s) == 0 {
		return
	}

	size := max(len(s), ProtoReplyChunkBytes)
	tail := &clientReplyBlock{buf: make([]byte, len(s), size), size: size}
	copy(tail.buf, s)
	c.reply.AddNodeTail(tail)
	c.replyBytes += size
}

func addReplyBytes(c *Client, s []byte) {
	if !c.addReplyToBuffer(s) {
		c.addReplyProtoToList(s)
	}
}

func addReplyProto(c *Client, s string) {
	addReplyBytes(c, util.String2Bytes(s))
}

func addReplyStatus(c *Client, status string) {
	addReplyProto(c, "+")
	addReplyProto(c, status)
	addReplyBytes(c, shared.crlf)
}

func addReplyError(c *Client, err string) {
	if len(err) == 0 || err[0] != '-' {
		addReplyProto(c, "-ERR ")
	}
	// 错误信息不能包含换行
	addReplyProto(c, strings.NewReplacer("\r", " ", "\n", " ").Replace(err))
	addReplyBytes(c, shared.crlf)
}

func addReplyErrorFormat(c *Client, format string, a ...any) {
	addReplyError(c, fmt.Sprintf(format, a...))
}

func addReplyLongLongWithPrefix(c *Client, ll int64, prefix byte) {
	if prefix == '*' && ll < objSharedBulkHdrLen && ll >= 0 {
		addReplyBytes(c, shared.mBulkHdr[ll])
		return
	}
	if prefix == '$' && ll < objSharedBulkHdrLen && ll >= 0 {
		addReplyBytes(c, shared.bulkHdr[ll])
		return
	}
	var buf [24]byte
	b := append(buf[:0], prefix)
	b = strconv.AppendInt(b, ll, 10)
	b = append(b, '\r', '\n')
	addReplyBytes(c, b)
}

func addReplyLongLong(c *Client, ll int64) {
	if ll == 0 {
		addReplyBytes(c, shared.czero)
	} else if ll == 1 {
		addReplyBytes(c, shared.cone)
	} else {
		addReplyLongLongWithPrefix(c, ll, ':')
	}
}

func addReplyArrayLen(c *Client, length int) {
	addReplyLongLongWithPrefix(c, int64(length), '*')
}

func addReplyNull(c *Client) {
	addReplyBytes(c, shared.nullBulk)
}

func addReplyBulkBuffer(c *Client, p []byte) {
	addReplyLongLongWithPrefix(c, int64(len(p)), '$')
	addReplyBytes(c, p)
	addReplyBytes(c, shared.crlf)
}

func addReplyBulkString(c *Client, s string) {
	addReplyBulkBuffer(c, util.String2Bytes(s))
}

func addReplyBulkLongLong(c *Client, ll int64) {
	var buf [20]byte
	addReplyBulkBuffer(c, strconv.AppendInt(buf[:0], ll, 10))
}

func addReplyBulk(c *Client, o *robj) {
	addReplyBulkBuffer(c, o.stringBytes())
}

// addReplyDeferredLen reserves a node for an aggregate length not known
// yet, filled later by setDeferredArrayLen.
func addReplyDeferredLen(c *Client) *adlist.ListNode {
	// 固定缓冲区的内容先转移到list，保证顺序
	if c.bufpos > 0 && c.reply.Len() == 0 {
		c.addReplyProtoToList(c.buf[:c.bufpos])
		c.bufpos = 0
	}
	c.reply.AddNodeTail(nil)
	return c.reply.Last()
}

func setDeferredArrayLen(c *Client, node *adlist.ListNode, length int) {
	if node == nil {
		return
	}
	lenStr := fmt.Sprintf("*%d\r\n", length)

	// 下一个block有足够空间时直接前插，省掉一个节点
	if next, ok := node.Next().NodeValue().(*clientReplyBlock); ok && next.size-len(next.buf) >= len(lenStr) {
		next.buf = next.buf[:len(next.buf)+len(lenStr)]
		copy(next.buf[len(lenStr):], next.buf[:len(next.buf)-len(lenStr)])
		copy(next.buf, lenStr)
		c.reply.DelNode(node)
		return
	}
	block := &clientReplyBlock{buf: []byte(lenStr), size: len(lenStr)}
	node.SetNodeValue(block)
	c.replyBytes += block.size
}

// WriteTo writes every pending reply to w.
func (c *Client) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if c.bufpos > 0 {
		n, err := w.Write(c.buf[:c.bufpos])
		total += int64(n)
		if err != nil {
			return total, err
		}
		c.bufpos = 0
	}
	for c.reply.Len() > 0 {
		ln := c.reply.First()
		o, ok := ln.NodeValue().(*clientReplyBlock)
		if !ok {
			serverPanic("deferred length never set")
		}
		if len(o.buf) > 0 {
			n, err := w.Write(o.buf)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		c.replyBytes -= o.size
		c.reply.DelNode(ln)
	}
	serverAssert(c.replyBytes == 0, "reply bytes accounting")
	return total, nil
}

// TakeReply returns and clears the pending replies.
func (c *Client) TakeReply() []byte {
	var b strings.Builder
	_, _ = c.WriteTo(&b)
	return []byte(b.String())
}
