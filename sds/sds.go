// Package sds implements binary safe dynamic strings. An SDS keeps spare
// capacity after its content so appending is amortized O(1).
package sds

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/pengdafu/redis-dict/util"
	"github.com/pengdafu/redis-dict/zmalloc"
)

const MaxPreAlloc = 1024 * 1024

var ErrUnbalancedQuotes = errors.New("sds: unbalanced quotes in request")

// SDS 的长度为 len(buf)，分配的空间为 cap(buf)
type SDS struct {
	buf []byte
}

// NewLen 创建一个内容为 init 的 sds
func NewLen(init []byte) *SDS {
	s := zmalloc.New[SDS]()
	s.buf = zmalloc.MakeSlice[byte](len(init))
	copy(s.buf, init)
	return s
}

func New(init string) *SDS {
	return NewLen(util.String2Bytes(init))
}

// Empty 获取一个空的sds结构
func Empty() *SDS {
	return NewLen(nil)
}

func FromLongLong(v int64) *SDS {
	var buf [20]byte
	return NewLen(strconv.AppendInt(buf[:0], v, 10))
}

func Dup(s *SDS) *SDS {
	return NewLen(s.buf)
}

// Free releases the buffer of s. s must not be used afterwards.
func Free(s *SDS) {
	if s == nil {
		return
	}
	zmalloc.FreeSlice(s.buf)
	s.buf = nil
	zmalloc.Release(s)
}

func Len(s *SDS) int {
	return len(s.buf)
}

func Avail(s *SDS) int {
	return cap(s.buf) - len(s.buf)
}

// AllocSize is the number of bytes accounted for the buffer of s.
func AllocSize(s *SDS) int {
	return cap(s.buf)
}

// Bytes returns the content of s. It aliases the buffer and is only valid
// until the next modification.
func (s *SDS) Bytes() []byte {
	return s.buf
}

func (s *SDS) String() string {
	return string(s.buf)
}

// MakeRoomFor grows s so that addLen more bytes can be appended without a
// reallocation. Below MaxPreAlloc the new size is doubled, above it
// MaxPreAlloc is added.
func MakeRoomFor(s *SDS, addLen int) {
	if Avail(s) >= addLen {
		return
	}
	curLen := len(s.buf)
	newLen := curLen + addLen
	if newLen < curLen {
		panic("sds: length overflow")
	}
	if newLen < MaxPreAlloc {
		newLen *= 2
	} else {
		newLen += MaxPreAlloc
	}
	s.buf = zmalloc.Realloc(s.buf, newLen)[:curLen]
}

// CatLen appends p to s.
func CatLen(s *SDS, p []byte) {
	MakeRoomFor(s, len(p))
	s.buf = append(s.buf, p...)
}

func Cat(s *SDS, t string) {
	CatLen(s, util.String2Bytes(t))
}

// CatRepr appends p to s quoted, escaping every non printable byte, so
// that SplitArgs reads it back as a single argument.
func CatRepr(s *SDS, p []byte) {
	b := make([]byte, 0, len(p)+2)
	b = append(b, '"')
	for _, c := range p {
		switch c {
		case '\\', '"':
			b = append(b, '\\', c)
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		case '\a':
			b = append(b, '\\', 'a')
		case '\b':
			b = append(b, '\\', 'b')
		default:
			if c >= 0x20 && c < 0x7f {
				b = append(b, c)
			} else {
				b = append(b, fmt.Sprintf("\\x%02x", c)...)
			}
		}
	}
	b = append(b, '"')
	CatLen(s, b)
}

// Range keeps only the bytes between start and end, both inclusive.
// Negative indexes count from the end, -1 being the last byte.
func Range(s *SDS, start, end int) {
	oldLen := len(s.buf)
	if oldLen == 0 {
		return
	}
	if start < 0 {
		start = max(start+oldLen, 0)
	}
	if end < 0 {
		end = max(end+oldLen, 0)
	}
	newLen := 0
	if start <= end {
		newLen = end - start + 1
	}
	if newLen != 0 {
		if start >= oldLen {
			newLen = 0
		} else if end >= oldLen {
			end = oldLen - 1
			newLen = end - start + 1
		}
	} else {
		start = 0
	}
	if start > 0 && newLen > 0 {
		copy(s.buf, s.buf[start:start+newLen])
	}
	s.buf = s.buf[:newLen]
}

// Clear 清空内容但是保留已分配的空间
func Clear(s *SDS) {
	s.buf = s.buf[:0]
}

// Trim removes from both ends of s every byte contained in cset.
func Trim(s *SDS, cset string) {
	start, end := 0, len(s.buf)
	for start < end && bytes.IndexByte(util.String2Bytes(cset), s.buf[start]) >= 0 {
		start++
	}
	for end > start && bytes.IndexByte(util.String2Bytes(cset), s.buf[end-1]) >= 0 {
		end--
	}
	n := copy(s.buf, s.buf[start:end])
	s.buf = s.buf[:n]
}

func ToLower(s *SDS) {
	for i, c := range s.buf {
		s.buf[i] = util.ToLower(c)
	}
}

// Cmp compares s1 and s2 with memcmp semantics: when one is a prefix of the
// other, the longer string is the greater one.
func Cmp(s1, s2 *SDS) int {
	return bytes.Compare(s1.buf, s2.buf)
}

// SplitLen splits s on every occurrence of sep. An empty s or sep yields no
// element.
func SplitLen(s, sep []byte) []*SDS {
	if len(s) == 0 || len(sep) == 0 {
		return nil
	}
	var tokens []*SDS
	for {
		i := bytes.Index(s, sep)
		if i < 0 {
			break
		}
		tokens = append(tokens, NewLen(s[:i]))
		s = s[i+len(sep):]
	}
	return append(tokens, NewLen(s))
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func hexDigitToInt(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\v', '\f':
		return true
	}
	return false
}

// SplitArgs splits a line into arguments the way redis-cli and the config
// parser do. Arguments are separated by spaces and may be quoted:
//
//	"double quoted" supports \n \r \t \b \a \xHH and \<any> escapes
//	'single quoted' only supports \'
//
// A closing quote must be followed by a space or the end of the line.
func SplitArgs(line string) ([]*SDS, error) {
	p := util.String2Bytes(line)
	argv := []*SDS{}
	for {
		for len(p) > 0 && isSpace(p[0]) {
			p = p[1:]
		}
		if len(p) == 0 {
			return argv, nil
		}

		inq := false  // 是否处于双引号中
		insq := false // 是否处于单引号中
		done := false
		current := Empty()
		for !done {
			switch {
			case inq:
				if len(p) == 0 {
					return nil, ErrUnbalancedQuotes
				}
				if len(p) >= 4 && p[0] == '\\' && p[1] == 'x' && isHexDigit(p[2]) && isHexDigit(p[3]) {
					CatLen(current, []byte{hexDigitToInt(p[2])*16 + hexDigitToInt(p[3])})
					p = p[3:]
				} else if len(p) >= 2 && p[0] == '\\' {
					p = p[1:]
					c := p[0]
					switch c {
					case 'n':
						c = '\n'
					case 'r':
						c = '\r'
					case 't':
						c = '\t'
					case 'b':
						c = '\b'
					case 'a':
						c = '\a'
					}
					CatLen(current, []byte{c})
				} else if p[0] == '"' {
					// 引号后必须是空白或者结尾
					if len(p) >= 2 && !isSpace(p[1]) {
						return nil, ErrUnbalancedQuotes
					}
					done = true
				} else {
					CatLen(current, p[:1])
				}
			case insq:
				if len(p) == 0 {
					return nil, ErrUnbalancedQuotes
				}
				if len(p) >= 2 && p[0] == '\\' && p[1] == '\'' {
					p = p[1:]
					CatLen(current, []byte{'\''})
				} else if p[0] == '\'' {
					if len(p) >= 2 && !isSpace(p[1]) {
						return nil, ErrUnbalancedQuotes
					}
					done = true
				} else {
					CatLen(current, p[:1])
				}
			default:
				if len(p) == 0 {
					done = true
					continue
				}
				switch p[0] {
				case ' ', '\n', '\r', '\t':
					done = true
				case '"':
					inq = true
				case '\'':
					insq = true
				default:
					CatLen(current, p[:1])
				}
			}
			if len(p) > 0 {
				p = p[1:]
			}
		}
		argv = append(argv, current)
	}
}
