package util

import (
	"bytes"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"unsafe"
)

func String2Bytes(str string) []byte {
	return unsafe.Slice(unsafe.StringData(str), len(str))
}

func Bytes2String(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func StrCaseCmp[T []byte | string](s T, d string) bool {
	return strings.EqualFold(string(s), d)
}

func BytesCmp(key1, key2 []byte) bool {
	return bytes.Equal(key1, key2)
}

// BytesCaseCmp compares ASCII case-insensitively.
func BytesCaseCmp(key1, key2 []byte) bool {
	if len(key1) != len(key2) {
		return false
	}
	for i := 0; i < len(key1); i++ {
		if ToLower(key1[i]) != ToLower(key2[i]) {
			return false
		}
	}
	return true
}

func ToLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func GetRandomBytes(needLen int) []byte {
	ret := make([]byte, needLen)
	_, _ = rand.Read(ret)
	return ret
}

func String2Int64[T []byte | string](str T, v *int64) bool {
	i, err := strconv.ParseInt(string(str), 10, 64)
	if err != nil {
		return false
	}

	if v != nil {
		*v = i
	}
	return true
}

// YesNoToI returns 1 for "yes", 0 for "no" and -1 otherwise.
func YesNoToI(s string) int {
	switch {
	case strings.EqualFold(s, "yes"):
		return 1
	case strings.EqualFold(s, "no"):
		return 0
	}
	return -1
}

// MemToLL converts a memory amount such as "1gb" or "100k" into bytes.
// k/m/g are powers of 1000, kb/mb/gb powers of 1024.
func MemToLL(p string) (int64, bool) {
	u := 0
	if u < len(p) && p[u] == '-' {
		u++
	}
	for u < len(p) && p[u] >= '0' && p[u] <= '9' {
		u++
	}

	var mul int64
	switch strings.ToLower(p[u:]) {
	case "", "b":
		mul = 1
	case "k":
		mul = 1000
	case "kb":
		mul = 1024
	case "m":
		mul = 1000 * 1000
	case "mb":
		mul = 1024 * 1024
	case "g":
		mul = 1000 * 1000 * 1000
	case "gb":
		mul = 1024 * 1024 * 1024
	default:
		return 0, false
	}

	val, err := strconv.ParseInt(p[:u], 10, 64)
	if err != nil {
		return math.MaxInt64, false
	}
	if val != 0 && (val > math.MaxInt64/mul || val < math.MinInt64/mul) {
		return math.MaxInt64, false
	}
	return val * mul, true
}
