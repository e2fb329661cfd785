package util

import "encoding/binary"

// PutInt stores the low size bytes of v into dst, little endian.
func PutInt(dst []byte, v int64, size int) {
	switch size {
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	case 8:
		binary.LittleEndian.PutUint64(dst, uint64(v))
	default:
		panic("Unknown size")
	}
}

// GetInt is the inverse of PutInt, sign extending the result.
func GetInt(src []byte, size int) int64 {
	switch size {
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(src)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(src)))
	case 8:
		return int64(binary.LittleEndian.Uint64(src))
	}
	panic("Unknown size")
}
