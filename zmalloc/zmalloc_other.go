//go:build !linux && !darwin

package zmalloc

func GetRSS() int64 {
	return 0
}

func GetMemorySize() int64 {
	return 0
}
