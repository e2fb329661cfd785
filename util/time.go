package util

import "time"

var processStart = time.Now()

// GetMonotonicUs returns microseconds from a monotonic clock.
func GetMonotonicUs() int64 {
	return time.Since(processStart).Microseconds()
}

func GetMillionSeconds() int64 {
	return time.Now().UnixMilli()
}

func UsTime() int64 {
	return time.Now().UnixMicro()
}
