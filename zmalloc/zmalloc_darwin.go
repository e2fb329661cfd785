package zmalloc

import "golang.org/x/sys/unix"

// GetRSS returns the peak resident set size of the process in bytes.
func GetRSS() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return ru.Maxrss
}

// GetMemorySize returns the amount of physical memory in bytes.
func GetMemorySize() int64 {
	n, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return int64(n)
}
