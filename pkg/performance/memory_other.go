//go:build !linux

package performance

import (
	"time"
)

// GetSystemMemory approximates available memory from the Go runtime where
// sysinfo is not available. TotalMB stays zero.
func GetSystemMemory() MemorySnapshot {
	goMem := GetGoMemory()
	return MemorySnapshot{
		Timestamp:   time.Now(),
		AvailableMB: 1024,
		UsedMB:      goMem.SysMB,
	}
}
