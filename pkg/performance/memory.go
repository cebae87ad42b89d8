package performance

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// MemorySnapshot represents memory state at a point in time
type MemorySnapshot struct {
	Timestamp   time.Time
	TotalMB     uint64 // Total system memory
	AvailableMB uint64 // Available memory for use
	UsedMB      uint64 // Currently used memory
	FreeMB      uint64 // Free memory (not including buffers/cache)
}

// GoMemoryStats holds Go runtime memory statistics
type GoMemoryStats struct {
	AllocMB uint64 // Currently allocated heap memory
	SysMB   uint64 // Memory obtained from system
	NumGC   uint32 // Number of GC runs
}

// GetGoMemory retrieves Go runtime memory statistics
func GetGoMemory() GoMemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return GoMemoryStats{
		AllocMB: m.Alloc / (1024 * 1024),
		SysMB:   m.Sys / (1024 * 1024),
		NumGC:   m.NumGC,
	}
}

// FrameQueueDepth picks how many RGBA frames of w x h the render queue may
// hold. The pool is depth+1 buffers; it never takes more than an eighth of the
// available memory and stays between 1 and 4.
func FrameQueueDepth(availableMB uint64, w, h int) int {
	frameBytes := uint64(w) * uint64(h) * 4
	if frameBytes == 0 || availableMB == 0 {
		return 2
	}
	budget := availableMB * 1024 * 1024 / 8
	buffers := int(budget / frameBytes)
	return lo.Clamp(buffers-1, 1, 4)
}

// LogMemorySnapshot logs a memory snapshot at debug level
func LogMemorySnapshot(log zerolog.Logger) {
	sys := GetSystemMemory()
	goMem := GetGoMemory()

	log.Debug().
		Uint64("total_mb", sys.TotalMB).
		Uint64("avail_mb", sys.AvailableMB).
		Uint64("used_mb", sys.UsedMB).
		Uint64("go_alloc_mb", goMem.AllocMB).
		Uint64("go_sys_mb", goMem.SysMB).
		Uint32("gc", goMem.NumGC).
		Msg("Memory: snapshot")
}
