package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Runtime profiles by CPU count
const (
	// 2 vCPU, 4GB RAM
	SmallServerGOGC     = 200
	SmallServerMemLimit = 2.5 * 1024 * 1024 * 1024
	SmallServerMaxProcs = 1

	// 4-8 vCPU, 8-16GB RAM
	MediumServerGOGC     = 300
	MediumServerMemLimit = 6 * 1024 * 1024 * 1024

	// 16+ vCPU
	LargeServerGOGC     = 400
	LargeServerMemLimit = 12 * 1024 * 1024 * 1024
)

// RuntimeProfile is the set of runtime knobs applied at boot.
type RuntimeProfile struct {
	GOGC     int
	MemLimit int64
	MaxProcs int
}

// DetectRuntimeProfile picks a profile from the CPU count. RAM is not probed.
func DetectRuntimeProfile(numCPU int) RuntimeProfile {
	switch {
	case numCPU <= 2:
		return RuntimeProfile{GOGC: SmallServerGOGC, MemLimit: int64(SmallServerMemLimit), MaxProcs: SmallServerMaxProcs}
	case numCPU <= 8:
		return RuntimeProfile{GOGC: MediumServerGOGC, MemLimit: int64(MediumServerMemLimit), MaxProcs: numCPU / 2}
	default:
		return RuntimeProfile{GOGC: LargeServerGOGC, MemLimit: int64(LargeServerMemLimit), MaxProcs: numCPU / 2}
	}
}

// InitRuntime applies the detected profile. GOGC, GOMAXPROCS and GOMEMLIMIT from the
// environment win over the profile.
func InitRuntime() {
	profile := DetectRuntimeProfile(runtime.NumCPU())

	// quote requests allocate many short lived decimals, fewer collections keep latency flat
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(profile.GOGC)
		log.Info().Int("GOGC", profile.GOGC).Msg("[runtime] Set GOGC")
	}

	if os.Getenv("GOMAXPROCS") == "" {
		maxProcs := profile.MaxProcs
		if maxProcs < 1 {
			maxProcs = 1
		}
		runtime.GOMAXPROCS(maxProcs)
		log.Info().
			Int("GOMAXPROCS", maxProcs).
			Int("total_cpu", runtime.NumCPU()).
			Msg("[runtime] Set GOMAXPROCS")
	}

	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(profile.MemLimit)
		log.Info().
			Int64("GOMEMLIMIT_bytes", profile.MemLimit).
			Msg("[runtime] Set memory limit")
	}

	logRuntimeSettings()
}

func logRuntimeSettings() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("[runtime] Current runtime settings")
}
