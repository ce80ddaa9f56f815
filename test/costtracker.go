package test

import (
	"runtime"
	"syscall"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/util"
)

// CostTracker tracks CPU usage, context switches and memory allocations of a benchmark run
//
// Context switches mostly come from the sender sleeping and waking up between drain cycles.
type CostTracker struct {
	start    costSnapshot
	numProcs int
}

// CostReport contains measurements since NewCostTracker
type CostReport struct {
	RealTime        time.Duration
	UserTime        time.Duration
	SystemTime      time.Duration
	ContextSwitches int64
	NumHeapAllocs   uint64
	NumGCs          uint32
	GCCPUFraction   float64
	MaxResidentKB   int64
	NumProcs        int
}

type costSnapshot struct {
	realTime      time.Time
	rusage        syscall.Rusage
	numHeapAllocs uint64
	numGCs        uint32
}

// NewCostTracker creates a cost tracker and starts tracking
func NewCostTracker() *CostTracker {
	runtime.GC()
	return &CostTracker{
		start:    takeCostSnapshot(),
		numProcs: runtime.GOMAXPROCS(0),
	}
}

// Report reports measurements since the tracker was created
func (ct *CostTracker) Report() CostReport {
	runtime.GC()
	end := takeCostSnapshot()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return CostReport{
		RealTime:        end.realTime.Sub(ct.start.realTime),
		UserTime:        util.TimeFromTimeval(end.rusage.Utime).Sub(util.TimeFromTimeval(ct.start.rusage.Utime)),
		SystemTime:      util.TimeFromTimeval(end.rusage.Stime).Sub(util.TimeFromTimeval(ct.start.rusage.Stime)),
		ContextSwitches: (end.rusage.Nvcsw + end.rusage.Nivcsw) - (ct.start.rusage.Nvcsw + ct.start.rusage.Nivcsw),
		NumHeapAllocs:   end.numHeapAllocs - ct.start.numHeapAllocs,
		NumGCs:          end.numGCs - ct.start.numGCs,
		GCCPUFraction:   memStats.GCCPUFraction,
		MaxResidentKB:   end.rusage.Maxrss, // KB on Linux
		NumProcs:        ct.numProcs,
	}
}

func takeCostSnapshot() costSnapshot {
	snapshot := costSnapshot{realTime: time.Now()}
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &snapshot.rusage); err != nil {
		logger.Panic("failed to get resource usage: ", err)
	}
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	snapshot.numHeapAllocs = memStats.Mallocs
	snapshot.numGCs = memStats.NumGC
	return snapshot
}
