package cmd

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/defs"
)

// rootCommandState holds profiling options shared by all commands
//
// Block and mutex profiles show contention on the ring buffer and destination locks between producers and sender.
type rootCommandState struct {
	CPUProfile   string `name:"cpuprofile" help:"Write CPU profile to file."`
	MemProfile   string `name:"memprofile" help:"Write heap profile to file on exit."`
	BlockProfile string `name:"blockprofile" help:"Write goroutine blocking profile to file on exit."`
	MutexProfile string `name:"mutexprofile" help:"Write mutex contention profile to file on exit."`
	Trace        string `help:"Write execution trace to file."`

	logger       logger.Logger
	cpuFile      *os.File
	traceFile    *os.File
	exitProfiles []exitProfile
}

// exitProfile is a named runtime profile written when the command finishes
type exitProfile struct {
	name string
	file *os.File
}

var rootCmd rootCommandState

func (cmd *rootCommandState) preRun() {
	cmd.logger = logger.WithField(defs.LabelComponent, "Profiler")

	if f := cmd.createOutput("CPU profile", cmd.CPUProfile); f != nil {
		if err := pprof.StartCPUProfile(f); err != nil {
			cmd.logger.Fatalf("failed to start CPU profiling: %s", err.Error())
		}
		cmd.cpuFile = f
	}

	if f := cmd.createOutput("heap profile", cmd.MemProfile); f != nil {
		cmd.exitProfiles = append(cmd.exitProfiles, exitProfile{"heap", f})
	}

	if f := cmd.createOutput("block profile", cmd.BlockProfile); f != nil {
		runtime.SetBlockProfileRate(1)
		cmd.exitProfiles = append(cmd.exitProfiles, exitProfile{"block", f})
	}

	if f := cmd.createOutput("mutex profile", cmd.MutexProfile); f != nil {
		runtime.SetMutexProfileFraction(1)
		cmd.exitProfiles = append(cmd.exitProfiles, exitProfile{"mutex", f})
	}

	if f := cmd.createOutput("trace", cmd.Trace); f != nil {
		if err := trace.Start(f); err != nil {
			cmd.logger.Fatalf("failed to start tracing: %s", err.Error())
		}
		cmd.traceFile = f
	}
}

func (cmd *rootCommandState) postRun() {
	if cmd.cpuFile != nil {
		pprof.StopCPUProfile()
		cmd.cpuFile.Close()
	}

	for _, p := range cmd.exitProfiles {
		if p.name == "heap" {
			runtime.GC()
		}
		if err := pprof.Lookup(p.name).WriteTo(p.file, 0); err != nil {
			cmd.logger.Errorf("failed to write %s profile: %s", p.name, err.Error())
		}
		p.file.Close()
	}

	if cmd.traceFile != nil {
		trace.Stop()
		cmd.traceFile.Close()
	}
}

// createOutput creates the output file of the given profile, or returns nil if path is empty
func (cmd *rootCommandState) createOutput(kind string, path string) *os.File {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		cmd.logger.Fatalf("failed to create %s %s: %s", kind, path, err.Error())
	}
	cmd.logger.Infof("start %s %s", kind, path)
	return f
}
