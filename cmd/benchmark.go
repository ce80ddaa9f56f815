package cmd

import (
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/test"
)

type benchmarkCommandState struct {
	Records    int    `help:"Numbers of records to submit"`
	RecordSize int    `help:"Size of each record in bytes"`
	Slots      int    `help:"Numbers of ring buffer slots, power of two (forwarder only)"`
	Producers  int    `help:"Numbers of parallel producers (forwarder only)"`
	Config     string `help:"Configuration file path (agent only)"`
}

var benchCmd = benchmarkCommandState{
	Records:    1000000,
	RecordSize: 200,
	Slots:      defs.DefaultBufferSlots,
	Producers:  4,
	Config:     "testdata/config_sample.yml",
}

func (cmd *benchmarkCommandState) runBenchmarkForwarderCommand(_ []string) {
	defs.EnableTestMode()
	test.RunBenchmarkForwarder(cmd.Records, cmd.RecordSize, cmd.Slots, cmd.Producers)
}

func (cmd *benchmarkCommandState) runBenchmarkAgentCommand(_ []string) {
	defs.EnableTestMode()
	test.RunBenchmarkAgent(cmd.Config, cmd.Records, cmd.RecordSize)
}
