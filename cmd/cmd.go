// Package cmd provides list of commands including self-benchmarks
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "udpc-agent forwards log lines as UDP datagrams to a runtime-configurable destination", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("benchmark <type> ...", "Run benchmark of specified type", &benchCmd, nil)
	config.AddCmdWithArgs("benchmark forwarder ...", "Benchmark forwarder with parallel producers to a local UDP sink", nil, benchCmd.runBenchmarkForwarderCommand)
	config.AddCmdWithArgs("benchmark agent ...", "Benchmark agent with TCP input to a local UDP sink", nil, benchCmd.runBenchmarkAgentCommand)
	config.AddCmdWithArgs("run ...", "Run agent", &runCmd, runCmd.run)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}
