// Package run runs the actual log agent
package run

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/defs"
)

// Run runs the agent until stopped by signals
func Run(configFile string) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, defs.MetricPrefix)
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}

	runLogger := logger.WithField(defs.LabelComponent, "Launcher")
	runLogger.Infof("initial destination: %s", loader.Destination)

	fwd, fwdErr := loader.LaunchForwarder(logger.Root())
	if fwdErr != nil {
		logger.Fatal(fwdErr)
	}

	_, shutdownControls, controlErr := loader.LaunchControls(fwd)
	if controlErr != nil {
		logger.Fatal(controlErr)
	}
	_, shutdownInputs, inputErr := loader.LaunchInputs(fwd)
	if inputErr != nil {
		logger.Fatal(inputErr)
	}
	stopReloader := NewReloader(loader, fwd).ListenForSignal()

	// wait for shutdown signal
	{
		sigChan := make(chan os.Signal, 10)
		signal.Notify(sigChan, syscall.SIGINT)
		signal.Notify(sigChan, syscall.SIGTERM)
		s := <-sigChan
		runLogger.Infof("received %s, shutting down", s)
	}

	stopReloader()
	shutdownInputs()
	shutdownControls()
	fwd.Stop()
	runLogger.Info("clean exit")
}
