package run

import (
	"fmt"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/control/filecontrol"
	"github.com/relex/udpc-agent/control/httpcontrol"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/forwarder"
	"github.com/relex/udpc-agent/input/tcplistener"
	"github.com/sirupsen/logrus"
)

// Loader loads configuration from file and prepares the environments to be launched
//
// Loader should take care of everything derived from the config file, but not trigger anything automatically.
//
// Forwarder, inputs and controls are exposed in place of a simple main loop to allow customization, see Run()
type Loader struct {
	filepath string // config file path

	Config
	MetricFactory *base.MetricFactory
	OpenTransport base.OpenTransportFunc // transport of forwarder, may be replaced before launching
	HookTarget    *logrus.Logger         // logger to attach the log hook to if enabled, default to logrus.StandardLogger()
}

// NewLoaderFromConfigFile loads config file and creates a Loader
func NewLoaderFromConfigFile(filepath string, metricPrefix string) (*Loader, error) {
	config, configErr := ParseConfigFile(filepath)
	if configErr != nil {
		return nil, configErr
	}

	return &Loader{
		filepath: filepath,

		Config:        config,
		MetricFactory: base.NewMetricFactory(metricPrefix, nil, nil),
		OpenTransport: config.Transport.NewOpenFunc(logger.Root()),
		HookTarget:    logrus.StandardLogger(),
	}, nil
}

// LaunchForwarder creates and starts a Forwarder to the configured destination
func (loader *Loader) LaunchForwarder(flogger logger.Logger) (*forwarder.Forwarder, error) {
	fwd, err := forwarder.NewForwarder(flogger, loader.BufferSlots, loader.Destination.Destination, loader.OpenTransport,
		loader.MetricFactory)
	if err != nil {
		return nil, err
	}
	if err := fwd.Start(); err != nil {
		return nil, err
	}
	return fwd, nil
}

// LaunchInputs starts all inputs in background and returns (list of addresses, shutdown function)
//
// The returned input addresses are final, e.g. assigned random port if it's 0 in config file
//
// The return shutdown function only shuts down the inputs, not the forwarder
func (loader *Loader) LaunchInputs(submitter base.LogSubmitter) ([]string, func(), error) {
	stopRequest := channels.NewSignalAwaitable()
	inputStoppedSignals := make([]channels.Awaitable, 0, len(loader.Inputs.TCP))
	inputAddresses := make([]string, 0, len(loader.Inputs.TCP))
	shutdown := func() {
		stopRequest.Signal()
		waitAll(inputStoppedSignals)
	}

	for index, inputConfig := range loader.Inputs.TCP {
		input, ierr := tcplistener.NewTCPLineListener(logger.Root(), inputConfig.Address, submitter, stopRequest, loader.MetricFactory)
		if ierr != nil {
			shutdown()
			return nil, nil, fmt.Errorf("inputs.tcp[%d]: %w", index, ierr)
		}
		input.Start()

		inputAddresses = append(inputAddresses, input.Address())
		inputStoppedSignals = append(inputStoppedSignals, input.Stopped())
	}

	if loader.Inputs.LogHook.Enabled {
		hook, herr := loader.Inputs.LogHook.NewHook(submitter)
		if herr != nil {
			shutdown()
			return nil, nil, fmt.Errorf("inputs.logHook: %w", herr)
		}
		target := loader.HookTarget
		hooks := make(logrus.LevelHooks, len(target.Hooks))
		for level, levelHooks := range target.Hooks {
			hooks[level] = append([]logrus.Hook(nil), levelHooks...)
		}
		hooks.Add(hook)
		previousHooks := target.ReplaceHooks(hooks)
		logger.WithField(defs.LabelComponent, "Loader").Info("attached log hook")

		inputShutdown := shutdown
		shutdown = func() {
			target.ReplaceHooks(previousHooks)
			inputShutdown()
		}
	}

	return inputAddresses, shutdown, nil
}

// LaunchControls starts the configured control planes in background and returns shutdown function
func (loader *Loader) LaunchControls(controller base.DestinationController) ([]string, func(), error) {
	stopRequest := channels.NewSignalAwaitable()
	stoppedSignals := make([]channels.Awaitable, 0, 2)
	addresses := make([]string, 0, 2)
	shutdown := func() {
		stopRequest.Signal()
		waitAll(stoppedSignals)
	}

	if address := loader.Control.HTTPAddress; address != "" {
		srv, err := httpcontrol.NewServer(logger.Root(), address, controller, stopRequest)
		if err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("control.httpAddress: %w", err)
		}
		srv.Start()
		addresses = append(addresses, srv.Address())
		stoppedSignals = append(stoppedSignals, srv.Stopped())
	}

	if path := loader.Control.File; path != "" {
		watcher, err := filecontrol.NewWatcher(logger.Root(), path, controller, stopRequest)
		if err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("control.file: %w", err)
		}
		watcher.Start()
		addresses = append(addresses, watcher.Path())
		stoppedSignals = append(stoppedSignals, watcher.Stopped())
	}

	return addresses, shutdown, nil
}

func waitAll(signals []channels.Awaitable) {
	if len(signals) == 0 {
		return
	}
	channels.AllAwaitables(signals...).WaitForever()
}
