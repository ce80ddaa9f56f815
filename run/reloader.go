package run

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
)

// Reloader re-reads the config file and applies the new destination to a running forwarder
//
// Other settings are only compared and require restart to take effect.
type Reloader struct {
	logger      logger.Logger
	filepath    string
	controller  base.DestinationController
	metrics     reloadMetrics
	loadingLock sync.Mutex
	current     Config
}

// NewReloader creates a Reloader based on the config loaded by the given loader
func NewReloader(loader *Loader, controller base.DestinationController) *Reloader {
	return &Reloader{
		logger:     logger.WithField(defs.LabelComponent, "Reloader"),
		filepath:   loader.filepath,
		controller: controller,
		metrics:    newReloadMetrics(loader.MetricFactory),
		current:    loader.Config,
	}
}

// Reload reloads the config file and applies the destination if it's been changed in the file
//
// A destination changed by control planes is not overwritten unless the file has a different one since last load.
func (reloader *Reloader) Reload() error {
	reloader.loadingLock.Lock()
	defer reloader.loadingLock.Unlock()

	newConfig, err := ParseConfigFile(reloader.filepath)
	if err != nil {
		reloader.metrics.failureCounter.Inc()
		reloader.logger.Error("failed to reload: ", err)
		return err
	}

	if newConfig.dumpStatic() != reloader.current.dumpStatic() {
		reloader.logger.Warn("settings other than destination are changed and require restart to take effect")
	}

	if newConfig.Destination != reloader.current.Destination {
		if err := reloader.controller.Configure([]byte(newConfig.Destination.String())); err != nil {
			reloader.metrics.failureCounter.Inc()
			return fmt.Errorf("destination: %w", err)
		}
	} else {
		reloader.logger.Info("destination unchanged in config")
	}

	reloader.current = newConfig
	reloader.metrics.successCounter.Inc()
	return nil
}

// ListenForSignal reloads config on every SIGHUP until the returned function is called
func (reloader *Reloader) ListenForSignal() func() {
	// SIGHUPs received while reloading are coalesced into one
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-c:
				reloader.logger.Info("reloading config...")
				if reloader.Reload() == nil {
					reloader.logger.Info("reloaded config")
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}
