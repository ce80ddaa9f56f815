package filecontrol

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
)

// Watcher is a file control plane working like a proc file
//
// The control file contains the current destination "A.B.C.D:P\n" after launch. Writing a new destination into
// the file applies it. Invalid contents are logged and ignored, while the previous destination is kept.
//
// The parent directory is watched instead of the file, so that replacing the file by rename works as writing.
type Watcher struct {
	logger      logger.Logger
	path        string
	controller  base.DestinationController
	watcher     *fsnotify.Watcher
	stopRequest channels.Awaitable
	stopped     *channels.SignalAwaitable
}

// NewWatcher creates or overwrites the control file with the current destination and starts watching for changes
func NewWatcher(parentLogger logger.Logger, path string, controller base.DestinationController,
	stopRequest channels.Awaitable) (*Watcher, error) {

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path '%s': %w", path, err)
	}

	current := []byte(controller.CurrentConfig())
	if err := os.WriteFile(absPath, current, os.FileMode(defs.ControlFileMode)); err != nil {
		return nil, fmt.Errorf("failed to write control file: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch '%s': %w", filepath.Dir(absPath), err)
	}

	return &Watcher{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "FileControl",
			defs.LabelName:      absPath,
		}),
		path:        absPath,
		controller:  controller,
		watcher:     fsw,
		stopRequest: stopRequest,
		stopped:     channels.NewSignalAwaitable(),
	}, nil
}

// Path returns the absolute path of control file
func (w *Watcher) Path() string {
	return w.path
}

// Start starts watching in background until stop is requested
func (w *Watcher) Start() {
	go w.run()
}

// Stopped returns an Awaitable which is signaled when stopped
func (w *Watcher) Stopped() channels.Awaitable {
	return w.stopped
}

func (w *Watcher) run() {
	defer w.stopped.Signal()
	w.logger.Info("start watching")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Error("watcher closed unexpectedly")
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				w.apply()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Error("watcher closed unexpectedly")
				return
			}
			w.logger.Warn("watcher error: ", err)
		case <-w.stopRequest.Channel():
			if err := w.watcher.Close(); err != nil {
				w.logger.Warn("failed to close watcher: ", err)
			}
			w.logger.Info("stopped")
			return
		}
	}
}

func (w *Watcher) apply() {
	text, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("failed to read control file: ", err)
		return
	}
	// empty while being truncated for writing
	if len(text) == 0 {
		return
	}
	// the destination may have been changed by other control planes since the last write
	if string(text) == w.controller.CurrentConfig() {
		return
	}
	if err := w.controller.Configure(text); err != nil {
		w.logger.Warnf("invalid contents %q: %s", string(text), err.Error())
	}
}
