package base

import (
	"github.com/relex/gotils/channels"
)

// PipelineWorker represents a background worker feeding or controlling the forwarder, e.g. a TCP input
type PipelineWorker interface {
	Start()
	Stopped() channels.Awaitable
}

// LogInput represents an input source of log records, e.g. a TCP line listener
type LogInput interface {
	PipelineWorker
	Address() string
}
