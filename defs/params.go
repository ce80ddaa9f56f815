package defs

import (
	"time"
)

var (
	// MaxRecordSize defines the maximum length of one log record in bytes
	//
	// A kernel-style console message is at most 1024 bytes including the terminating NUL, plus the "<x>" level
	// prefix and an optional "[XXXXX.XXXXXX] " timestamp: 1024 + 3 + 14 + 1 = 1042
	//
	// Longer input is truncated at submission and recorded in metrics
	MaxRecordSize = 1042

	// DefaultBufferSlots defines the default numbers of records held in the ring buffer. It must be a power of two.
	//
	// New records overwrite the oldest unsent ones when the buffer is full
	DefaultBufferSlots = 32

	// MaxConfigTextLength defines the maximum length of destination text accepted by the control plane,
	// including the optional trailing newline
	//
	// The longest valid text is "255.255.255.255:4294967295\n"
	MaxConfigTextLength = 3 + 1 + 3 + 1 + 3 + 1 + 3 + 1 + 10 + 1

	// SenderStopTimeout defines how long Stop waits for the sender to drain the buffer and close its socket
	//
	// The timeout isn't supposed to be reached but a precaution in case some bug hangs the transport
	SenderStopTimeout = 60 * time.Second

	// InputFlushInterval defines how long the TCP input waits for the rest of an unfinished line before submitting it as is
	InputFlushInterval = 500 * time.Millisecond

	// ListenerLineBufferSize defines the buffer size in bytes to read lines from one TCP connection
	ListenerLineBufferSize = MaxRecordSize * 16

	// ControlFileMode is the permission of control file created by the file control plane
	ControlFileMode = 0o600

	// ControlShutdownTimeout is how long to wait for HTTP control requests in progress on shutdown
	ControlShutdownTimeout = 5 * time.Second
)

// For testing and experiments
const (
	TestReadTimeout = 5 * time.Second
)

// EnableTestMode turns on test mode with very short timeout
func EnableTestMode() {
	SenderStopTimeout = 3 * time.Second
	InputFlushInterval = 100 * time.Millisecond
	ControlShutdownTimeout = 1 * time.Second
}
