// Package forwarder forwards log records from a non-blocking producer side to a UDP destination through a
// background sender
//
// Records are kept in a ring buffer which drops the oldest unsent records on overflow. The destination can be
// changed at any time and takes effect from the next drain cycle of the sender.
package forwarder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/buffer/ringbuffer"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
)

var (
	// ErrStartupFailure is returned by Start if the transport cannot be opened. Start may be called again.
	ErrStartupFailure = errors.New("failed to start forwarding")

	// ErrAlreadyStarted is returned by Start if the forwarder has been started or stopped before
	ErrAlreadyStarted = errors.New("forwarder already started")
)

// Forwarder owns the ring buffer, destination store and sender of one forwarding path
//
// It implements base.LogSubmitter for log sources and base.DestinationController for control planes.
type Forwarder struct {
	logger        logger.Logger
	buffer        *ringbuffer.RingBuffer
	wake          wakeSignal
	destinations  *destination.Store
	openTransport base.OpenTransportFunc
	metrics       forwarderMetrics
	stateLock     sync.Mutex
	state         State
	stopRequest   *channels.SignalAwaitable
	stopped       *channels.SignalAwaitable
}

// NewForwarder creates a Forwarder with a ring buffer of numSlots records, which must be a power of two
//
// Records submitted before Start are buffered and sent once started.
func NewForwarder(parentLogger logger.Logger, numSlots int, initial destination.Destination,
	openTransport base.OpenTransportFunc, metricFactory *base.MetricFactory) (*Forwarder, error) {

	buffer, err := ringbuffer.NewRingBuffer(numSlots, defs.MaxRecordSize)
	if err != nil {
		return nil, err
	}

	return &Forwarder{
		logger:        parentLogger.WithField(defs.LabelComponent, "Forwarder"),
		buffer:        buffer,
		wake:          newWakeSignal(),
		destinations:  destination.NewStore(initial),
		openTransport: openTransport,
		metrics:       newForwarderMetrics(metricFactory),
		stateLock:     sync.Mutex{},
		state:         StateIdle,
		stopRequest:   channels.NewSignalAwaitable(),
		stopped:       channels.NewSignalAwaitable(),
	}, nil
}

// Submit copies the record into buffer and wakes up the sender
//
// Oversized records are truncated to defs.MaxRecordSize. Submit never blocks and never fails.
func (fwd *Forwarder) Submit(record []byte) {
	truncated := false
	if len(record) > fwd.buffer.SlotSize() {
		record = record[:fwd.buffer.SlotSize()]
		truncated = true
	}
	overwritten, err := fwd.buffer.Enqueue(record)
	if err != nil {
		return
	}
	fwd.metrics.OnSubmitted(truncated, overwritten)
	fwd.wake.Notify()
}

// Configure parses the destination text and applies it, see destination.Parse
func (fwd *Forwarder) Configure(text []byte) error {
	dest, err := fwd.destinations.Configure(text)
	fwd.metrics.OnReconfigured(err)
	if err != nil {
		fwd.logger.Warnf("rejected destination: %s", err.Error())
		return err
	}
	fwd.logger.WithField(defs.LabelDestination, dest.String()).Info("new destination")
	return nil
}

// CurrentConfig returns the destination in text form "A.B.C.D:P\n"
func (fwd *Forwarder) CurrentConfig() string {
	return fwd.destinations.Format()
}

// Destination returns the current destination
func (fwd *Forwarder) Destination() destination.Destination {
	return fwd.destinations.Get()
}

// Start opens the transport and launches the sender in background
//
// If the transport cannot be opened, the forwarder stays idle and Start may be retried. Records keep being
// accepted in the meantime and the oldest are dropped on overflow.
func (fwd *Forwarder) Start() error {
	fwd.stateLock.Lock()
	defer fwd.stateLock.Unlock()

	if fwd.state != StateIdle {
		return fmt.Errorf("%w: state=%s", ErrAlreadyStarted, fwd.state)
	}

	transport, err := fwd.openTransport()
	if err != nil {
		fwd.logger.Errorf("failed to open transport: %s", err.Error())
		return fmt.Errorf("%w: %s", ErrStartupFailure, err.Error())
	}

	fwd.state = StateRunning
	fwd.logger.WithField(defs.LabelDestination, fwd.destinations.Get().String()).Info("start forwarding")

	snd := newSender(fwd, transport)
	go snd.run()
	return nil
}

// Stop requests the sender to stop and waits until it has sent the remaining records and closed the transport
//
// Stop may be called more than once or before Start. The forwarder cannot be restarted afterwards.
func (fwd *Forwarder) Stop() {
	fwd.stateLock.Lock()
	switch fwd.state {
	case StateIdle:
		fwd.state = StateStopped
		fwd.stateLock.Unlock()
		fwd.logger.Info("stopped before start")
		fwd.stopped.Signal()
		return
	case StateRunning:
		fwd.state = StateStopRequested
		fwd.stateLock.Unlock()
		fwd.logger.Info("requesting sender to stop")
		// the sender only wakes up on signal, which must be sent after the stop request to be observed
		fwd.stopRequest.Signal()
		fwd.wake.Notify()
	default:
		fwd.stateLock.Unlock()
	}

	if !fwd.stopped.Wait(defs.SenderStopTimeout) {
		fwd.logger.Errorf("BUG: timeout waiting for sender to stop, buffered=%d", fwd.buffer.Len())
	}
}

// Stopped returns an Awaitable which is signaled when the sender has stopped
func (fwd *Forwarder) Stopped() channels.Awaitable {
	return fwd.stopped
}

// State returns the current state of sender
func (fwd *Forwarder) State() State {
	fwd.stateLock.Lock()
	defer fwd.stateLock.Unlock()
	return fwd.state
}

// Buffered returns the numbers of records waiting to be sent
func (fwd *Forwarder) Buffered() int {
	return fwd.buffer.Len()
}

func (fwd *Forwarder) setState(state State) {
	fwd.stateLock.Lock()
	defer fwd.stateLock.Unlock()
	fwd.state = state
}
