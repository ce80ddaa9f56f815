package forwarder

import (
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/buffer/ringbuffer"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
)

// sender is the background goroutine moving records from buffer to transport
type sender struct {
	logger       logger.Logger
	buffer       *ringbuffer.RingBuffer
	wake         wakeSignal
	destinations *destination.Store
	transport    base.Transport
	metrics      *forwarderMetrics
	stopRequest  channels.Awaitable
	onStopped    func()
	lastDest     destination.Destination
}

func newSender(fwd *Forwarder, transport base.Transport) *sender {
	return &sender{
		logger:       fwd.logger.WithField(defs.LabelPart, "sender"),
		buffer:       fwd.buffer,
		wake:         fwd.wake,
		destinations: fwd.destinations,
		transport:    transport,
		metrics:      &fwd.metrics,
		stopRequest:  fwd.stopRequest,
		onStopped: func() {
			fwd.setState(StateStopped)
			fwd.stopped.Signal()
		},
		lastDest: fwd.destinations.Get(),
	}
}

func (snd *sender) run() {
	defer snd.onStopped()
	snd.logger.Info("started")

	scratch := make([]byte, 0, snd.buffer.SlotSize())
	for {
		<-snd.wake.Channel()

		// drain even if stop is requested, to send what's been buffered before shutdown
		stopping := snd.stopRequest.Peek()
		scratch = snd.drain(scratch)
		if stopping {
			snd.logger.Info("stop requested")
			break
		}
	}

	if err := snd.transport.Close(); err != nil {
		snd.logger.Warnf("failed to close transport: %s", err.Error())
	}
	snd.logger.Info("stopped")
}

// drain sends all buffered records to the destination as of the start of this cycle
func (snd *sender) drain(scratch []byte) []byte {
	dest := snd.destinations.Get()
	if dest != snd.lastDest {
		snd.logger.Infof("switch destination from %s to %s", snd.lastDest.String(), dest.String())
		snd.lastDest = dest
	}

	numFailed := 0
	for {
		record, ok := snd.buffer.Dequeue(scratch)
		scratch = record
		if !ok {
			break
		}
		n, err := snd.transport.Send(dest, record)
		if err != nil {
			snd.metrics.OnError(err)
			// only the first failure in a cycle is logged in case the destination is down
			if numFailed == 0 {
				snd.logger.Warnf("failed to send %d bytes to %s: %s", len(record), dest.String(), err.Error())
			}
			numFailed++
			continue
		}
		snd.metrics.OnForwarded(n)
	}
	if numFailed > 1 {
		snd.logger.Warnf("failed to send %d records to %s in total", numFailed, dest.String())
	}

	snd.metrics.OnDrained(snd.buffer.Len())
	return scratch
}
