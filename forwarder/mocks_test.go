package forwarder

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
)

type sentRecord struct {
	Dest   destination.Destination
	Record string
}

type mockTransport struct {
	sent     chan sentRecord
	sendFunc func(dest destination.Destination, record []byte) (int, error)
	closed   *channels.SignalAwaitable
}

var mockMetricFactoryCounter int32

func newMockMetricFactory() *base.MetricFactory {
	return base.NewMetricFactory(fmt.Sprintf("testforwarder%d_", atomic.AddInt32(&mockMetricFactoryCounter, 1)), nil, nil)
}

func newMockTransport() *mockTransport {
	mt := &mockTransport{
		sent:   make(chan sentRecord, 100000),
		closed: channels.NewSignalAwaitable(),
	}
	mt.sendFunc = mt.DefaultSend
	return mt
}

func (mt *mockTransport) Open() (base.Transport, error) {
	return mt, nil
}

func (mt *mockTransport) Send(dest destination.Destination, record []byte) (int, error) {
	return mt.sendFunc(dest, record)
}

func (mt *mockTransport) DefaultSend(dest destination.Destination, record []byte) (int, error) {
	mt.sent <- sentRecord{Dest: dest, Record: string(record)} // force copy
	return len(record), nil
}

func (mt *mockTransport) Close() error {
	mt.closed.Signal()
	return nil
}

// Next returns the next sent record or an empty record with "<timeout>"
func (mt *mockTransport) Next() sentRecord {
	select {
	case rec := <-mt.sent:
		return rec
	case <-time.After(defs.TestReadTimeout):
		return sentRecord{Record: "<timeout>"}
	}
}

// Collect returns all sent records so far without waiting
func (mt *mockTransport) Collect() []string {
	result := make([]string, 0, len(mt.sent))
	for {
		select {
		case rec := <-mt.sent:
			result = append(result, rec.Record)
		default:
			return result
		}
	}
}

func newTestForwarder(numSlots int, transport *mockTransport) *Forwarder {
	fwd, err := NewForwarder(logger.Root(), numSlots, destination.Default(), transport.Open, newMockMetricFactory())
	if err != nil {
		panic(err)
	}
	return fwd
}
