package base

import (
	"github.com/relex/udpc-agent/destination"
)

// OpenTransportFunc opens a Transport, called once for each start of a forwarder
type OpenTransportFunc func() (Transport, error)

// Transport sends one record as one datagram to a destination
//
// Transport does no buffering of its own and is used by one sender goroutine at a time.
type Transport interface {

	// Send sends the record as a single datagram and returns numbers of bytes sent
	//
	// The record is only valid during the call
	Send(dest destination.Destination, record []byte) (int, error)

	// Close releases the underlying socket
	Close() error
}
