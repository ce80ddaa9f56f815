// Package destination holds the address and port where log records are forwarded to, as well as its text form
// used by control planes, e.g. "192.168.1.10:9000\n"
package destination

import (
	"fmt"
	"net"
)

// DefaultPort is the destination port at startup
const DefaultPort = 23

// DefaultAddress is the destination IPv4 address at startup, 127.0.0.1
const DefaultAddress uint32 = 0x7F000001

// Destination is an IPv4 address and port pair
type Destination struct {
	Address uint32 // IPv4 address in host order, e.g. 0x7F000001 for 127.0.0.1
	Port    uint16
}

// Default returns the destination to use before anything is configured
func Default() Destination {
	return Destination{
		Address: DefaultAddress,
		Port:    DefaultPort,
	}
}

// New creates a destination from four octets and port
func New(a, b, c, d byte, port uint16) Destination {
	return Destination{
		Address: uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d),
		Port:    port,
	}
}

// Octets returns the big-endian bytes of the address
func (d Destination) Octets() [4]byte {
	return [4]byte{
		byte(d.Address >> 24),
		byte(d.Address >> 16),
		byte(d.Address >> 8),
		byte(d.Address),
	}
}

// IP returns the address as net.IP
func (d Destination) IP() net.IP {
	o := d.Octets()
	return net.IPv4(o[0], o[1], o[2], o[3])
}

// UDPAddr returns a new UDP address to send to
func (d Destination) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   d.IP(),
		Port: int(d.Port),
	}
}

// String returns "A.B.C.D:P" without trailing newline
func (d Destination) String() string {
	o := d.Octets()
	return fmt.Sprintf("%d.%d.%d.%d:%d", o[0], o[1], o[2], o[3], d.Port)
}

// Format returns the canonical text form "A.B.C.D:P\n" for control planes
func Format(d Destination) string {
	return d.String() + "\n"
}
