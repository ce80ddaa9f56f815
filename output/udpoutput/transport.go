package udpoutput

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
	"github.com/relex/udpc-agent/util"
	"golang.org/x/sys/unix"
)

const defaultLocalAddress = "0.0.0.0:0"

// transport sends each record as a single UDP datagram from one unconnected socket
//
// Not thread-safe; owned by the sender
type transport struct {
	logger   logger.Logger
	conn     *net.UDPConn
	lastDest destination.Destination
	lastAddr *net.UDPAddr
}

func openTransport(parentLogger logger.Logger, cfg Config) (*transport, error) {
	localAddress := cfg.LocalAddress
	if localAddress == "" {
		localAddress = defaultLocalAddress
	}

	lc := net.ListenConfig{
		Control: func(network, address string, rawConn syscall.RawConn) error {
			if !cfg.Broadcast {
				return nil
			}
			var sockErr error
			if err := rawConn.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			}); err != nil {
				return err
			}
			if sockErr != nil {
				return fmt.Errorf("SO_BROADCAST: %w", sockErr)
			}
			return nil
		},
	}

	pconn, err := lc.ListenPacket(context.Background(), "udp4", localAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket on %s: %w", localAddress, err)
	}
	conn := pconn.(*net.UDPConn)

	if size := cfg.WriteBufferSize.Bytes(); size > 0 {
		if err := conn.SetWriteBuffer(int(size)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set write buffer to %s: %w", cfg.WriteBufferSize.HR(), err)
		}
	}

	tlogger := parentLogger.WithField(defs.LabelLocal, conn.LocalAddr().String())
	tlogger.Infof("opened broadcast=%t", cfg.Broadcast)
	return &transport{
		logger: tlogger,
		conn:   conn,
	}, nil
}

// LocalAddr returns the address the socket is bound to
func (t *transport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Send writes the record as one datagram to the destination
func (t *transport) Send(dest destination.Destination, record []byte) (int, error) {
	if t.lastAddr == nil || dest != t.lastDest {
		t.lastDest = dest
		t.lastAddr = dest.UDPAddr()
	}
	n, err := t.conn.WriteToUDP(record, t.lastAddr)
	if err != nil && util.IsConnectionRefused(err) {
		t.logger.Debugf("connection refused by %s", dest)
	}
	return n, err
}

// Close closes the socket
func (t *transport) Close() error {
	t.logger.Info("closed")
	return t.conn.Close()
}
