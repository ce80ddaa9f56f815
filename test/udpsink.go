package test

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
	"github.com/relex/udpc-agent/util"
)

const udpSinkIdleTimeout = 200 * time.Millisecond

// udpSink receives and counts datagrams on a random local port
type udpSink struct {
	logger      logger.Logger
	conn        *net.UDPConn
	numReceived int64
	numBytes    int64
	stopRequest *channels.SignalAwaitable
	stopped     *channels.SignalAwaitable
}

func launchUDPSink() *udpSink {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		logger.Panic("failed to listen UDP: ", err)
	}
	if err := conn.SetReadBuffer(16 * 1024 * 1024); err != nil {
		logger.Warn("failed to set read buffer: ", err)
	}
	sink := &udpSink{
		logger:      logger.WithField(defs.LabelComponent, "UDPSink"),
		conn:        conn,
		stopRequest: channels.NewSignalAwaitable(),
		stopped:     channels.NewSignalAwaitable(),
	}
	go sink.run()
	return sink
}

// Destination returns the address of this sink
func (sink *udpSink) Destination() destination.Destination {
	addr := sink.conn.LocalAddr().(*net.UDPAddr)
	ip := addr.IP.To4()
	return destination.New(ip[0], ip[1], ip[2], ip[3], uint16(addr.Port))
}

// Close stops receiving after the sink has been idle for a while, and returns numbers of datagrams and bytes received
func (sink *udpSink) Close() (int, int64) {
	sink.stopRequest.Signal()
	sink.stopped.WaitForever()
	return int(atomic.LoadInt64(&sink.numReceived)), atomic.LoadInt64(&sink.numBytes)
}

func (sink *udpSink) run() {
	defer sink.stopped.Signal()
	defer sink.conn.Close()
	buf := make([]byte, 65536)
	for {
		if err := sink.conn.SetReadDeadline(time.Now().Add(udpSinkIdleTimeout)); err != nil {
			sink.logger.Error("failed to set deadline: ", err)
			return
		}
		n, _, err := sink.conn.ReadFromUDP(buf)
		if err != nil {
			if util.IsNetworkTimeout(err) && !sink.stopRequest.Peek() {
				continue
			}
			if !util.IsNetworkTimeout(err) {
				sink.logger.Error("read error: ", err)
			}
			return
		}
		atomic.AddInt64(&sink.numReceived, 1)
		atomic.AddInt64(&sink.numBytes, int64(n))
	}
}
