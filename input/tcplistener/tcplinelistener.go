package tcplistener

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/util"
)

// tcpLineListener is a TCP Listener for line-based, request-only text protocol
//
// Each line received is submitted as one log record, without the trailing newline.
//
// - Incoming bytes are buffered until a newline is received.
//
// - An unfinished line is submitted as it is after a pause of InputFlushInterval or when the connection ends.
//
// There is no request confirmation and the protocol is inherently unreliable.
type tcpLineListener struct {
	logger      logger.Logger
	socket      *net.TCPListener
	address     string
	submitter   base.LogSubmitter
	stopRequest channels.Awaitable
	taskCounter *sync.WaitGroup    // counter to track connection tasks and the listener task itself
	stopped     channels.Awaitable // stopped is signaled when both listener and all child connections have come to stop
	metrics     listenerMetrics
}

type listenerMetrics struct {
	connections prometheus.Counter
	records     prometheus.Counter
	bytes       prometheus.Counter
}

// NewTCPLineListener creates a socket listening on the given TCP address and returns a new tcpLineListener if successful
//
// The given address may use port zero, which would cause the port to be assigned by OS. The actual address is
// returned by Address() of the result.
func NewTCPLineListener(parentLogger logger.Logger, address string, submitter base.LogSubmitter,
	stopRequest channels.Awaitable, metricFactory *base.MetricFactory) (base.LogInput, error) {

	socket, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	boundAddr := socket.Addr().String()

	logger := parentLogger.WithFields(logger.Fields{
		defs.LabelComponent: "TCPLineListener",
		defs.LabelAddress:   boundAddr,
	})
	logger.Info("start listening")

	// init taskCounter with 1 for the listener; Can't wait for Start() because WaitGroupAwaitable below would quit immediately if it's zero.
	taskCounter := &sync.WaitGroup{}
	taskCounter.Add(1)

	return &tcpLineListener{
		logger:      logger,
		socket:      socket.(*net.TCPListener),
		address:     boundAddr,
		submitter:   submitter,
		stopRequest: stopRequest,
		taskCounter: taskCounter,
		stopped:     channels.NewWaitGroupAwaitable(taskCounter), // input is only fully stopped after all connections are closed
		metrics: listenerMetrics{
			connections: metricFactory.AddOrGetCounter("input_connections_total", "Numbers of accepted input connections", nil, nil),
			records:     metricFactory.AddOrGetCounter("input_records_total", "Numbers of lines received from input connections", nil, nil),
			bytes:       metricFactory.AddOrGetCounter("input_bytes_total", "Total length of lines received from input connections", nil, nil),
		},
	}, nil
}

func (lsnr *tcpLineListener) Address() string {
	return lsnr.address
}

func (lsnr *tcpLineListener) Start() {
	go lsnr.run()
}

func (lsnr *tcpLineListener) Stopped() channels.Awaitable {
	return lsnr.stopped
}

func (lsnr *tcpLineListener) run() {
	// background goroutine to wait and close listener on request
	abortListener := channels.NewSignalAwaitable()
	go func() {
		channels.AnyAwaitables(lsnr.stopRequest, abortListener).Next(func() {
			if abortListener.Peek() {
				lsnr.logger.Info("abort listener")
			} else {
				lsnr.logger.Info("close listener on stop request")
			}
		}).WaitForever()
		lsnr.socket.Close()
	}()

	lsnr.logger.Info("start accept loop")
	for {
		conn, err := lsnr.socket.AcceptTCP()
		if err != nil {
			if lsnr.stopRequest.Peek() && util.IsNetworkClosed(err) {
				// closed on stop request
			} else {
				lsnr.logger.Error("accept() error: ", err)
				abortListener.Signal()
			}
			break
		}

		connLogger := lsnr.logger.WithFields(logger.Fields{
			defs.LabelPart:   "connection",
			defs.LabelClient: conn.RemoteAddr().String(),
		})
		connLogger.Info("accepted connection")
		lsnr.metrics.connections.Inc()
		lsnr.taskCounter.Add(1)
		go lsnr.runConnection(connLogger, conn)
	}
	lsnr.logger.Info("end accept loop")

	// mark the listener itself as done, note there could still be established connections
	lsnr.taskCounter.Done()
}

func (lsnr *tcpLineListener) runConnection(connLogger logger.Logger, conn *net.TCPConn) {
	defer lsnr.taskCounter.Done()

	connAborter := lsnr.launchConnectionCloser(connLogger, conn)

	if err := conn.SetKeepAlive(true); err != nil {
		connLogger.Warnf("error enabling keep-alive: %s", err.Error())
	}
	connReader := util.WrapNetConn(conn, defs.InputFlushInterval)
	lineReader := newLineReader(connReader.Read, defs.ListenerLineBufferSize, defs.MaxRecordSize, func(line []byte) {
		lsnr.metrics.records.Inc()
		lsnr.metrics.bytes.Add(float64(len(line)))
		lsnr.submitter.Submit(line)
	})

	for {
		err := lineReader.Read()
		if err == nil {
			continue
		}
		if util.IsNetworkTimeout(err) {
			if lineReader.Pending() > 0 {
				connLogger.Debug("flush unfinished line for timeout")
				lineReader.Flush()
			}
			continue
		}
		lineReader.Flush()
		if util.IsNetworkClosed(err) && lsnr.stopRequest.Peek() {
			// already closed by connAborter
			connLogger.Info("closed by stop request (delayed)")
		} else {
			if !util.IsNetworkClosed(err) {
				connLogger.Warn("read() error: ", err)
			}
			connAborter.Signal()
		}
		break
	}

	connLogger.Info("ended")
}

func (lsnr *tcpLineListener) launchConnectionCloser(connLogger logger.Logger, conn *net.TCPConn) *channels.SignalAwaitable {
	abortConn := channels.NewSignalAwaitable()
	// background goroutine to wait and close connection on request
	go func() {
		channels.AnyAwaitables(lsnr.stopRequest, abortConn).Next(func() {
			if abortConn.Peek() {
				connLogger.Debug("abort connection")
			} else {
				connLogger.Info("close connection on stop request")
			}
		}).WaitForever()
		conn.Close()
	}()
	return abortConn
}
