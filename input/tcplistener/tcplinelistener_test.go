package tcplistener

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSubmitter chan string

func (ch chanSubmitter) Submit(record []byte) {
	ch <- string(record) // force copy
}

var metricFactoryCounter int32

func newTestListener(t *testing.T, bufferSize int) (base.LogInput, chanSubmitter, *channels.SignalAwaitable, *base.MetricFactory) {
	oldBufferSize := defs.ListenerLineBufferSize
	defs.ListenerLineBufferSize = bufferSize
	t.Cleanup(func() { defs.ListenerLineBufferSize = oldBufferSize })

	rlogger := logger.WithField("test", t.Name())
	stop := channels.NewSignalAwaitable()
	out := make(chanSubmitter, 1000)
	factory := base.NewMetricFactory(fmt.Sprintf("testtcp%d_", atomic.AddInt32(&metricFactoryCounter, 1)), nil, nil)
	lsnr, err := NewTCPLineListener(rlogger, "localhost:0", out, stop, factory)
	require.NoError(t, err)
	assert.NotEqual(t, "localhost:0", lsnr.Address())
	lsnr.Start()
	return lsnr, out, stop, factory
}

func readCh(ch <-chan string) string {
	select {
	case log := <-ch:
		return log
	case <-time.After(defs.TestReadTimeout):
		return "<timeout>"
	}
}

func TestTCPLineListener(t *testing.T) {
	const line1 = "<6>[    0.000000] Linux version 5.15.0"
	const line2 = "<4>[    1.234567] something else"
	const line3 = "<3>end"
	lsnr, out, stop, factory := newTestListener(t, defs.ListenerLineBufferSize)

	conn, err := net.Dial("tcp", lsnr.Address())
	require.NoError(t, err)
	_, err = conn.Write([]byte(line1 + "\n" + line2 + "\n"))
	assert.NoError(t, err)
	assert.Equal(t, line1, readCh(out))
	assert.Equal(t, line2, readCh(out))
	_, err = conn.Write([]byte(line3)) // no newline end - close should force flushing
	assert.NoError(t, err)
	assert.NoError(t, conn.Close())
	assert.Equal(t, line3, readCh(out))

	stop.Signal()
	assert.True(t, lsnr.Stopped().Wait(defs.TestReadTimeout))

	dump, err := factory.DumpMetrics(false)
	assert.NoError(t, err)
	assert.Contains(t, dump, factory.Prefix()+"input_connections_total 1\n")
	assert.Contains(t, dump, factory.Prefix()+"input_records_total 3\n")
}

func TestTCPLineListenerEnd(t *testing.T) {
	const line1 = "<6>abc"
	const line2 = "<6>def"
	lsnr, out, stop, _ := newTestListener(t, defs.ListenerLineBufferSize)

	conn, err := net.Dial("tcp", lsnr.Address())
	require.NoError(t, err)
	_, err = conn.Write([]byte(line1 + "\n"))
	assert.NoError(t, err)
	assert.Equal(t, line1, readCh(out))
	_, err = conn.Write([]byte(line2)) // no newline end - stop should force flushing
	assert.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	stop.Signal()
	assert.True(t, lsnr.Stopped().Wait(defs.TestReadTimeout))
	assert.NoError(t, conn.Close())
	assert.Equal(t, line2, readCh(out))
}

func TestTCPLineListenerPause(t *testing.T) {
	defs.EnableTestMode()
	lsnr, out, stop, _ := newTestListener(t, defs.ListenerLineBufferSize)

	conn, err := net.Dial("tcp", lsnr.Address())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("unfinished"))
	assert.NoError(t, err)
	// flushed after pause without closing connection
	assert.Equal(t, "unfinished", readCh(out))

	stop.Signal()
	assert.True(t, lsnr.Stopped().Wait(defs.TestReadTimeout))
}

func TestTCPLineListenerOversized(t *testing.T) {
	lsnr, out, stop, _ := newTestListener(t, 10)

	conn, err := net.Dial("tcp", lsnr.Address())
	require.NoError(t, err)
	long := strings.Repeat("x", defs.MaxRecordSize*3)
	_, err = conn.Write([]byte(long + "\nshort\n"))
	assert.NoError(t, err)
	assert.NoError(t, conn.Close())
	assert.Equal(t, long[:defs.MaxRecordSize], readCh(out))
	assert.Equal(t, "short", readCh(out))

	stop.Signal()
	assert.True(t, lsnr.Stopped().Wait(defs.TestReadTimeout))
	assert.Empty(t, out)
}

func TestTCPLineListenerMultiClients(t *testing.T) {
	lsnr, out, stop, _ := newTestListener(t, defs.ListenerLineBufferSize)

	conns := make([]net.Conn, 3)
	for i := range conns {
		conn, err := net.Dial("tcp", lsnr.Address())
		require.NoError(t, err)
		conns[i] = conn
	}
	for i, conn := range conns {
		_, err := conn.Write([]byte(fmt.Sprintf("client %d\n", i)))
		assert.NoError(t, err)
	}
	received := []string{readCh(out), readCh(out), readCh(out)}
	assert.ElementsMatch(t, []string{"client 0", "client 1", "client 2"}, received)

	// connections are closed by stop request
	stop.Signal()
	assert.True(t, lsnr.Stopped().Wait(defs.TestReadTimeout))
	for _, conn := range conns {
		assert.NoError(t, conn.SetReadDeadline(time.Now().Add(defs.TestReadTimeout)))
		_, err := conn.Read(make([]byte, 1))
		assert.Error(t, err)
		conn.Close()
	}
}
