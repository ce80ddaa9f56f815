package run

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/forwarder"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfTemplate = `
destination: %s
bufferSlots: 32
transport:
  localAddress: 127.0.0.1:0
inputs:
  tcp:
    - address: localhost:0
  logHook:
    enabled: true
    minLevel: info
control:
  httpAddress: 127.0.0.1:0
  file: %s
`

var metricPrefixCounter int32

func newTestMetricPrefix() string {
	return fmt.Sprintf("testrun%d_", atomic.AddInt32(&metricPrefixCounter, 1))
}

func listenSink(t *testing.T) *net.UDPConn {
	sink, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func readSink(t *testing.T, sink *net.UDPConn) string {
	buf := make([]byte, 2048)
	assert.NoError(t, sink.SetReadDeadline(time.Now().Add(defs.TestReadTimeout)))
	n, _, err := sink.ReadFromUDP(buf)
	if err != nil {
		return "<timeout>"
	}
	return string(buf[:n])
}

func writeConfigFile(t *testing.T, dir string, dest string, controlFile string) string {
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(sampleConfTemplate, dest, controlFile)), 0o644))
	return path
}

func TestLoader(t *testing.T) {
	defs.EnableTestMode()
	dir := t.TempDir()
	sink1 := listenSink(t)
	sink2 := listenSink(t)
	controlFile := filepath.Join(dir, "destination")
	confPath := writeConfigFile(t, dir, sink1.LocalAddr().String(), controlFile)

	ld, err := NewLoaderFromConfigFile(confPath, newTestMetricPrefix())
	require.NoError(t, err)
	hookTarget := logrus.New()
	hookTarget.SetOutput(io.Discard)
	ld.HookTarget = hookTarget

	fwd, err := ld.LaunchForwarder(logger.Root())
	require.NoError(t, err)
	assert.Equal(t, sink1.LocalAddr().String()+"\n", fwd.CurrentConfig())

	controlAddrs, shutdownControls, err := ld.LaunchControls(fwd)
	require.NoError(t, err)
	require.Equal(t, []string{controlAddrs[0], controlFile}, controlAddrs)

	inputAddrs, shutdownInputs, err := ld.LaunchInputs(fwd)
	require.NoError(t, err)
	require.Len(t, inputAddrs, 1)

	conn, err := net.Dial("tcp", inputAddrs[0])
	require.NoError(t, err)
	defer conn.Close()

	// TCP input
	_, err = conn.Write([]byte("<6>hello\n"))
	assert.NoError(t, err)
	assert.Equal(t, "<6>hello", readSink(t, sink1))

	// log hook
	hookTarget.WithField(defs.LabelComponent, "App").Warn("from hook")
	assert.Regexp(t, `^<4>time=\S+ level=warning msg=from hook component=App$`, readSink(t, sink1))

	// HTTP control
	req, err := http.NewRequest("PUT", "http://"+controlAddrs[0]+"/destination", strings.NewReader(sink2.LocalAddr().String()+"\n"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = conn.Write([]byte("<6>second\n"))
	assert.NoError(t, err)
	assert.Equal(t, "<6>second", readSink(t, sink2))

	// file control, different from the initial contents which has newline
	require.NoError(t, os.WriteFile(controlFile, []byte(sink1.LocalAddr().String()), 0o600))
	assert.Eventually(t, func() bool {
		return fwd.CurrentConfig() == sink1.LocalAddr().String()+"\n"
	}, defs.TestReadTimeout, 10*time.Millisecond)

	_, err = conn.Write([]byte("<6>third\n"))
	assert.NoError(t, err)
	assert.Equal(t, "<6>third", readSink(t, sink1))

	shutdownInputs()
	shutdownControls()
	fwd.Stop()
	assert.Equal(t, forwarder.StateStopped, fwd.State())

	// hook detached
	assert.Empty(t, hookTarget.Hooks)

	dump, err := ld.MetricFactory.DumpMetrics(false)
	assert.NoError(t, err)
	assert.Contains(t, dump, ld.MetricFactory.Prefix()+"forwarded_records_total 4\n")
	assert.Contains(t, dump, ld.MetricFactory.Prefix()+"input_records_total 3\n")
	assert.Contains(t, dump, ld.MetricFactory.Prefix()+`reconfigurations_total{status="success"} 2`)
}

func TestLoaderInvalidInput(t *testing.T) {
	dir := t.TempDir()
	sink := listenSink(t)
	confPath := writeConfigFile(t, dir, sink.LocalAddr().String(), filepath.Join(dir, "destination"))

	ld, err := NewLoaderFromConfigFile(confPath, newTestMetricPrefix())
	require.NoError(t, err)
	ld.Inputs.TCP[0].Address = "localhost:99999"

	fwd, err := ld.LaunchForwarder(logger.Root())
	require.NoError(t, err)
	defer fwd.Stop()

	_, _, err = ld.LaunchInputs(fwd)
	assert.ErrorContains(t, err, "inputs.tcp[0]")
}
