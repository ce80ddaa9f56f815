package loghook

import (
	"io"
	"sync"
	"testing"

	"github.com/relex/udpc-agent/defs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordCollector struct {
	lock    sync.Mutex
	records []string
}

func (c *recordCollector) Submit(record []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.records = append(c.records, string(record))
}

func (c *recordCollector) Records() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.records...)
}

func newTestLogger(hook logrus.Hook) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	lg.SetLevel(logrus.TraceLevel)
	lg.AddHook(hook)
	return lg
}

func TestHook(t *testing.T) {
	collector := &recordCollector{}
	hook, err := NewHook(collector, logrus.InfoLevel, []string{"Forwarder*", "UDPTransport"})
	require.NoError(t, err)
	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}, hook.Levels())

	lg := newTestLogger(hook)
	lg.WithField(defs.LabelComponent, "App").Info("started")
	lg.WithField(defs.LabelComponent, "App").Debug("not forwarded")
	lg.WithField(defs.LabelComponent, "ForwarderSender").Warn("send failure")
	lg.WithField(defs.LabelComponent, "UDPTransport").Error("closed")
	lg.Error("no component")

	records := collector.Records()
	require.Len(t, records, 2)
	assert.Regexp(t, `^<6>time=\S+ level=info msg=started component=App$`, records[0])
	assert.Regexp(t, `^<3>time=\S+ level=error msg=no component$`, records[1])
}

func TestHookConfig(t *testing.T) {
	collector := &recordCollector{}

	cfg := Config{MinLevel: "debug", ExcludeComponents: []string{"Sender?"}}
	require.NoError(t, cfg.VerifyConfig())
	hook, err := cfg.NewHook(collector)
	require.NoError(t, err)
	assert.Len(t, hook.Levels(), 6)

	lg := newTestLogger(hook)
	lg.WithField(defs.LabelComponent, "Sender1").Warn("excluded")
	lg.WithField(defs.LabelComponent, "Sender12").Debug("included")
	lg.Trace("not included")
	records := collector.Records()
	require.Len(t, records, 1)
	assert.Regexp(t, `^<7>.* msg=included component=Sender12$`, records[0])

	assert.Len(t, mustHook(t, &Config{}).Levels(), 5)

	assert.ErrorContains(t, (&Config{MinLevel: "loud"}).VerifyConfig(), ".minLevel")
	assert.ErrorContains(t, (&Config{ExcludeComponents: []string{"ok", "[bad"}}).VerifyConfig(), ".excludeComponents[1]")
}

func mustHook(t *testing.T, cfg *Config) *Hook {
	hook, err := cfg.NewHook(&recordCollector{})
	require.NoError(t, err)
	return hook
}

func TestHookDefaultExcludes(t *testing.T) {
	collector := &recordCollector{}
	lg := newTestLogger(mustHookWith(t, &Config{}, collector))
	lg.WithField(defs.LabelComponent, "Forwarder").Warn("failed to send")
	lg.WithField(defs.LabelComponent, "ForwarderSender").Warn("failed to send")
	lg.WithField(defs.LabelComponent, "UDPTransport").Warn("closed")
	lg.WithField(defs.LabelComponent, "HTTPControl").Warn("rejected")
	lg.WithField(defs.LabelComponent, "TCPLineListener").Warn("read() error")
	records := collector.Records()
	require.Len(t, records, 2)
	assert.Contains(t, records[0], "component=HTTPControl")
	assert.Contains(t, records[1], "component=TCPLineListener")

	// explicitly empty
	collector = &recordCollector{}
	lg = newTestLogger(mustHookWith(t, &Config{ExcludeComponents: []string{}}, collector))
	lg.WithField(defs.LabelComponent, "Forwarder").Warn("failed to send")
	assert.Len(t, collector.Records(), 1)
}

func mustHookWith(t *testing.T, cfg *Config, collector *recordCollector) *Hook {
	hook, err := cfg.NewHook(collector)
	require.NoError(t, err)
	return hook
}
