package udpoutput

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
)

// maxWriteBufferSize caps the requested socket send buffer; the kernel silently clamps it further
const maxWriteBufferSize = 64 * datasize.MB

// Config defines the transport section in config file
type Config struct {
	LocalAddress    string            `yaml:"localAddress"`    // local bind address, e.g. "0.0.0.0:0"
	WriteBufferSize datasize.ByteSize `yaml:"writeBufferSize"` // SO_SNDBUF, zero to keep the system default
	Broadcast       bool              `yaml:"broadcast"`       // allow sending to broadcast addresses
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.WriteBufferSize > maxWriteBufferSize {
		return fmt.Errorf(".writeBufferSize is too large: %s > %s", cfg.WriteBufferSize.HR(), maxWriteBufferSize.HR())
	}
	return nil
}

// NewOpenFunc creates a function to open UDP transports on demand
func (cfg *Config) NewOpenFunc(parentLogger logger.Logger) base.OpenTransportFunc {
	tlogger := parentLogger.WithField(defs.LabelComponent, "UDPTransport")
	return func() (base.Transport, error) {
		t, err := openTransport(tlogger, *cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
