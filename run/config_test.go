package run

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
	"github.com/relex/udpc-agent/testdata"
	"github.com/relex/udpc-agent/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSampleConfig(t *testing.T) {
	config, err := ParseConfigFile(testdata.GetConfigPath())
	require.NoError(t, err)
	assert.Equal(t, destination.New(192, 0, 2, 10, 514), config.Destination.Destination)
	assert.Equal(t, 64, config.BufferSlots)
	assert.Equal(t, 4*datasize.MB, config.Transport.WriteBufferSize)
	assert.Equal(t, []TCPInputConfig{{Address: "localhost:5140"}}, config.Inputs.TCP)
	assert.True(t, config.Inputs.LogHook.Enabled)
	assert.Equal(t, "warn", config.Inputs.LogHook.MinLevel)
	assert.Equal(t, "localhost:9336", config.Control.HTTPAddress)
	assert.Equal(t, "/run/udpc-agent/destination", config.Control.File)

	dump, err := util.MarshalYaml(config)
	require.NoError(t, err)
	assert.Contains(t, dump, "destination: 192.0.2.10:514\n")
	reloaded := newDefaultConfig()
	require.NoError(t, util.UnmarshalYamlString(dump, &reloaded))
	assert.Equal(t, config, reloaded)
}

func TestParseConfigDefaults(t *testing.T) {
	config := newDefaultConfig()
	require.NoError(t, util.UnmarshalYamlString("destination: 10.0.0.1\n", &config))
	assert.NoError(t, config.VerifyConfig())
	assert.Equal(t, "10.0.0.1:23", config.Destination.String())
	assert.Equal(t, defs.DefaultBufferSlots, config.BufferSlots)
	assert.Empty(t, config.Inputs.TCP)

	config = newDefaultConfig()
	require.NoError(t, util.UnmarshalYamlString("bufferSlots: 8\n", &config))
	assert.Equal(t, destination.Default(), config.Destination.Destination)
}

func TestParseConfigErrors(t *testing.T) {
	cases := map[string]string{
		"destination: 10.0.0.256\n":              "yaml line 1:14: " + destination.ErrInvalidFormat.Error(),
		"destination: [10.0.0.1]\n":              "yaml line 1:14: destination must be a string",
		"unknown: 1\n":                           "field unknown not found",
		"bufferSlots: 12\n":                      "bufferSlots: must be a positive power of two: 12",
		"bufferSlots: 0\n":                       "bufferSlots: must be a positive power of two: 0",
		"transport:\n  writeBufferSize: 1GB\n":   "transport: .writeBufferSize is too large",
		"inputs:\n  tcp:\n    - address: ''\n":   "inputs.tcp[0]: .address is unspecified",
		"inputs:\n  logHook:\n    minLevel: x\n": "inputs.logHook: .minLevel",
	}
	for text, expectedErr := range cases {
		config := newDefaultConfig()
		err := util.UnmarshalYamlString(text, &config)
		if err == nil {
			err = config.VerifyConfig()
		}
		assert.ErrorContains(t, err, expectedErr, text)
	}
}

func TestDumpStatic(t *testing.T) {
	config := newDefaultConfig()
	other := config
	other.Destination = DestinationConfig{destination.New(1, 2, 3, 4, 5)}
	assert.Equal(t, config.dumpStatic(), other.dumpStatic())
	assert.NotContains(t, config.dumpStatic(), "127.0.0.1")

	other.BufferSlots = 128
	assert.NotEqual(t, config.dumpStatic(), other.dumpStatic())
}
