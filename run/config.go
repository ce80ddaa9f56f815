package run

import (
	"fmt"
	"math/bits"

	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
	"github.com/relex/udpc-agent/input/loghook"
	"github.com/relex/udpc-agent/output/udpoutput"
	"github.com/relex/udpc-agent/util"
	"gopkg.in/yaml.v3"
)

// Config defines the root of udpc-agent config file
type Config struct {
	Destination DestinationConfig `yaml:"destination"`
	BufferSlots int               `yaml:"bufferSlots"`
	Transport   udpoutput.Config  `yaml:"transport"`
	Inputs      InputsConfig      `yaml:"inputs"`
	Control     ControlConfig     `yaml:"control"`
}

// DestinationConfig is the initial destination in text form "A.B.C.D[:P]"
type DestinationConfig struct {
	destination.Destination
}

// InputsConfig defines the inputs section in config file
type InputsConfig struct {
	TCP     []TCPInputConfig `yaml:"tcp"`
	LogHook loghook.Config   `yaml:"logHook"`
}

// TCPInputConfig defines a TCP line input
type TCPInputConfig struct {
	Address string `yaml:"address"`
}

// ControlConfig defines the control section in config file. Both are optional.
type ControlConfig struct {
	HTTPAddress string `yaml:"httpAddress"`
	File        string `yaml:"file"`
}

func newDefaultConfig() Config {
	return Config{
		Destination: DestinationConfig{destination.Default()},
		BufferSlots: defs.DefaultBufferSlots,
	}
}

// ParseConfigFile loads config from the path and verifies it
func ParseConfigFile(filepath string) (Config, error) {
	config := newDefaultConfig()
	if err := util.UnmarshalYamlFile(filepath, &config); err != nil {
		return config, err
	}
	return config, config.VerifyConfig()
}

// VerifyConfig checks all sections
func (config *Config) VerifyConfig() error {
	if config.BufferSlots <= 0 || bits.OnesCount(uint(config.BufferSlots)) != 1 {
		return fmt.Errorf("bufferSlots: must be a positive power of two: %d", config.BufferSlots)
	}
	if err := config.Transport.VerifyConfig(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	for i, tcpConfig := range config.Inputs.TCP {
		if tcpConfig.Address == "" {
			return fmt.Errorf("inputs.tcp[%d]: .address is unspecified", i)
		}
	}
	if err := config.Inputs.LogHook.VerifyConfig(); err != nil {
		return fmt.Errorf("inputs.logHook: %w", err)
	}
	return nil
}

// MarshalYAML exports the destination in text form without newline
func (dc DestinationConfig) MarshalYAML() (interface{}, error) {
	return dc.Destination.String(), nil
}

// UnmarshalYAML parses destination in text form. The default port is used if it's omitted.
func (dc *DestinationConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return util.NewYamlError(value, "destination must be a string")
	}
	dest, err := destination.Parse([]byte(value.Value), destination.Default())
	if err != nil {
		return util.NewYamlError(value, err.Error())
	}
	dc.Destination = dest
	return nil
}

// dumpStatic exports the config in YAML without the destination, to compare settings which cannot be reloaded
func (config Config) dumpStatic() string {
	config.Destination = DestinationConfig{}
	text, err := util.MarshalYaml(config)
	if err != nil {
		return err.Error()
	}
	return text
}
