package loghook

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/relex/udpc-agent/base"
	"github.com/sirupsen/logrus"
)

// defaultExcludeComponents excludes the forwarder's own logs if no pattern is configured
var defaultExcludeComponents = []string{"Forwarder*", "UDPTransport"}

// Config defines the logHook section in config file
type Config struct {
	Enabled           bool     `yaml:"enabled"`
	MinLevel          string   `yaml:"minLevel"`          // the least severe level to forward, default "info"
	ExcludeComponents []string `yaml:"excludeComponents"` // glob patterns matched against the "component" field, nil for default
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if _, err := cfg.parseLevel(); err != nil {
		return fmt.Errorf(".minLevel: %w", err)
	}
	for i, pattern := range cfg.ExcludeComponents {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf(".excludeComponents[%d]: %w", i, err)
		}
	}
	return nil
}

// NewHook creates a logrus hook submitting entries to the given submitter
func (cfg *Config) NewHook(submitter base.LogSubmitter) (*Hook, error) {
	level, err := cfg.parseLevel()
	if err != nil {
		return nil, err
	}
	excludes := cfg.ExcludeComponents
	if excludes == nil {
		excludes = defaultExcludeComponents
	}
	return NewHook(submitter, level, excludes)
}

func (cfg *Config) parseLevel() (logrus.Level, error) {
	if cfg.MinLevel == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(cfg.MinLevel)
}
