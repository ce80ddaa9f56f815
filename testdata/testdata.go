// Package testdata provides access to shared sample config for testing
package testdata

import (
	"path/filepath"
	"runtime"
)

var absoluteDirPath string

func init() {
	_, thisFile, _, _ := runtime.Caller(0)
	absoluteDirPath = filepath.Dir(thisFile)
}

// GetConfigPath returns the absolute path of sample config
func GetConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_sample.yml")
}
