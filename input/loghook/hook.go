package loghook

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/gobwas/glob"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Hook is a logrus hook to forward log entries as records in the kernel console style "<N>text"
//
// N is the syslog severity mapped from logrus level.
//
// Entries with a "component" field matching any of the exclusion patterns are skipped. It's required to exclude
// the forwarder itself when its logger is hooked, or any send failure would be logged and forwarded again.
type Hook struct {
	submitter base.LogSubmitter
	levels    []logrus.Level
	excludes  []glob.Glob
	formatter logrus.Formatter
}

var syslogSeverities = map[logrus.Level]int{
	logrus.PanicLevel: 0,
	logrus.FatalLevel: 2,
	logrus.ErrorLevel: 3,
	logrus.WarnLevel:  4,
	logrus.InfoLevel:  6,
	logrus.DebugLevel: 7,
	logrus.TraceLevel: 7,
}

// NewHook creates a Hook for levels from panic to minLevel
func NewHook(submitter base.LogSubmitter, minLevel logrus.Level, excludePatterns []string) (*Hook, error) {
	index := slices.Index(logrus.AllLevels, minLevel)
	if index == -1 {
		return nil, fmt.Errorf("invalid level: %d", minLevel)
	}

	excludes := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	return &Hook{
		submitter: submitter,
		levels:    slices.Clone(logrus.AllLevels[:index+1]),
		excludes:  excludes,
		formatter: &logrus.TextFormatter{
			DisableColors:    true,
			DisableQuote:     true,
			FullTimestamp:    true,
			QuoteEmptyFields: true,
		},
	}, nil
}

// Levels returns the levels of entries to fire
func (hook *Hook) Levels() []logrus.Level {
	return hook.levels
}

// Fire formats and submits the entry, unless it's excluded
//
// Formatting errors are returned to logrus, which prints them to stderr.
func (hook *Hook) Fire(entry *logrus.Entry) error {
	if component, ok := entry.Data[defs.LabelComponent].(string); ok {
		if slices.IndexFunc(hook.excludes, func(g glob.Glob) bool { return g.Match(component) }) != -1 {
			return nil
		}
	}

	text, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	text = bytes.TrimRight(text, "\n")

	record := make([]byte, 0, len(text)+4)
	record = append(record, '<')
	record = strconv.AppendInt(record, int64(syslogSeverities[entry.Level]), 10)
	record = append(record, '>')
	record = append(record, text...)
	hook.submitter.Submit(record)
	return nil
}
