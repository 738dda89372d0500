// Package logging configures the prefixed logrus loggers used by each
// component.
package logging

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Component prefixes.
const (
	CLI      = "CL"
	Server   = "SV"
	Mailbox  = "MB"
	Settings = "ST"
	History  = "HI"
	Archive  = "AR"
	Folder   = "FO"
)

var (
	mu      sync.Mutex
	level   = logrus.InfoLevel
	out     io.Writer = os.Stderr
	loggers = map[string]*logrus.Logger{}
)

// prefixFormatter prepends a fixed component tag to every entry.
type prefixFormatter struct {
	inner  logrus.Formatter
	prefix []byte
}

func newPrefixFormatter(prefix string) *prefixFormatter {
	inner := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		DisableColors:   runtime.GOOS == "windows",
	}
	return &prefixFormatter{inner: inner, prefix: []byte(prefix + ":\t")}
}

func (f *prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	text, err := f.inner.Format(entry)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, f.prefix...), text...), nil
}

// ParseLevel maps a config string to a level. Unknown values yield info.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

// SetLevel changes the level of every logger, including ones created later.
func SetLevel(s string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(s)
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// SetOutput redirects every logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}

// Logger returns the logger for a component prefix, creating it on first use.
func Logger(prefix string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[prefix]; ok {
		return l
	}
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(out)
	l.SetFormatter(newPrefixFormatter(prefix))
	loggers[prefix] = l
	return l
}
