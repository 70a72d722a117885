// Package logger provides a context-carried logrus logger.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type logger struct{}

var fallback = New("", os.Stderr)

// New returns a text logger writing to w at the given level. An empty or
// unknown level means info.
func New(level string, w io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(ParseLevel(level))
	return logrus.NewEntry(l)
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// IntoContext stores log in ctx.
func IntoContext(ctx context.Context, log *logrus.Entry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, logger{}, log)
}

// FromContext returns the logger stored in ctx, or an info-level stderr
// logger when there is none.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if log, ok := ctx.Value(logger{}).(*logrus.Entry); ok && log != nil {
			return log
		}
	}
	return fallback
}
