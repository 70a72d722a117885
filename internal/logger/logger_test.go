package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{name: "default", level: "", want: logrus.InfoLevel},
		{name: "debug", level: "debug", want: logrus.DebugLevel},
		{name: "upper case", level: "WARN", want: logrus.WarnLevel},
		{name: "unknown", level: "chatty", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, &bytes.Buffer{})
			assert.Equal(t, tt.want, log.Logger.GetLevel())
		})
	}
}

func TestNew_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf)

	log.WithField("ttl", 3).Debug("probe sent")

	assert.Contains(t, buf.String(), "probe sent")
	assert.Contains(t, buf.String(), "ttl=3")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf)

	tests := []struct {
		name string
		ctx  context.Context
		want *logrus.Entry
	}{
		{name: "context with logger", ctx: IntoContext(context.Background(), log), want: log},
		{name: "context without logger", ctx: context.Background(), want: fallback},
		{name: "nil context", ctx: nil, want: fallback},
		{name: "nil logger stored", ctx: IntoContext(context.Background(), nil), want: fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, FromContext(tt.ctx))
		})
	}
}

func TestIntoContext_NilParent(t *testing.T) {
	log := New("", &bytes.Buffer{})
	//nolint:staticcheck // nil parent is accepted
	ctx := IntoContext(nil, log)
	assert.Same(t, log, FromContext(ctx))
}
