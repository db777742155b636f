package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.With(Component("queue")).Info("sent", Str("queue", "orders"), Int("size", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sent", entry["msg"])
	assert.Equal(t, "queue", entry[ComponentKey])
	assert.Equal(t, "orders", entry["queue"])
	assert.EqualValues(t, 3, entry["size"])
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(WarnLevel), WithFormatter(&TextFormatter{DisableTimestamp: true}), WithOutput(NewWriterOutput(&buf)))
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.GetLevel())
	l.Debug("shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestWithContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(NewWriterOutput(&buf)))
	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	_, err := ApplyConfig(&Config{Level: "info", Format: "xml"})
	require.Error(t, err)

	l, err := ApplyConfig(&Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, ErrorLevel, l.GetLevel())
}
