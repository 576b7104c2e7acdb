package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSSE struct {
	lastPublishedEvent *sse.Event
	lastPublishedTopic string
}

func (m *mockSSE) Publish(topic string, event *sse.Event) {
	m.lastPublishedTopic = topic
	m.lastPublishedEvent = event
}

func TestNewSSEWriter(t *testing.T) {
	pub := &mockSSE{}
	writer := NewSSEWriter(pub)

	assert.Equal(t, pub, writer.SSE)
	assert.Equal(t, StreamLogs, writer.Stream)
	assert.Equal(t, defaultTimeFormat, writer.TimeFormat)
	assert.Equal(t, defaultPartsOrder(), writer.PartsOrder)
}

func TestNewSSEWriter_WithOptions(t *testing.T) {
	writer := NewSSEWriter(&mockSSE{}, func(w *SSEWriter) {
		w.TimeFormat = "2006-01-02"
		w.PartsOrder = []string{zerolog.MessageFieldName}
	})

	assert.Equal(t, "2006-01-02", writer.TimeFormat)
	assert.Equal(t, []string{zerolog.MessageFieldName}, writer.PartsOrder)
}

func TestSSEWriter_Write_NilSSE(t *testing.T) {
	writer := SSEWriter{}
	n, err := writer.Write([]byte(`{"level":"info","message":"test"}`))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSSEWriter_Write_InvalidJSON(t *testing.T) {
	writer := NewSSEWriter(&mockSSE{})
	_, err := writer.Write([]byte(`invalid json`))
	assert.Error(t, err)
}

func TestSSEWriter_Write(t *testing.T) {
	pub := &mockSSE{}
	writer := NewSSEWriter(pub)

	line, _ := json.Marshal(map[string]interface{}{
		zerolog.TimestampFieldName: time.Now().Format(zerolog.TimeFieldFormat),
		zerolog.LevelFieldName:     zerolog.LevelErrorValue,
		zerolog.MessageFieldName:   "sweep failed",
		zerolog.CallerFieldName:    "jobs.go:42",
		zerolog.ErrorFieldName:     "connection refused",
		"job":                      "purge",
		"affected":                 3,
	})

	n, err := writer.Write(line)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	assert.Equal(t, StreamLogs, pub.lastPublishedTopic)

	var msg LogMessage
	require.NoError(t, json.Unmarshal(pub.lastPublishedEvent.Data, &msg))
	assert.Equal(t, "ERR", msg.Level)
	assert.NotEmpty(t, msg.Time)
	assert.Equal(t, `jobs.go:42 > sweep failed error="connection refused" affected=3 job=purge`, msg.Message)
}

func TestWriteFields_ErrorFirst(t *testing.T) {
	writer := NewSSEWriter(&mockSSE{})
	buf := new(bytes.Buffer)

	writer.writeFields(buf, map[string]interface{}{
		"b":                    "2",
		zerolog.ErrorFieldName: "boom",
		"a":                    "1",
		zerolog.LevelFieldName: zerolog.LevelWarnValue,
	})

	assert.Equal(t, "error=boom a=1 b=2", buf.String())
}

func TestFormatLevel(t *testing.T) {
	assert.Equal(t, "INF", formatLevel(zerolog.LevelInfoValue))
	assert.Equal(t, "DBG", formatLevel(zerolog.LevelDebugValue))
	assert.Equal(t, "CUSTOM", formatLevel("custom"))
	assert.Equal(t, "???", formatLevel(nil))
}

func TestNeedsQuote(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"simple", false},
		{"with space", true},
		{"with\"quote", true},
		{"with\\escape", true},
		{"with\x1fcontrol", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, needsQuote(tt.input), tt.input)
	}
}
