package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

// StreamLogs is the SSE stream log lines are published on.
const StreamLogs = "logs"

const defaultTimeFormat = time.Kitchen

// SSEPublisher is the part of *sse.Server the writers need.
type SSEPublisher interface {
	Publish(id string, event *sse.Event)
}

type LogMessage struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (m LogMessage) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// SSEWriter renders zerolog JSON lines the way the console writer does and
// publishes them as LogMessage events.
type SSEWriter struct {
	SSE        SSEPublisher
	Stream     string
	TimeFormat string
	PartsOrder []string
}

func NewSSEWriter(pub SSEPublisher, options ...func(w *SSEWriter)) SSEWriter {
	w := SSEWriter{
		SSE:        pub,
		Stream:     StreamLogs,
		TimeFormat: defaultTimeFormat,
		PartsOrder: defaultPartsOrder(),
	}

	for _, opt := range options {
		opt(&w)
	}

	return w
}

func defaultPartsOrder() []string {
	return []string{
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}
}

func (w SSEWriter) Write(p []byte) (n int, err error) {
	if w.SSE == nil {
		return 0, nil
	}

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return 0, errors.Wrap(err, "cannot decode log event")
	}

	buf := new(bytes.Buffer)
	for _, part := range w.PartsOrder {
		w.writePart(buf, evt, part)
	}
	w.writeFields(buf, evt)

	msg := LogMessage{
		Time:    formatTimestamp(evt[zerolog.TimestampFieldName], w.TimeFormat),
		Level:   formatLevel(evt[zerolog.LevelFieldName]),
		Message: strings.TrimSpace(buf.String()),
	}

	data, err := msg.Bytes()
	if err != nil {
		return 0, errors.Wrap(err, "cannot encode log message")
	}

	w.SSE.Publish(w.Stream, &sse.Event{Data: data})

	return len(p), nil
}

func (w SSEWriter) writePart(buf *bytes.Buffer, evt map[string]interface{}, part string) {
	v, ok := evt[part]
	if !ok {
		return
	}

	var s string
	switch part {
	case zerolog.CallerFieldName:
		s = fmt.Sprintf("%s >", v)
	case zerolog.MessageFieldName:
		s = fmt.Sprintf("%s", v)
	default:
		s = formatValue(v)
	}

	if s == "" {
		return
	}
	if buf.Len() > 0 {
		buf.WriteByte(' ')
	}
	buf.WriteString(s)
}

func (w SSEWriter) writeFields(buf *bytes.Buffer, evt map[string]interface{}) {
	fields := make([]string, 0, len(evt))
	for field := range evt {
		switch field {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.CallerFieldName:
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	// error goes first
	for i, field := range fields {
		if field == zerolog.ErrorFieldName {
			fields = append([]string{field}, append(fields[:i:i], fields[i+1:]...)...)
			break
		}
	}

	for _, field := range fields {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(field)
		buf.WriteByte('=')
		buf.WriteString(formatValue(evt[field]))
	}
}

func formatTimestamp(i interface{}, timeFormat string) string {
	switch tt := i.(type) {
	case string:
		ts, err := time.Parse(zerolog.TimeFieldFormat, tt)
		if err != nil {
			return tt
		}
		return ts.Local().Format(timeFormat)
	case json.Number:
		sec, err := tt.Int64()
		if err != nil {
			return tt.String()
		}
		return time.Unix(sec, 0).Local().Format(timeFormat)
	}
	return ""
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		return "???"
	}
	switch ll {
	case zerolog.LevelTraceValue:
		return "TRC"
	case zerolog.LevelDebugValue:
		return "DBG"
	case zerolog.LevelInfoValue:
		return "INF"
	case zerolog.LevelWarnValue:
		return "WRN"
	case zerolog.LevelErrorValue:
		return "ERR"
	case zerolog.LevelFatalValue:
		return "FTL"
	case zerolog.LevelPanicValue:
		return "PNC"
	}
	return strings.ToUpper(ll)
}

func formatValue(i interface{}) string {
	switch v := i.(type) {
	case string:
		if needsQuote(v) {
			return strconv.Quote(v)
		}
		return v
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// needsQuote returns true when the string s contains any character that
// would break key=value rendering.
func needsQuote(s string) bool {
	for i := range s {
		if s[i] < 0x20 || s[i] > 0x7e || s[i] == ' ' || s[i] == '\\' || s[i] == '"' {
			return true
		}
	}
	return false
}
