package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger interface
type Logger interface {
	Log() *zerolog.Event
	Fatal() *zerolog.Event
	Err(err error) *zerolog.Event
	Error() *zerolog.Event
	Warn() *zerolog.Event
	Info() *zerolog.Event
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	With() zerolog.Context
	RegisterSSEWriter(pub SSEPublisher)
	SetLogLevel(level string)
}

// DefaultLogger default logging controller
type DefaultLogger struct {
	mu            sync.Mutex
	log           zerolog.Logger
	level         zerolog.Level
	writers       []io.Writer
	logDir        string
	currentDate   string
	lumberjackLog *lumberjack.Logger
	cfg           *domain.Config
}

func New(cfg *domain.Config) Logger {
	l := &DefaultLogger{
		writers:     make([]io.Writer, 0),
		level:       zerolog.DebugLevel,
		cfg:         cfg,
		currentDate: time.Now().Format("2006-01-02"),
	}

	l.SetLogLevel(cfg.Logging.Level)

	// use pretty logging for dev only
	if cfg.Version == "dev" {
		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

		l.writers = append(l.writers, consoleWriter)
	} else {
		l.writers = append(l.writers, os.Stderr)
	}

	if cfg.Logging.Path != "" {
		l.logDir = cfg.Logging.Path
		if _, err := os.Stat(l.logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(l.logDir, 0755); err != nil {
				fmt.Printf("Failed to create log directory: %v\n", err)
			}
		}

		l.lumberjackLog = &lumberjack.Logger{
			Filename:   l.logFilename(),
			MaxSize:    cfg.Logging.MaxFileSize,
			MaxBackups: cfg.Logging.MaxBackupCount,
		}

		l.writers = append(l.writers, l.lumberjackLog)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	l.log = zerolog.New(io.MultiWriter(l.writers...)).With().Stack().Logger()

	return l
}

func (l *DefaultLogger) logFilename() string {
	return filepath.Join(l.logDir, fmt.Sprintf("hiatus-%s.log", l.currentDate))
}

// RegisterSSEWriter mirrors every log line to the logs stream of pub.
func (l *DefaultLogger) RegisterSSEWriter(pub SSEPublisher) {
	w := NewSSEWriter(pub)

	l.mu.Lock()
	l.writers = append(l.writers, w)
	l.log = zerolog.New(io.MultiWriter(l.writers...)).With().Stack().Logger()
	l.mu.Unlock()

	l.Info().Msg("SSE writer registered for logging")
}

// logger returns the current logger, switching to a new dated log file first
// when the day changed.
func (l *DefaultLogger) logger() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkRotate()
	return l.log
}

// checkRotate must be called with l.mu held.
func (l *DefaultLogger) checkRotate() {
	if l.lumberjackLog == nil || l.logDir == "" {
		return
	}

	today := time.Now().Format("2006-01-02")
	if today == l.currentDate {
		return
	}

	l.currentDate = today
	_ = l.lumberjackLog.Close()
	// lumberjack opens the new file lazily on the next write
	l.lumberjackLog.Filename = l.logFilename()
}

func (l *DefaultLogger) SetLogLevel(level string) {
	switch level {
	case "INFO":
		l.level = zerolog.InfoLevel
	case "DEBUG":
		l.level = zerolog.DebugLevel
	case "ERROR":
		l.level = zerolog.ErrorLevel
	case "WARN":
		l.level = zerolog.WarnLevel
	case "TRACE":
		l.level = zerolog.TraceLevel
	default:
		l.level = zerolog.Disabled
	}
	zerolog.SetGlobalLevel(l.level)
}

// Log log something without level.
func (l *DefaultLogger) Log() *zerolog.Event {
	lg := l.logger()
	return lg.Log().Timestamp()
}

// Fatal log something at fatal level. This will exit!
func (l *DefaultLogger) Fatal() *zerolog.Event {
	lg := l.logger()
	return lg.Fatal().Timestamp()
}

// Error log something at Error level
func (l *DefaultLogger) Error() *zerolog.Event {
	lg := l.logger()
	return lg.Error().Timestamp()
}

// Err log something at Err level
func (l *DefaultLogger) Err(err error) *zerolog.Event {
	lg := l.logger()
	return lg.Err(err).Timestamp()
}

// Warn log something at warning level.
func (l *DefaultLogger) Warn() *zerolog.Event {
	lg := l.logger()
	return lg.Warn().Timestamp()
}

// Info log something at info level.
func (l *DefaultLogger) Info() *zerolog.Event {
	lg := l.logger()
	return lg.Info().Timestamp()
}

// Debug log something at debug level.
func (l *DefaultLogger) Debug() *zerolog.Event {
	lg := l.logger()
	return lg.Debug().Timestamp()
}

// Trace log something at trace level.
func (l *DefaultLogger) Trace() *zerolog.Event {
	lg := l.logger()
	return lg.Trace().Timestamp()
}

// With log with context
func (l *DefaultLogger) With() zerolog.Context {
	lg := l.logger()
	return lg.With().Timestamp()
}
