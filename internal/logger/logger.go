package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Options configures where and how much the logger writes.
type Options struct {
	Level       string // debug, info, warn, error
	Dir         string
	FileEnabled bool
	MaxSizeMB   int
	MaxBackups  int
	Color       bool
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	level        LogLevel
	colorEnabled bool

	file     zerolog.Logger
	fileSink io.WriteCloser
}

// NewLogger writes colored lines to stdout and, when enabled, JSON lines to a
// size-rotated file under opts.Dir.
func NewLogger(opts Options) *Logger {
	l := &Logger{
		out:          os.Stdout,
		level:        ParseLevel(opts.Level),
		colorEnabled: opts.Color,
		file:         zerolog.Nop(),
	}

	if opts.FileEnabled {
		dir := opts.Dir
		if dir == "" {
			dir = "logs"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot create %s, file logging disabled: %v\n", dir, err)
		} else {
			sink := &lumberjack.Logger{
				Filename:   filepath.Join(dir, "insights-filter.log"),
				MaxSize:    orDefault(opts.MaxSizeMB, 50),
				MaxBackups: orDefault(opts.MaxBackups, 5),
				Compress:   true,
			}
			l.fileSink = sink
			l.file = zerolog.New(sink).With().Timestamp().Logger()
			l.Info("LOGGER", fmt.Sprintf("Log file: %s", sink.Filename))
		}
	}

	return l
}

// NewWithWriter logs uncolored lines to w at debug level with no file sink.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		out:   w,
		level: DEBUG,
		file:  zerolog.Nop(),
	}
}

func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}
	category = strings.ToUpper(category)
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.out, l.formatTerminalOutput(now, level, category, message, file, line))

	l.file.WithLevel(zerologLevel(level)).
		Str("category", category).
		Str("file", file).
		Int("line", line).
		Msg(message)
}

func (l *Logger) formatTerminalOutput(ts time.Time, level LogLevel, category, message, file string, line int) string {
	timeStr := ts.Format("15:04:05")
	levelStr := fmt.Sprintf("%-5s", levelToString(level))
	categoryStr := fmt.Sprintf("[%-10s]", category)
	fileInfo := ""
	if file != "" && line > 0 {
		fileInfo = fmt.Sprintf(" (%s:%d)", file, line)
	}

	if l.colorEnabled {
		c := levelColor(level)
		timeStr = color.New(color.FgBlue).Sprint(timeStr)
		levelStr = c.Sprint(levelStr)
		categoryStr = c.Add(color.Bold).Sprint(categoryStr)
		if fileInfo != "" {
			fileInfo = color.New(color.FgMagenta).Sprint(fileInfo)
		}
	}

	return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, message, fileInfo)
}

func levelColor(level LogLevel) *color.Color {
	switch level {
	case DEBUG:
		return color.New(color.FgCyan)
	case INFO:
		return color.New(color.FgGreen)
	case WARN:
		return color.New(color.FgYellow)
	case ERROR, FATAL:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Public logging methods
func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components
func (l *Logger) LogLoad(sessionID, message string) {
	l.Info("LOADER", fmt.Sprintf("[%s] %s", sessionID, message))
}

func (l *Logger) LogView(sessionID, message string) {
	l.Debug("VIEW", fmt.Sprintf("[%s] %s", sessionID, message))
}

func (l *Logger) LogExport(sessionID, format, scope string, rows int) {
	l.Info("EXPORT", fmt.Sprintf("[%s] %s/%s - %d rows", sessionID, format, scope, rows))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.Info("API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogCache(action, key, message string) {
	l.Debug("CACHE", fmt.Sprintf("[%s] %s - %s", action, key, message))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) Close() {
	if l.fileSink != nil {
		l.Info("LOGGER", "Closing log file")
		l.fileSink.Close()
	}
}
