package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aphistic/golf"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the logging outputs. Console logging is always on,
// a filename adds a rotating logfile, a gelf url adds a graylog output.
type Config struct {
	Level    string `yaml:"level"`
	Filename string `yaml:"filename"`
	Gelfurl  string `yaml:"gelfurl"`
}

type Logger struct {
	name string
	sl   *slog.Logger
	gelf *golf.Logger
}

var (
	level slog.LevelVar
	Root  = &Logger{sl: slog.Default()}

	gelfClient *golf.Client
	gelfLogger *golf.Logger
)

// Init configures the package wide logging backend from the config.
func Init(cfg Config) error {
	level.Set(parseLevel(cfg.Level))

	var w io.Writer = os.Stderr
	if cfg.Filename != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level})
	slog.SetDefault(slog.New(h))

	if cfg.Gelfurl != "" {
		c, err := golf.NewClient()
		if err != nil {
			return err
		}
		if err := c.Dial(cfg.Gelfurl); err != nil {
			return err
		}
		l, err := c.NewLogger()
		if err != nil {
			return err
		}
		gelfClient = c
		gelfLogger = l
	}

	Root = New()
	return nil
}

// SetLevel overwrites the configured level, used for the -v cli flags.
func SetLevel(l slog.Level) {
	level.Set(l)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func New() *Logger {
	return &Logger{sl: slog.Default(), gelf: gelfLogger}
}

func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		name: name,
		sl:   slog.Default().With("name", name),
		gelf: gelfLogger,
	}
}

func (l *Logger) Debug(msg string) {
	l.sl.Debug(msg)
	if l.gelf != nil {
		l.gelf.Dbg(msg)
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(msg string) {
	l.sl.Info(msg)
	if l.gelf != nil {
		l.gelf.Info(msg)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(msg string) {
	l.sl.Warn(msg)
	if l.gelf != nil {
		l.gelf.Warn(msg)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string) {
	l.sl.Error(msg)
	if l.gelf != nil {
		l.gelf.Err(msg)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.sl.Error(msg)
	if l.gelf != nil {
		l.gelf.Crit(msg)
	}
	os.Exit(1)
}

// Close flushes the gelf connection if one was configured.
func Close() {
	if gelfClient != nil {
		gelfClient.Close()
	}
}
