// Package logging provides the structured logger used throughout the
// control plane: a logrus.Logger with lumberjack-backed file rotation,
// mirroring how the wider predictive-dialer codebase this module was
// generalized from sets up logging once in main and hands component
// loggers down from there.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls on-disk rotation of the log output.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config controls the root logger.
type Config struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"` // "json" or "text"
	File   FileConfig `yaml:"file"`
}

var root = logrus.New()

// Init configures the package-level root logger. Safe to call once at
// process startup; component loggers obtained via Get reflect the
// configured level/format/output from that point on.
func Init(cfg Config) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	root.SetLevel(level)

	if cfg.Format == "json" {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.File.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}
	root.SetOutput(out)
	return nil
}

// Get returns a logger entry scoped to a named component, e.g.
// logging.Get("orchestrator").
func Get(component string) *logrus.Entry {
	return root.WithField("component", component)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID attaches a request/call id to a context for later
// extraction by WithContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithContext lifts tracking identifiers out of ctx into log fields,
// falling back to a bare component logger when none are present.
func WithContext(ctx context.Context, component string) *logrus.Entry {
	entry := Get(component)
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

func Debug(args ...any) { root.Debug(args...) }
func Info(args ...any)  { root.Info(args...) }
func Warn(args ...any)  { root.Warn(args...) }
func Error(args ...any) { root.Error(args...) }
func Fatal(args ...any) { root.Fatal(args...) }
