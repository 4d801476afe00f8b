package dlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is usable before Setup; it only writes to stdout until then.
var Log = slog.New(NewHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))

type Options struct {
	Dir   string
	Level string
	// RotateCron is a robfig/cron spec, e.g. "@daily". Empty disables scheduled rotation.
	RotateCron string
}

// Setup fans every record out to the console and to a rotating JSON file in opts.Dir.
// The returned stop func halts rotation and closes the file.
func Setup(opts Options) (func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create log dir %s: %w", opts.Dir, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "archiver.json"),
		MaxSize:    100,
		MaxBackups: 30,
		Compress:   true,
	}
	handlerOptions := &slog.HandlerOptions{AddSource: true, Level: level}
	Log = slog.New(slogmulti.Fanout(
		NewHandler(os.Stdout, handlerOptions),
		slog.NewJSONHandler(file, handlerOptions),
	))

	c := cron.New()
	if opts.RotateCron != "" {
		entryID, err := c.AddFunc(opts.RotateCron, rotate(file))
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("invalid rotate cron %q: %w", opts.RotateCron, err)
		}
		Debug("Created rotate cron", "entryID", entryID)
	}
	c.Start()

	return func() {
		<-c.Stop().Done()
		_ = file.Close()
	}, nil
}

func rotate(file *lumberjack.Logger) func() {
	return func() {
		if err := file.Rotate(); err != nil {
			Error("Failed to rotate log file", "file", file.Filename, "err", err)
			return
		}
		Info("Rotated log file", "file", file.Filename)
	}
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

func Info(msg string, args ...any) {
	logAt(slog.LevelInfo, msg, args...)
}
func Error(msg string, args ...any) {
	logAt(slog.LevelError, msg, args...)
}
func Warn(msg string, args ...any) {
	logAt(slog.LevelWarn, msg, args...)
}
func Debug(msg string, args ...any) {
	logAt(slog.LevelDebug, msg, args...)
}

// logAt records the caller of the exported helper as the source, not this file.
func logAt(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !Log.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip runtime.Callers, logAt and the helper
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = Log.Handler().Handle(ctx, record)
}
