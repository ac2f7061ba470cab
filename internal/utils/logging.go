package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const logTimeFormat = "2006-01-02T15:04:05.000Z07:00"

type LogConfig struct {
	Level slog.Level
	// Console receives colored output, colors are off unless it is a terminal
	Console *os.File
	// FilePath, when set, gets a plain text copy truncated on every start
	FilePath string
}

// SetupLogger installs the default slog logger. The returned closer flushes
// and closes the log file.
func SetupLogger(cfg LogConfig) (io.Closer, error) {
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: logTimeFormat,
			NoColor:    !isatty.IsTerminal(console.Fd()),
		}),
	}

	closer := closerFunc(func() error { return nil })
	if cfg.FilePath != "" {
		if err := EnsureParent(cfg.FilePath); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		interceptor := NewLogInterceptor(file)
		handlers = append(handlers, slog.NewTextHandler(interceptor, &slog.HandlerOptions{
			Level: cfg.Level,
			// the interceptor stamps the time
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		}))
		closer = func() error {
			ierr := interceptor.Close()
			if err := file.Close(); err != nil {
				return err
			}
			return ierr
		}
	}

	slog.SetDefault(slog.New(NewMultiLogHandler(handlers...)))
	return closer, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
