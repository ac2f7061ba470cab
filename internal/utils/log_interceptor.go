package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

// LogInterceptor prefixes every complete line written to it with a line
// number and a timestamp. Partial lines are held until the newline arrives
// or Close is called.
type LogInterceptor struct {
	mu     sync.Mutex
	target io.Writer
	line   uint64
	buf    bytes.Buffer
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

func (i *LogInterceptor) writeLine(line []byte) error {
	i.line++
	prefix := slog.Uint64("line", i.line).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
	if _, err := io.WriteString(i.target, prefix); err != nil {
		return err
	}
	_, err := i.target.Write(line)
	return err
}

// Write reports len(p) once p is buffered, so slog handlers never see
// short writes.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buf.Write(p)
	for {
		idx := bytes.IndexByte(i.buf.Bytes(), '\n')
		if idx < 0 {
			return len(p), nil
		}
		line := i.buf.Next(idx + 1)
		if err := i.writeLine(line); err != nil {
			return len(p), err
		}
	}
}

// Close flushes a trailing partial line. It does not close the target.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.buf.Len() == 0 {
		return nil
	}
	rest := append(i.buf.Bytes(), '\n')
	i.buf.Reset()
	return i.writeLine(rest)
}
