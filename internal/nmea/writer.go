package nmea

import (
	"bufio"
	"errors"
	"os"
	"sync"

	"dashtrack/internal/overlay"
)

// Writer appends RMC sentences to a log file, one per line.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriterSize(f, 16*1024)}, nil
}

// WriteFrame writes f and flushes, so the log is usable while a run is in progress.
func (ww *Writer) WriteFrame(f overlay.Frame) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("nmea writer is closed")
	}
	if _, err := ww.w.WriteString(RMC(f) + "\r\n"); err != nil {
		return err
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
