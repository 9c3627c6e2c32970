package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// lineWriter fans log lines out to its sinks from a single goroutine. Sinks are
// flushed whenever the queue runs empty.
type lineWriter struct {
	lines chan []byte
	flush chan chan error
	done  chan struct{}
	sinks []*bufio.Writer

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newLineWriter(sinks []io.Writer, bufSize int) *lineWriter {
	if bufSize <= 0 {
		bufSize = 64 << 10
	}
	w := &lineWriter{
		lines: make(chan []byte, 256),
		flush: make(chan chan error),
		done:  make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(s, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *lineWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.sync())
				return
			}
			w.fail(w.put(line))
			if len(w.lines) == 0 {
				w.fail(w.sync())
			}
		case ack := <-w.flush:
			w.drain()
			ack <- w.sync()
		}
	}
}

// Write queues a copy of p, blocking while the queue is full.
func (w *lineWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := append([]byte(nil), p...)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- line
	return nil
}

// Flush returns once every queued line has reached the sinks.
func (w *lineWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return w.Err()
	}
	ack := make(chan error, 1)
	w.flush <- ack
	w.mu.RUnlock()
	if err := <-ack; err != nil {
		return err
	}
	return w.Err()
}

// Close drains the queue and returns the first write error.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.mu.Unlock()
	<-w.done
	return w.Err()
}

// Err returns the first write error, if any.
func (w *lineWriter) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *lineWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *lineWriter) drain() {
	for len(w.lines) > 0 {
		line, ok := <-w.lines
		if !ok {
			return
		}
		w.fail(w.put(line))
	}
}

func (w *lineWriter) put(line []byte) error {
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (w *lineWriter) sync() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}
