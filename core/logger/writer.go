package logger

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var errWriterClosed = errors.New("logger: writer closed")

const (
	defaultBatchBytes = 64 * 1024
	defaultFlushEvery = 200 * time.Millisecond
)

// lineWriter collects lines in memory and copies them to every sink from one
// goroutine, either on a timer or once the batch grows past its limit.
type lineWriter struct {
	sinks []io.Writer
	limit int

	mu      sync.Mutex
	batch   []byte
	err     error
	closed  bool
	writeMu sync.Mutex

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newLineWriter(sinks []io.Writer, limit int, every time.Duration) *lineWriter {
	if limit <= 0 {
		limit = defaultBatchBytes
	}
	if every <= 0 {
		every = defaultFlushEvery
	}
	w := &lineWriter{
		limit: limit,
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			w.sinks = append(w.sinks, s)
		}
	}
	go w.run(every)
	return w
}

func (w *lineWriter) run(every time.Duration) {
	defer close(w.done)
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
		case <-w.kick:
		case <-w.stop:
			w.record(w.flush())
			return
		}
		w.record(w.flush())
	}
}

// Write queues one line. The first sink error is sticky.
func (w *lineWriter) Write(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errWriterClosed
	}
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	w.batch = append(w.batch, line...)
	full := len(w.batch) >= w.limit
	w.mu.Unlock()

	if full {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush copies everything queued so far to the sinks.
func (w *lineWriter) Flush() error {
	err := w.flush()
	w.record(err)
	return err
}

func (w *lineWriter) flush() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	out := w.batch
	w.batch = nil
	w.mu.Unlock()
	if len(out) == 0 {
		return nil
	}

	var errs []error
	for i, s := range w.sinks {
		if _, err := s.Write(out); err != nil {
			errs = append(errs, fmt.Errorf("logger: sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending lines, stops the background goroutine and reports
// the first sink error seen during the writer's lifetime.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.once.Do(func() { close(w.stop) })
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *lineWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
