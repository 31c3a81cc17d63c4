package sender

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher. Zero values pick defaults.
type Options struct {
	// QueueSize bounds each lane's backlog.
	QueueSize int
	// Workers is the number of lanes. A chat always maps to the same lane, so
	// its calls keep their order while other chats run in parallel.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	chatID   int64
	action   string
	endpoint string
	run      func() error
	result   chan<- error
}

// Dispatcher runs outbound Bot API calls on per-chat lanes with retries.
type Dispatcher struct {
	opts  Options
	lanes []chan job

	gate    sync.RWMutex
	stopped bool
	stop    sync.Once
	running sync.WaitGroup
	failed  atomic.Uint64
}

// NewDispatcher starts one goroutine per lane.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	for i := range d.lanes {
		lane := make(chan job, opts.QueueSize)
		d.lanes[i] = lane
		d.running.Add(1)
		go func() {
			defer d.running.Done()
			for j := range lane {
				err := d.handleJob(j)
				if j.result != nil {
					j.result <- err
				}
			}
		}()
	}
	return d
}

// Enqueue queues run on the chat's lane and returns at once. run may be
// called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, chatID int64, action, endpoint string, run func() error) error {
	return d.push(job{ctx: ctx, chatID: chatID, action: action, endpoint: endpoint, run: run})
}

// Do queues run and waits for its final result. It gives up with ctx.Err()
// when ctx ends first; the job itself still runs.
func (d *Dispatcher) Do(ctx context.Context, chatID int64, action, endpoint string, run func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result := make(chan error, 1)
	if err := d.push(job{ctx: ctx, chatID: chatID, action: action, endpoint: endpoint, run: run, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) push(j job) error {
	if j.run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.stopped {
		return ErrQueueClosed
	}
	lane := d.lanes[uint64(j.chatID)%uint64(len(d.lanes))]
	select {
	case lane <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits until queued ones are done.
func (d *Dispatcher) Close() {
	d.stop.Do(func() {
		d.gate.Lock()
		d.stopped = true
		for _, lane := range d.lanes {
			close(lane)
		}
		d.gate.Unlock()
		d.running.Wait()
	})
}

func (d *Dispatcher) handleJob(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	bounded, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	base := slices.Clip(j.attrs())
	logger.Debug(ctx, "tg.sender", "send.start", base...)

	var used int
	err := netutil.Retry(bounded, netutil.Policy{Attempts: d.opts.MaxRetries + 1, Backoff: d.opts.RetryBackoff},
		func(attempt int) error {
			used = attempt
			if err := bounded.Err(); err != nil {
				return err
			}
			return j.run()
		},
		func(attempt int, delay time.Duration, err error) {
			logger.Debug(ctx, "tg.sender", "send.retry.backoff", append(base,
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("err_code", netutil.Classify(err)),
			)...)
		},
	)
	took := logger.Took(start)

	if err != nil {
		d.failed.Add(1)
		logger.Error(ctx, "tg.sender", "send.fail", append(base,
			slog.String("err", netutil.Redact(err)),
			slog.String("err_code", netutil.Classify(err)),
			slog.Int("attempts", used),
			slog.Duration("duration", took),
		)...)
		return err
	}
	if used > 1 {
		logger.Info(ctx, "tg.sender", "send.retry.success", append(base,
			slog.Int("attempt", used),
			slog.Duration("duration", took),
		)...)
		return nil
	}
	logger.Debug(ctx, "tg.sender", "send.success", append(base, slog.Duration("duration", took))...)
	return nil
}

// attrs identifies the job in log lines. Update and user ids come from the
// context through the log handler.
func (j job) attrs() []slog.Attr {
	out := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		out = append(out, slog.String("endpoint", j.endpoint))
	}
	if j.chatID != 0 {
		out = append(out, slog.Int64("chat_id", j.chatID))
	}
	return out
}
