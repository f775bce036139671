package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// Limiter throttles every attempt across all workers; nil disables throttling.
	Limiter *rate.Limiter
}

type job struct {
	ctx    context.Context
	action string
	chatID int64
	run    func(context.Context) error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts Options
	jobs chan job
	stop chan struct{}
	mu   sync.RWMutex
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 45 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. It blocks while the queue
// is full until ctx is done. run must be safe to retry.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, chatID int64, run func(context.Context) error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), action: action, chatID: chatID, run: run}:
		return nil
	case <-d.stop:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.mu.Lock()
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if d.opts.Limiter != nil {
			if err := d.opts.Limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
		lastErr = j.run(ctx)
		if lastErr == nil {
			attrs := sendLogAttrs(j, slog.Int("attempts", attempt), slog.Duration("duration", time.Since(start)))
			if attempt > 1 {
				logger.Info(ctx, logger.CompTGSender, "send.retry.success", attrs...)
			} else {
				logger.Debug(ctx, logger.CompTGSender, "send.success", attrs...)
			}
			return
		}
		delay, retryable := retryDelay(lastErr, d.opts.RetryBackoff, attempt)
		if !retryable || attempt == attempts {
			break
		}
		logger.Debug(ctx, logger.CompTGSender, "send.retry.backoff",
			sendLogAttrs(j, slog.Int("attempts", attempt), slog.Duration("backoff", delay))...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = errors.Join(lastErr, ctx.Err())
			attempt = attempts
		case <-timer.C:
		}
	}

	d.errs.Add(1)
	logger.Error(ctx, logger.CompTGSender, "send.fail", sendLogAttrs(j,
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(lastErr)),
		slog.String("err_code", classifyError(lastErr)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)...)
}

// retryDelay decides whether err is transient and how long to wait before the
// next attempt. Flood control errors carry their own delay.
func retryDelay(err error, backoff time.Duration, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if netutil.ShouldRetry(err) || httpStatusFromError(err) >= 500 {
		return backoff * time.Duration(attempt), true
	}
	return 0, false
}

func sendLogAttrs(j job, extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", j.action)}
	if j.chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", j.chatID))
	}
	return append(attrs, extra...)
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := httpStatusFromError(err); {
	case status == http.StatusForbidden:
		// blocked by the user or removed from the group
		return "forbidden"
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return logger.SanitizeLimit(tokenRe.ReplaceAllString(err.Error(), "bot<redacted>"), 512)
}

func httpStatusFromError(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	return 0
}
