package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
)

const (
	DefaultAlertWorkers   = 2
	DefaultAlertQueueSize = 256
	DefaultAlertTimeout   = 10 * time.Second
)

// AlertSender is the delivery side of the dispatcher
type AlertSender interface {
	SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error
}

type queuedAlert struct {
	ctx       context.Context
	accountID *string
	kind      string
	details   map[string]any
}

// AlertDispatcher hands alerts to a fixed set of workers through a bounded queue.
// SendAlert never waits on delivery; a full queue drops the alert and reports it.
type AlertDispatcher struct {
	sender  AlertSender
	queue   chan queuedAlert
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAlertDispatcher starts the workers. Call Close to drain the queue and stop them.
func NewAlertDispatcher(sender AlertSender, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *AlertDispatcher {
	if workers <= 0 {
		workers = DefaultAlertWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultAlertQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultAlertTimeout
	}

	d := &AlertDispatcher{
		sender:  sender,
		queue:   make(chan queuedAlert, queueSize),
		timeout: timeout,
		logger:  logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d
}

// SendAlert queues the alert. The request context's values are kept but its
// cancellation is not, so delivery outlives the login that raised it.
func (d *AlertDispatcher) SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return fmt.Errorf("%w: dispatcher closed", models.ErrAlertDeliveryFailed)
	}

	select {
	case d.queue <- queuedAlert{ctx: context.WithoutCancel(ctx), accountID: accountID, kind: kind, details: details}:
		return nil
	default:
		return fmt.Errorf("%w: alert queue full, dropped %s", models.ErrAlertDeliveryFailed, kind)
	}
}

func (d *AlertDispatcher) run() {
	defer d.wg.Done()
	for alert := range d.queue {
		d.deliver(alert)
	}
}

func (d *AlertDispatcher) deliver(alert queuedAlert) {
	ctx, cancel := context.WithTimeout(alert.ctx, d.timeout)
	defer cancel()

	if err := d.sender.SendAlert(ctx, alert.accountID, alert.kind, alert.details); err != nil {
		d.logger.Warn("failed to deliver security alert",
			slog.String("kind", alert.kind),
			slog.Any("error", err))
	}
}

// Close stops accepting alerts and waits for queued ones to be delivered
func (d *AlertDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("alert dispatcher stopped")
}
