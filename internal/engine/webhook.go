package engine

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/semfire-project/semfire/internal/core"
)

// Webhook delivery is asynchronous:
//   - Bounded queue drained by background workers
//   - Exponential backoff on 5xx/429 and transport errors
//   - Dead letter buffer for permanently failed deliveries
//   - Per-URL circuit breaker: repeated failures pause that URL

// webhookDelivery is a single alert delivery in flight.
type webhookDelivery struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Alert     *core.Alert `json:"alert"`
	CreatedAt time.Time   `json:"created_at"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error,omitempty"`
}

// deadLetter is a failed delivery preserved for inspection.
type deadLetter struct {
	Delivery  *webhookDelivery `json:"delivery"`
	FailedAt  time.Time        `json:"failed_at"`
	LastError string           `json:"last_error"`
}

const (
	webhookMaxRetries     = 5
	webhookInitialBackoff = time.Second
	webhookMaxBackoff     = 30 * time.Second
	webhookQueueSize      = 1000
	webhookWorkers        = 2
	webhookBreakerLimit   = 5
	webhookBreakerPause   = 60 * time.Second
	webhookMaxDeadLetters = 500
)

// webhookDispatcher delivers alerts to webhook URLs in the background.
type webhookDispatcher struct {
	logger zerolog.Logger
	queue  chan *webhookDelivery

	dlMu        sync.RWMutex
	deadLetters []*deadLetter

	cbMu       sync.Mutex
	cbFailures map[string]int
	cbOpenedAt map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWebhookDispatcher(logger zerolog.Logger) *webhookDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &webhookDispatcher{
		logger:     logger.With().Str("component", "webhook_dispatcher").Logger(),
		queue:      make(chan *webhookDelivery, webhookQueueSize),
		cbFailures: make(map[string]int),
		cbOpenedAt: make(map[string]time.Time),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < webhookWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules an alert for delivery and returns immediately. If the
// queue is full the delivery goes straight to the dead letter buffer.
func (d *webhookDispatcher) Enqueue(url string, alert *core.Alert) {
	delivery := &webhookDelivery{
		ID:        alert.ID,
		URL:       url,
		Alert:     alert,
		CreatedAt: time.Now().UTC(),
	}
	select {
	case d.queue <- delivery:
	default:
		d.logger.Warn().Str("url", url).Msg("webhook queue full — delivery dropped")
		d.addDeadLetter(delivery, "queue full — delivery dropped")
	}
}

// DeadLetters returns up to limit failed deliveries, oldest first.
func (d *webhookDispatcher) DeadLetters(limit int) []*deadLetter {
	d.dlMu.RLock()
	defer d.dlMu.RUnlock()
	if limit <= 0 || limit > len(d.deadLetters) {
		limit = len(d.deadLetters)
	}
	start := len(d.deadLetters) - limit
	out := make([]*deadLetter, limit)
	copy(out, d.deadLetters[start:])
	return out
}

// Stats returns dispatcher counters for the status API.
func (d *webhookDispatcher) Stats() map[string]interface{} {
	d.dlMu.RLock()
	dlCount := len(d.deadLetters)
	d.dlMu.RUnlock()

	d.cbMu.Lock()
	openCircuits := 0
	for url, openedAt := range d.cbOpenedAt {
		if time.Since(openedAt) < webhookBreakerPause {
			openCircuits++
		} else {
			delete(d.cbOpenedAt, url)
			delete(d.cbFailures, url)
		}
	}
	d.cbMu.Unlock()

	return map[string]interface{}{
		"queue_depth":   len(d.queue),
		"dead_letters":  dlCount,
		"open_circuits": openCircuits,
	}
}

// Stop shuts the workers down. In-flight deliveries are abandoned.
func (d *webhookDispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *webhookDispatcher) worker() {
	defer d.wg.Done()
	client := &http.Client{Timeout: 15 * time.Second}

	for {
		select {
		case <-d.ctx.Done():
			return
		case delivery := <-d.queue:
			d.deliver(client, delivery)
		}
	}
}

func (d *webhookDispatcher) deliver(client *http.Client, delivery *webhookDelivery) {
	if d.circuitOpen(delivery.URL) {
		d.addDeadLetter(delivery, "circuit breaker open for URL")
		return
	}

	data, err := delivery.Alert.Marshal()
	if err != nil {
		d.addDeadLetter(delivery, fmt.Sprintf("marshal error: %v", err))
		return
	}

	for attempt := 0; attempt <= webhookMaxRetries; attempt++ {
		delivery.Attempts = attempt + 1

		req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, delivery.URL, bytes.NewReader(data))
		if err != nil {
			d.addDeadLetter(delivery, fmt.Sprintf("request creation error: %v", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "semfire-webhook/1.0")
		req.Header.Set("X-Semfire-Delivery-ID", delivery.ID)
		req.Header.Set("X-Semfire-Attempt", fmt.Sprintf("%d", delivery.Attempts))

		resp, err := client.Do(req)
		if err != nil {
			delivery.LastError = fmt.Sprintf("request failed: %v", err)
			d.recordFailure(delivery.URL)
			if attempt < webhookMaxRetries {
				d.backoff(attempt)
				continue
			}
			d.addDeadLetter(delivery, delivery.LastError)
			return
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.recordSuccess(delivery.URL)
			d.logger.Debug().
				Str("url", delivery.URL).
				Str("alert_id", delivery.Alert.ID).
				Int("attempts", delivery.Attempts).
				Msg("webhook delivered")
			return
		}

		// 4xx (other than 429) will not improve with retries.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			d.addDeadLetter(delivery, fmt.Sprintf("client error: HTTP %d", resp.StatusCode))
			return
		}

		delivery.LastError = fmt.Sprintf("server error: HTTP %d", resp.StatusCode)
		d.recordFailure(delivery.URL)
		if attempt < webhookMaxRetries {
			d.backoff(attempt)
		}
	}

	d.addDeadLetter(delivery, delivery.LastError)
}

func (d *webhookDispatcher) backoff(attempt int) {
	delay := time.Duration(float64(webhookInitialBackoff) * math.Pow(2, float64(attempt)))
	if delay > webhookMaxBackoff {
		delay = webhookMaxBackoff
	}
	select {
	case <-time.After(delay):
	case <-d.ctx.Done():
	}
}

func (d *webhookDispatcher) addDeadLetter(delivery *webhookDelivery, reason string) {
	d.dlMu.Lock()
	if len(d.deadLetters) >= webhookMaxDeadLetters {
		d.deadLetters = d.deadLetters[webhookMaxDeadLetters/10:]
	}
	d.deadLetters = append(d.deadLetters, &deadLetter{
		Delivery:  delivery,
		FailedAt:  time.Now().UTC(),
		LastError: reason,
	})
	d.dlMu.Unlock()
	d.logger.Warn().
		Str("url", delivery.URL).
		Str("alert_id", delivery.Alert.ID).
		Int("attempts", delivery.Attempts).
		Str("error", reason).
		Msg("webhook moved to dead letter")
}

func (d *webhookDispatcher) circuitOpen(url string) bool {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	if openedAt, ok := d.cbOpenedAt[url]; ok {
		if time.Since(openedAt) < webhookBreakerPause {
			return true
		}
		delete(d.cbOpenedAt, url)
		d.cbFailures[url] = 0
	}
	return false
}

func (d *webhookDispatcher) recordFailure(url string) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.cbFailures[url]++
	if d.cbFailures[url] >= webhookBreakerLimit {
		d.cbOpenedAt[url] = time.Now()
		d.logger.Warn().Str("url", url).Int("failures", d.cbFailures[url]).Msg("circuit breaker opened for webhook URL")
	}
}

func (d *webhookDispatcher) recordSuccess(url string) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.cbFailures[url] = 0
	delete(d.cbOpenedAt, url)
}
