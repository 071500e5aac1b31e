// Package webhooks delivers signed ledger alerts to operator-configured
// HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Notifier fans events out to a fixed set of endpoints.
type Notifier struct {
	urls       []string
	secret     []byte
	httpClient *http.Client
	backoff    []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewNotifier creates a Notifier. An empty secret sends unsigned requests.
func NewNotifier(urls []string, secret string, logger *zap.Logger) *Notifier {
	return &Notifier{
		urls:       urls,
		secret:     []byte(secret),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Retry with exponential backoff: 1s, 5s.
		backoff: []time.Duration{0, 1 * time.Second, 5 * time.Second},
		logger:  logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (n *Notifier) SetMetricsRecorder(fn MetricsRecorder) {
	n.onMetrics = fn
}

// Dispatch sends eventType to every endpoint in the background. Deliveries
// outlive ctx's cancellation but keep its values.
func (n *Notifier) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, url := range n.urls {
		n.wg.Add(1)
		go func(url string) {
			defer n.wg.Done()
			n.deliver(ctx, url, event, body)
		}(url)
	}
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// deliver sends body to a single endpoint with retries.
func (n *Notifier) deliver(ctx context.Context, url string, event Event, body []byte) {
	signature := ""
	if len(n.secret) > 0 {
		signature = signPayload(body, n.secret)
	}

	for attempt, delay := range n.backoff {
		if delay > 0 {
			time.Sleep(delay)
		}

		success, errMsg := n.doDelivery(ctx, url, body, signature)
		if n.onMetrics != nil {
			n.onMetrics(success)
		}
		if success {
			return
		}

		n.logger.Warn("webhook: delivery failed",
			zap.String("url", url),
			zap.String("event", event.Type),
			zap.Int("attempt", attempt+1),
			zap.String("error", errMsg),
		)
	}
	n.logger.Error("webhook: giving up", zap.String("url", url), zap.String("event_id", event.ID))
}

// doDelivery performs a single HTTP POST delivery.
func (n *Notifier) doDelivery(ctx context.Context, url string, body []byte, signature string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether sig is the signature of body under secret.
func VerifySignature(body []byte, secret, sig string) bool {
	return hmac.Equal([]byte(signPayload(body, []byte(secret))), []byte(sig))
}
