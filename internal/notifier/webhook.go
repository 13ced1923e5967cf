package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// WebhookConfig holds webhook channel configuration.
type WebhookConfig struct {
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
	// PerDestination limits POSTs per destination URL, protecting
	// endpoints shared by many alerts. Zero disables the limit.
	PerDestination rate.Limit
	// Burst is the per-destination burst size (default 1).
	Burst int
	// AllowInsecure permits plain http:// destinations, for local
	// development only.
	AllowInsecure bool
}

// WebhookChannel POSTs a JSON payload to each alert's configured URL.
type WebhookChannel struct {
	config     WebhookConfig
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewWebhookChannel creates a new webhook channel.
func NewWebhookChannel(config WebhookConfig) *WebhookChannel {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	return &WebhookChannel{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Name returns "webhook".
func (w *WebhookChannel) Name() string {
	return "webhook"
}

// webhookPayload is the JSON body POSTed to the destination.
type webhookPayload struct {
	AlertID         string           `json:"alert_id,omitempty"`
	AlertName       string           `json:"alert_name"`
	Priority        models.Priority  `json:"priority"`
	Title           string           `json:"title"`
	Body            string           `json:"body"`
	MatchedKeywords []string         `json:"matched_keywords,omitempty"`
	TriggeredAt     *time.Time       `json:"triggered_at,omitempty"`
	Item            *models.FeedItem `json:"item,omitempty"`
	SummaryCount    int              `json:"summary_count,omitempty"`
}

// Send delivers the notification to the alert's webhook URL. Summary
// notifications carry no URL of their own and are skipped here.
func (w *WebhookChannel) Send(ctx context.Context, n *Notification) error {
	if n.Alert == nil || n.Alert.Notifications.Webhook == "" {
		return nil
	}
	url := n.Alert.Notifications.Webhook
	if err := w.checkURL(url); err != nil {
		return err
	}

	if lim := w.limiterFor(url); lim != nil && !lim.Allow() {
		return fmt.Errorf("destination rate limit exceeded: %s", url)
	}

	payload := webhookPayload{
		AlertID:   n.Alert.ID,
		AlertName: n.Alert.Name,
		Priority:  n.Priority,
		Title:     n.Title,
		Body:      n.Body,
	}
	if n.Trigger != nil {
		ts := n.Trigger.TriggeredAt
		payload.TriggeredAt = &ts
		payload.MatchedKeywords = n.Trigger.MatchedKeywords
		payload.Item = &n.Trigger.Item
	}
	if n.Summary > 0 {
		payload.SummaryCount = n.Summary
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for the webhook channel.
func (w *WebhookChannel) Close() error {
	return nil
}

func (w *WebhookChannel) checkURL(url string) error {
	if strings.HasPrefix(url, "https://") {
		return nil
	}
	if w.config.AllowInsecure && strings.HasPrefix(url, "http://") {
		return nil
	}
	return fmt.Errorf("webhook URL must use HTTPS: %s", url)
}

func (w *WebhookChannel) limiterFor(url string) *rate.Limiter {
	if w.config.PerDestination <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	lim, ok := w.limiters[url]
	if !ok {
		lim = rate.NewLimiter(w.config.PerDestination, w.config.Burst)
		w.limiters[url] = lim
	}
	return lim
}
