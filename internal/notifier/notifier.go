// Package notifier provides notification dispatching for alert
// triggers across browser, sound, email and webhook channels.
package notifier

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/metrics"
	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// MaxIndividualPerBatch caps the individual notifications emitted for
// one check pass; further triggers are folded into a single summary.
const MaxIndividualPerBatch = 3

// Notification is one deliverable message. Either Trigger is set (an
// individual notification) or Summary > 0 (a roll-up of that many
// additional triggers).
type Notification struct {
	Trigger *models.AlertTrigger
	Alert   *models.AlertConfig
	Summary int

	Title    string
	Body     string
	Priority models.Priority
	// AutoDismiss is how long the notification should stay visible on
	// channels that support dismissal; zero means persistent.
	AutoDismiss time.Duration
}

// Channel is the interface for all notification channels.
type Channel interface {
	// Name returns the channel name (e.g. "email", "webhook").
	Name() string
	// Send delivers one notification.
	Send(ctx context.Context, n *Notification) error
	// Close releases any resources.
	Close() error
}

// Dispatcher routes trigger batches to the channels each alert has
// enabled, under a global rate limit.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel

	rateLimiter *RateLimiter
}

// NewDispatcher creates a dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate
// limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		channels:    make(map[string]Channel),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a channel to the dispatcher.
func (d *Dispatcher) Register(c Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[c.Name()] = c
}

// Unregister removes a channel from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, name)
}

// Get returns a channel by name.
func (d *Dispatcher) Get(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.channels[name]
	return c, ok
}

// Dispatch delivers one check pass's triggers: at most
// MaxIndividualPerBatch individual notifications plus one summary for
// the remainder. Each trigger goes only to the channels its alert has
// enabled; the summary goes to the union of the remaining alerts'
// channels. Channel failures are logged and isolated; delivery is
// best-effort with no retry.
func (d *Dispatcher) Dispatch(ctx context.Context, triggers []*models.AlertTrigger, alerts map[string]*models.AlertConfig) {
	if len(triggers) == 0 {
		return
	}

	individual := triggers
	if len(individual) > MaxIndividualPerBatch {
		individual = individual[:MaxIndividualPerBatch]
	}

	for _, trig := range individual {
		alert := alerts[trig.AlertID]
		if alert == nil {
			continue
		}
		d.deliver(ctx, buildNotification(trig, alert), channelsFor(alert))
	}

	rest := triggers[len(individual):]
	if len(rest) > 0 {
		d.deliver(ctx, buildSummary(rest, alerts), summaryChannels(rest, alerts))
	}
}

// deliver sends one notification to the named channels, consuming one
// rate limit token. The token is refunded when every channel fails.
func (d *Dispatcher) deliver(ctx context.Context, n *Notification, names []string) {
	if len(names) == 0 {
		return
	}

	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		metrics.NotificationsDropped.Inc()
		log.Printf("notification dropped by rate limit: %s", n.Title)
		return
	}

	// Snapshot the channels so the lock is not held across Send, which
	// may block on network I/O.
	d.mu.RLock()
	targets := make([]Channel, 0, len(names))
	for _, name := range names {
		if c, ok := d.channels[name]; ok {
			targets = append(targets, c)
		}
	}
	d.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.Send(ctx, n); err != nil {
			metrics.DispatchErrors.WithLabelValues(c.Name()).Inc()
			log.Printf("notification via %s: %v", c.Name(), err)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(c.Name()).Inc()
		sent++
	}

	if sent == 0 && d.rateLimiter != nil {
		d.rateLimiter.Release()
	}
}

// channelsFor returns the channel names an alert has enabled.
func channelsFor(alert *models.AlertConfig) []string {
	var names []string
	if alert.Notifications.Browser {
		names = append(names, "browser")
	}
	if alert.Notifications.Sound {
		names = append(names, "sound")
	}
	if alert.Notifications.Email != "" {
		names = append(names, "email")
	}
	if alert.Notifications.Webhook != "" {
		names = append(names, "webhook")
	}
	return names
}

// summaryChannels returns the union of the channels enabled across the
// summarized triggers' alerts, sorted for stable delivery order.
func summaryChannels(triggers []*models.AlertTrigger, alerts map[string]*models.AlertConfig) []string {
	set := make(map[string]bool)
	for _, trig := range triggers {
		alert := alerts[trig.AlertID]
		if alert == nil {
			continue
		}
		for _, name := range channelsFor(alert) {
			set[name] = true
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// autoDismissAfter is how long non-critical notifications stay
// visible. Critical ones persist until dismissed.
const autoDismissAfter = 5 * time.Second

func buildNotification(trig *models.AlertTrigger, alert *models.AlertConfig) *Notification {
	body := alert.Notifications.CustomMessage
	if body == "" {
		body = fmt.Sprintf("%s\nMatched: %s", trig.Item.Title, strings.Join(trig.MatchedKeywords, ", "))
	}

	n := &Notification{
		Trigger:     trig,
		Alert:       alert,
		Title:       fmt.Sprintf("[%s] %s", strings.ToUpper(string(trig.Priority)), alert.Name),
		Body:        body,
		Priority:    trig.Priority,
		AutoDismiss: autoDismissAfter,
	}
	if trig.Priority == models.PriorityCritical {
		n.AutoDismiss = 0
	}
	return n
}

func buildSummary(rest []*models.AlertTrigger, alerts map[string]*models.AlertConfig) *Notification {
	// Summary inherits the highest priority among the folded triggers.
	priority := models.PriorityLow
	names := make(map[string]bool)
	for _, trig := range rest {
		if priorityRank(trig.Priority) > priorityRank(priority) {
			priority = trig.Priority
		}
		if alert := alerts[trig.AlertID]; alert != nil {
			names[alert.Name] = true
		}
	}

	alertNames := make([]string, 0, len(names))
	for name := range names {
		alertNames = append(alertNames, name)
	}
	sort.Strings(alertNames)

	n := &Notification{
		Summary:     len(rest),
		Title:       fmt.Sprintf("%d additional alerts", len(rest)),
		Body:        fmt.Sprintf("Alerts: %s", strings.Join(alertNames, ", ")),
		Priority:    priority,
		AutoDismiss: autoDismissAfter,
	}
	if priority == models.PriorityCritical {
		n.AutoDismiss = 0
	}
	return n
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityCritical:
		return 3
	case models.PriorityHigh:
		return 2
	case models.PriorityMedium:
		return 1
	default:
		return 0
	}
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered channels.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, c := range d.channels {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.channels = make(map[string]Channel)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
