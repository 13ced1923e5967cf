// Package alerting provides the keyword alert matching engine for
// feedwatch. It evaluates batches of feed items against persisted
// alert rules, subject to per-alert scheduling, and records triggers
// in a bounded history.
package alerting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/feedwatch/internal/metrics"
	"github.com/good-yellow-bee/feedwatch/internal/models"
	"github.com/good-yellow-bee/feedwatch/internal/storage"
)

// Notifier dispatches newly created triggers to notification channels.
// Implementations must not block the caller longer than a channel
// send; the engine invokes Dispatch from a detached goroutine.
type Notifier interface {
	Dispatch(ctx context.Context, triggers []*models.AlertTrigger, alerts map[string]*models.AlertConfig)
}

// Engine is the matching coordinator. One engine instance exists per
// process. Check passes and CRUD operations share one mutex, so
// callers may invoke them concurrently.
type Engine struct {
	mu sync.Mutex

	store    storage.Storage
	matcher  *Matcher
	notifier Notifier
	bus      *Bus

	// monitoring gates CheckFeedItems; flipped by Start/StopMonitoring.
	monitoring atomic.Bool

	stats *EngineStats

	// dispatchWG tracks in-flight fire-and-forget notification work.
	dispatchWG sync.WaitGroup
}

// EngineStats tracks engine statistics using atomic operations for lock-free access.
type EngineStats struct {
	CheckPasses     atomic.Int64
	ItemsEvaluated  atomic.Int64
	TriggersCreated atomic.Int64
	StoreErrors     atomic.Int64
}

// NewEngine creates an engine over the given storage. notifier may be
// nil, in which case triggers are recorded but nothing is dispatched.
// Monitoring starts disabled; call StartMonitoring.
func NewEngine(store storage.Storage, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		matcher:  NewMatcher(),
		notifier: notifier,
		bus:      NewBus(),
		stats:    &EngineStats{},
	}
}

// StartMonitoring enables feed item checking.
func (e *Engine) StartMonitoring() {
	e.monitoring.Store(true)
}

// StopMonitoring disables feed item checking. Notification dispatch
// already in flight is not canceled (best-effort only).
func (e *Engine) StopMonitoring() {
	e.monitoring.Store(false)
}

// Monitoring reports whether feed item checking is enabled.
func (e *Engine) Monitoring() bool {
	return e.monitoring.Load()
}

// Subscribe registers a callback invoked with each new trigger batch.
// Returns the unsubscribe function.
func (e *Engine) Subscribe(fn TriggerFunc) func() {
	return e.bus.Subscribe(fn)
}

// CheckFeedItems runs one monitoring pass over a batch of feed items.
// It returns the triggers created during the pass. When monitoring is
// off it returns nil and mutates nothing.
//
// Side effects are applied after the whole batch is evaluated: history
// append (with rotation), per-alert trigger bookkeeping, notification
// dispatch (fire-and-forget), and subscriber publication. A failure in
// any one side-effect target is logged and does not block the others.
// The same item presented again in a later pass triggers again; the
// engine performs no cross-call deduplication.
func (e *Engine) CheckFeedItems(ctx context.Context, items []*models.FeedItem) []*models.AlertTrigger {
	if !e.monitoring.Load() {
		return nil
	}

	e.stats.CheckPasses.Add(1)
	metrics.CheckPassesTotal.Inc()

	now := time.Now()

	// The read-evaluate-persist phase holds the engine mutex: an
	// overlapping pass or CRUD call would otherwise race the
	// TriggerCount read-modify-write and the full-row write-back.
	// Dispatch and publication run after the lock is released.
	e.mu.Lock()

	alerts, err := e.store.Alerts().ListActive(ctx)
	if err != nil {
		e.mu.Unlock()
		// Degrade to an empty pass rather than failing the caller.
		e.stats.StoreErrors.Add(1)
		log.Printf("check pass: list alerts: %v", err)
		return nil
	}

	var triggers []*models.AlertTrigger
	matchedAlerts := make(map[string]*models.AlertConfig)
	newCounts := make(map[string]int)

	for _, alert := range alerts {
		if !Eligible(alert.Schedule, now) {
			continue
		}
		for _, item := range items {
			e.stats.ItemsEvaluated.Add(1)
			metrics.ItemsEvaluated.Inc()

			matched := e.matcher.MatchItem(alert, item)
			if len(matched) == 0 {
				continue
			}

			triggers = append(triggers, &models.AlertTrigger{
				ID:              uuid.New().String(),
				AlertID:         alert.ID,
				TriggeredAt:     now,
				Item:            *item,
				MatchedKeywords: matched,
				Priority:        alert.Priority,
			})
			matchedAlerts[alert.ID] = alert
			newCounts[alert.ID]++
			metrics.TriggersTotal.WithLabelValues(string(alert.Priority)).Inc()
		}
	}

	if len(triggers) == 0 {
		e.mu.Unlock()
		return nil
	}
	e.stats.TriggersCreated.Add(int64(len(triggers)))

	// History first, then alert bookkeeping; each isolated.
	if err := e.store.Triggers().Append(ctx, triggers); err != nil {
		e.stats.StoreErrors.Add(1)
		log.Printf("check pass: append history: %v", err)
	}

	for id, alert := range matchedAlerts {
		alert.TriggerCount += newCounts[id]
		if alert.LastTriggered == nil || now.After(*alert.LastTriggered) {
			ts := now
			alert.LastTriggered = &ts
		}
		if err := e.store.Alerts().Update(ctx, alert); err != nil {
			e.stats.StoreErrors.Add(1)
			log.Printf("check pass: update alert %s: %v", id, err)
		}
	}
	e.mu.Unlock()

	// Fire-and-forget dispatch: a slow channel must not stall the
	// next feed pass. Background context so returning from this call
	// does not cancel deliveries already underway.
	if e.notifier != nil {
		batch := triggers
		byID := matchedAlerts
		e.dispatchWG.Add(1)
		go func() {
			defer e.dispatchWG.Done()
			e.notifier.Dispatch(context.Background(), batch, byID)
		}()
	}

	e.bus.Publish(triggers)

	return triggers
}

// CreateAlert validates and persists a new alert configuration,
// assigning its identity and bookkeeping fields. Returns the stored
// configuration.
func (e *Engine) CreateAlert(ctx context.Context, cfg *models.AlertConfig) (*models.AlertConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	cfg.CreatedAt = time.Now()
	cfg.TriggerCount = 0
	cfg.LastTriggered = nil

	if err := e.store.Alerts().Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	log.Printf("alert created: %s (%s)", cfg.Name, cfg.ID)
	return cfg, nil
}

// AlertUpdate is a partial update; nil fields are left unchanged.
type AlertUpdate struct {
	Name          *string
	Description   *string
	Keywords      []string
	Sources       []string
	Priority      *models.Priority
	Notifications *models.NotificationPrefs
	Schedule      *models.Schedule
	Active        *bool
}

// UpdateAlert applies a partial update. Returns (nil, nil) when the
// alert does not exist. Identity and bookkeeping fields (id,
// createdAt, triggerCount, lastTriggered) are never touched.
func (e *Engine) UpdateAlert(ctx context.Context, id string, upd AlertUpdate) (*models.AlertConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}
	if alert == nil {
		return nil, nil
	}

	if upd.Name != nil {
		alert.Name = *upd.Name
	}
	if upd.Description != nil {
		alert.Description = *upd.Description
	}
	if upd.Keywords != nil {
		alert.Keywords = upd.Keywords
	}
	if upd.Sources != nil {
		alert.Sources = upd.Sources
	}
	if upd.Priority != nil {
		alert.Priority = *upd.Priority
	}
	if upd.Notifications != nil {
		alert.Notifications = *upd.Notifications
	}
	if upd.Schedule != nil {
		alert.Schedule = *upd.Schedule
	}
	if upd.Active != nil {
		alert.Active = *upd.Active
	}

	if err := alert.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.Alerts().Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}
	log.Printf("alert updated: %s (%s)", alert.Name, alert.ID)
	return alert, nil
}

// DeleteAlert removes an alert. History is purged only when requested,
// not automatically. Returns false when the alert does not exist.
func (e *Engine) DeleteAlert(ctx context.Context, id string, purgeHistory bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete alert: %w", err)
	}
	if alert == nil {
		return false, nil
	}

	if err := e.store.Alerts().Delete(ctx, id); err != nil {
		return false, fmt.Errorf("delete alert: %w", err)
	}
	if purgeHistory {
		if _, err := e.store.Triggers().ClearByAlert(ctx, id); err != nil {
			log.Printf("delete alert %s: purge history: %v", id, err)
		}
	}
	log.Printf("alert deleted: %s (%s)", alert.Name, id)
	return true, nil
}

// ToggleAlert flips the master active flag. Returns (nil, nil) when
// the alert does not exist.
func (e *Engine) ToggleAlert(ctx context.Context, id string) (*models.AlertConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("toggle alert: %w", err)
	}
	if alert == nil {
		return nil, nil
	}

	alert.Active = !alert.Active
	if err := e.store.Alerts().Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("toggle alert: %w", err)
	}
	return alert, nil
}

// SnoozeAlert suppresses an alert for the given duration. A zero or
// negative duration clears an existing snooze. Returns (nil, nil)
// when the alert does not exist.
func (e *Engine) SnoozeAlert(ctx context.Context, id string, d time.Duration) (*models.AlertConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("snooze alert: %w", err)
	}
	if alert == nil {
		return nil, nil
	}

	if d <= 0 {
		alert.Schedule.SnoozeUntil = nil
	} else {
		until := time.Now().Add(d)
		alert.Schedule.SnoozeUntil = &until
	}
	if err := e.store.Alerts().Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("snooze alert: %w", err)
	}
	return alert, nil
}

// Alerts returns all alert configurations.
func (e *Engine) Alerts(ctx context.Context) ([]*models.AlertConfig, error) {
	return e.store.Alerts().List(ctx)
}

// Alert returns one alert configuration, or nil when absent.
func (e *Engine) Alert(ctx context.Context, id string) (*models.AlertConfig, error) {
	return e.store.Alerts().GetByID(ctx, id)
}

// History returns trigger records, newest first, optionally filtered
// by alert and capped at limit.
func (e *Engine) History(ctx context.Context, alertID string, limit int) ([]*models.AlertTrigger, error) {
	if alertID != "" {
		return e.store.Triggers().ListByAlert(ctx, alertID, limit)
	}
	return e.store.Triggers().List(ctx, limit)
}

// ClearHistory removes trigger records, all of them or one alert's.
// Returns the number removed.
func (e *Engine) ClearHistory(ctx context.Context, alertID string) (int64, error) {
	if alertID != "" {
		return e.store.Triggers().ClearByAlert(ctx, alertID)
	}
	return e.store.Triggers().Clear(ctx)
}

// AcknowledgeTrigger marks one trigger acknowledged. Returns false
// when the trigger does not exist.
func (e *Engine) AcknowledgeTrigger(ctx context.Context, id string) (bool, error) {
	return e.store.Triggers().Acknowledge(ctx, id, time.Now())
}

// AlertStats returns a summary of alerts and trigger history.
func (e *Engine) AlertStats(ctx context.Context) (*models.AlertStats, error) {
	alerts, err := e.store.Alerts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}

	stats := &models.AlertStats{TotalAlerts: len(alerts)}
	for _, a := range alerts {
		if a.Active {
			stats.ActiveAlerts++
		}
	}

	total, err := e.store.Triggers().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}
	stats.TotalTriggers = total

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := e.store.Triggers().CountSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}
	stats.TriggersToday = today

	return stats, nil
}

// EngineStatsSnapshot is a snapshot of engine statistics for reporting.
type EngineStatsSnapshot struct {
	CheckPasses     int64
	ItemsEvaluated  int64
	TriggersCreated int64
	StoreErrors     int64
}

// Stats returns a snapshot of engine statistics.
func (e *Engine) Stats() EngineStatsSnapshot {
	return EngineStatsSnapshot{
		CheckPasses:     e.stats.CheckPasses.Load(),
		ItemsEvaluated:  e.stats.ItemsEvaluated.Load(),
		TriggersCreated: e.stats.TriggersCreated.Load(),
		StoreErrors:     e.stats.StoreErrors.Load(),
	}
}

// Close stops monitoring and waits for in-flight notification
// dispatch to finish.
func (e *Engine) Close() {
	e.monitoring.Store(false)
	e.dispatchWG.Wait()
}
