package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/metrics"
	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// MemoryStorage implements Storage entirely in memory. It backs tests
// and the one-shot CLI mode where nothing should touch disk.
type MemoryStorage struct {
	alerts   *memoryAlertRepo
	triggers *memoryTriggerRepo
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		alerts:   &memoryAlertRepo{alerts: make(map[string]*models.AlertConfig)},
		triggers: &memoryTriggerRepo{},
	}
}

func (s *MemoryStorage) Open() error    { return nil }
func (s *MemoryStorage) Close() error   { return nil }
func (s *MemoryStorage) Migrate() error { return nil }

func (s *MemoryStorage) Alerts() AlertRepository    { return s.alerts }
func (s *MemoryStorage) Triggers() TriggerRepository { return s.triggers }

type memoryAlertRepo struct {
	mu     sync.RWMutex
	alerts map[string]*models.AlertConfig
}

func (r *memoryAlertRepo) Create(_ context.Context, alert *models.AlertConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; ok {
		return fmt.Errorf("alert already exists: %s", alert.ID)
	}
	r.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (r *memoryAlertRepo) GetByID(_ context.Context, id string) (*models.AlertConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	return cloneAlert(alert), nil
}

func (r *memoryAlertRepo) Update(_ context.Context, alert *models.AlertConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; !ok {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	r.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (r *memoryAlertRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[id]; !ok {
		return fmt.Errorf("alert not found: %s", id)
	}
	delete(r.alerts, id)
	return nil
}

func (r *memoryAlertRepo) List(_ context.Context) ([]*models.AlertConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.AlertConfig, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryAlertRepo) ListActive(ctx context.Context) ([]*models.AlertConfig, error) {
	all, _ := r.List(ctx)
	out := all[:0]
	for _, a := range all {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

type memoryTriggerRepo struct {
	mu       sync.RWMutex
	triggers []*models.AlertTrigger // oldest first
}

func (r *memoryTriggerRepo) Append(_ context.Context, triggers []*models.AlertTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range triggers {
		r.triggers = append(r.triggers, cloneTrigger(t))
	}
	if excess := len(r.triggers) - HistoryLimit; excess > 0 {
		r.triggers = append([]*models.AlertTrigger(nil), r.triggers[excess:]...)
		metrics.HistoryEvictions.Add(float64(excess))
	}
	return nil
}

func (r *memoryTriggerRepo) List(_ context.Context, limit int) ([]*models.AlertTrigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(limit, func(*models.AlertTrigger) bool { return true }), nil
}

func (r *memoryTriggerRepo) ListByAlert(_ context.Context, alertID string, limit int) ([]*models.AlertTrigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(limit, func(t *models.AlertTrigger) bool { return t.AlertID == alertID }), nil
}

// collect returns matching triggers newest first. Must be called with
// the lock held.
func (r *memoryTriggerRepo) collect(limit int, match func(*models.AlertTrigger) bool) []*models.AlertTrigger {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	var out []*models.AlertTrigger
	for i := len(r.triggers) - 1; i >= 0 && len(out) < limit; i-- {
		if match(r.triggers[i]) {
			out = append(out, cloneTrigger(r.triggers[i]))
		}
	}
	return out
}

func (r *memoryTriggerRepo) Acknowledge(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.triggers {
		if t.ID == id {
			t.Acknowledged = true
			ts := at
			t.AcknowledgedAt = &ts
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryTriggerRepo) Clear(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.triggers))
	r.triggers = nil
	return n, nil
}

func (r *memoryTriggerRepo) ClearByAlert(_ context.Context, alertID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.AlertTrigger
	var removed int64
	for _, t := range r.triggers {
		if t.AlertID == alertID {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	r.triggers = kept
	return removed, nil
}

func (r *memoryTriggerRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.triggers)), nil
}

func (r *memoryTriggerRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.triggers {
		if !t.TriggeredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func cloneAlert(a *models.AlertConfig) *models.AlertConfig {
	c := *a
	c.Keywords = append([]string(nil), a.Keywords...)
	c.Sources = append([]string(nil), a.Sources...)
	c.Schedule.ActiveDays = append([]time.Weekday(nil), a.Schedule.ActiveDays...)
	if a.Schedule.ActiveHours != nil {
		h := *a.Schedule.ActiveHours
		c.Schedule.ActiveHours = &h
	}
	if a.Schedule.SnoozeUntil != nil {
		t := *a.Schedule.SnoozeUntil
		c.Schedule.SnoozeUntil = &t
	}
	if a.LastTriggered != nil {
		t := *a.LastTriggered
		c.LastTriggered = &t
	}
	return &c
}

func cloneTrigger(t *models.AlertTrigger) *models.AlertTrigger {
	c := *t
	c.MatchedKeywords = append([]string(nil), t.MatchedKeywords...)
	if t.AcknowledgedAt != nil {
		at := *t.AcknowledgedAt
		c.AcknowledgedAt = &at
	}
	return &c
}
