// Package storage provides persistence interfaces and implementations
// for alert configurations and trigger history.
package storage

import (
	"context"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// HistoryLimit is the maximum number of trigger records retained.
// Appends beyond the limit evict the oldest records first.
const HistoryLimit = 1000

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the backing store.
	Open() error
	// Close releases the backing store.
	Close() error
	// Migrate runs schema migrations.
	Migrate() error

	// Repository accessors
	Alerts() AlertRepository
	Triggers() TriggerRepository
}

// AlertRepository defines operations for alert configurations.
// Lookups return (nil, nil) when no row matches.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.AlertConfig) error
	GetByID(ctx context.Context, id string) (*models.AlertConfig, error)
	Update(ctx context.Context, alert *models.AlertConfig) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.AlertConfig, error)
	ListActive(ctx context.Context) ([]*models.AlertConfig, error)
}

// TriggerRepository defines operations for the bounded trigger history.
type TriggerRepository interface {
	// Append stores new triggers and trims the history to the most
	// recent HistoryLimit records, oldest evicted first.
	Append(ctx context.Context, triggers []*models.AlertTrigger) error
	// List returns up to limit triggers, newest first. limit <= 0
	// means no limit beyond the retention cap.
	List(ctx context.Context, limit int) ([]*models.AlertTrigger, error)
	ListByAlert(ctx context.Context, alertID string, limit int) ([]*models.AlertTrigger, error)
	// Acknowledge marks a trigger acknowledged. Returns false when the
	// trigger does not exist.
	Acknowledge(ctx context.Context, id string, at time.Time) (bool, error)
	Clear(ctx context.Context) (int64, error)
	ClearByAlert(ctx context.Context, alertID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
