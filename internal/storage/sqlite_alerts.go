package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, name, description, keywords_json, sources_json, priority,
		notify_json, schedule_json, active, created_at, last_triggered, trigger_count`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.AlertConfig) error {
	kw, sources, notify, sched, err := marshalAlertFields(alert)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.Name, alert.Description, kw, sources, string(alert.Priority),
		notify, sched, boolToInt(alert.Active), alert.CreatedAt,
		nullTime(alert.LastTriggered), alert.TriggerCount,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.AlertConfig, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return alert, err
}

func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.AlertConfig) error {
	kw, sources, notify, sched, err := marshalAlertFields(alert)
	if err != nil {
		return err
	}

	query := `
		UPDATE alerts SET name = ?, description = ?, keywords_json = ?, sources_json = ?,
			priority = ?, notify_json = ?, schedule_json = ?, active = ?,
			last_triggered = ?, trigger_count = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.Name, alert.Description, kw, sources, string(alert.Priority),
		notify, sched, boolToInt(alert.Active),
		nullTime(alert.LastTriggered), alert.TriggerCount,
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	return nil
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) List(ctx context.Context) ([]*models.AlertConfig, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY name`
	return r.queryAlerts(ctx, query)
}

func (r *sqliteAlertRepo) ListActive(ctx context.Context) ([]*models.AlertConfig, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE active = 1 ORDER BY name`
	return r.queryAlerts(ctx, query)
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.AlertConfig, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.AlertConfig
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (*models.AlertConfig, error) {
	alert := &models.AlertConfig{}
	var description sql.NullString
	var kwJSON, sourcesJSON, notifyJSON, schedJSON string
	var active int
	var lastTriggered sql.NullTime

	err := row.Scan(
		&alert.ID, &alert.Name, &description, &kwJSON, &sourcesJSON, &alert.Priority,
		&notifyJSON, &schedJSON, &active, &alert.CreatedAt, &lastTriggered, &alert.TriggerCount,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.Description = description.String
	alert.Active = active != 0
	if lastTriggered.Valid {
		t := lastTriggered.Time
		alert.LastTriggered = &t
	}

	if err := json.Unmarshal([]byte(kwJSON), &alert.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &alert.Sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	if err := json.Unmarshal([]byte(notifyJSON), &alert.Notifications); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	if err := json.Unmarshal([]byte(schedJSON), &alert.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}

	return alert, nil
}

func marshalAlertFields(alert *models.AlertConfig) (kw, sources, notify, sched string, err error) {
	kwJSON, err := json.Marshal(alert.Keywords)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal keywords: %w", err)
	}
	if alert.Sources == nil {
		alert.Sources = []string{}
	}
	sourcesJSON, err := json.Marshal(alert.Sources)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal sources: %w", err)
	}
	notifyJSON, err := json.Marshal(alert.Notifications)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal notifications: %w", err)
	}
	schedJSON, err := json.Marshal(alert.Schedule)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal schedule: %w", err)
	}
	return string(kwJSON), string(sourcesJSON), string(notifyJSON), string(schedJSON), nil
}

// Helper functions

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
