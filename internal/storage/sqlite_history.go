package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/metrics"
	"github.com/good-yellow-bee/feedwatch/internal/models"
)

type sqliteTriggerRepo struct {
	db *sql.DB
}

const triggerColumns = `id, alert_id, triggered_at, item_title, item_description, item_link,
		item_source, item_pub_date, matched_json, priority, acknowledged, acknowledged_at`

func (r *sqliteTriggerRepo) Append(ctx context.Context, triggers []*models.AlertTrigger) error {
	if len(triggers) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO triggers (` + triggerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, t := range triggers {
		matchedJSON, err := json.Marshal(t.MatchedKeywords)
		if err != nil {
			return fmt.Errorf("marshal matched keywords: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			t.ID, t.AlertID, t.TriggeredAt,
			t.Item.Title, t.Item.Description, t.Item.Link, t.Item.Source, t.Item.PubDate,
			string(matchedJSON), string(t.Priority),
			boolToInt(t.Acknowledged), nullTime(t.AcknowledgedAt),
		)
		if err != nil {
			return fmt.Errorf("insert trigger: %w", err)
		}
	}

	// Rotate: keep only the most recent HistoryLimit rows. Insertion
	// order (rowid) breaks ties between equal timestamps.
	result, err := tx.ExecContext(ctx, `
		DELETE FROM triggers WHERE rowid NOT IN (
			SELECT rowid FROM triggers ORDER BY triggered_at DESC, rowid DESC LIMIT ?
		)
	`, HistoryLimit)
	if err != nil {
		return fmt.Errorf("rotate trigger history: %w", err)
	}
	if evicted, _ := result.RowsAffected(); evicted > 0 {
		metrics.HistoryEvictions.Add(float64(evicted))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (r *sqliteTriggerRepo) List(ctx context.Context, limit int) ([]*models.AlertTrigger, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers ORDER BY triggered_at DESC, rowid DESC LIMIT ?
	`
	return r.queryTriggers(ctx, query, limit)
}

func (r *sqliteTriggerRepo) ListByAlert(ctx context.Context, alertID string, limit int) ([]*models.AlertTrigger, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers WHERE alert_id = ? ORDER BY triggered_at DESC, rowid DESC LIMIT ?
	`
	return r.queryTriggers(ctx, query, alertID, limit)
}

func (r *sqliteTriggerRepo) Acknowledge(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE triggers SET acknowledged = 1, acknowledged_at = ? WHERE id = ?",
		at, id,
	)
	if err != nil {
		return false, fmt.Errorf("acknowledge trigger: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (r *sqliteTriggerRepo) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM triggers")
	if err != nil {
		return 0, fmt.Errorf("clear trigger history: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteTriggerRepo) ClearByAlert(ctx context.Context, alertID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM triggers WHERE alert_id = ?", alertID)
	if err != nil {
		return 0, fmt.Errorf("clear trigger history by alert: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteTriggerRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM triggers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count triggers: %w", err)
	}
	return count, nil
}

func (r *sqliteTriggerRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM triggers WHERE triggered_at >= ?", since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count triggers since: %w", err)
	}
	return count, nil
}

func (r *sqliteTriggerRepo) queryTriggers(ctx context.Context, query string, args ...interface{}) ([]*models.AlertTrigger, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*models.AlertTrigger
	for rows.Next() {
		t := &models.AlertTrigger{}
		var description sql.NullString
		var matchedJSON string
		var acknowledged int
		var ackedAt sql.NullTime

		err := rows.Scan(
			&t.ID, &t.AlertID, &t.TriggeredAt,
			&t.Item.Title, &description, &t.Item.Link, &t.Item.Source, &t.Item.PubDate,
			&matchedJSON, &t.Priority, &acknowledged, &ackedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}

		t.Item.Description = description.String
		t.Acknowledged = acknowledged != 0
		if ackedAt.Valid {
			at := ackedAt.Time
			t.AcknowledgedAt = &at
		}
		if err := json.Unmarshal([]byte(matchedJSON), &t.MatchedKeywords); err != nil {
			return nil, fmt.Errorf("unmarshal matched keywords: %w", err)
		}

		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}
