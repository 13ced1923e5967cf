package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

func testAlert(id, name string) *models.AlertConfig {
	return &models.AlertConfig{
		ID:       id,
		Name:     name,
		Keywords: []string{"golang"},
		Priority: models.PriorityMedium,
		Active:   true,
	}
}

func testTrigger(id, alertID string, at time.Time) *models.AlertTrigger {
	return &models.AlertTrigger{
		ID:              id,
		AlertID:         alertID,
		MatchedKeywords: []string{"golang"},
		Priority:        models.PriorityMedium,
		TriggeredAt:     at,
	}
}

func TestMemoryAlertRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStorage().Alerts()

	if err := repo.Create(ctx, testAlert("a1", "bravo")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testAlert("a1", "duplicate")); err == nil {
		t.Error("Create() with duplicate ID did not fail")
	}
	if err := repo.Create(ctx, testAlert("a2", "alpha")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil || got.Name != "bravo" {
		t.Errorf("GetByID() = %+v, want name bravo", got)
	}

	// Missing rows are (nil, nil), not an error.
	got, err = repo.GetByID(ctx, "missing")
	if err != nil {
		t.Fatalf("GetByID(missing) error = %v", err)
	}
	if got != nil {
		t.Errorf("GetByID(missing) = %+v, want nil", got)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "bravo" {
		t.Errorf("List() not sorted by name: %v, %v", list[0].Name, list[1].Name)
	}

	inactive := testAlert("a1", "bravo")
	inactive.Active = false
	if err := repo.Update(ctx, inactive); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != "a2" {
		t.Errorf("ListActive() = %d alerts, want only a2", len(active))
	}

	if err := repo.Delete(ctx, "a2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "a2"); err == nil {
		t.Error("Delete() of missing alert did not fail")
	}
}

func TestMemoryAlertRepoIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStorage().Alerts()

	alert := testAlert("a1", "isolated")
	if err := repo.Create(ctx, alert); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	alert.Keywords[0] = "changed"
	got, _ := repo.GetByID(ctx, "a1")
	if got.Keywords[0] != "golang" {
		t.Errorf("stored keywords = %v, caller mutation leaked in", got.Keywords)
	}

	got.Name = "changed"
	again, _ := repo.GetByID(ctx, "a1")
	if again.Name != "isolated" {
		t.Errorf("stored name = %q, returned copy mutation leaked in", again.Name)
	}
}

func TestMemoryTriggerHistoryBound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStorage().Triggers()

	base := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	var batch []*models.AlertTrigger
	for i := 0; i < HistoryLimit+10; i++ {
		batch = append(batch, testTrigger(fmt.Sprintf("t%04d", i), "a1", base.Add(time.Duration(i)*time.Second)))
	}
	if err := repo.Append(ctx, batch); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != HistoryLimit {
		t.Errorf("Count() = %d, want %d", count, HistoryLimit)
	}

	list, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != HistoryLimit {
		t.Fatalf("List() returned %d triggers, want %d", len(list), HistoryLimit)
	}
	// Newest first, oldest ten evicted.
	if list[0].ID != fmt.Sprintf("t%04d", HistoryLimit+9) {
		t.Errorf("newest trigger = %s, want t%04d", list[0].ID, HistoryLimit+9)
	}
	if list[len(list)-1].ID != "t0010" {
		t.Errorf("oldest retained trigger = %s, want t0010", list[len(list)-1].ID)
	}
}

func TestMemoryTriggerRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStorage().Triggers()

	base := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	err := repo.Append(ctx, []*models.AlertTrigger{
		testTrigger("t1", "a1", base),
		testTrigger("t2", "a2", base.Add(time.Minute)),
		testTrigger("t3", "a1", base.Add(2*time.Minute)),
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	list, err := repo.ListByAlert(ctx, "a1", 0)
	if err != nil {
		t.Fatalf("ListByAlert() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "t3" || list[1].ID != "t1" {
		t.Errorf("ListByAlert() = %v, want [t3 t1]", triggerIDs(list))
	}

	list, _ = repo.ListByAlert(ctx, "a1", 1)
	if len(list) != 1 || list[0].ID != "t3" {
		t.Errorf("ListByAlert(limit=1) = %v, want [t3]", triggerIDs(list))
	}

	ok, err := repo.Acknowledge(ctx, "t2", base.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("Acknowledge() = %v, %v, want true, nil", ok, err)
	}
	ok, err = repo.Acknowledge(ctx, "missing", base)
	if err != nil || ok {
		t.Errorf("Acknowledge(missing) = %v, %v, want false, nil", ok, err)
	}

	n, err := repo.CountSince(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountSince() = %d, want 2", n)
	}

	removed, err := repo.ClearByAlert(ctx, "a1")
	if err != nil {
		t.Fatalf("ClearByAlert() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("ClearByAlert() removed %d, want 2", removed)
	}
	count, _ := repo.Count(ctx)
	if count != 1 {
		t.Errorf("Count() after scoped clear = %d, want 1", count)
	}

	removed, err = repo.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Clear() removed %d, want 1", removed)
	}
}

func triggerIDs(list []*models.AlertTrigger) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}
