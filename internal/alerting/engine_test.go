package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
	"github.com/good-yellow-bee/feedwatch/internal/storage"
)

type captureNotifier struct {
	mu      sync.Mutex
	batches [][]*models.AlertTrigger
	alerts  []map[string]*models.AlertConfig
}

func (n *captureNotifier) Dispatch(_ context.Context, triggers []*models.AlertTrigger, alerts map[string]*models.AlertConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, triggers)
	n.alerts = append(n.alerts, alerts)
}

func newTestEngine(t *testing.T, notifier Notifier) *Engine {
	t.Helper()
	e := NewEngine(storage.NewMemoryStorage(), notifier)
	e.StartMonitoring()
	t.Cleanup(e.Close)
	return e
}

func mustCreate(t *testing.T, e *Engine, cfg *models.AlertConfig) *models.AlertConfig {
	t.Helper()
	created, err := e.CreateAlert(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	return created
}

func testAlert(name string, keywords ...string) *models.AlertConfig {
	return &models.AlertConfig{
		Name:     name,
		Keywords: keywords,
		Active:   true,
	}
}

func feedItem(title, source string) *models.FeedItem {
	return &models.FeedItem{
		Title:   title,
		Source:  source,
		PubDate: time.Now(),
	}
}

func TestCheckFeedItemsMonitoringOff(t *testing.T) {
	e := newTestEngine(t, nil)
	mustCreate(t, e, testAlert("gpu", "gpu"))

	e.StopMonitoring()
	got := e.CheckFeedItems(context.Background(), []*models.FeedItem{feedItem("GPU news", "hn")})
	if got != nil {
		t.Errorf("CheckFeedItems() with monitoring off = %v, want nil", got)
	}
}

func TestCheckFeedItemsCreatesTriggers(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))

	items := []*models.FeedItem{
		feedItem("GPU shortage deepens", "hn"),
		feedItem("quiet day", "hn"),
	}
	triggers := e.CheckFeedItems(ctx, items)
	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}

	trig := triggers[0]
	if trig.AlertID != alert.ID {
		t.Errorf("trigger alert ID = %s, want %s", trig.AlertID, alert.ID)
	}
	if trig.ID == "" {
		t.Error("trigger ID not assigned")
	}
	if trig.Priority != models.PriorityMedium {
		t.Errorf("trigger priority = %s, want %s", trig.Priority, models.PriorityMedium)
	}
	if len(trig.MatchedKeywords) != 1 || trig.MatchedKeywords[0] != "gpu" {
		t.Errorf("matched keywords = %v, want [gpu]", trig.MatchedKeywords)
	}

	// Bookkeeping on the alert.
	stored, err := e.Alert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Alert() error = %v", err)
	}
	if stored.TriggerCount != 1 {
		t.Errorf("trigger count = %d, want 1", stored.TriggerCount)
	}
	if stored.LastTriggered == nil {
		t.Error("last triggered not set")
	}

	// History recorded.
	history, err := e.History(ctx, "", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history has %d entries, want 1", len(history))
	}
}

func TestCheckFeedItemsInactiveAlert(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))

	if _, err := e.ToggleAlert(ctx, alert.ID); err != nil {
		t.Fatalf("ToggleAlert() error = %v", err)
	}

	triggers := e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})
	if triggers != nil {
		t.Errorf("inactive alert produced triggers: %v", triggers)
	}

	stored, _ := e.Alert(ctx, alert.ID)
	if stored.TriggerCount != 0 {
		t.Errorf("inactive alert trigger count = %d, want 0", stored.TriggerCount)
	}
}

func TestCheckFeedItemsSnoozed(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))
	item := feedItem("GPU news", "hn")

	if _, err := e.SnoozeAlert(ctx, alert.ID, 10*time.Minute); err != nil {
		t.Fatalf("SnoozeAlert() error = %v", err)
	}
	if got := e.CheckFeedItems(ctx, []*models.FeedItem{item}); got != nil {
		t.Errorf("snoozed alert produced triggers: %v", got)
	}

	// Clearing the snooze restores matching.
	if _, err := e.SnoozeAlert(ctx, alert.ID, 0); err != nil {
		t.Fatalf("SnoozeAlert() clear error = %v", err)
	}
	if got := e.CheckFeedItems(ctx, []*models.FeedItem{item}); len(got) != 1 {
		t.Errorf("got %d triggers after snooze cleared, want 1", len(got))
	}
}

func TestCheckFeedItemsNoDeduplication(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))
	item := feedItem("GPU news", "hn")

	e.CheckFeedItems(ctx, []*models.FeedItem{item})
	e.CheckFeedItems(ctx, []*models.FeedItem{item})

	stored, _ := e.Alert(ctx, alert.ID)
	if stored.TriggerCount != 2 {
		t.Errorf("trigger count = %d, want 2 (no cross-pass deduplication)", stored.TriggerCount)
	}
}

func TestCheckFeedItemsConcurrentPasses(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))
	item := feedItem("GPU news", "hn")

	const passes = 8
	var wg sync.WaitGroup
	for i := 0; i < passes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.CheckFeedItems(ctx, []*models.FeedItem{item})
		}()
	}
	wg.Wait()

	// TriggerCount must equal the history rows for the alert even when
	// passes overlap.
	stored, err := e.Alert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Alert() error = %v", err)
	}
	history, err := e.History(ctx, alert.ID, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != passes {
		t.Errorf("history has %d entries, want %d", len(history), passes)
	}
	if stored.TriggerCount != len(history) {
		t.Errorf("trigger count = %d, history rows = %d, want equal", stored.TriggerCount, len(history))
	}
}

func TestCheckFeedItemsConcurrentWithUpdate(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))
	item := feedItem("GPU news", "hn")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.CheckFeedItems(ctx, []*models.FeedItem{item})
		}()
	}
	name := "renamed"
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.UpdateAlert(ctx, alert.ID, AlertUpdate{Name: &name}); err != nil {
			t.Errorf("UpdateAlert() error = %v", err)
		}
	}()
	wg.Wait()

	// The rename must survive passes writing bookkeeping back.
	stored, err := e.Alert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Alert() error = %v", err)
	}
	if stored.Name != "renamed" {
		t.Errorf("name = %q, concurrent pass clobbered the update", stored.Name)
	}
}

func TestCheckFeedItemsMultipleAlerts(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustCreate(t, e, testAlert("gpu-watch", "gpu"))
	mustCreate(t, e, testAlert("outage-watch", "outage"))

	triggers := e.CheckFeedItems(ctx, []*models.FeedItem{
		feedItem("GPU cloud outage", "hn"),
	})
	// One item matching two alerts yields two independent triggers.
	if len(triggers) != 2 {
		t.Errorf("got %d triggers, want 2", len(triggers))
	}
}

func TestCheckFeedItemsDispatchesNotifications(t *testing.T) {
	notifier := &captureNotifier{}
	e := newTestEngine(t, notifier)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu"))

	e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})
	e.Close() // waits for the dispatch goroutine

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.batches) != 1 {
		t.Fatalf("notifier received %d batches, want 1", len(notifier.batches))
	}
	if _, ok := notifier.alerts[0][alert.ID]; !ok {
		t.Errorf("notifier batch missing alert config for %s", alert.ID)
	}
}

func TestCheckFeedItemsPublishesToSubscribers(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustCreate(t, e, testAlert("gpu-watch", "gpu"))

	var received []*models.AlertTrigger
	e.Subscribe(func(triggers []*models.AlertTrigger) {
		received = triggers
	})
	// A panicking subscriber must not affect the pass.
	e.Subscribe(func([]*models.AlertTrigger) {
		panic("subscriber bug")
	})

	triggers := e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})
	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}
	if len(received) != 1 {
		t.Errorf("subscriber received %d triggers, want 1", len(received))
	}
}

func TestCreateAlertValidation(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name    string
		cfg     *models.AlertConfig
		wantErr bool
	}{
		{
			name:    "missing name",
			cfg:     &models.AlertConfig{Keywords: []string{"gpu"}},
			wantErr: true,
		},
		{
			name:    "no keywords",
			cfg:     &models.AlertConfig{Name: "x"},
			wantErr: true,
		},
		{
			name:    "only blank keywords",
			cfg:     &models.AlertConfig{Name: "x", Keywords: []string{" ", ""}},
			wantErr: true,
		},
		{
			name:    "bad priority",
			cfg:     &models.AlertConfig{Name: "x", Keywords: []string{"gpu"}, Priority: "urgent"},
			wantErr: true,
		},
		{
			name:    "valid",
			cfg:     testAlert("ok", "gpu"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateAlert(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateAlert() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateAlertPartial(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	alert := mustCreate(t, e, testAlert("gpu-watch", "gpu", "nvidia"))

	name := "renamed"
	updated, err := e.UpdateAlert(ctx, alert.ID, AlertUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateAlert() error = %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("name = %s, want renamed", updated.Name)
	}
	if len(updated.Keywords) != 2 {
		t.Errorf("keywords = %v, want original two preserved", updated.Keywords)
	}
	if updated.ID != alert.ID {
		t.Errorf("ID changed: %s", updated.ID)
	}

	// Unknown ID yields nil without error.
	missing, err := e.UpdateAlert(ctx, "nope", AlertUpdate{Name: &name})
	if err != nil || missing != nil {
		t.Errorf("UpdateAlert(missing) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestDeleteAlert(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	keep := mustCreate(t, e, testAlert("keep", "gpu"))
	drop := mustCreate(t, e, testAlert("drop", "gpu"))

	e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})

	// Delete without purge keeps history rows.
	ok, err := e.DeleteAlert(ctx, keep.ID, false)
	if err != nil || !ok {
		t.Fatalf("DeleteAlert() = (%v, %v)", ok, err)
	}
	history, _ := e.History(ctx, keep.ID, 0)
	if len(history) != 1 {
		t.Errorf("history for deleted alert has %d entries, want 1", len(history))
	}

	// Delete with purge removes them.
	if ok, err := e.DeleteAlert(ctx, drop.ID, true); err != nil || !ok {
		t.Fatalf("DeleteAlert() = (%v, %v)", ok, err)
	}
	history, _ = e.History(ctx, drop.ID, 0)
	if len(history) != 0 {
		t.Errorf("purged history has %d entries, want 0", len(history))
	}

	if ok, _ := e.DeleteAlert(ctx, "nope", false); ok {
		t.Error("DeleteAlert(missing) = true, want false")
	}
}

func TestClearHistoryScoped(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	a := mustCreate(t, e, testAlert("a", "gpu"))
	b := mustCreate(t, e, testAlert("b", "gpu"))

	e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})

	removed, err := e.ClearHistory(ctx, a.ID)
	if err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	remaining, _ := e.History(ctx, "", 0)
	if len(remaining) != 1 || remaining[0].AlertID != b.ID {
		t.Errorf("remaining history = %v, want only alert %s", remaining, b.ID)
	}
}

func TestAcknowledgeTrigger(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustCreate(t, e, testAlert("gpu-watch", "gpu"))

	triggers := e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})
	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}

	ok, err := e.AcknowledgeTrigger(ctx, triggers[0].ID)
	if err != nil || !ok {
		t.Fatalf("AcknowledgeTrigger() = (%v, %v)", ok, err)
	}

	history, _ := e.History(ctx, "", 0)
	if !history[0].Acknowledged || history[0].AcknowledgedAt == nil {
		t.Error("trigger not marked acknowledged in history")
	}

	if ok, _ := e.AcknowledgeTrigger(ctx, "nope"); ok {
		t.Error("AcknowledgeTrigger(missing) = true, want false")
	}
}

func TestAlertStats(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustCreate(t, e, testAlert("a", "gpu"))
	off := mustCreate(t, e, testAlert("b", "outage"))
	if _, err := e.ToggleAlert(ctx, off.ID); err != nil {
		t.Fatalf("ToggleAlert() error = %v", err)
	}

	e.CheckFeedItems(ctx, []*models.FeedItem{feedItem("GPU news", "hn")})

	stats, err := e.AlertStats(ctx)
	if err != nil {
		t.Fatalf("AlertStats() error = %v", err)
	}
	if stats.TotalAlerts != 2 {
		t.Errorf("total alerts = %d, want 2", stats.TotalAlerts)
	}
	if stats.ActiveAlerts != 1 {
		t.Errorf("active alerts = %d, want 1", stats.ActiveAlerts)
	}
	if stats.TotalTriggers != 1 {
		t.Errorf("total triggers = %d, want 1", stats.TotalTriggers)
	}
	if stats.TriggersToday != 1 {
		t.Errorf("triggers today = %d, want 1", stats.TriggersToday)
	}
}

func TestEngineStats(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	mustCreate(t, e, testAlert("gpu-watch", "gpu"))

	e.CheckFeedItems(ctx, []*models.FeedItem{
		feedItem("GPU news", "hn"),
		feedItem("quiet day", "hn"),
	})

	stats := e.Stats()
	if stats.CheckPasses != 1 {
		t.Errorf("check passes = %d, want 1", stats.CheckPasses)
	}
	if stats.ItemsEvaluated != 2 {
		t.Errorf("items evaluated = %d, want 2", stats.ItemsEvaluated)
	}
	if stats.TriggersCreated != 1 {
		t.Errorf("triggers created = %d, want 1", stats.TriggersCreated)
	}
}
