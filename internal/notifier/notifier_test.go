package notifier

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []*Notification
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) notifications() []*Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Notification(nil), f.sent...)
}

func browserAlert(id, name string) *models.AlertConfig {
	return &models.AlertConfig{
		ID:            id,
		Name:          name,
		Keywords:      []string{"kw"},
		Priority:      models.PriorityMedium,
		Notifications: models.NotificationPrefs{Browser: true},
		Active:        true,
	}
}

func trigger(id, alertID string) *models.AlertTrigger {
	return &models.AlertTrigger{
		ID:              id,
		AlertID:         alertID,
		TriggeredAt:     time.Now(),
		Item:            models.FeedItem{Title: "item " + id, Source: "hn"},
		MatchedKeywords: []string{"kw"},
		Priority:        models.PriorityMedium,
	}
}

func unlimitedDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(RateLimitConfig{Enabled: false})
}

func TestDispatchBatchCap(t *testing.T) {
	d := unlimitedDispatcher()
	browser := &fakeChannel{name: "browser"}
	d.Register(browser)

	alert := browserAlert("a1", "gpu-watch")
	alerts := map[string]*models.AlertConfig{"a1": alert}
	var triggers []*models.AlertTrigger
	for i := 0; i < 5; i++ {
		triggers = append(triggers, trigger(fmt.Sprintf("t%d", i), "a1"))
	}

	d.Dispatch(context.Background(), triggers, alerts)

	sent := browser.notifications()
	if len(sent) != 4 {
		t.Fatalf("channel received %d notifications, want 3 individual + 1 summary", len(sent))
	}
	for i := 0; i < 3; i++ {
		if sent[i].Trigger == nil || sent[i].Summary != 0 {
			t.Errorf("notification %d is not individual: %+v", i, sent[i])
		}
	}
	summary := sent[3]
	if summary.Summary != 2 {
		t.Errorf("summary count = %d, want 2", summary.Summary)
	}
	if summary.Title != "2 additional alerts" {
		t.Errorf("summary title = %q", summary.Title)
	}
}

func TestDispatchSmallBatchHasNoSummary(t *testing.T) {
	d := unlimitedDispatcher()
	browser := &fakeChannel{name: "browser"}
	d.Register(browser)

	alerts := map[string]*models.AlertConfig{"a1": browserAlert("a1", "gpu-watch")}
	d.Dispatch(context.Background(), []*models.AlertTrigger{
		trigger("t1", "a1"),
		trigger("t2", "a1"),
		trigger("t3", "a1"),
	}, alerts)

	sent := browser.notifications()
	if len(sent) != 3 {
		t.Fatalf("channel received %d notifications, want 3", len(sent))
	}
	for _, n := range sent {
		if n.Summary != 0 {
			t.Errorf("unexpected summary notification: %+v", n)
		}
	}
}

func TestDispatchChannelSelection(t *testing.T) {
	d := unlimitedDispatcher()
	browser := &fakeChannel{name: "browser"}
	email := &fakeChannel{name: "email"}
	d.Register(browser)
	d.Register(email)

	alert := &models.AlertConfig{
		ID:            "a1",
		Name:          "mail-only",
		Keywords:      []string{"kw"},
		Priority:      models.PriorityMedium,
		Notifications: models.NotificationPrefs{Email: "ops@example.com"},
	}
	d.Dispatch(context.Background(),
		[]*models.AlertTrigger{trigger("t1", "a1")},
		map[string]*models.AlertConfig{"a1": alert})

	if len(browser.notifications()) != 0 {
		t.Error("browser channel received notification for email-only alert")
	}
	if len(email.notifications()) != 1 {
		t.Errorf("email channel received %d notifications, want 1", len(email.notifications()))
	}
}

func TestDispatchErrorIsolation(t *testing.T) {
	d := unlimitedDispatcher()
	broken := &fakeChannel{name: "browser", err: fmt.Errorf("no permission")}
	sound := &fakeChannel{name: "sound"}
	d.Register(broken)
	d.Register(sound)

	alert := browserAlert("a1", "gpu-watch")
	alert.Notifications.Sound = true
	d.Dispatch(context.Background(),
		[]*models.AlertTrigger{trigger("t1", "a1")},
		map[string]*models.AlertConfig{"a1": alert})

	if len(sound.notifications()) != 1 {
		t.Errorf("sound channel received %d notifications, want 1 despite browser failure", len(sound.notifications()))
	}
}

func TestDispatchRateLimit(t *testing.T) {
	d := NewDispatcherWithRateLimit(RateLimitConfig{
		MaxPerWindow: 2,
		Window:       time.Minute,
		Enabled:      true,
	})
	browser := &fakeChannel{name: "browser"}
	d.Register(browser)

	alerts := map[string]*models.AlertConfig{"a1": browserAlert("a1", "gpu-watch")}
	d.Dispatch(context.Background(), []*models.AlertTrigger{
		trigger("t1", "a1"),
		trigger("t2", "a1"),
		trigger("t3", "a1"),
	}, alerts)

	if got := len(browser.notifications()); got != 2 {
		t.Errorf("channel received %d notifications, want 2 under the limit", got)
	}
	if stats := d.RateLimitStats(); stats.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.Dropped)
	}
}

func TestDispatchCustomMessage(t *testing.T) {
	d := unlimitedDispatcher()
	browser := &fakeChannel{name: "browser"}
	d.Register(browser)

	alert := browserAlert("a1", "gpu-watch")
	alert.Notifications.CustomMessage = "check the dashboard"
	d.Dispatch(context.Background(),
		[]*models.AlertTrigger{trigger("t1", "a1")},
		map[string]*models.AlertConfig{"a1": alert})

	sent := browser.notifications()
	if len(sent) != 1 || sent[0].Body != "check the dashboard" {
		t.Errorf("custom message not used: %+v", sent)
	}
}

func TestDispatchCriticalPersists(t *testing.T) {
	d := unlimitedDispatcher()
	browser := &fakeChannel{name: "browser"}
	d.Register(browser)

	alert := browserAlert("a1", "gpu-watch")
	trig := trigger("t1", "a1")
	trig.Priority = models.PriorityCritical
	d.Dispatch(context.Background(),
		[]*models.AlertTrigger{trig},
		map[string]*models.AlertConfig{"a1": alert})

	sent := browser.notifications()
	if len(sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sent))
	}
	if sent[0].AutoDismiss != 0 {
		t.Errorf("critical notification auto-dismisses after %v, want persistent", sent[0].AutoDismiss)
	}
}

type blockingChannel struct {
	name    string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChannel) Name() string { return b.name }

func (b *blockingChannel) Send(context.Context, *Notification) error {
	close(b.entered)
	<-b.release
	return nil
}

func (b *blockingChannel) Close() error { return nil }

func TestDispatchDoesNotBlockRegister(t *testing.T) {
	d := unlimitedDispatcher()
	slow := &blockingChannel{
		name:    "browser",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	d.Register(slow)

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(),
			[]*models.AlertTrigger{trigger("t1", "a1")},
			map[string]*models.AlertConfig{"a1": browserAlert("a1", "gpu-watch")})
		close(done)
	}()

	<-slow.entered

	// A send in flight must not hold the dispatcher lock.
	registered := make(chan struct{})
	go func() {
		d.Register(&fakeChannel{name: "sound"})
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Error("Register blocked behind an in-flight send")
	}

	close(slow.release)
	<-done
}

func TestSummaryChannelsUnion(t *testing.T) {
	browserOnly := browserAlert("a1", "one")
	emailOnly := &models.AlertConfig{
		ID: "a2", Name: "two", Keywords: []string{"kw"},
		Notifications: models.NotificationPrefs{Email: "ops@example.com"},
	}
	alerts := map[string]*models.AlertConfig{"a1": browserOnly, "a2": emailOnly}
	rest := []*models.AlertTrigger{trigger("t4", "a1"), trigger("t5", "a2")}

	got := summaryChannels(rest, alerts)
	want := []string{"browser", "email"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("summaryChannels() = %v, want %v", got, want)
	}
}
