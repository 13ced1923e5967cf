package notifier

import (
	"context"
	"fmt"
	"sync"
)

// Presenter shows a notification on whatever surface the host
// provides (desktop notification center, connected browser session).
// Implementations must respect AutoDismiss == 0 as "persist until
// dismissed by the user".
type Presenter interface {
	// Granted reports whether the user has allowed notifications.
	Granted() bool
	// Present shows the notification.
	Present(ctx context.Context, n *Notification) error
}

// BrowserChannel delivers popup notifications through a Presenter.
type BrowserChannel struct {
	mu        sync.Mutex
	presenter Presenter
}

// NewBrowserChannel creates a browser channel over the given presenter.
func NewBrowserChannel(p Presenter) *BrowserChannel {
	return &BrowserChannel{presenter: p}
}

// Name returns "browser".
func (b *BrowserChannel) Name() string {
	return "browser"
}

// Send presents the notification. It fails when permission has not
// been granted; dispatch treats that like any other channel error.
func (b *BrowserChannel) Send(ctx context.Context, n *Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.presenter.Granted() {
		return fmt.Errorf("notification permission not granted")
	}
	if err := b.presenter.Present(ctx, n); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Close is a no-op for the browser channel.
func (b *BrowserChannel) Close() error {
	return nil
}
