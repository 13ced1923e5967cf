package models

import "time"

// AlertTrigger records one keyword match between an alert and a feed
// item. Immutable after creation except the acknowledgment fields.
type AlertTrigger struct {
	ID          string    `json:"id"`
	AlertID     string    `json:"alert_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	// Item is a snapshot of the matched feed item, copied at trigger
	// time so history survives the item itself.
	Item FeedItem `json:"item"`
	// MatchedKeywords is the subset of the alert's keywords that
	// matched the item text.
	MatchedKeywords []string `json:"matched_keywords"`
	// Priority is copied from the alert at trigger time.
	Priority       Priority   `json:"priority"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
