package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority represents alert priority level.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority converts a string to Priority.
func ParsePriority(s string) Priority {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow
	case "medium":
		return PriorityMedium
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// ValidPriority reports whether s names a known priority.
func ValidPriority(s string) bool {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// NotificationPrefs selects the delivery channels for an alert.
// Only channels explicitly enabled here are used.
type NotificationPrefs struct {
	Browser       bool   `json:"browser" yaml:"browser"`
	Sound         bool   `json:"sound" yaml:"sound"`
	SoundFile     string `json:"sound_file,omitempty" yaml:"sound_file,omitempty"`
	Email         string `json:"email,omitempty" yaml:"email,omitempty"`
	Webhook       string `json:"webhook,omitempty" yaml:"webhook,omitempty"`
	CustomMessage string `json:"custom_message,omitempty" yaml:"custom_message,omitempty"`
}

// ActiveHours is a daily time-of-day window in HH:MM form. The window
// is half-open [Start, End); when Start > End it wraps past midnight,
// e.g. 22:00-06:00 means "after 22:00 or before 06:00".
type ActiveHours struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Schedule restricts when an alert is eligible to fire. Zero value
// means always eligible.
type Schedule struct {
	ActiveHours *ActiveHours `json:"active_hours,omitempty" yaml:"active_hours,omitempty"`
	// ActiveDays holds permitted weekdays (0=Sunday..6=Saturday);
	// empty means every day.
	ActiveDays []time.Weekday `json:"active_days,omitempty" yaml:"active_days,omitempty"`
	// Timezone is an IANA zone name used to resolve day-of-week and
	// time-of-day. Empty or unloadable zones fall back to local time
	// (fail-open: a bad zone never mutes an alert).
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	// SnoozeUntil suppresses the alert while now < SnoozeUntil. An
	// expired snooze is lazily ignored, never cleared.
	SnoozeUntil *time.Time `json:"snooze_until,omitempty" yaml:"snooze_until,omitempty"`
}

// AlertConfig is a persisted monitoring rule.
type AlertConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Keywords is the ordered list of match terms; must contain at
	// least one non-empty entry.
	Keywords []string `json:"keywords"`
	// Sources limits matching to these source identifiers; empty
	// means match all sources.
	Sources       []string          `json:"sources,omitempty"`
	Priority      Priority          `json:"priority"`
	Notifications NotificationPrefs `json:"notifications"`
	Schedule      Schedule          `json:"schedule"`
	// Active is the master on/off switch, independent of scheduling.
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	// LastTriggered is monotonically non-decreasing.
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	// TriggerCount is monotonically non-decreasing.
	TriggerCount int `json:"trigger_count"`
}

// Validate checks the configuration for structural errors.
func (a *AlertConfig) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("alert name is required")
	}
	hasKeyword := false
	for _, kw := range a.Keywords {
		if strings.TrimSpace(kw) != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return fmt.Errorf("at least one keyword is required for alert %q", a.Name)
	}
	if a.Priority != "" && !ValidPriority(string(a.Priority)) {
		return fmt.Errorf("invalid priority %q for alert %q", a.Priority, a.Name)
	}
	if a.Priority == "" {
		a.Priority = PriorityMedium
	}
	if h := a.Schedule.ActiveHours; h != nil {
		if _, err := ParseClock(h.Start); err != nil {
			return fmt.Errorf("invalid active hours start %q for alert %q: %w", h.Start, a.Name, err)
		}
		if _, err := ParseClock(h.End); err != nil {
			return fmt.Errorf("invalid active hours end %q for alert %q: %w", h.End, a.Name, err)
		}
	}
	for _, d := range a.Schedule.ActiveDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid active day %d for alert %q", d, a.Name)
		}
	}
	if tz := a.Schedule.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid timezone %q for alert %q: %w", tz, a.Name, err)
		}
	}
	return nil
}

// MatchesSource reports whether the alert's source filter admits the
// given source. An empty filter admits everything.
func (a *AlertConfig) MatchesSource(source string) bool {
	if len(a.Sources) == 0 {
		return true
	}
	for _, s := range a.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM: %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// AlertStats summarizes the engine's current state.
type AlertStats struct {
	TotalAlerts   int   `json:"total_alerts"`
	ActiveAlerts  int   `json:"active_alerts"`
	TotalTriggers int64 `json:"total_triggers"`
	TriggersToday int64 `json:"triggers_today"`
}
