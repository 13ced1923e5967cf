package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

const maxNameLength = 100

// ValidateName validates an alert name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	return nil
}

// ValidateKeywords checks that at least one non-empty keyword is present.
func ValidateKeywords(keywords []string) error {
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			return nil
		}
	}
	return fmt.Errorf("at least one keyword is required")
}

// ValidatePriority validates and normalizes a priority string. Empty
// defaults to medium.
func ValidatePriority(s string) (models.Priority, error) {
	if s == "" {
		return models.PriorityMedium, nil
	}
	if !models.ValidPriority(s) {
		return "", fmt.Errorf("invalid priority: %q (must be low, medium, high or critical)", s)
	}
	return models.Priority(s), nil
}

// ValidateActiveHours validates an HH:MM window.
func ValidateActiveHours(h *models.ActiveHours) error {
	if h == nil {
		return nil
	}
	if _, err := models.ParseClock(h.Start); err != nil {
		return fmt.Errorf("invalid active hours start %q: expected HH:MM", h.Start)
	}
	if _, err := models.ParseClock(h.End); err != nil {
		return fmt.Errorf("invalid active hours end %q: expected HH:MM", h.End)
	}
	return nil
}

// ValidateTimezone validates an IANA timezone name. Empty is allowed
// and means local time.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone: %q", tz)
	}
	return nil
}

// ValidateActiveDays validates weekday numbers (0=Sunday..6=Saturday).
func ValidateActiveDays(days []time.Weekday) error {
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid active day: %d", d)
		}
	}
	return nil
}
