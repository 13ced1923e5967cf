package alerting

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

// SeedAlert is the YAML shape of one seeded alert definition.
type SeedAlert struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Keywords      []string `yaml:"keywords"`
	Sources       []string `yaml:"sources"`
	Priority      string   `yaml:"priority"`
	Notifications struct {
		Browser       bool   `yaml:"browser"`
		Sound         bool   `yaml:"sound"`
		SoundFile     string `yaml:"sound_file"`
		Email         string `yaml:"email"`
		Webhook       string `yaml:"webhook"`
		CustomMessage string `yaml:"custom_message"`
	} `yaml:"notifications"`
	Schedule struct {
		ActiveHours *struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"active_hours"`
		ActiveDays []string `yaml:"active_days"`
		Timezone   string   `yaml:"timezone"`
	} `yaml:"schedule"`
	Active *bool `yaml:"active"`
}

// SeedConfig is the top-level structure of a seed file.
type SeedConfig struct {
	Alerts []*SeedAlert `yaml:"alerts"`
}

// LoadSeedFile loads alert definitions from a YAML file.
func LoadSeedFile(path string) ([]*models.AlertConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	return LoadSeed(f)
}

// LoadSeed loads alert definitions from a reader.
func LoadSeed(r io.Reader) ([]*models.AlertConfig, error) {
	var config SeedConfig
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	alerts := make([]*models.AlertConfig, 0, len(config.Alerts))
	for i, seed := range config.Alerts {
		alert, err := seed.toConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid alert at index %d: %w", i, err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *SeedAlert) toConfig() (*models.AlertConfig, error) {
	alert := &models.AlertConfig{
		Name:        s.Name,
		Description: s.Description,
		Keywords:    s.Keywords,
		Sources:     s.Sources,
		Priority:    models.Priority(s.Priority),
		Notifications: models.NotificationPrefs{
			Browser:       s.Notifications.Browser,
			Sound:         s.Notifications.Sound,
			SoundFile:     s.Notifications.SoundFile,
			Email:         s.Notifications.Email,
			Webhook:       s.Notifications.Webhook,
			CustomMessage: s.Notifications.CustomMessage,
		},
		Schedule: models.Schedule{Timezone: s.Schedule.Timezone},
		Active:   true,
	}
	if s.Active != nil {
		alert.Active = *s.Active
	}
	if s.Schedule.ActiveHours != nil {
		alert.Schedule.ActiveHours = &models.ActiveHours{
			Start: s.Schedule.ActiveHours.Start,
			End:   s.Schedule.ActiveHours.End,
		}
	}
	for _, name := range s.Schedule.ActiveDays {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		alert.Schedule.ActiveDays = append(alert.Schedule.ActiveDays, day)
	}

	if err := alert.Validate(); err != nil {
		return nil, err
	}
	return alert, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday: %q", name)
	}
	return day, nil
}

// Seed creates the given alerts through the engine, skipping any whose
// name already exists. Returns the number created. Seeding is
// idempotent: re-running with the same file creates nothing new.
func Seed(ctx context.Context, e *Engine, alerts []*models.AlertConfig) (int, error) {
	existing, err := e.Alerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, a := range existing {
		names[a.Name] = true
	}

	created := 0
	for _, alert := range alerts {
		if names[alert.Name] {
			continue
		}
		if _, err := e.CreateAlert(ctx, alert); err != nil {
			return created, fmt.Errorf("seed %q: %w", alert.Name, err)
		}
		created++
	}
	return created, nil
}
