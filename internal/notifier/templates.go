package notifier

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"

	"github.com/good-yellow-bee/feedwatch/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	html  *template.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	AlertName       string
	Description     string
	Priority        string
	PriorityColor   string
	Body            string
	TriggeredAt     string
	MatchedKeywords []string
	Summary         int
	Item            *FeedItemData
}

// FeedItemData contains feed item data for templates.
type FeedItemData struct {
	Title   string
	Link    string
	Source  string
	PubDate string
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join":  strings.Join,
	}

	htmlTmpl, err := template.New("alert.html").Funcs(funcs).ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("alert.txt").Funcs(funcs).ParseFS(templateFS, "templates/alert.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// priorityColor returns the color for a priority level.
func priorityColor(priority models.Priority) string {
	switch priority {
	case models.PriorityCritical:
		return "#d32f2f" // red
	case models.PriorityHigh:
		return "#f57c00" // orange
	case models.PriorityMedium:
		return "#fbc02d" // yellow
	case models.PriorityLow:
		return "#388e3c" // green
	default:
		return "#757575" // gray
	}
}

// NotificationToTemplateData converts a notification to template data.
func NotificationToTemplateData(n *Notification) TemplateData {
	data := TemplateData{
		Priority:      string(n.Priority),
		PriorityColor: priorityColor(n.Priority),
		Body:          n.Body,
		Summary:       n.Summary,
		TriggeredAt:   time.Now().Format("2006-01-02 15:04:05 MST"),
	}

	if n.Alert != nil {
		data.AlertName = n.Alert.Name
		data.Description = n.Alert.Description
	} else {
		data.AlertName = n.Title
	}

	if n.Trigger != nil {
		data.TriggeredAt = n.Trigger.TriggeredAt.Format("2006-01-02 15:04:05 MST")
		data.MatchedKeywords = n.Trigger.MatchedKeywords
		data.Item = &FeedItemData{
			Title:   n.Trigger.Item.Title,
			Link:    n.Trigger.Item.Link,
			Source:  n.Trigger.Item.Source,
			PubDate: n.Trigger.Item.PubDate.Format("2006-01-02 15:04:05"),
		}
	}

	return data
}
