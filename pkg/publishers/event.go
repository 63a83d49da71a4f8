package publishers

import (
	"encoding/json"
	"time"

	"github.com/samvad-hq/wave-analyzer/internal/domain"
)

// Event represents the payload published downstream for one analysis.
type Event struct {
	ReportID       string           `json:"report_id"`
	URL            string           `json:"url"`
	Format         string           `json:"format"`
	Success        bool             `json:"success"`
	ServiceMessage string           `json:"service_message,omitempty"`
	Page           *domain.PageMeta `json:"page,omitempty"`
	Report         json.RawMessage  `json:"report,omitempty"`
	RawReport      string           `json:"raw_report,omitempty"`
	AnalyzedAt     time.Time        `json:"analyzed_at"`
	PublishedAt    time.Time        `json:"published_at"`
}

// NewEvent constructs an Event for the given report. JSON bodies are embedded
// as-is; anything else travels as a string.
func NewEvent(rep domain.Report) Event {
	evt := Event{
		ReportID:       rep.ID,
		URL:            rep.URL,
		Format:         rep.Format,
		Success:        rep.Success,
		ServiceMessage: rep.ServiceMessage,
		Page:           rep.Page,
		AnalyzedAt:     rep.AnalyzedAt,
		PublishedAt:    time.Now().UTC(),
	}
	if len(rep.Body) > 0 {
		if rep.Format == "json" && json.Valid(rep.Body) {
			evt.Report = json.RawMessage(rep.Body)
		} else {
			evt.RawReport = string(rep.Body)
		}
	}
	return evt
}

// attributes are the message attributes attached by queue and topic sinks.
func (e Event) attributes() map[string]string {
	success := "false"
	if e.Success {
		success = "true"
	}
	return map[string]string{
		"report_id": e.ReportID,
		"format":    e.Format,
		"success":   success,
	}
}
