package domain

import "time"

// Domain contains core models shared by the runtime packages.

// Report is one analysis outcome as archived and published.
type Report struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Format         string    `json:"format"`
	Success        bool      `json:"success"`
	ServiceMessage string    `json:"service_message,omitempty"`
	Body           []byte    `json:"-"`
	Page           *PageMeta `json:"page,omitempty"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// PageMeta describes the analyzed page itself.
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Lang        string `json:"lang,omitempty"`
	Description string `json:"description,omitempty"`
}
