package model

import (
	"time"
	"unicode/utf8"
)

// Bill represents a legislative document tracked by the system. The pipeline
// treats bills as read-only input; it never mutates them.
type Bill struct {
	ID           string    `json:"id" yaml:"id"`
	ExternalID   string    `json:"external_id" yaml:"external_id"`
	BillNumber   string    `json:"bill_number" yaml:"bill_number"`
	Title        string    `json:"title" yaml:"title"`
	Description  string    `json:"description" yaml:"description"`
	GovtType     string    `json:"govt_type" yaml:"govt_type"`
	GovtSource   string    `json:"govt_source" yaml:"govt_source"`
	Status       string    `json:"status" yaml:"status"`
	Text         []byte    `json:"text,omitempty" yaml:"text,omitempty"`
	TextIsBinary bool      `json:"text_is_binary" yaml:"text_is_binary"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// AnalysisInput returns the text the analysis pipeline should read. Binary
// bodies (PDF/Word pass-through blobs) are never decoded; the bill description
// stands in for them.
func (b *Bill) AnalysisInput() string {
	if len(b.Text) == 0 {
		return b.Description
	}
	if b.TextIsBinary || !utf8.Valid(b.Text) {
		return b.Description
	}
	return string(b.Text)
}

// Metadata returns the prompt-context fields as ordered label/value pairs.
func (b *Bill) Metadata() []MetadataField {
	return []MetadataField{
		{Label: "Bill Number", Value: b.BillNumber},
		{Label: "Title", Value: b.Title},
		{Label: "Government Type", Value: b.GovtType},
		{Label: "Source", Value: b.GovtSource},
		{Label: "Status", Value: b.Status},
	}
}

// MetadataField is a labeled bill attribute injected into prompts.
type MetadataField struct {
	Label string
	Value string
}
