package entity

import (
	"context"
	"strings"
)

type LeadStatus string

const (
	LeadStatusNew LeadStatus = "New"
)

// LeadSubmission is the contact data received for one intake call.
type LeadSubmission struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Note   string `json:"note,omitempty"`
	Source string `json:"source,omitempty"`
}

// Normalize trims every field and lower-cases the email, which is the
// dedup key.
func (s LeadSubmission) Normalize() LeadSubmission {
	return LeadSubmission{
		Email:  strings.ToLower(strings.TrimSpace(s.Email)),
		Name:   strings.TrimSpace(s.Name),
		Note:   strings.TrimSpace(s.Note),
		Source: strings.TrimSpace(s.Source),
	}
}

// DisplayName is the record title: the name, or the email when no name was given.
func (s LeadSubmission) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// LeadRecord is a lead as persisted by the record store.
type LeadRecord struct {
	ID     string     `json:"id"`
	URL    string     `json:"url,omitempty"`
	Email  string     `json:"email"`
	Name   string     `json:"name,omitempty"`
	Note   string     `json:"note,omitempty"`
	Source string     `json:"source,omitempty"`
	Status LeadStatus `json:"status,omitempty"`
}

type NotificationOutcome struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
	Pending   bool   `json:"pending,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// IntakeResult is what the caller of SubmitLead observes.
type IntakeResult struct {
	OK           bool                `json:"ok"`
	Duplicate    bool                `json:"duplicate"`
	RecordID     string              `json:"id,omitempty"`
	Notification NotificationOutcome `json:"notification"`
	Error        string              `json:"error,omitempty"`
	Detail       string              `json:"detail,omitempty"`
}

// LeadStoreInterface is the external record store. FindByEmail returns
// (nil, nil) when nothing matches; a failed lookup is always an error.
type LeadStoreInterface interface {
	GetSchema(ctx context.Context) (*Schema, error)
	FindByEmail(ctx context.Context, mapping *SchemaMapping, email string) (*LeadRecord, error)
	CreateRecord(ctx context.Context, mapping *SchemaMapping, lead LeadSubmission) (*LeadRecord, error)
}
