// Package events publishes committed chart contributions to an external change
// feed so other services (reminders, billing, search) can follow chart edits.
// Publishing happens after the database commit and never affects the outcome
// of the mutation.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// ContributionRecorded is emitted once per committed contribution.
type ContributionRecorded struct {
	ContributionID string            `json:"contribution_id"`
	OdontogramID   string            `json:"odontogram_id"`
	PatientID      int64             `json:"patient_id"`
	ActionType     string            `json:"action_type"`
	DentistID      string            `json:"dentist_id"`
	OfficeID       string            `json:"office_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// Key partitions the feed so events of one chart stay ordered.
func (e ContributionRecorded) Key() string { return e.OdontogramID }

func (e ContributionRecorded) encode() ([]byte, error) { return json.Marshal(e) }

// Publisher delivers events to a change feed.
type Publisher interface {
	Publish(ctx context.Context, evt ContributionRecorded) error
	Backend() string
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ContributionRecorded) error { return nil }
func (Nop) Backend() string                                  { return "none" }
func (Nop) Close() error                                     { return nil }
