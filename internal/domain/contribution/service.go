package contribution

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/auth"
)

// Service is the contribution ledger: the only durable record of who changed
// which chart and when.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one entry. Callers run it inside the same transaction as the
// mutation it describes so a rejected mutation leaves no entry behind.
func (s *Service) Record(ctx context.Context, odontogramID uuid.UUID, actor auth.Actor, action ActionType, metadata map[string]string) (*Contribution, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown contribution action %q", action)
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	c := &Contribution{
		OdontogramID: odontogramID,
		DentistID:    actor.DentistID,
		DentistName:  actor.DentistName,
		OfficeID:     actor.OfficeID,
		OfficeName:   actor.OfficeName,
		ActionType:   action,
		Metadata:     meta,
	}
	if err := s.repo.Append(ctx, c); err != nil {
		return nil, fmt.Errorf("append contribution: %w", err)
	}
	return c, nil
}

// History lists a chart's entries in the order they were recorded.
func (s *Service) History(ctx context.Context, odontogramID uuid.UUID, action ActionType, limit, offset int) ([]*Contribution, int, error) {
	if action != "" && !action.Valid() {
		return nil, 0, apperr.Validation("unknown action_type %q", action)
	}
	return s.repo.ListByOdontogram(ctx, odontogramID, Filter{ActionType: action}, limit, offset)
}

// NotesHistory projects every UPDATED_NOTES entry of a chart.
func (s *Service) NotesHistory(ctx context.Context, odontogramID uuid.UUID) ([]NoteEntry, error) {
	items, _, err := s.repo.ListByOdontogram(ctx, odontogramID, Filter{ActionType: ActionUpdatedNotes}, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]NoteEntry, 0, len(items))
	for _, c := range items {
		out = append(out, NoteEntry{
			Timestamp:   c.ContributionDate,
			DentistName: c.DentistName,
			OfficeName:  c.OfficeName,
			OfficeID:    c.OfficeID,
			Notes:       c.Metadata[MetaNotes],
		})
	}
	return out, nil
}
