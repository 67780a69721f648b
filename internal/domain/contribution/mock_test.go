package contribution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	mu    sync.Mutex
	items []*Contribution
	seq   int64
	now   time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (m *mockRepo) Append(_ context.Context, c *Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = uuid.New()
	c.Seq = m.seq
	c.ContributionDate = m.now.Add(time.Duration(m.seq) * time.Minute)
	stored := *c
	m.items = append(m.items, &stored)
	return nil
}

func (m *mockRepo) ListByOdontogram(_ context.Context, odontogramID uuid.UUID, f Filter, limit, offset int) ([]*Contribution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Contribution
	for _, c := range m.items {
		if c.OdontogramID != odontogramID {
			continue
		}
		if f.ActionType != "" && c.ActionType != f.ActionType {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	total := len(matched)
	if limit > 0 {
		if offset > len(matched) {
			offset = len(matched)
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	return matched, total, nil
}
