package patientprofile

import (
	"context"
	"sync"
	"time"

	"github.com/odonto/charting/internal/platform/apperr"
)

type mockRepo struct {
	mu       sync.Mutex
	profiles map[int64]Profile
	writes   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{profiles: map[int64]Profile{}}
}

func (m *mockRepo) Get(_ context.Context, userID int64) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, apperr.NotFound("no profile for patient %d", userID)
	}
	return &p, nil
}

func (m *mockRepo) Exists(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.profiles[userID]
	return ok, nil
}

func (m *mockRepo) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.UserID]; ok {
		return apperr.Conflict("patient %d already has a profile", p.UserID)
	}
	p.CreatedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p.UpdatedAt = p.CreatedAt
	m.profiles[p.UserID] = *p
	m.writes++
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.profiles[p.UserID]
	if !ok {
		return apperr.NotFound("no profile for patient %d", p.UserID)
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = cur.UpdatedAt.Add(time.Hour)
	m.profiles[p.UserID] = *p
	m.writes++
	return nil
}
