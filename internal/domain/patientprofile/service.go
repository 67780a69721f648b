package patientprofile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/metrics"
)

// Service stores patient profiles. A profile is independent of the charts:
// no write here shares a transaction with an odontogram mutation.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "patientprofile").Logger()
}

func validUser(userID int64) error {
	if userID <= 0 {
		return apperr.Validation("invalid user id %d", userID)
	}
	return nil
}

// Get returns the profile or apperr.NotFound. Callers create the profile on
// NotFound rather than treating it as a failure.
func (s *Service) Get(ctx context.Context, userID int64) (*Profile, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	if err := validUser(userID); err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID int64, req Request) (*Profile, error) {
	p, err := s.write(ctx, "create", userID, req, func(ctx context.Context, p *Profile) error {
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", userID).Msg("patient profile created")
	return p, nil
}

// Update replaces every attribute of an existing profile.
func (s *Service) Update(ctx context.Context, userID int64, req Request) (*Profile, error) {
	return s.write(ctx, "update", userID, req, func(ctx context.Context, p *Profile) error {
		return s.repo.Update(ctx, p)
	})
}

func (s *Service) write(ctx context.Context, op string, userID int64, req Request, store func(context.Context, *Profile) error) (*Profile, error) {
	result := "ok"
	defer func() { metrics.ProfileWritesTotal.WithLabelValues(op, result).Inc() }()

	if err := validUser(userID); err != nil {
		result = "invalid"
		return nil, err
	}
	if err := req.Validate(); err != nil {
		result = "invalid"
		return nil, err
	}
	p := &Profile{UserID: userID}
	req.apply(p)
	if err := store(ctx, p); err != nil {
		result = "error"
		if k := apperr.KindOf(err); k != 0 {
			result = k.String()
		}
		return nil, err
	}
	return p, nil
}
