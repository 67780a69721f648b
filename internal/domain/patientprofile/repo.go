package patientprofile

import "context"

type Repository interface {
	Get(ctx context.Context, userID int64) (*Profile, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, p *Profile) error
}
