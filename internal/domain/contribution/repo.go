package contribution

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a history query. The zero value matches everything.
type Filter struct {
	ActionType ActionType
}

// Repository is append-only: there is no update or delete. Entries go away
// only when their odontogram is deleted.
type Repository interface {
	Append(ctx context.Context, c *Contribution) error
	// ListByOdontogram returns entries oldest first. A limit <= 0 returns all.
	ListByOdontogram(ctx context.Context, odontogramID uuid.UUID, f Filter, limit, offset int) ([]*Contribution, int, error)
}
