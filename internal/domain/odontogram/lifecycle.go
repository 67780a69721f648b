package odontogram

import (
	"time"

	"github.com/odonto/charting/internal/platform/apperr"
)

// Transition returns a copy of p moved to status to. PLANNED and IN_PROGRESS
// may move to any status, including straight to COMPLETED; COMPLETED and
// CANCELLED accept no change at all.
//
// CompletedDate is written only when entering COMPLETED, from completed or
// else today's date in now. It is never cleared.
func (p TreatmentPlan) Transition(to TreatmentStatus, completed *Date, now time.Time) (TreatmentPlan, error) {
	if !to.Valid() {
		return p, apperr.Validation("invalid treatment status %q", to)
	}
	if p.Status.Terminal() {
		return p, apperr.Validation("treatment plan is %s and cannot be changed; add a new plan instead", p.Status)
	}
	if completed != nil && to != TreatmentCompleted {
		return p, apperr.Validation("completed_date is only accepted together with status COMPLETED")
	}

	next := p
	next.Status = to
	if to == TreatmentCompleted {
		d := NewDate(now)
		if completed != nil {
			d = *completed
		}
		next.CompletedDate = &d
	}
	return next, nil
}
