package patientprofile

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/odonto/charting/internal/platform/apperr"
)

// Column widths of patient_profile.
const (
	maxNameLen       = 100
	maxPhoneLen      = 40
	maxOccupationLen = 255
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Validate checks the required demographics and that a medical warning is
// always described. It runs before anything is written.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(r.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if strings.TrimSpace(r.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(r.BirthDate) == "" {
		missing = append(missing, "birth_date")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"first_name", strings.TrimSpace(r.FirstName), maxNameLen},
		{"last_name", strings.TrimSpace(r.LastName), maxNameLen},
		{"phone", strings.TrimSpace(r.Phone), maxPhoneLen},
		{"occupation", deref(optional(r.Occupation)), maxOccupationLen},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return apperr.Validation("%s must be at most %d characters", f.name, f.max)
		}
	}

	bd, err := time.Parse(birthDateLayout, strings.TrimSpace(r.BirthDate))
	if err != nil {
		return apperr.Validation("birth_date must be YYYY-MM-DD, got %q", r.BirthDate)
	}
	if bd.After(time.Now()) {
		return apperr.Validation("birth_date must not be in the future")
	}

	if r.WarningSign && optional(r.WarningDescription) == nil {
		return apperr.Validation("warning_description is required when warning_sign is set")
	}
	return nil
}
