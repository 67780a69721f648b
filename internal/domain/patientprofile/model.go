package patientprofile

import (
	"strings"
	"time"
)

const birthDateLayout = "2006-01-02"

// Profile maps to the patient_profile table. It is keyed by the patient's
// user id and lives independently of the patient's charts.
type Profile struct {
	UserID             int64     `db:"user_id" json:"user_id"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	Phone              string    `db:"phone" json:"phone"`
	BirthDate          string    `db:"birth_date" json:"birth_date"`
	Address            *string   `db:"address" json:"address,omitempty"`
	Occupation         *string   `db:"occupation" json:"occupation,omitempty"`
	GeneralNotes       *string   `db:"general_notes" json:"general_notes,omitempty"`
	WarningSign        bool      `db:"warning_sign" json:"warning_sign"`
	WarningDescription *string   `db:"warning_description" json:"warning_description,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Request is the body of both create and update. An update replaces every
// attribute.
type Request struct {
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	Phone              string  `json:"phone"`
	BirthDate          string  `json:"birth_date"`
	Address            *string `json:"address"`
	Occupation         *string `json:"occupation"`
	GeneralNotes       *string `json:"general_notes"`
	WarningSign        bool    `json:"warning_sign"`
	WarningDescription *string `json:"warning_description"`
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// apply writes the normalised request onto p. Validate must have passed.
func (r Request) apply(p *Profile) {
	p.FirstName = strings.TrimSpace(r.FirstName)
	p.LastName = strings.TrimSpace(r.LastName)
	p.Phone = strings.TrimSpace(r.Phone)
	p.BirthDate = strings.TrimSpace(r.BirthDate)
	p.Address = optional(r.Address)
	p.Occupation = optional(r.Occupation)
	p.GeneralNotes = optional(r.GeneralNotes)
	p.WarningSign = r.WarningSign
	p.WarningDescription = optional(r.WarningDescription)
}
