// Package dentition holds the anatomical rules of the chart: FDI tooth
// identifiers, the surfaces each tooth can have, and the mapping from a
// position on the rendered tooth diagram to the surface it represents.
package dentition

import (
	"fmt"
	"strconv"
)

// Quadrant is the first FDI digit.
type Quadrant int

const (
	UpperRight Quadrant = 1
	UpperLeft  Quadrant = 2
	LowerLeft  Quadrant = 3
	LowerRight Quadrant = 4
)

func (q Quadrant) Key() string {
	switch q {
	case UpperRight:
		return "UPPER_RIGHT"
	case UpperLeft:
		return "UPPER_LEFT"
	case LowerLeft:
		return "LOWER_LEFT"
	case LowerRight:
		return "LOWER_RIGHT"
	}
	return ""
}

// Arch is the jaw a tooth sits in.
type Arch string

const (
	ArchUpper Arch = "UPPER"
	ArchLower Arch = "LOWER"
)

// Kind is the anatomical class of a tooth.
type Kind string

const (
	KindIncisor  Kind = "INCISOR"
	KindCanine   Kind = "CANINE"
	KindPremolar Kind = "PREMOLAR"
	KindMolar    Kind = "MOLAR"
)

var positionKeys = [...]string{
	1: "CENTRAL_INCISOR",
	2: "LATERAL_INCISOR",
	3: "CANINE",
	4: "FIRST_PREMOLAR",
	5: "SECOND_PREMOLAR",
	6: "FIRST_MOLAR",
	7: "SECOND_MOLAR",
	8: "THIRD_MOLAR",
}

// Tooth is a parsed two-digit FDI identifier.
type Tooth struct {
	Quadrant Quadrant
	Position int
}

// ParseTooth accepts "11".."18", "21".."28", "31".."38" and "41".."48".
func ParseTooth(s string) (Tooth, error) {
	if len(s) != 2 {
		return Tooth{}, fmt.Errorf("invalid tooth number %q: must be two FDI digits", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Tooth{}, fmt.Errorf("invalid tooth number %q: %w", s, err)
	}
	t := Tooth{Quadrant: Quadrant(n / 10), Position: n % 10}
	if !t.Valid() {
		return Tooth{}, fmt.Errorf("invalid tooth number %q: quadrant must be 1-4 and position 1-8", s)
	}
	return t, nil
}

func MustParseTooth(s string) Tooth {
	t, err := ParseTooth(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tooth) Valid() bool {
	return t.Quadrant >= UpperRight && t.Quadrant <= LowerRight && t.Position >= 1 && t.Position <= 8
}

func (t Tooth) String() string {
	return fmt.Sprintf("%d%d", t.Quadrant, t.Position)
}

// Anterior reports whether the tooth is an incisor or canine.
func (t Tooth) Anterior() bool {
	return t.Position <= 3
}

func (t Tooth) Arch() Arch {
	if t.Quadrant == UpperRight || t.Quadrant == UpperLeft {
		return ArchUpper
	}
	return ArchLower
}

func (t Tooth) Kind() Kind {
	switch {
	case t.Position <= 2:
		return KindIncisor
	case t.Position == 3:
		return KindCanine
	case t.Position <= 5:
		return KindPremolar
	default:
		return KindMolar
	}
}

// NameKeys returns the localization keys for the quadrant and the tooth
// position, e.g. ("ODONTOGRAM.TOOTH_NAMES.UPPER_RIGHT",
// "ODONTOGRAM.TOOTH_NAMES.FIRST_MOLAR") for 16.
func (t Tooth) NameKeys() (quadrant, position string) {
	return "ODONTOGRAM.TOOTH_NAMES." + t.Quadrant.Key(), "ODONTOGRAM.TOOTH_NAMES." + positionKeys[t.Position]
}

// Layout is the permanent dentition as drawn on a chart: upper row from the
// patient's right third molar to left third molar, lower row likewise.
type Layout struct {
	Upper []Tooth `json:"upper"`
	Lower []Tooth `json:"lower"`
}

func ChartLayout() Layout {
	var l Layout
	for p := 8; p >= 1; p-- {
		l.Upper = append(l.Upper, Tooth{UpperRight, p})
		l.Lower = append(l.Lower, Tooth{LowerRight, p})
	}
	for p := 1; p <= 8; p++ {
		l.Upper = append(l.Upper, Tooth{UpperLeft, p})
		l.Lower = append(l.Lower, Tooth{LowerLeft, p})
	}
	return l
}

// AllTeeth lists the 32 FDI identifiers in quadrant order.
func AllTeeth() []Tooth {
	out := make([]Tooth, 0, 32)
	for q := UpperRight; q <= LowerRight; q++ {
		for p := 1; p <= 8; p++ {
			out = append(out, Tooth{q, p})
		}
	}
	return out
}

func (t Tooth) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tooth) UnmarshalText(b []byte) error {
	parsed, err := ParseTooth(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
