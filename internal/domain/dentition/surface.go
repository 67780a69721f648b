package dentition

import "fmt"

type SurfaceType string

const (
	Occlusal SurfaceType = "OCCLUSAL"
	Mesial   SurfaceType = "MESIAL"
	Distal   SurfaceType = "DISTAL"
	Buccal   SurfaceType = "BUCCAL"
	Lingual  SurfaceType = "LINGUAL"
	Labial   SurfaceType = "LABIAL"
	Palatal  SurfaceType = "PALATAL"
	Incisal  SurfaceType = "INCISAL"
)

func (s SurfaceType) Valid() bool {
	switch s {
	case Occlusal, Mesial, Distal, Buccal, Lingual, Labial, Palatal, Incisal:
		return true
	}
	return false
}

// Position is where a surface is drawn on the five-segment tooth diagram.
type Position string

const (
	Up     Position = "UP"
	Right  Position = "RIGHT"
	Down   Position = "DOWN"
	Left   Position = "LEFT"
	Center Position = "CENTER"
)

// Positions in diagram order.
var Positions = []Position{Center, Up, Down, Left, Right}

func (p Position) Valid() bool {
	switch p {
	case Up, Right, Down, Left, Center:
		return true
	}
	return false
}

// SurfaceFor maps a diagram position to the anatomical surface of tooth.
// Upper teeth face the viewer with their labial/buccal side up; lower teeth
// show the lingual side up. Mesial is toward the midline, so it flips
// between the patient's right quadrants (1, 4) and left quadrants (2, 3).
func SurfaceFor(t Tooth, p Position) (SurfaceType, error) {
	if !t.Valid() {
		return "", fmt.Errorf("invalid tooth %s", t)
	}
	anterior := t.Anterior()
	upper := t.Arch() == ArchUpper

	switch p {
	case Center:
		if anterior {
			return Incisal, nil
		}
		return Occlusal, nil
	case Up:
		switch {
		case !upper:
			return Lingual, nil
		case anterior:
			return Labial, nil
		default:
			return Buccal, nil
		}
	case Down:
		switch {
		case upper:
			return Palatal, nil
		case anterior:
			return Labial, nil
		default:
			return Buccal, nil
		}
	case Left:
		if t.Quadrant == UpperRight || t.Quadrant == LowerRight {
			return Distal, nil
		}
		return Mesial, nil
	case Right:
		if t.Quadrant == UpperRight || t.Quadrant == LowerRight {
			return Mesial, nil
		}
		return Distal, nil
	}
	return "", fmt.Errorf("invalid position %q", p)
}

// Label is the single-letter chart abbreviation. Facial surfaces (buccal,
// labial) print as B and oral surfaces (lingual, palatal) as L.
func Label(s SurfaceType) string {
	switch s {
	case Occlusal:
		return "O"
	case Incisal:
		return "I"
	case Mesial:
		return "M"
	case Distal:
		return "D"
	case Buccal, Labial:
		return "B"
	case Lingual, Palatal:
		return "L"
	}
	return ""
}

// AllowedSurfaces is the set reachable from the tooth's row of the mapping
// table, in diagram order.
func AllowedSurfaces(t Tooth) []SurfaceType {
	out := make([]SurfaceType, 0, len(Positions))
	for _, p := range Positions {
		s, err := SurfaceFor(t, p)
		if err != nil {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func IsSurfaceAllowed(t Tooth, s SurfaceType) bool {
	for _, a := range AllowedSurfaces(t) {
		if a == s {
			return true
		}
	}
	return false
}

// SurfaceSlot is one segment of a tooth diagram.
type SurfaceSlot struct {
	Position    Position    `json:"position"`
	SurfaceType SurfaceType `json:"surface_type"`
	Label       string      `json:"label"`
}

// SurfaceMap describes all five diagram segments of a tooth.
func SurfaceMap(t Tooth) ([]SurfaceSlot, error) {
	out := make([]SurfaceSlot, 0, len(Positions))
	for _, p := range Positions {
		s, err := SurfaceFor(t, p)
		if err != nil {
			return nil, err
		}
		out = append(out, SurfaceSlot{Position: p, SurfaceType: s, Label: Label(s)})
	}
	return out, nil
}
