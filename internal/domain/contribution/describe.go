package contribution

// Description is a localizable rendering of an entry. Key names the message
// template; Params fills it. Params that are themselves enum values are
// given as message keys so the caller resolves every display string.
type Description struct {
	Key    string            `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

const keyPrefix = "ODONTOGRAM."

func Describe(c *Contribution) Description {
	meta := c.Metadata
	d := Description{Key: keyPrefix + "CONTRIBUTION_DESCRIPTIONS." + string(c.ActionType)}

	switch c.ActionType {
	case ActionUpdatedSurface:
		d.Params = map[string]string{
			"surfaceType": enumKey("SURFACE_TYPES", meta[MetaSurfaceType]),
			"toothNumber": meta[MetaToothNumber],
			"status":      enumKey("SURFACE_STATUS", meta[MetaStatus]),
		}
	case ActionUpdatedTooth:
		d.Params = map[string]string{
			"toothNumber": meta[MetaToothNumber],
			"status":      enumKey("TOOTH_STATUS", meta[MetaStatus]),
		}
	case ActionAddedTreatment:
		d.Params = map[string]string{
			"treatmentType": meta[MetaTreatmentType],
			"toothNumber":   meta[MetaToothNumber],
		}
	case ActionUpdatedTreatment:
		d.Params = map[string]string{
			"status": enumKey("TREATMENT_STATUS", meta[MetaStatus]),
		}
	case ActionCreated, ActionUpdatedNotes:
	default:
		// Unknown actions fall back to the raw value.
		d.Key = string(c.ActionType)
	}
	return d
}

func enumKey(group, value string) string {
	if value == "" {
		return ""
	}
	return keyPrefix + group + "." + value
}

// Described pairs an entry with its description for API responses.
type Described struct {
	*Contribution
	Description Description `json:"description"`
}

func DescribeAll(items []*Contribution) []Described {
	out := make([]Described, 0, len(items))
	for _, c := range items {
		out = append(out, Described{Contribution: c, Description: Describe(c)})
	}
	return out
}
