package workflow

import (
	"strconv"
	"strings"

	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
)

// OverrideRow is one editable per-stage override in the form. Values stay in
// text form until submit, like the distance and weight inputs.
type OverrideRow struct {
	LifecycleStage string `json:"lifecycle_stage"`
	CO2Biogenic    string `json:"co2_biogenic"`
	CO2NonBiogenic string `json:"co2_non_biogenic"`
}

// Draft is the mutable form state of a single emission record being created
// or edited. All edits are local until submit; the persisted list is never
// touched by draft mutations.
type Draft struct {
	RecordID  string        `json:"record_id,omitempty"`
	Distance  string        `json:"distance"`
	Weight    string        `json:"weight"`
	Reference string        `json:"reference"`
	Overrides []OverrideRow `json:"overrides"`
	LineItems []string      `json:"line_items"`

	// Error holds the inline message shown on the form after a rejected or
	// failed submit.
	Error string `json:"error,omitempty"`
}

func newCreateDraft() *Draft {
	return &Draft{
		Overrides: []OverrideRow{},
		LineItems: []string{},
	}
}

func newEditDraft(record emissiondomain.Response) *Draft {
	overrides := make([]OverrideRow, 0, len(record.OverrideFactors))
	for _, factor := range record.OverrideFactors {
		overrides = append(overrides, OverrideRow{
			LifecycleStage: factor.LifecycleStage,
			CO2Biogenic:    strconv.FormatFloat(factor.CO2Biogenic, 'f', -1, 64),
			CO2NonBiogenic: strconv.FormatFloat(factor.CO2NonBiogenic, 'f', -1, 64),
		})
	}

	return &Draft{
		RecordID:  record.ID,
		Distance:  strconv.FormatFloat(record.Distance, 'f', -1, 64),
		Weight:    strconv.FormatFloat(record.Weight, 'f', -1, 64),
		Reference: record.Reference,
		Overrides: overrides,
		LineItems: append([]string{}, record.LineItems...),
	}
}

func (d *Draft) setField(name, value string) bool {
	switch name {
	case "distance":
		d.Distance = value
	case "weight":
		d.Weight = value
	case "reference":
		d.Reference = value
	default:
		return false
	}
	return true
}

func (d *Draft) addOverrideRow() {
	d.Overrides = append(d.Overrides, OverrideRow{})
}

func (d *Draft) removeOverrideRow(index int) bool {
	if index < 0 || index >= len(d.Overrides) {
		return false
	}
	d.Overrides = append(d.Overrides[:index], d.Overrides[index+1:]...)
	return true
}

func (d *Draft) setOverrideRow(index int, row OverrideRow) bool {
	if index < 0 || index >= len(d.Overrides) {
		return false
	}
	d.Overrides[index] = row
	return true
}

func (d *Draft) toggleLineItem(id string) {
	for i, existing := range d.LineItems {
		if existing == id {
			d.LineItems = append(d.LineItems[:i], d.LineItems[i+1:]...)
			return
		}
	}
	d.LineItems = append(d.LineItems, id)
}

// incomplete reports whether submission must stay disabled. Override factors
// and line items are optional; no numeric bounds are checked here, the record
// store is the authority on semantic validity.
func (d *Draft) incomplete() bool {
	return strings.TrimSpace(d.Distance) == "" ||
		strings.TrimSpace(d.Weight) == "" ||
		strings.TrimSpace(d.Reference) == ""
}

func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	copied := *d
	copied.Overrides = append([]OverrideRow{}, d.Overrides...)
	copied.LineItems = append([]string{}, d.LineItems...)
	return &copied
}

func (d *Draft) overrideFactors() ([]emissiondomain.OverrideFactor, bool) {
	factors := make([]emissiondomain.OverrideFactor, 0, len(d.Overrides))
	for _, row := range d.Overrides {
		bio, okBio := parseFactor(row.CO2Biogenic)
		nonBio, okNonBio := parseFactor(row.CO2NonBiogenic)
		if !okBio || !okNonBio {
			return nil, false
		}
		factors = append(factors, emissiondomain.OverrideFactor{
			LifecycleStage: row.LifecycleStage,
			CO2Biogenic:    bio,
			CO2NonBiogenic: nonBio,
		})
	}
	return factors, true
}

func parseFactor(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, true
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
