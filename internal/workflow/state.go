package workflow

import (
	"errors"
	"strconv"
	"strings"

	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/importexport"
	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"

	"github.com/bwmarrin/snowflake"
)

// Mode distinguishes the two form flavors.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

const (
	// UnknownItemLabel renders BOM associations whose item is absent from the
	// loaded cache.
	UnknownItemLabel = "Unknown Item"

	unknownQuantityPlaceholder = "-"

	// EmptyOverridesMessage is the overrides viewer's empty state.
	EmptyOverridesMessage = "No overrides found"
	// EmptyBomMessage is the BOM viewer's empty state.
	EmptyBomMessage = "No items associated"
)

// OverrideViewRow is a resolved, display-ready override factor.
type OverrideViewRow struct {
	StageLabel     string  `json:"stage_label"`
	CO2Biogenic    float64 `json:"co2_biogenic"`
	CO2NonBiogenic float64 `json:"co2_non_biogenic"`
}

// BomViewRow is a resolved BOM association. Unmatched line-item ids keep
// their id but render the unknown label and a quantity placeholder.
type BomViewRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

type OverridesViewer struct {
	Open         bool              `json:"open"`
	RecordID     string            `json:"record_id,omitempty"`
	Rows         []OverrideViewRow `json:"rows,omitempty"`
	EmptyMessage string            `json:"empty_message,omitempty"`
}

type BomViewer struct {
	Open         bool         `json:"open"`
	RecordID     string       `json:"record_id,omitempty"`
	Rows         []BomViewRow `json:"rows,omitempty"`
	EmptyMessage string       `json:"empty_message,omitempty"`
}

// Snapshot is an immutable view of the workflow for rendering. Mutating a
// snapshot never affects the controller.
type Snapshot struct {
	Records []emissiondomain.Response `json:"records"`

	FormOpen   bool   `json:"form_open"`
	Mode       Mode   `json:"mode,omitempty"`
	Draft      *Draft `json:"draft,omitempty"`
	Submitting bool   `json:"submitting"`

	DeleteConfirmOpen bool   `json:"delete_confirm_open"`
	DeleteTarget      string `json:"delete_target,omitempty"`
	Deleting          bool   `json:"deleting"`
	DeleteError       string `json:"delete_error,omitempty"`

	Overrides OverridesViewer `json:"overrides_viewer"`
	Bom       BomViewer       `json:"bom_viewer"`

	ImportBlocked bool   `json:"import_blocked"`
	LoadError     string `json:"load_error,omitempty"`
}

// State captures the current workflow state, resolving viewer rows against
// the reference cache.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Records:           append([]emissiondomain.Response{}, c.records...),
		FormOpen:          c.formOpen,
		Submitting:        c.submitting,
		DeleteConfirmOpen: c.deleteTarget != "",
		DeleteTarget:      c.deleteTarget,
		Deleting:          c.deleting,
		DeleteError:       c.deleteErr,
		ImportBlocked:     c.importBlocked,
		LoadError:         c.loadErr,
	}

	if c.formOpen {
		snap.Mode = c.mode
		snap.Draft = c.draft.clone()
	}

	if c.overridesTarget != nil {
		snap.Overrides = c.resolveOverrides(*c.overridesTarget)
	}
	if c.bomTarget != nil {
		snap.Bom = c.resolveBom(*c.bomTarget)
	}

	return snap
}

func (c *Controller) resolveOverrides(record emissiondomain.Response) OverridesViewer {
	viewer := OverridesViewer{
		Open:     true,
		RecordID: record.ID,
	}
	if len(record.OverrideFactors) == 0 {
		viewer.EmptyMessage = EmptyOverridesMessage
		return viewer
	}

	viewer.Rows = make([]OverrideViewRow, 0, len(record.OverrideFactors))
	for _, factor := range record.OverrideFactors {
		viewer.Rows = append(viewer.Rows, OverrideViewRow{
			StageLabel:     c.cache.StageLabel(factor.LifecycleStage),
			CO2Biogenic:    factor.CO2Biogenic,
			CO2NonBiogenic: factor.CO2NonBiogenic,
		})
	}
	return viewer
}

func (c *Controller) resolveBom(record emissiondomain.Response) BomViewer {
	viewer := BomViewer{
		Open:     true,
		RecordID: record.ID,
	}
	if len(record.LineItems) == 0 {
		viewer.EmptyMessage = EmptyBomMessage
		return viewer
	}

	viewer.Rows = make([]BomViewRow, 0, len(record.LineItems))
	for _, raw := range record.LineItems {
		row := BomViewRow{
			ID:       raw,
			Name:     UnknownItemLabel,
			Quantity: unknownQuantityPlaceholder,
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			if item, ok := c.cache.LineItem(id); ok {
				row.Name = item.ProductName
				row.Quantity = strconv.FormatFloat(item.Quantity, 'f', -1, 64)
			}
		}
		viewer.Rows = append(viewer.Rows, row)
	}
	return viewer
}

// Options are the reference-backed dropdown datasets, filtered by the
// caller's search text. Each dataset degrades independently: a failed fetch
// reports its error while the other two stay usable.
type Options struct {
	References []referencedomain.EmissionReference    `json:"references"`
	Stages     []referencedomain.LifecycleStageChoice `json:"stages"`
	LineItems  []referencedomain.BomLineItem          `json:"line_items"`

	ReferenceError string `json:"reference_error,omitempty"`
	StageError     string `json:"stage_error,omitempty"`
	LineItemError  string `json:"line_item_error,omitempty"`
}

func (c *Controller) Options(refQuery, itemQuery string) Options {
	opts := Options{
		References: c.cache.FilterReferences(refQuery),
		Stages:     c.cache.Stages(),
		LineItems:  c.cache.FilterLineItems(itemQuery),
	}

	refErr, stageErr, itemErr := c.cache.Errs()
	if refErr != nil {
		opts.ReferenceError = refErr.Error()
	}
	if stageErr != nil {
		opts.StageError = stageErr.Error()
	}
	if itemErr != nil {
		opts.LineItemError = itemErr.Error()
	}
	return opts
}

func isImportBlocked(err error) bool {
	return errors.Is(err, importexport.ErrEmptyTemplate)
}

func mustParseID(id string) int64 {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return 0
	}
	return parsed.Int64()
}
