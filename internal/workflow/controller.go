package workflow

import (
	"context"
	"sync"

	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/reference"
	"github.com/ecotrail/emissiondesk/internal/sessionctx"
	"github.com/ecotrail/emissiondesk/pkg/telemetry"
	"go.uber.org/zap"
)

// Store is the slice of the record-store contract the workflow needs.
type Store interface {
	List(ctx context.Context, productID string) ([]emissiondomain.Response, error)
	Create(ctx context.Context, req emissiondomain.CreateRequest) (*emissiondomain.Response, error)
	Update(ctx context.Context, req emissiondomain.UpdateRequest) (*emissiondomain.Response, error)
	Delete(ctx context.Context, id string) error
}

// Importer forwards a validated upload to the record store.
type Importer interface {
	Import(ctx context.Context, productID, filename string, data []byte) (int, error)
}

// Controller coordinates one console session's emission-record workflow: the
// create/edit form, the delete confirmation, the two read-only viewers, and
// the import-blocked notice. It owns the persisted record list and the single
// in-progress draft; everything else reaches state only through the intent
// methods.
type Controller struct {
	log      *zap.Logger
	store    Store
	importer Importer
	cache    *reference.Cache
	metrics  *telemetry.Metrics

	session   sessionctx.Session
	productID string

	mu      sync.Mutex
	records []emissiondomain.Response
	loadErr string

	formOpen bool
	mode     Mode
	draft    *Draft

	deleteTarget string
	deleteErr    string

	submitting bool
	deleting   bool

	// Generation counters drop late completions: a response whose generation
	// no longer matches arrived after the originating draft or target was
	// replaced, and must not be applied.
	submitGen uint64
	deleteGen uint64

	overridesTarget *emissiondomain.Response
	bomTarget       *emissiondomain.Response

	importBlocked bool
}

func NewController(log *zap.Logger, store Store, importer Importer, cache *reference.Cache, metrics *telemetry.Metrics, session sessionctx.Session, productID string) *Controller {
	return &Controller{
		log:       log.Named("workflow.controller"),
		store:     store,
		importer:  importer,
		cache:     cache,
		metrics:   metrics,
		session:   session,
		productID: productID,
	}
}

// opCtx builds the context for store calls. Remote operations outlive any
// triggering request on purpose: in-flight requests are never cancelled on
// modal close, late responses are dropped by the generation guards instead.
func (c *Controller) opCtx() context.Context {
	return sessionctx.WithCompanyID(context.Background(), int64(c.session.CompanyID))
}

// Activate loads the record list and the reference datasets for the product.
func (c *Controller) Activate(ctx context.Context) {
	scoped := sessionctx.WithCompanyID(ctx, int64(c.session.CompanyID))

	records, err := c.store.List(scoped, c.productID)

	c.mu.Lock()
	if err != nil {
		c.loadErr = err.Error()
		c.log.Warn("record list load failed", zap.Error(err))
	} else {
		c.records = records
		c.loadErr = ""
	}
	c.mu.Unlock()

	c.cache.Load(scoped, mustParseID(c.productID))
}

// OpenCreate opens the form with empty defaults and kicks off a reference
// refresh so the dropdowns are current. The refresh never blocks the form.
func (c *Controller) OpenCreate() {
	c.metrics.ObserveWorkflowIntent("open_create")

	c.mu.Lock()
	c.formOpen = true
	c.mode = ModeCreate
	c.draft = newCreateDraft()
	c.submitGen++
	c.mu.Unlock()

	go c.cache.Refresh(c.opCtx(), mustParseID(c.productID))
}

// OpenEdit pre-populates the form from a record in the loaded list. Unknown
// ids are ignored.
func (c *Controller) OpenEdit(id string) bool {
	c.metrics.ObserveWorkflowIntent("open_edit")

	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.findRecord(id)
	if !ok {
		return false
	}

	c.formOpen = true
	c.mode = ModeEdit
	c.draft = newEditDraft(record)
	c.submitGen++
	return true
}

// CancelForm discards the draft. A submit still in flight for the discarded
// draft resolves against a stale generation and is dropped.
func (c *Controller) CancelForm() {
	c.metrics.ObserveWorkflowIntent("cancel_form")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.formOpen = false
	c.draft = nil
	c.submitting = false
	c.submitGen++
}

// SetDraftField updates one scalar field of the open draft.
func (c *Controller) SetDraftField(name, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return false
	}
	return c.draft.setField(name, value)
}

func (c *Controller) AddOverrideRow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft != nil {
		c.draft.addOverrideRow()
	}
}

func (c *Controller) RemoveOverrideRow(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return false
	}
	return c.draft.removeOverrideRow(index)
}

func (c *Controller) SetOverrideRow(index int, row OverrideRow) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return false
	}
	return c.draft.setOverrideRow(index, row)
}

func (c *Controller) ToggleLineItem(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return false
	}
	c.draft.toggleLineItem(id)
	return true
}

// SubmitDraft persists the open draft. It is a no-op while a submit is
// already in flight. An incomplete draft surfaces an inline message without
// reaching the store. On failure the form stays open with every entered value
// preserved and submission re-enabled; on success the form closes and the
// record list is replaced wholesale.
func (c *Controller) SubmitDraft() {
	c.metrics.ObserveWorkflowIntent("submit_draft")

	c.mu.Lock()
	if !c.formOpen || c.draft == nil || c.submitting {
		c.mu.Unlock()
		return
	}
	if c.draft.incomplete() {
		c.draft.Error = "distance, weight and reference are required"
		c.mu.Unlock()
		return
	}
	factors, ok := c.draft.overrideFactors()
	if !ok {
		c.draft.Error = "override factors must be numeric"
		c.mu.Unlock()
		return
	}

	c.draft.Error = ""
	c.submitting = true
	gen := c.submitGen
	mode := c.mode
	draft := c.draft.clone()
	c.mu.Unlock()

	go c.runSubmit(gen, mode, draft, factors)
}

func (c *Controller) runSubmit(gen uint64, mode Mode, draft *Draft, factors []emissiondomain.OverrideFactor) {
	ctx := c.opCtx()

	var err error
	if mode == ModeEdit {
		_, err = c.store.Update(ctx, emissiondomain.UpdateRequest{
			ID:              draft.RecordID,
			Distance:        draft.Distance,
			Weight:          draft.Weight,
			Reference:       draft.Reference,
			OverrideFactors: factors,
			LineItems:       draft.LineItems,
		})
	} else {
		_, err = c.store.Create(ctx, emissiondomain.CreateRequest{
			ProductID:       c.productID,
			Distance:        draft.Distance,
			Weight:          draft.Weight,
			Reference:       draft.Reference,
			OverrideFactors: factors,
			LineItems:       draft.LineItems,
		})
	}

	var records []emissiondomain.Response
	if err == nil {
		records, err = c.refreshList(ctx, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The guard permits one submit in flight, so this completion owns the
	// flag even when its draft is gone.
	c.submitting = false

	if gen != c.submitGen {
		c.log.Debug("dropping stale submit completion")
		return
	}

	if err != nil {
		if c.draft != nil {
			c.draft.Error = err.Error()
		}
		c.log.Warn("submit failed", zap.Error(err))
		return
	}

	c.formOpen = false
	c.draft = nil
	c.records = records
}

// RequestDelete opens the confirmation for a record currently in the list.
func (c *Controller) RequestDelete(id string) bool {
	c.metrics.ObserveWorkflowIntent("request_delete")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleting {
		return false
	}
	if _, ok := c.findRecord(id); !ok {
		return false
	}

	c.deleteTarget = id
	c.deleteErr = ""
	c.deleteGen++
	return true
}

// CancelDelete closes the confirmation. It is a no-op while the deletion is
// in flight; the control is disabled until the store answers.
func (c *Controller) CancelDelete() {
	c.metrics.ObserveWorkflowIntent("cancel_delete")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleting {
		return
	}
	c.deleteTarget = ""
	c.deleteErr = ""
	c.deleteGen++
}

// ConfirmDelete issues the deletion. Re-triggering while one is in flight
// for the target is a no-op, so rapid double confirmation produces exactly
// one store call.
func (c *Controller) ConfirmDelete() {
	c.metrics.ObserveWorkflowIntent("confirm_delete")

	c.mu.Lock()
	if c.deleteTarget == "" || c.deleting {
		c.mu.Unlock()
		return
	}
	c.deleting = true
	c.deleteErr = ""
	gen := c.deleteGen
	target := c.deleteTarget
	c.mu.Unlock()

	go c.runDelete(gen, target)
}

func (c *Controller) runDelete(gen uint64, target string) {
	ctx := c.opCtx()

	err := c.store.Delete(ctx, target)

	var records []emissiondomain.Response
	if err == nil {
		records, err = c.refreshList(ctx, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleting = false

	if gen != c.deleteGen {
		c.log.Debug("dropping stale delete completion")
		return
	}

	if err != nil {
		c.deleteErr = err.Error()
		c.log.Warn("delete failed", zap.String("record_id", target), zap.Error(err))
		return
	}

	c.deleteTarget = ""

	// Viewers pointed at the removed record close with it.
	if c.overridesTarget != nil && c.overridesTarget.ID == target {
		c.overridesTarget = nil
	}
	if c.bomTarget != nil && c.bomTarget.ID == target {
		c.bomTarget = nil
	}
	c.records = records
}

// OpenOverridesViewer targets the override-factor viewer at a listed record;
// opening it for another record simply retargets.
func (c *Controller) OpenOverridesViewer(id string) bool {
	c.metrics.ObserveWorkflowIntent("open_overrides_viewer")

	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.findRecord(id)
	if !ok {
		return false
	}
	c.overridesTarget = &record
	return true
}

func (c *Controller) CloseOverridesViewer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overridesTarget = nil
}

// OpenBomViewer targets the BOM-association viewer at a listed record.
func (c *Controller) OpenBomViewer(id string) bool {
	c.metrics.ObserveWorkflowIntent("open_bom_viewer")

	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.findRecord(id)
	if !ok {
		return false
	}
	c.bomTarget = &record
	return true
}

func (c *Controller) CloseBomViewer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bomTarget = nil
}

// ImportUpload validates and forwards an uploaded file. A blank or
// template-only file raises the import-blocked notice without any store call;
// a successful import replaces the record list and refreshes the reference
// cache in the background.
func (c *Controller) ImportUpload(filename string, data []byte) error {
	c.metrics.ObserveWorkflowIntent("import_upload")

	ctx := c.opCtx()
	_, err := c.importer.Import(ctx, c.productID, filename, data)
	if err != nil {
		if isImportBlocked(err) {
			c.mu.Lock()
			c.importBlocked = true
			c.mu.Unlock()
		}
		return err
	}

	records, listErr := c.store.List(ctx, c.productID)

	c.mu.Lock()
	if listErr == nil {
		c.records = records
	}
	c.mu.Unlock()

	go c.cache.Refresh(c.opCtx(), mustParseID(c.productID))
	return nil
}

// DismissImportBlocked is the only exit from the import-blocked notice.
func (c *Controller) DismissImportBlocked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.importBlocked = false
}

func (c *Controller) refreshList(ctx context.Context, prior error) ([]emissiondomain.Response, error) {
	if prior != nil {
		return nil, prior
	}
	return c.store.List(ctx, c.productID)
}

func (c *Controller) findRecord(id string) (emissiondomain.Response, bool) {
	for _, record := range c.records {
		if record.ID == id {
			return record, true
		}
	}
	return emissiondomain.Response{}, false
}
