package reference

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/ecotrail/emissiondesk/internal/reference/domain"
	"github.com/ecotrail/emissiondesk/pkg/telemetry"
	"go.uber.org/zap"
)

// Cache holds the three auxiliary datasets a console session needs: the
// emission-reference catalog, the lifecycle-stage vocabulary, and the BOM line
// items of the active product. The datasets load independently; one failing
// fetch never blocks the others. Filtered views are pure projections over the
// loaded data, recomputed only when the source or the query changes.
type Cache struct {
	log     *zap.Logger
	repo    domain.Repository
	metrics *telemetry.Metrics

	mu         sync.Mutex
	references []domain.EmissionReference
	stages     []domain.LifecycleStageChoice
	lineItems  []domain.BomLineItem

	refErr   error
	stageErr error
	itemErr  error

	refVersion  uint64
	itemVersion uint64

	refView  filterView[domain.EmissionReference]
	itemView filterView[domain.BomLineItem]
}

type filterView[T any] struct {
	version uint64
	query   string
	valid   bool
	result  []T
}

func NewCache(log *zap.Logger, repo domain.Repository, metrics *telemetry.Metrics) *Cache {
	return &Cache{
		log:     log.Named("reference.cache"),
		repo:    repo,
		metrics: metrics,
	}
}

// Load fetches all three datasets for the product. The fetches run
// concurrently; each commits its result as soon as it completes, so callers
// observe any subset of the datasets while the rest are still in flight.
func (c *Cache) Load(ctx context.Context, productID int64) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		refs, err := c.repo.ListEmissionReferences(ctx)
		c.metrics.ObserveReferenceFetch("emission_references", fetchStatus(err))
		c.mu.Lock()
		defer c.mu.Unlock()
		c.refErr = err
		if err != nil {
			c.log.Warn("emission reference fetch failed", zap.Error(err))
			return
		}
		c.references = refs
		c.refVersion++
		c.refView.valid = false
	}()

	go func() {
		defer wg.Done()
		stages, err := c.repo.ListLifecycleStageChoices(ctx, productID)
		c.metrics.ObserveReferenceFetch("lifecycle_stages", fetchStatus(err))
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stageErr = err
		if err != nil {
			c.log.Warn("lifecycle stage fetch failed", zap.Error(err))
			return
		}
		c.stages = stages
	}()

	go func() {
		defer wg.Done()
		items, err := c.repo.ListBomLineItems(ctx, productID)
		c.metrics.ObserveReferenceFetch("bom_line_items", fetchStatus(err))
		c.mu.Lock()
		defer c.mu.Unlock()
		c.itemErr = err
		if err != nil {
			c.log.Warn("bom line item fetch failed", zap.Error(err))
			return
		}
		c.lineItems = items
		c.itemVersion++
		c.itemView.valid = false
	}()

	wg.Wait()
}

func fetchStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Refresh re-fetches the datasets. Callers that must not block dispatch it on
// a goroutine; the cache remains usable throughout.
func (c *Cache) Refresh(ctx context.Context, productID int64) {
	c.Load(ctx, productID)
}

// References returns the loaded emission-reference catalog.
func (c *Cache) References() []domain.EmissionReference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.references
}

// Stages returns the loaded lifecycle-stage vocabulary.
func (c *Cache) Stages() []domain.LifecycleStageChoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stages
}

// LineItems returns the loaded BOM line items.
func (c *Cache) LineItems() []domain.BomLineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineItems
}

// Errs reports the last fetch error per dataset, in catalog, stage, item order.
func (c *Cache) Errs() (error, error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refErr, c.stageErr, c.itemErr
}

// FilterReferences returns catalog entries whose name contains the query,
// case-insensitively. The projection is memoized per source version and query.
func (c *Cache) FilterReferences(query string) []domain.EmissionReference {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refView.valid && c.refView.version == c.refVersion && c.refView.query == query {
		return c.refView.result
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	result := c.references
	if needle != "" {
		result = make([]domain.EmissionReference, 0, len(c.references))
		for _, ref := range c.references {
			if strings.Contains(strings.ToLower(ref.Name), needle) {
				result = append(result, ref)
			}
		}
	}

	c.refView = filterView[domain.EmissionReference]{
		version: c.refVersion,
		query:   query,
		valid:   true,
		result:  result,
	}
	return result
}

// FilterLineItems returns BOM items whose identity (id or component product
// name) contains the query, case-insensitively. Memoized like FilterReferences.
func (c *Cache) FilterLineItems(query string) []domain.BomLineItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.itemView.valid && c.itemView.version == c.itemVersion && c.itemView.query == query {
		return c.itemView.result
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	result := c.lineItems
	if needle != "" {
		result = make([]domain.BomLineItem, 0, len(c.lineItems))
		for _, item := range c.lineItems {
			id := strconv.FormatInt(item.ID, 10)
			if strings.Contains(id, needle) || strings.Contains(strings.ToLower(item.ProductName), needle) {
				result = append(result, item)
			}
		}
	}

	c.itemView = filterView[domain.BomLineItem]{
		version: c.itemVersion,
		query:   query,
		valid:   true,
		result:  result,
	}
	return result
}

// StageLabel resolves a stage code to its display name. Unmapped codes come
// back verbatim.
func (c *Cache) StageLabel(code string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stage := range c.stages {
		if stage.Value == code {
			return stage.DisplayName
		}
	}
	return code
}

// LineItem looks up a BOM item by id. A missing item is not an error; records
// may hold stale references.
func (c *Cache) LineItem(id int64) (domain.BomLineItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.lineItems {
		if item.ID == id {
			return item, true
		}
	}
	return domain.BomLineItem{}, false
}
