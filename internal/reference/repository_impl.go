package reference

import (
	"context"

	"github.com/ecotrail/emissiondesk/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListEmissionReferences(ctx context.Context) ([]domain.EmissionReference, error) {
	var refs []domain.EmissionReference
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, name FROM emission_references ORDER BY name`).
		Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *repository) ListLifecycleStageChoices(ctx context.Context, productID int64) ([]domain.LifecycleStageChoice, error) {
	var choices []domain.LifecycleStageChoice
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, product_id, value, display_name FROM lifecycle_stage_choices WHERE product_id = ? ORDER BY id`, productID).
		Scan(&choices).Error
	if err != nil {
		return nil, err
	}
	return choices, nil
}

func (r *repository) ListBomLineItems(ctx context.Context, productID int64) ([]domain.BomLineItem, error) {
	var items []domain.BomLineItem
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, product_id, quantity, product_name FROM bom_line_items WHERE product_id = ? ORDER BY id`, productID).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
