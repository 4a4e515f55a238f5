package repository

import (
	"context"

	"github.com/ecotrail/emissiondesk/internal/emission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, record *domain.EmissionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO emission_records (id, company_id, product_id, distance, weight, reference, override_factors, line_items, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CompanyID,
		record.ProductID,
		record.Distance,
		record.Weight,
		record.Reference,
		record.OverrideFactors,
		record.LineItems,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.EmissionRecord) error {
	if record == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE emission_records
		 SET distance = ?, weight = ?, reference = ?, override_factors = ?, line_items = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		record.Distance,
		record.Weight,
		record.Reference,
		record.OverrideFactors,
		record.LineItems,
		record.UpdatedAt,
		record.CompanyID,
		record.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, companyID, id int64) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM emission_records WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id int64) (*domain.EmissionRecord, error) {
	var record domain.EmissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, product_id, distance, weight, reference, override_factors, line_items, created_at, updated_at
		 FROM emission_records WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindAllByProduct(ctx context.Context, db *gorm.DB, companyID, productID int64) ([]domain.EmissionRecord, error) {
	var records []domain.EmissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, product_id, distance, weight, reference, override_factors, line_items, created_at, updated_at
		 FROM emission_records WHERE company_id = ? AND product_id = ? ORDER BY created_at ASC`,
		companyID,
		productID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
