package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, record *EmissionRecord) error
	Update(ctx context.Context, db *gorm.DB, record *EmissionRecord) error
	Delete(ctx context.Context, db *gorm.DB, companyID, id int64) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id int64) (*EmissionRecord, error)
	FindAllByProduct(ctx context.Context, db *gorm.DB, companyID, productID int64) ([]EmissionRecord, error)
}
