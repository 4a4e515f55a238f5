package domain

import (
	"time"

	"gorm.io/datatypes"
)

// OverrideFactor substitutes the reference default emission factors for one
// lifecycle stage.
type OverrideFactor struct {
	LifecycleStage string  `json:"lifecycle_stage"`
	CO2Biogenic    float64 `json:"co2_biogenic"`
	CO2NonBiogenic float64 `json:"co2_non_biogenic"`
}

// EmissionRecord is a transportation carbon-emission entry attached to a
// product. An empty OverrideFactors slice means the reference defaults apply
// to every stage. LineItems may reference BOM entries that no longer exist;
// viewers tolerate the stale ids.
type EmissionRecord struct {
	ID              int64                               `json:"id" gorm:"primaryKey"`
	CompanyID       int64                               `json:"company_id" gorm:"not null;index:idx_emission_records_scope,priority:1"`
	ProductID       int64                               `json:"product_id" gorm:"not null;index:idx_emission_records_scope,priority:2"`
	Distance        float64                             `json:"distance" gorm:"not null"`
	Weight          float64                             `json:"weight" gorm:"not null"`
	Reference       string                              `json:"reference" gorm:"type:text;not null"`
	OverrideFactors datatypes.JSONSlice[OverrideFactor] `json:"override_factors"`
	LineItems       datatypes.JSONSlice[int64]          `json:"line_items"`
	CreatedAt       time.Time                           `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time                           `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EmissionRecord) TableName() string { return "emission_records" }
