package domain

import "time"

// EmissionReference is an immutable reference-factor catalog entry. The
// catalog is global, not product-scoped, and read-only from this service.
type EmissionReference struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:text;not null;unique"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EmissionReference) TableName() string { return "emission_references" }

// LifecycleStageChoice maps an internal stage code to a human label.
type LifecycleStageChoice struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	ProductID   int64  `json:"product_id" gorm:"not null;index"`
	Value       string `json:"value" gorm:"type:text;not null"`
	DisplayName string `json:"display_name" gorm:"type:text;not null"`
}

func (LifecycleStageChoice) TableName() string { return "lifecycle_stage_choices" }

// BomLineItem is a bill-of-materials entry. Emission records may keep
// referencing an item after it disappears from the loaded BOM; viewers render
// such rows as unknown.
type BomLineItem struct {
	ID          int64   `json:"id" gorm:"primaryKey"`
	ProductID   int64   `json:"product_id" gorm:"not null;index"`
	Quantity    float64 `json:"quantity" gorm:"not null;default:0"`
	ProductName string  `json:"product_name" gorm:"type:text;not null"`
}

func (BomLineItem) TableName() string { return "bom_line_items" }
