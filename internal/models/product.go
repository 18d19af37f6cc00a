package models

import (
	"strings"

	"gorm.io/datatypes"
)

// Product is a catalogue entry with one or more images.
type Product struct {
	BaseModel

	Name          string                      `gorm:"uniqueIndex;size:200;not null" json:"name" validate:"required,min=3,max=200"`
	Description   string                      `gorm:"size:1000" json:"description" validate:"max=1000"`
	Price         float64                     `gorm:"not null" json:"price" validate:"gte=0"`
	DiscountPrice *float64                    `json:"discount_price,omitempty" validate:"omitempty,gte=0,ltefield=Price"`
	Stock         int                         `gorm:"not null;default:0" json:"stock" validate:"gte=0"`
	Category      string                      `gorm:"size:50;index" json:"category" validate:"max=50"`
	Brand         string                      `gorm:"size:100" json:"brand" validate:"max=100"`
	Images        datatypes.JSONSlice[string] `json:"images"`
}

// Normalize trims free text fields.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Brand = strings.TrimSpace(p.Brand)
}
