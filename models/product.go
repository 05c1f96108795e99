package models

import (
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Prices are fixed-point decimal(10,2); monetary
// arithmetic never goes through floating point.
type Product struct {
	ID    uint            `gorm:"primaryKey" json:"id"`
	Name  string          `gorm:"size:256;uniqueIndex;not null" json:"name"`
	Price decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`

	Categories []Category `gorm:"many2many:product_categories;" json:"categories,omitempty"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// Category groups products; a product may belong to several categories.
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:256;uniqueIndex;not null" json:"name"`

	Products []Product `gorm:"many2many:product_categories;" json:"products,omitempty"`
}

// TableName specifies the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// ProductCategory is the join row between products and categories.
type ProductCategory struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ProductID  uint `gorm:"not null;index" json:"product_id"`
	CategoryID uint `gorm:"not null;index" json:"category_id"`
}

// TableName specifies the table name for the ProductCategory model
func (ProductCategory) TableName() string {
	return "product_categories"
}
