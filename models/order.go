package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. The lifecycle is strictly CREATED -> PENDING -> COMPLETE;
// no other transition is valid and a status never regresses.
const (
	OrderStatusCreated  = "CREATED"
	OrderStatusPending  = "PENDING"
	OrderStatusComplete = "COMPLETE"
)

// Order is the authoritative local record of a purchase. The escrow contract
// deployed for it (if any) holds the funds; ContractAddress is set exactly
// once, at creation, and never reassigned.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CustomerID      uint            `gorm:"not null;index" json:"customer_id"`
	Customer        User            `gorm:"foreignKey:CustomerID" json:"-"`
	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Status          string          `gorm:"size:16;not null;default:'CREATED';index" json:"status"`
	Timestamp       time.Time       `gorm:"not null" json:"timestamp"`
	ContractAddress *string         `gorm:"size:64" json:"contract_address,omitempty"`
	CustomerAddress *string         `gorm:"size:64" json:"customer_address,omitempty"`

	OrderProducts []OrderProduct `gorm:"foreignKey:OrderID" json:"order_products,omitempty"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// PriceUnits returns the order price in the contract's integer unit (cents).
func (o *Order) PriceUnits() *big.Int {
	return big.NewInt(o.Price.Mul(decimal.NewFromInt(100)).IntPart())
}

// HasContract reports whether an escrow contract was deployed for the order.
func (o *Order) HasContract() bool {
	return o.ContractAddress != nil && *o.ContractAddress != ""
}

// OrderProduct records the quantity of one product on one order. Rows are
// created atomically with the order and are immutable afterwards.
type OrderProduct struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   uint    `gorm:"not null;index" json:"order_id"`
	ProductID uint    `gorm:"not null;index" json:"product_id"`
	Quantity  int     `gorm:"not null;check:quantity > 0" json:"quantity"`
	Product   Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName specifies the table name for the OrderProduct model
func (OrderProduct) TableName() string {
	return "order_products"
}
