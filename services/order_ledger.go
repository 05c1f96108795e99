package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/models"
)

// OrderItemRequest is one validated line of a create-order request.
type OrderItemRequest struct {
	ProductID int
	Quantity  int
}

// OrderLine pairs a materialized product with the requested quantity.
type OrderLine struct {
	Product  models.Product
	Quantity int
}

// UnassignedOrder is a courier-facing listing row.
type UnassignedOrder struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// OrderLedger owns the authoritative order records. It is the single source
// of truth for "what state is this order in"; the orchestrator reconciles it
// against on-chain state at every transition.
type OrderLedger struct {
	db *gorm.DB
}

// NewOrderLedger wraps the database handle.
func NewOrderLedger(db *gorm.DB) *OrderLedger {
	return &OrderLedger{db: db}
}

// WithTransaction runs fn inside a single database transaction. Any error
// returned by fn rolls back everything written inside it.
func (l *OrderLedger) WithTransaction(fn func(tx *gorm.DB) error) error {
	return l.db.Transaction(fn)
}

// ValidateItems resolves each requested line against the catalog and returns
// the materialized lines together with the order total. Every monetary step
// stays in fixed-point decimal.
func (l *OrderLedger) ValidateItems(items []OrderItemRequest) ([]OrderLine, decimal.Decimal, error) {
	lines := make([]OrderLine, 0, len(items))
	total := decimal.Zero

	for index, item := range items {
		if item.ProductID <= 0 {
			return nil, decimal.Zero, ErrValidation(fmt.Sprintf("Invalid product id for request number %d.", index))
		}
		if item.Quantity <= 0 {
			return nil, decimal.Zero, ErrValidation(fmt.Sprintf("Invalid product quantity for request number %d.", index))
		}

		var product models.Product
		if err := l.db.First(&product, item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, decimal.Zero, ErrValidation(fmt.Sprintf("Invalid product for request number %d.", index))
			}
			return nil, decimal.Zero, fmt.Errorf("failed to look up product %d: %w", item.ProductID, err)
		}

		lines = append(lines, OrderLine{Product: product, Quantity: item.Quantity})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return lines, total, nil
}

// InsertOrder persists the order and its line items in the given transaction.
func (l *OrderLedger) InsertOrder(tx *gorm.DB, order *models.Order, lines []OrderLine) error {
	if err := tx.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	for _, line := range lines {
		op := models.OrderProduct{
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
		}
		if err := tx.Create(&op).Error; err != nil {
			return fmt.Errorf("failed to create order line: %w", err)
		}
	}
	return nil
}

// FindByID loads an order with its line items materialized; absent orders
// resolve to nil, not an error.
func (l *OrderLedger) FindByID(orderID uint) (*models.Order, error) {
	var order models.Order
	err := l.db.
		Preload("OrderProducts.Product.Categories").
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	return &order, nil
}

// FindByCustomer returns the customer's orders oldest first, with line items
// and product categories materialized.
func (l *OrderLedger) FindByCustomer(customerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := l.db.
		Preload("OrderProducts.Product.Categories").
		Where("customer_id = ?", customerID).
		Order("timestamp asc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for customer %d: %w", customerID, err)
	}
	return orders, nil
}

// ListCreatedUnassigned returns every order still waiting for a courier,
// paired with the owning customer's email.
func (l *OrderLedger) ListCreatedUnassigned() ([]UnassignedOrder, error) {
	var rows []UnassignedOrder
	err := l.db.Model(&models.Order{}).
		Select("orders.id as id, users.email as email").
		Joins("JOIN users ON users.id = orders.customer_id").
		Where("orders.status = ?", models.OrderStatusCreated).
		Order("orders.id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned orders: %w", err)
	}
	return rows, nil
}

// Transition conditionally moves an order from one status to the next. The
// conditional UPDATE re-verifies the expected status at commit time, so of
// two concurrent transitions exactly one wins; the loser sees zero affected
// rows and gets a conflict. Runs on the caller's transaction handle so a
// failed chain write afterwards rolls the transition back with it.
func (l *OrderLedger) Transition(tx *gorm.DB, orderID uint, from, to string) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to transition order %d: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict("Invalid order id.")
	}
	return nil
}

// SetContractAddress records the deployed escrow address. Allowed exactly
// once; a second attempt is a conflict.
func (l *OrderLedger) SetContractAddress(tx *gorm.DB, orderID uint, address string) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND contract_address IS NULL", orderID).
		Update("contract_address", address)
	if res.Error != nil {
		return fmt.Errorf("failed to set contract address for order %d: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict("Contract address already set.")
	}
	return nil
}

// SetCustomerAddress lazily fills in the paying address for an order created
// without one.
func (l *OrderLedger) SetCustomerAddress(orderID uint, address string) error {
	err := l.db.Model(&models.Order{}).
		Where("id = ? AND customer_address IS NULL", orderID).
		Update("customer_address", address).Error
	if err != nil {
		return fmt.Errorf("failed to set customer address for order %d: %w", orderID, err)
	}
	return nil
}
