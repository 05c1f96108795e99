package services

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/models"
)

// setupTestDB opens an isolated in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.ProductCategory{},
		&models.Order{},
		&models.OrderProduct{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// seedCustomer creates a customer account for order ownership.
func seedCustomer(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	user := models.User{
		Email:    email,
		Password: "$2a$10$abcdefghijklmnopqrstuv",
		Forename: "Test",
		Surname:  "Customer",
		Role:     models.RoleCustomer,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed customer: %v", err)
	}
	return user
}

// seedProduct creates a catalog entry with the given price.
func seedProduct(t *testing.T, db *gorm.DB, name, price string) models.Product {
	t.Helper()

	parsed, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("Invalid price %q: %v", price, err)
	}
	product := models.Product{Name: name, Price: parsed}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return product
}

// setupOrchestrator builds the full state machine over an in-memory database
// and a scripted escrow adapter.
func setupOrchestrator(t *testing.T) (*gorm.DB, *MockEscrowAdapter, *EscrowOrchestrator) {
	t.Helper()

	db := setupTestDB(t)
	adapter := NewMockEscrowAdapter()
	metrics := NewMetrics(prometheus.NewRegistry())
	orchestrator := NewEscrowOrchestrator(NewOrderLedger(db), adapter, metrics, zap.NewNop())
	return db, adapter, orchestrator
}
