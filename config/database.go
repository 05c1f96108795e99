package config

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/models"
)

// ConnectDatabase establishes a connection to the PostgreSQL database and
// returns the handle. Callers own the handle and pass it into the components
// that need it; there is no package-level database global.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// MigrateDatabase applies the schema for every model in dependency order.
func MigrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.ProductCategory{},
		&models.Order{},
		&models.OrderProduct{},
	)
}
