package controllers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/models"
)

// OwnerController handles the owner-facing surface: catalog ingestion and
// sales statistics.
type OwnerController struct {
	db *gorm.DB
}

// NewOwnerController wires the controller's dependencies.
func NewOwnerController(db *gorm.DB) *OwnerController {
	return &OwnerController{db: db}
}

type productUpload struct {
	name       string
	price      decimal.Decimal
	categories []string
}

// Update handles POST /update - adds products from an uploaded CSV file with
// lines of the form "Category|Category,Name,Price". The whole file is
// validated and applied atomically: one bad line rejects everything.
func (oc *OwnerController) Update(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field file is missing.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Error reading file.")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var uploads []productUpload
	for lineNumber := 0; ; lineNumber++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Error reading file.")
			return
		}
		if len(record) != 3 {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("Incorrect number of values on line %d.", lineNumber))
			return
		}

		categoriesField := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		priceField := strings.TrimSpace(record[2])

		price, err := decimal.NewFromString(priceField)
		if err != nil || price.Sign() <= 0 {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("Incorrect price on line %d.", lineNumber))
			return
		}

		var existing models.Product
		if err := oc.db.Where("name = ?", name).First(&existing).Error; err == nil {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("Product %s already exists.", name))
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to check existing products.")
			return
		}

		categories := make([]string, 0)
		for _, cat := range strings.Split(categoriesField, "|") {
			categories = append(categories, strings.TrimSpace(cat))
		}

		uploads = append(uploads, productUpload{name: name, price: price, categories: categories})
	}

	err = oc.db.Transaction(func(tx *gorm.DB) error {
		for _, upload := range uploads {
			product := models.Product{Name: upload.name, Price: upload.price}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			for _, categoryName := range upload.categories {
				var category models.Category
				err := tx.Where("name = ?", categoryName).First(&category).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					category = models.Category{Name: categoryName}
					if err := tx.Create(&category).Error; err != nil {
						return err
					}
				} else if err != nil {
					return err
				}
				link := models.ProductCategory{ProductID: product.ID, CategoryID: category.ID}
				if err := tx.Create(&link).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "DATABASE_ERROR", "Database error.")
		return
	}

	respondOK(c, nil)
}

type productStatistic struct {
	Name    string `json:"name"`
	Sold    int    `json:"sold"`
	Waiting int    `json:"waiting"`
}

// ProductStatistics handles GET /product_statistics - per-product sold and
// waiting quantities over all orders with at least one sale.
func (oc *OwnerController) ProductStatistics(c *gin.Context) {
	type row struct {
		Name     string
		Quantity int
	}

	var sold []row
	err := oc.db.Model(&models.OrderProduct{}).
		Select("products.name as name, SUM(order_products.quantity) as quantity").
		Joins("JOIN products ON products.id = order_products.product_id").
		Joins("JOIN orders ON orders.id = order_products.order_id").
		Where("orders.status = ?", models.OrderStatusComplete).
		Group("products.id, products.name").
		Scan(&sold).Error
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query statistics.")
		return
	}

	var waiting []row
	err = oc.db.Model(&models.OrderProduct{}).
		Select("products.name as name, SUM(order_products.quantity) as quantity").
		Joins("JOIN products ON products.id = order_products.product_id").
		Joins("JOIN orders ON orders.id = order_products.order_id").
		Where("orders.status IN ?", []string{models.OrderStatusCreated, models.OrderStatusPending}).
		Group("products.id, products.name").
		Scan(&waiting).Error
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query statistics.")
		return
	}

	soldByName := make(map[string]int, len(sold))
	for _, r := range sold {
		soldByName[r.Name] = r.Quantity
	}
	waitingByName := make(map[string]int, len(waiting))
	for _, r := range waiting {
		waitingByName[r.Name] = r.Quantity
	}

	names := make(map[string]struct{}, len(soldByName)+len(waitingByName))
	for name := range soldByName {
		names[name] = struct{}{}
	}
	for name := range waitingByName {
		names[name] = struct{}{}
	}

	statistics := make([]productStatistic, 0, len(names))
	for name := range names {
		statistics = append(statistics, productStatistic{
			Name:    name,
			Sold:    soldByName[name],
			Waiting: waitingByName[name],
		})
	}

	respondOK(c, gin.H{"statistics": statistics})
}

// CategoryStatistics handles GET /category_statistics - category names sorted
// by delivered product count, descending, ties alphabetical.
func (oc *OwnerController) CategoryStatistics(c *gin.Context) {
	var names []string
	err := oc.db.Model(&models.Category{}).
		Select("categories.name").
		Joins("JOIN product_categories ON product_categories.category_id = categories.id").
		Joins("JOIN products ON products.id = product_categories.product_id").
		Joins("JOIN order_products ON order_products.product_id = products.id").
		Joins("JOIN orders ON orders.id = order_products.order_id").
		Where("orders.status = ?", models.OrderStatusComplete).
		Group("categories.id, categories.name").
		Order("SUM(order_products.quantity) DESC, categories.name ASC").
		Pluck("categories.name", &names).Error
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query statistics.")
		return
	}

	respondOK(c, gin.H{"statistics": names})
}
