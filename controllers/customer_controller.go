package controllers

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/middleware"
	"github.com/chainshop/chainshop-api/models"
	"github.com/chainshop/chainshop-api/services"
	"github.com/chainshop/chainshop-api/utils"
)

// CustomerController handles the customer-facing surface: catalog search,
// order creation, invoicing, status and delivery confirmation.
type CustomerController struct {
	db           *gorm.DB
	orchestrator *services.EscrowOrchestrator
}

// NewCustomerController wires the controller's dependencies.
func NewCustomerController(db *gorm.DB, orchestrator *services.EscrowOrchestrator) *CustomerController {
	return &CustomerController{db: db, orchestrator: orchestrator}
}

// currentUser resolves the authenticated account from the token subject.
func currentUser(c *gin.Context, db *gorm.DB) (*models.User, bool) {
	email, err := middleware.GetUserEmail(c)
	if err != nil {
		respondMessage(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		respondMessage(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found.")
		return nil, false
	}
	return &user, true
}

type productView struct {
	Categories []string `json:"categories"`
	ID         uint     `json:"id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
}

// Search handles GET /search - filters products and categories by name
func (cc *CustomerController) Search(c *gin.Context) {
	nameFilter := c.Query("name")
	categoryFilter := c.Query("category")

	productsQuery := cc.db.Model(&models.Product{}).Preload("Categories").Distinct()
	categoriesQuery := cc.db.Model(&models.Category{}).Distinct("categories.name")

	if nameFilter != "" {
		productsQuery = productsQuery.Where("products.name LIKE ?", "%"+nameFilter+"%")
		categoriesQuery = categoriesQuery.
			Joins("JOIN product_categories ON product_categories.category_id = categories.id").
			Joins("JOIN products ON products.id = product_categories.product_id").
			Where("products.name LIKE ?", "%"+nameFilter+"%")
	}
	if categoryFilter != "" {
		productsQuery = productsQuery.
			Joins("JOIN product_categories ON product_categories.product_id = products.id").
			Joins("JOIN categories ON categories.id = product_categories.category_id").
			Where("categories.name LIKE ?", "%"+categoryFilter+"%")
		categoriesQuery = categoriesQuery.Where("categories.name LIKE ?", "%"+categoryFilter+"%")
	}

	var categoryNames []string
	if err := categoriesQuery.Pluck("categories.name", &categoryNames).Error; err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query categories.")
		return
	}

	var products []models.Product
	if err := productsQuery.Find(&products).Error; err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products.")
		return
	}

	views := make([]productView, 0, len(products))
	for _, product := range products {
		categories := make([]string, 0, len(product.Categories))
		for _, cat := range product.Categories {
			categories = append(categories, cat.Name)
		}
		views = append(views, productView{
			Categories: categories,
			ID:         product.ID,
			Name:       product.Name,
			Price:      product.Price.InexactFloat64(),
		})
	}

	respondOK(c, gin.H{"categories": categoryNames, "products": views})
}

type orderItemPayload struct {
	ID       *int `json:"id"`
	Quantity *int `json:"quantity"`
}

type createOrderPayload struct {
	Requests *[]orderItemPayload `json:"requests"`
	Address  *string             `json:"address"`
}

// CreateOrder handles POST /order. An address in the request triggers escrow
// contract deployment; without one the order is created in off-chain mode.
func (cc *CustomerController) CreateOrder(c *gin.Context) {
	user, ok := currentUser(c, cc.db)
	if !ok {
		return
	}

	var payload createOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Requests == nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field requests is missing.")
		return
	}

	items := make([]services.OrderItemRequest, 0, len(*payload.Requests))
	for index, item := range *payload.Requests {
		if item.ID == nil {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("Product id is missing for request number %d.", index))
			return
		}
		if item.Quantity == nil {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("Product quantity is missing for request number %d.", index))
			return
		}
		items = append(items, services.OrderItemRequest{ProductID: *item.ID, Quantity: *item.Quantity})
	}

	var customerAddress *common.Address
	if payload.Address != nil && strings.TrimSpace(*payload.Address) != "" {
		parsed, valid := utils.ParseAddress(*payload.Address)
		if !valid {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid address.")
			return
		}
		customerAddress = &parsed
	}

	orderID, err := cc.orchestrator.CreateOrder(c.Request.Context(), user.ID, items, customerAddress)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, gin.H{"id": orderID})
}

type invoicePayload struct {
	ID      *int    `json:"id"`
	Address *string `json:"address"`
}

// GenerateInvoice handles POST /generate_invoice?amount= and returns an
// unsigned payment transaction descriptor. The optional amount query selects
// an installment; omitted it defaults to the full remaining balance.
func (cc *CustomerController) GenerateInvoice(c *gin.Context) {
	user, ok := currentUser(c, cc.db)
	if !ok {
		return
	}

	var payload invoicePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID == nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing order id.")
		return
	}

	if payload.Address == nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing address.")
		return
	}
	payer, valid := utils.ParseAddress(*payload.Address)
	if !valid {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid address.")
		return
	}

	var amount *big.Int
	if raw := c.Query("amount"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid amount.")
			return
		}
		amount = big.NewInt(parsed)
	}

	invoice, err := cc.orchestrator.GenerateInvoice(c.Request.Context(), user.ID, *payload.ID, payer, amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, gin.H{"invoice": invoice})
}

// Status handles GET /status - all orders of the authenticated customer
func (cc *CustomerController) Status(c *gin.Context) {
	user, ok := currentUser(c, cc.db)
	if !ok {
		return
	}

	orders, err := cc.orchestrator.OrderStatuses(user.ID)
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load orders.")
		return
	}

	respondOK(c, gin.H{"orders": orders})
}

type deliveredPayload struct {
	ID *int `json:"id"`
}

// ConfirmDelivery handles POST /delivered - releases the escrowed funds and
// completes the order.
func (cc *CustomerController) ConfirmDelivery(c *gin.Context) {
	user, ok := currentUser(c, cc.db)
	if !ok {
		return
	}

	var payload deliveredPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID == nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing order id.")
		return
	}

	if err := cc.orchestrator.ConfirmDelivery(c.Request.Context(), user.ID, *payload.ID); err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, nil)
}
