package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/config"
	"github.com/chainshop/chainshop-api/middleware"
	"github.com/chainshop/chainshop-api/models"
	"github.com/chainshop/chainshop-api/services"
)

// testServer hosts the full HTTP surface over an in-memory database and a
// scripted escrow adapter.
type testServer struct {
	db      *gorm.DB
	adapter *services.MockEscrowAdapter
	cfg     *config.Config
	router  *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.ProductCategory{},
		&models.Order{},
		&models.OrderProduct{},
	))

	cfg := &config.Config{
		JWTSecret:   "test-secret-key",
		JWTTokenTTL: time.Hour,
	}

	adapter := services.NewMockEscrowAdapter()
	metrics := services.NewMetrics(prometheus.NewRegistry())
	orchestrator := services.NewEscrowOrchestrator(services.NewOrderLedger(db), adapter, metrics, zap.NewNop())

	authController := NewAuthController(db, cfg)
	customerController := NewCustomerController(db, orchestrator)
	courierController := NewCourierController(db, orchestrator)
	ownerController := NewOwnerController(db)

	router := gin.New()
	router.POST("/register_customer", authController.RegisterCustomer)
	router.POST("/register_courier", authController.RegisterCourier)
	router.POST("/login", authController.Login)

	customer := router.Group("/", middleware.EnsureValidToken(cfg), middleware.RequireRole(models.RoleCustomer))
	customer.GET("/search", customerController.Search)
	customer.POST("/order", customerController.CreateOrder)
	customer.POST("/generate_invoice", customerController.GenerateInvoice)
	customer.GET("/status", customerController.Status)
	customer.POST("/delivered", customerController.ConfirmDelivery)

	courier := router.Group("/", middleware.EnsureValidToken(cfg), middleware.RequireRole(models.RoleCourier))
	courier.GET("/orders_to_deliver", courierController.OrdersToDeliver)
	courier.POST("/pick_up_order", courierController.PickUpOrder)

	owner := router.Group("/", middleware.EnsureValidToken(cfg), middleware.RequireRole(models.RoleOwner))
	owner.POST("/update", ownerController.Update)
	owner.GET("/product_statistics", ownerController.ProductStatistics)
	owner.GET("/category_statistics", ownerController.CategoryStatistics)

	return &testServer{db: db, adapter: adapter, cfg: cfg, router: router}
}

// seedAccount creates an account directly and returns its access token.
func (s *testServer) seedAccount(t *testing.T, email, role string) (models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Email:    email,
		Password: string(hash),
		Forename: "Test",
		Surname:  "Account",
		Role:     role,
	}
	require.NoError(t, s.db.Create(&user).Error)

	token, err := middleware.IssueToken(s.cfg, email, role)
	require.NoError(t, err)
	return user, token
}

func (s *testServer) seedProduct(t *testing.T, name, price string, categories ...string) models.Product {
	t.Helper()

	product := models.Product{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, s.db.Create(&product).Error)
	for _, categoryName := range categories {
		var category models.Category
		err := s.db.Where("name = ?", categoryName).First(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = models.Category{Name: categoryName}
			require.NoError(t, s.db.Create(&category).Error)
		} else {
			require.NoError(t, err)
		}
		require.NoError(t, s.db.Create(&models.ProductCategory{ProductID: product.ID, CategoryID: category.ID}).Error)
	}
	return product
}

// doJSON performs a request with a JSON body and optional bearer token.
func (s *testServer) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// envelope is the decoded response body shared by all endpoints.
type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID      uint            `json:"id"`
	Orders  json.RawMessage `json:"orders"`
	Invoice json.RawMessage `json:"invoice"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
