package main

import (
	"context"
	"log"
	"math/big"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainshop/chainshop-api/config"
	"github.com/chainshop/chainshop-api/controllers"
	"github.com/chainshop/chainshop-api/logger"
	"github.com/chainshop/chainshop-api/middleware"
	"github.com/chainshop/chainshop-api/models"
	"github.com/chainshop/chainshop-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := config.MigrateDatabase(db); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}
	zlog.Info("Database migration completed successfully")

	// Connect to the blockchain node
	gateway, err := services.DialGateway(cfg.ChainURL, cfg.ChainCallTimeout, cfg.ChainReceiptTimeout)
	if err != nil {
		zlog.Fatal("Failed to connect to blockchain node", zap.Error(err))
	}
	defer gateway.Close()

	chainID := big.NewInt(cfg.ChainID)
	owner, err := services.LoadOwnerAccount(cfg.OwnerKeystorePath, cfg.OwnerKeystorePassphrase, chainID, zlog)
	if err != nil {
		zlog.Fatal("Failed to load owner account", zap.Error(err))
	}

	if cfg.AutoFundEnabled() {
		floor, ok := new(big.Int).SetString(cfg.FundingFloorWei, 10)
		if !ok {
			zlog.Fatal("Invalid OWNER_FUNDING_FLOOR_WEI", zap.String("value", cfg.FundingFloorWei))
		}
		if err := owner.EnsureFunded(context.Background(), gateway, cfg.FaucetPrivateKey, floor); err != nil {
			zlog.Fatal("Failed to fund owner account", zap.Error(err))
		}
	}

	adapter, err := services.NewEthEscrowAdapter(gateway, owner, cfg.ContractBinPath, cfg.ChainID)
	if err != nil {
		zlog.Fatal("Failed to build escrow adapter", zap.Error(err))
	}

	ledger := services.NewOrderLedger(db)
	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	orchestrator := services.NewEscrowOrchestrator(ledger, adapter, metrics, zlog)

	authController := controllers.NewAuthController(db, cfg)
	customerController := controllers.NewCustomerController(db, orchestrator)
	courierController := controllers.NewCourierController(db, orchestrator)
	ownerController := controllers.NewOwnerController(db)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(zlog))
	router.Use(cors.Default())

	// Public endpoints
	router.POST("/register_customer", authController.RegisterCustomer)
	router.POST("/register_courier", authController.RegisterCourier)
	router.POST("/login", authController.Login)
	router.GET("/api/v1/health", healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", middleware.EnsureValidToken(cfg))

	customer := authed.Group("/", middleware.RequireRole(models.RoleCustomer))
	{
		customer.GET("/search", customerController.Search)
		customer.POST("/order", customerController.CreateOrder)
		customer.POST("/generate_invoice", customerController.GenerateInvoice)
		customer.GET("/status", customerController.Status)
		customer.POST("/delivered", customerController.ConfirmDelivery)
	}

	courier := authed.Group("/", middleware.RequireRole(models.RoleCourier))
	{
		courier.GET("/orders_to_deliver", courierController.OrdersToDeliver)
		courier.POST("/pick_up_order", courierController.PickUpOrder)
	}

	shopOwner := authed.Group("/", middleware.RequireRole(models.RoleOwner))
	{
		shopOwner.POST("/update", ownerController.Update)
		shopOwner.GET("/product_statistics", ownerController.ProductStatistics)
		shopOwner.GET("/category_statistics", ownerController.CategoryStatistics)
	}

	zlog.Info("Server is running", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Failed to start server", zap.Error(err))
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Chainshop API is running",
	})
}
