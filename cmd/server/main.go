package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gudang-system/config"
	"gudang-system/internal/database"
	"gudang-system/internal/handlers"
	"gudang-system/internal/handlers/middleware"
	"gudang-system/internal/inventory"
	"gudang-system/internal/ledger"
	"gudang-system/internal/reports"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)

	store := inventory.NewStore(db)
	engine := ledger.NewEngine(db, cfg.Ledger.LockTimeout)
	recorder := ledger.NewRecorder(db)
	aggregator := reports.NewAggregator(db)

	itemsHandler := handlers.NewItemsHandler(store, engine, recorder, redisClient)
	salesHandler := handlers.NewSalesHandler(db, engine, itemsHandler)
	ordersHandler := handlers.NewOrdersHandler(db, engine, itemsHandler)
	purchasesHandler := handlers.NewPurchasesHandler(db, store, engine, itemsHandler)
	movementsHandler := handlers.NewMovementsHandler(recorder)
	reportsHandler := handlers.NewReportsHandler(aggregator)

	r := gin.New()

	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit("100-M"))

	api := r.Group("/api/v1")
	{
		items := api.Group("/items")
		{
			items.POST("", itemsHandler.CreateItem)
			items.GET("", itemsHandler.ListItems)
			items.GET("/:id", itemsHandler.GetItem)
			items.PUT("/:id", itemsHandler.UpdateItem)
			items.DELETE("/:id", itemsHandler.DeleteItem)
			items.POST("/:id/adjust", itemsHandler.AdjustItem)
			items.GET("/:id/reconcile", itemsHandler.ReconcileItem)
		}

		sales := api.Group("/sales")
		{
			sales.POST("", salesHandler.RegisterSale)
			sales.GET("", salesHandler.ListSales)
		}

		orders := api.Group("/orders")
		{
			orders.POST("", ordersHandler.PlaceOrder)
			orders.GET("", ordersHandler.ListOrders)
			orders.POST("/:id/cancel", ordersHandler.CancelOrder)
		}

		purchases := api.Group("/purchase-requests")
		{
			purchases.POST("", purchasesHandler.CreateRequest)
			purchases.GET("", purchasesHandler.ListRequests)
			purchases.PUT("/:id/approve", purchasesHandler.ApproveRequest)
		}

		api.GET("/movements", movementsHandler.ListMovements)

		reportsGroup := api.Group("/reports")
		{
			reportsGroup.GET("/inventory", reportsHandler.InventoryReport)
			reportsGroup.GET("/sales", reportsHandler.SalesReport)
			reportsGroup.GET("/purchase", reportsHandler.PurchaseReport)
			reportsGroup.GET("/orders", reportsHandler.OrdersReport)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"message":   "Server is running",
			"timestamp": time.Now(),
		})
	})

	port := ":" + cfg.Server.Port
	log.Printf("Starting server on port %s", port)
	if err := r.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
