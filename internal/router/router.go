package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/handler/api"
	"vendbot/internal/middleware"
	"vendbot/internal/repository"
	"vendbot/internal/service"
)

// Deps bundles everything the routes need.
type Deps struct {
	Orders     *service.OrderService
	Wallet     *service.WalletService
	Discounts  *service.DiscountService
	Subs       *service.SubscriptionService
	Plans      *service.PlanService
	Coupons    *repository.CouponRepository
	Services   *repository.ServiceRepository
	PricePerGB decimal.Decimal

	APIKey  string
	Deduper middleware.RequestDeduper
	Logger  *zap.Logger
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	orderHandler := api.NewOrderHandler(d.Orders, d.Logger)
	couponHandler := api.NewCouponHandler(d.Coupons, d.Discounts, d.Logger)
	walletHandler := api.NewWalletHandler(d.Wallet, d.Logger)
	serviceHandler := api.NewServiceHandler(d.Subs, d.Services, d.PricePerGB, d.Logger)
	planHandler := api.NewPlanHandler(d.Plans, d.Logger)

	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(d.APIKey))
	// Approve/reject retries carry an Idempotency-Key; the deduper absorbs
	// replays before they reach the order state machine.
	apiGroup.Use(middleware.Idempotency(d.Deduper))

	apiGroup.POST("/orders", orderHandler.Handle)
	apiGroup.POST("/coupons", couponHandler.Handle)
	apiGroup.POST("/wallet", walletHandler.Handle)
	apiGroup.POST("/services", serviceHandler.Handle)
	apiGroup.POST("/plans", planHandler.Handle)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
