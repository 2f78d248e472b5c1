package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"vendbot/internal/bootstrap"
	"vendbot/internal/bot"
	"vendbot/internal/config"
	cronpkg "vendbot/internal/cron"
	"vendbot/internal/middleware"
	"vendbot/internal/notify"
	"vendbot/internal/panel"
	"vendbot/internal/provision"
	"vendbot/internal/repository"
	"vendbot/internal/router"
	"vendbot/internal/service"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Panel client ---
	panelClient := panel.NewMarzbanClient(
		cfg.Panel.BaseURL,
		cfg.Panel.Username,
		cfg.Panel.Password,
		cfg.Panel.InsecureSkipVerify,
		logger,
	)
	provisioner := provision.NewService(panelClient, logger)

	// --- Repositories ---
	accounts := repository.NewAccountRepository(db)
	services := repository.NewServiceRepository(db)
	plans := repository.NewPlanRepository(db)
	orders := repository.NewOrderRepository(db)
	coupons := repository.NewCouponRepository(db)
	settings := repository.NewSettingRepository(db)

	// --- Telegram bot + admin notifier ---
	var teleBot *tele.Bot
	var notifier service.Notifier
	if cfg.Bot.Token != "" {
		teleBot, err = tele.NewBot(tele.Settings{
			Token:  cfg.Bot.Token,
			Poller: &tele.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c tele.Context) {
				logger.Error("telebot error", zap.Error(err))
			},
		})
		if err != nil {
			logger.Warn("Failed to create bot, Telegram features disabled", zap.Error(err))
			teleBot = nil
		} else {
			notifier = notify.NewTelegramNotifier(teleBot, cfg.Bot.AdminID, logger)
		}
	}

	// --- Services ---
	wallet := service.NewWalletService(accounts, logger)
	discounts := service.NewDiscountService(coupons, logger)
	orderSvc := service.NewOrderService(orders, plans, accounts, services, discounts, provisioner, notifier, logger)
	subs := service.NewSubscriptionService(accounts, services, plans, settings, wallet, provisioner,
		cfg.Shop.TrialDays, cfg.Shop.TrialGB, logger)
	planSvc := service.NewPlanService(plans, panelClient, logger)

	// --- Bot frontend ---
	var frontend *bot.Bot
	if teleBot != nil {
		frontend = bot.New(teleBot, cfg.Bot.AdminID, bot.Deps{
			Orders:   orderSvc,
			Wallet:   wallet,
			Subs:     subs,
			Plans:    planSvc,
			Accounts: accounts,
			Settings: settings,
		}, logger)
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Request deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewRequestDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		10*time.Minute,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for request dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Routes ---
	router.Setup(e, router.Deps{
		Orders:     orderSvc,
		Wallet:     wallet,
		Discounts:  discounts,
		Subs:       subs,
		Plans:      planSvc,
		Coupons:    coupons,
		Services:   services,
		PricePerGB: cfg.Shop.PricePerGB,
		APIKey:     cfg.API.Key,
		Deduper:    deduper,
		Logger:     logger,
	})

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(planSvc, provisioner, services, notifier, cfg.Shop.PurgeAfterDays, logger)
	scheduler.Start()

	// --- Start Bot ---
	if frontend != nil {
		go frontend.Start()
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting vendbot server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	if frontend != nil {
		frontend.Stop()
	}

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg, logger)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		return err
	}
	logger.Info("Schema migration and default seed completed")
	return nil
}
