package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/controllers"
	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/billing"
	"github.com/faithcal/faithcal/internal/pkg/cache"
	"github.com/faithcal/faithcal/internal/pkg/database"
	"github.com/faithcal/faithcal/internal/pkg/env"
	"github.com/faithcal/faithcal/internal/pkg/jobqueue"
	"github.com/faithcal/faithcal/internal/pkg/middleware"
	"github.com/faithcal/faithcal/internal/pkg/router"
	"github.com/faithcal/faithcal/internal/pkg/storage"
)

// upload bodies are capped per file by internal/pkg/upload; this only bounds
// the whole multipart request
const bodyLimit = 256 << 20

func main() {
	app, basePath, audit := NewApplication()

	manager := jobqueue.GetManager()
	manager.GetQueue().UseMedia(repository.GetGlobalFactory().GetEventRepository(), storage.NewMediaStoreFromEnv())
	manager.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("[Main] Shutting down")
		manager.Stop()
		_ = app.ShutdownWithTimeout(10 * time.Second)
		_ = audit.Sync()
	}()

	log.Infof("[Main] Serving from %s", basePath)
	if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, string, *zap.Logger) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/faithcal to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	app := fiber.New(fiber.Config{
		Views:     html.New(basePath+"views", ".html"),
		BodyLimit: bodyLimit,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// static uploads
	app.Static(storage.URLPrefix, storage.NewMediaStoreFromEnv().Root(), fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// BILLING
	billingController, audit := newBillingController(database.GetDB())

	// ROUTER
	router.InstallRouter(app, billingController)

	return app, basePath, audit
}

// newBillingController builds the webhook verifier, reconciler and checkout
// gateway once for the life of the process. The returned audit logger must be
// synced on shutdown.
func newBillingController(db *gorm.DB) (*controllers.BillingController, *zap.Logger) {
	cfg := billing.LoadConfig()
	audit := billing.NewAuditLogger()

	if cfg.WebhookSecret == "" {
		log.Warn("[Billing] STRIPE_WEBHOOK_SECRET is not set, every webhook delivery will be rejected")
	}

	service := billing.NewServiceFromDB(db,
		billing.WithAuditLogger(audit),
		// committed premium changes drop the cached flag
		billing.WithEntitlementListener(middleware.InvalidatePremium),
	)

	gateway, err := billing.NewStripeGateway(cfg, billing.NewRepository(db))
	if err != nil {
		log.Warnf("[Billing] Checkout disabled: %v", err)
	}

	return controllers.NewBillingController(billing.NewVerifier(cfg.WebhookSecret), service, gateway), audit
}
