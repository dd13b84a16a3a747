package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/pantry-shop-backend/internal/admin"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/cart"
	"github.com/wichananm65/pantry-shop-backend/internal/checkout"
	"github.com/wichananm65/pantry-shop-backend/internal/config"
	"github.com/wichananm65/pantry-shop-backend/internal/delivery"
	"github.com/wichananm65/pantry-shop-backend/internal/discount"
	"github.com/wichananm65/pantry-shop-backend/internal/imageurl"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
	"github.com/wichananm65/pantry-shop-backend/internal/notify"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
	"github.com/wichananm65/pantry-shop-backend/internal/payment"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
	"github.com/wichananm65/pantry-shop-backend/internal/promo"
	"github.com/wichananm65/pantry-shop-backend/internal/schema"
	"github.com/wichananm65/pantry-shop-backend/internal/subscriber"
)

func main() {
	// `app hash-password <password>` prints a value for ADMIN_PASSWORD_HASH.
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := admin.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db := mustOpenDB(cfg.DatabaseURL)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := schema.Ensure(ctx, db); err != nil {
		cancel()
		log.Fatal("schema setup failed", "error", err)
	}
	cancel()

	rdb := openRedis(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	app := fiber.New(fiber.Config{ErrorHandler: apierr.ErrorHandler})
	app.Use(recover.New())
	setupCORS(app, cfg.AllowedOrigins)
	app.Use(requestLogger(log))

	images := imageurl.New(cfg.ImageProjectID, cfg.ImageDataset)
	productService := product.NewService(product.NewPostgresRepository(db))
	productHandler := product.NewHandler(productService, images)

	promoService := promo.NewService(promo.NewPostgresRepository(db))
	promoHandler := promo.NewHandler(promoService)

	subscriberRepo := subscriber.NewPostgresRepository(db)
	subscriberHandler := subscriber.NewHandler(subscriberRepo)

	notifier := notify.NewNotifier(newSender(cfg, log), notify.Options{
		StoreName:     cfg.StoreName,
		OperatorEmail: cfg.OperatorEmail,
		Timeout:       cfg.EmailTimeout,
	}, log)

	orderService := order.NewService(order.NewPostgresRepository(db), notifier, log)
	orderHandler := order.NewHandler(orderService)

	arbitrator := discount.NewArbitrator(subscriberRepo, orderService, promoService, discount.Options{
		SubscriberCutoff: cfg.SubscriberCutoff,
		SubscriberPct:    cfg.SubscriberDiscountPercent,
	})
	fees := delivery.NewResolver(delivery.Fees{
		Colombo: cfg.DeliveryFeeColombo,
		Suburbs: cfg.DeliveryFeeSuburbs,
		Others:  cfg.DeliveryFeeOthers,
	})

	gateway := payment.NewPayHere(payment.Config{
		MerchantID:     cfg.PayHereMerchantID,
		MerchantSecret: cfg.PayHereMerchantSecret,
		Currency:       cfg.Currency,
		Sandbox:        cfg.PayHereSandbox,
		PublicBaseURL:  cfg.PublicBaseURL,
		APIBaseURL:     cfg.APIBaseURL,
	})
	if !gateway.Configured() {
		log.Warn("card payments disabled: PAYHERE_MERCHANT_ID or PAYHERE_MERCHANT_SECRET not set")
	}

	deps := checkout.Deps{
		Catalog:   productService,
		Discounts: arbitrator,
		Delivery:  fees,
		Orders:    orderService,
		Notifier:  notifier,
		Gateway:   gateway,
		Log:       log,
	}
	var persister cart.Persister = cart.NewMemoryPersister()
	if rdb != nil {
		deps.Locker = checkout.NewRedisLocker(rdb)
		persister = cart.NewRedisPersister(rdb, cart.DefaultTTL)
	}
	checkoutHandler := checkout.NewHandler(checkout.NewService(deps, cfg.DuplicateWindow), log)
	cartHandler := cart.NewHandler(cart.NewStore(persister), productService, arbitrator, fees, log)

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < admin.MinSecretLength {
		log.Fatal("JWT_SECRET is too short", "min", admin.MinSecretLength)
	}
	adminService := admin.NewService(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret)
	if !adminService.Configured() {
		log.Warn("admin routes disabled: ADMIN_EMAIL, ADMIN_PASSWORD_HASH or JWT_SECRET not set")
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	productHandler.RegisterPublicRoutes(app)
	promoHandler.RegisterPublicRoutes(app)
	subscriberHandler.RegisterPublicRoutes(app)
	discount.NewHandler(arbitrator).RegisterPublicRoutes(app)
	delivery.NewHandler(fees).RegisterPublicRoutes(app)
	cartHandler.RegisterPublicRoutes(app)
	checkoutHandler.RegisterPublicRoutes(app)
	orderHandler.RegisterPublicRoutes(app)
	payment.NewHandler(gateway, orderService, log).RegisterPublicRoutes(app)
	// sign-in must be registered before the admin guard below
	admin.NewHandler(adminService, log).RegisterPublicRoutes(app)

	app.Use("/api/admin", admin.Guard(adminService), admin.RequireAdmin)

	productHandler.RegisterProtectedRoutes(app)
	promoHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	go func() {
		if err := app.Listen(cfg.Addr); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()
	log.Info("listening", "addr", cfg.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

func setupCORS(app *fiber.App, origins string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))
}

func mustOpenDB(dbURL string) *sql.DB {
	if dbURL == "" {
		panic("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(err)
	}

	return db
}

// openRedis returns nil when Redis is not configured or not reachable. Carts
// then live in process memory and only committed duplicates are caught.
func openRedis(cfg config.Config, log *logger.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, falling back to in-memory carts", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newSender(cfg config.Config, log *logger.Logger) notify.Sender {
	if cfg.SendGridAPIKey == "" {
		log.Warn("SENDGRID_API_KEY not set, emails are only logged")
		return notify.NewLogSender(log)
	}
	s, err := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
		Timeout:   10 * time.Second,
	}, log)
	if err != nil {
		log.Error("sendgrid setup failed, emails are only logged", "error", err)
		return notify.NewLogSender(log)
	}
	return s
}

func requestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := apierr.As(err); ok {
				status = e.Status
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		log.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
		)
		return err
	}
}
