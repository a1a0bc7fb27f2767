package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"grantku_backend/internals/configs"
	database "grantku_backend/internals/databases"
	grantController "grantku_backend/internals/features/grants/applications/controller"
	"grantku_backend/internals/features/grants/applications/flow"
	"grantku_backend/internals/features/grants/applications/form"
	grantModel "grantku_backend/internals/features/grants/applications/model"
	"grantku_backend/internals/features/grants/applications/service"
	"grantku_backend/internals/features/grants/applications/workspace"
	"grantku_backend/internals/features/payment/checkout"
	paymentController "grantku_backend/internals/features/payment/controller"
	"grantku_backend/internals/features/payment/loader"
	paymentModel "grantku_backend/internals/features/payment/model"
	paymentRepo "grantku_backend/internals/features/payment/repository"
	"grantku_backend/internals/features/payment/widget"
	authController "grantku_backend/internals/features/users/auth/controller"
	authModel "grantku_backend/internals/features/users/auth/model"
	authRepo "grantku_backend/internals/features/users/auth/repository"
	scheduler "grantku_backend/internals/features/users/auth/scheduler"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/notify"
	"grantku_backend/internals/helpers/storage"
	"grantku_backend/internals/helpers/supabase"
	middlewares "grantku_backend/internals/middlewares"
	routes "grantku_backend/internals/route"
)

func main() {
	configs.LoadEnv()
	cfg := configs.App
	configs.InitLogger(cfg.AppEnv)

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		BodyLimit:               8 << 20, // pas foto maks 5 MB + field form
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// Request-ID; timeout hanya untuk request biasa, submit jalan di background
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("requestid", id)
		ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})

	middlewares.SetupMiddlewares(app)

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB()
	database.TunePool()
	database.WarmUpQueries()
	if cfg.DBAutoMigrate {
		database.AutoMigrate(&grantModel.GrantApplication{}, &authModel.TokenBlacklist{}, &paymentModel.PaymentGatewayEvent{})
	}

	// ===================== Identity =====================
	sb := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey)
	memCache := session.NewMemoryCache()
	var persistent session.Cache
	if cfg.RedisAddr != "" {
		rdb, err := session.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("[WARN] Redis tidak tersedia, cache sesi memory saja: %v", err)
		} else {
			persistent = session.NewRedisCache(rdb)
			defer rdb.Close()
		}
	}
	blacklist := authRepo.NewBlacklistRepository(database.DB)
	sessions := session.NewStore(sb.Auth, session.Options{
		JWTSecret:  cfg.SupabaseJWTSecret,
		Memory:     memCache,
		Persistent: persistent,
		Blacklist:  blacklist,
	})

	// ===================== Payment widget =====================
	hub := widget.NewHub()
	script := paymentScript(cfg, hub)
	globals := loader.NewGlobals()
	widgets := loader.Init(loader.Config{
		Script:      script,
		Globals:     globals,
		Injector:    &loader.HTTPInjector{HTTP: &http.Client{Timeout: cfg.WidgetTimeout}, Globals: globals},
		Timeout:     cfg.WidgetTimeout,
		MaxAttempts: cfg.WidgetMaxAttempts,
	})
	if cfg.PaymentRequired {
		widgets.Load()
	}

	// ===================== Submission =====================
	objects, err := storage.NewFromConfig(cfg, sb)
	if err != nil {
		log.Fatalf("❌ storage: %v", err)
	}
	var events service.EventPublisher = service.LogPublisher{}
	var kafkaPub *service.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = service.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		events = kafkaPub
	}
	gatewayEvents := paymentRepo.NewGatewayEventRepository(database.DB)
	submissions := service.NewSubmissionService(objects, service.NewGormStore(database.DB), events, service.Config{
		Bucket:        cfg.PassportBucket,
		Confirmations: gatewayEvents,
	})

	// satu workspace (draft + flow + notifikasi) per user yang login
	registry := workspace.NewRegistry(func(userID string) *workspace.Workspace {
		inbox := notify.NewInbox(userID, 0)
		payments := checkout.New(widgets, sessions, inbox, checkout.Config{
			AmountMinor: checkout.DefaultAmountMinor,
			Window:      cfg.PaymentWindow,
			Hub:         hub,
		})
		return &workspace.Workspace{
			UserID: userID,
			Inbox:  inbox,
			Flow: flow.NewController(form.NewHolder(), payments, submissions, sessions, widgets, inbox, flow.Config{
				PaymentRequired: cfg.PaymentRequired,
				AmountMinor:     checkout.DefaultAmountMinor,
				Gateway:         script.Widget.Name(),
			}),
		}
	}, cfg.WorkspaceIdleTTL)
	unwatch := registry.Watch(sessions)
	defer unwatch()

	// ⏱ scheduler
	c := cron.New()
	if err := scheduler.RegisterSessionCleanup(c, "@every 1h", blacklist, memCache); err != nil {
		log.Fatalf("❌ cron session cleanup: %v", err)
	}
	if err := workspace.RegisterReaper(c, "@every 30m", registry); err != nil {
		log.Fatalf("❌ cron workspace reaper: %v", err)
	}
	c.Start()

	// ✅ Routes
	routes.SetupRoutes(app, routes.Deps{
		DB:       database.DB,
		Identity: sessions,
		AuthURL:  cfg.AuthURL,
		Auth:     authController.NewAuthController(sessions, cfg.AuthURL, cfg.AppEnv == "production"),
		Payment:  paymentController.NewPaymentController(widgets, hub, submissions, gatewayEvents, cfg.PaystackSecretKey, cfg.MidtransServerKey),
		Grant:    grantController.NewGrantApplicationController(registry),
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 60 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("✅ Listening on :%s", cfg.Port)
		return app.Listen("0.0.0.0:" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("server error: %v", err)
	}

	<-c.Stop().Done()
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			log.Printf("[WARN] kafka writer close: %v", err)
		}
	}
	database.Close()
	log.Println("👋 Server stopped")
}

// paymentScript memilih driver widget berdasarkan PAYMENT_GATEWAY.
func paymentScript(cfg configs.AppConfig, hub *widget.Hub) loader.Script {
	switch cfg.PaymentGateway {
	case widget.MidtransName:
		m := widget.NewMidtrans(widget.MidtransConfig{
			ServerKey: cfg.MidtransServerKey,
			ClientKey: cfg.MidtransClientKey,
			UseProd:   cfg.MidtransUseProd,
		}, hub)
		return loader.Script{Src: m.ScriptSrc(), Global: widget.MidtransGlobal, Widget: m}
	default:
		if cfg.PaymentGateway != widget.PaystackName {
			log.Printf("[WARN] PAYMENT_GATEWAY %q tidak dikenal, pakai paystack", cfg.PaymentGateway)
		}
		p := widget.NewPaystack(widget.PaystackConfig{
			PublicKey: cfg.PaystackPublicKey,
			SecretKey: cfg.PaystackSecretKey,
		}, hub)
		return loader.Script{Src: widget.PaystackScriptSrc, Global: widget.PaystackGlobal, Widget: p}
	}
}
