package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	accountshandler "github.com/brickline/brickline-saas/domains/accounts/be/handler"
	accountsrepo "github.com/brickline/brickline-saas/domains/accounts/be/repo"
	accountsservice "github.com/brickline/brickline-saas/domains/accounts/be/service"
	assistanthandler "github.com/brickline/brickline-saas/domains/assistant/be/handler"
	"github.com/brickline/brickline-saas/domains/assistant/be/openai"
	assistantrepo "github.com/brickline/brickline-saas/domains/assistant/be/repo"
	assistantservice "github.com/brickline/brickline-saas/domains/assistant/be/service"
	leadshandler "github.com/brickline/brickline-saas/domains/leads/be/handler"
	leadsrepo "github.com/brickline/brickline-saas/domains/leads/be/repo"
	leadsservice "github.com/brickline/brickline-saas/domains/leads/be/service"
	subscriptionshandler "github.com/brickline/brickline-saas/domains/subscriptions/be/handler"
	"github.com/brickline/brickline-saas/domains/subscriptions/be/payment"
	subscriptionsrepo "github.com/brickline/brickline-saas/domains/subscriptions/be/repo"
	subscriptionsservice "github.com/brickline/brickline-saas/domains/subscriptions/be/service"
	tenantsprov "github.com/brickline/brickline-saas/domains/tenants/be/provisioning"
	tenantsrepo "github.com/brickline/brickline-saas/domains/tenants/be/repo"
	tenantsservice "github.com/brickline/brickline-saas/domains/tenants/be/service"
	platformlogging "github.com/brickline/brickline-saas/platform/go/logging"
	"github.com/brickline/brickline-saas/platform/go/metrics"
	platformmiddleware "github.com/brickline/brickline-saas/platform/go/middleware"
	"github.com/brickline/brickline-saas/platform/go/notify"
	"github.com/brickline/brickline-saas/platform/go/persistence"
	"github.com/brickline/brickline-saas/platform/go/signing"
	tenantmiddleware "github.com/brickline/brickline-saas/platform/go/tenant/middleware"
	"github.com/brickline/brickline-saas/platform/go/verification"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	SigningSecret     string `env:"SIGNING_SECRET,required"`
	PlatformDomain    string `env:"PLATFORM_DOMAIN" envDefault:"brickline.app"`
	SharedSchema      string `env:"SHARED_SCHEMA" envDefault:"public"`
	ActivationBaseURL string `env:"ACTIVATION_BASE_URL,required"`
	TrialDays         int    `env:"TRIAL_DAYS" envDefault:"90"`

	OpenAIKey        string `env:"OPENAI_API_KEY,required"`
	OpenAIEmbedModel string `env:"OPENAI_EMBED_MODEL"`
	OpenAIChatModel  string `env:"OPENAI_CHAT_MODEL"`

	PaymentSecretKey   string `env:"FLW_SECRET_KEY,required"`
	PaymentWebhookHash string `env:"FLW_WEBHOOK_SECRET,required"`
	PaymentCurrency    string `env:"FLW_CURRENCY" envDefault:"NGN"`
	PaymentRedirectURL string `env:"FLW_REDIRECT_URL"`

	MailRelayURL string `env:"MAIL_RELAY_URL,required"`
	MailAPIKey   string `env:"MAIL_API_KEY,required"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@brickline.app"`

	TwilioBaseURL      string `env:"TWILIO_BASE_URL"`
	TwilioAccountSID   string `env:"TWILIO_ACCOUNT_SID,required"`
	TwilioAuthToken    string `env:"TWILIO_AUTH_TOKEN,required"`
	TwilioWhatsAppFrom string `env:"TWILIO_WHATSAPP_FROM,required"`

	SignupRatePerMinute int           `env:"SIGNUP_RATE_PER_MINUTE" envDefault:"10"`
	SignupRateBurst     int           `env:"SIGNUP_RATE_BURST" envDefault:"5"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1h"`
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() {
		_ = redisClient.Close()
	}()

	verifStore, err := verification.NewRedisStore(ctx, redisClient)
	if err != nil {
		logger.Fatal("init verification store", zap.Error(err))
	}

	signer, err := signing.NewSigner(cfg.SigningSecret)
	if err != nil {
		logger.Fatal("init signer", zap.Error(err))
	}

	m := metrics.New()

	emailSender, err := notify.NewEmailSender(notify.EmailSenderConfig{
		BaseURL: cfg.MailRelayURL,
		APIKey:  cfg.MailAPIKey,
		From:    cfg.MailFrom,
	})
	if err != nil {
		logger.Fatal("init email sender", zap.Error(err))
	}
	whatsappSender, err := notify.NewWhatsAppSender(notify.WhatsAppSenderConfig{
		BaseURL:    cfg.TwilioBaseURL,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioWhatsAppFrom,
	})
	if err != nil {
		logger.Fatal("init whatsapp sender", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(notify.NewRouter(map[notify.Channel]notify.Sender{
		notify.ChannelEmail:    emailSender,
		notify.ChannelWhatsApp: whatsappSender,
	}), logger, m, notify.DispatcherConfig{})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go dispatcher.Run(workerCtx)

	tenantStore, err := persistence.NewTenantStore(ctx, pool)
	if err != nil {
		logger.Fatal("init tenant store", zap.Error(err))
	}
	tenantRepo := tenantsrepo.NewPostgresRepository(tenantStore)
	schemaProv := tenantsprov.NewDBProvisioner(pool, logger)
	tenantService := tenantsservice.New(tenantRepo, schemaProv, logger, cfg.PlatformDomain, cfg.TrialDays)

	accountStore, err := persistence.NewAccountStore(ctx, pool)
	if err != nil {
		logger.Fatal("init account store", zap.Error(err))
	}
	accountRepo := accountsrepo.NewPostgresRepository(accountStore)
	accountService := accountsservice.New(accountRepo, verifStore, signer, tenantService,
		dispatcher, logger, m, accountsservice.Options{
			ActivationBaseURL: cfg.ActivationBaseURL,
		})
	accountHTTPHandler := accountshandler.New(accountService)

	propertyStore, err := persistence.NewPropertyStore(ctx, pool)
	if err != nil {
		logger.Fatal("init property store", zap.Error(err))
	}
	embeddingStore, err := persistence.NewEmbeddingStore(ctx, pool)
	if err != nil {
		logger.Fatal("init embedding store", zap.Error(err))
	}

	aiClient, err := openai.NewClient(openai.Config{
		APIKey:     cfg.OpenAIKey,
		EmbedModel: cfg.OpenAIEmbedModel,
		ChatModel:  cfg.OpenAIChatModel,
	})
	if err != nil {
		logger.Fatal("init openai client", zap.Error(err))
	}
	assistantRepo := assistantrepo.NewPostgresRepository(embeddingStore, propertyStore)
	assistantService := assistantservice.New(assistantRepo, aiClient, logger, 0)
	assistantHTTPHandler := assistanthandler.New(assistantService)

	leadStore, err := persistence.NewLeadStore(ctx, pool)
	if err != nil {
		logger.Fatal("init lead store", zap.Error(err))
	}
	leadRepo := leadsrepo.NewPostgresRepository(leadStore, propertyStore, accountStore)
	leadService := leadsservice.New(leadRepo, dispatcher, logger)
	leadHTTPHandler := leadshandler.New(leadService)

	subscriptionStore, err := persistence.NewSubscriptionStore(ctx, pool)
	if err != nil {
		logger.Fatal("init subscription store", zap.Error(err))
	}
	paymentClient, err := payment.NewClient(payment.Config{SecretKey: cfg.PaymentSecretKey})
	if err != nil {
		logger.Fatal("init payment client", zap.Error(err))
	}
	subscriptionRepo := subscriptionsrepo.NewPostgresRepository(subscriptionStore)
	subscriptionService := subscriptionsservice.New(subscriptionRepo,
		payment.NewProcessor(paymentClient, cfg.PaymentCurrency, cfg.PaymentRedirectURL),
		logger, m, cfg.PaymentWebhookHash)
	subscriptionHTTPHandler := subscriptionshandler.New(subscriptionService)

	// Freshly activated accounts land on the free plan.
	accountService.SetBiller(subscriptionService)

	go subscriptionService.RunExpirySweeper(workerCtx, cfg.ExpirySweepInterval)

	spaceDB := persistence.NewSpaceDB(persistence.SpaceDBConfig{
		Pool:         pool,
		SharedSchema: cfg.SharedSchema,
	})

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(platformmiddleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		err := spaceDB.WithShared(r.Context(), func(tx pgx.Tx) error {
			var one int
			return tx.QueryRow(r.Context(), `SELECT 1`).Scan(&one)
		})
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rootRouter.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(tenantmiddleware.WithTenantSpace(tenantService, tenantmiddleware.Config{
		PlatformSuffix: cfg.PlatformDomain,
		SharedSchema:   cfg.SharedSchema,
		CacheTTL:       time.Minute,
	}))

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformmiddleware.PerIPRateLimit(platformmiddleware.RateLimitConfig{
			RequestsPerMinute: cfg.SignupRatePerMinute,
			Burst:             cfg.SignupRateBurst,
		}))
		accountHTTPHandler.Routes(r)
	})
	apiRouter.Group(func(r chi.Router) {
		assistantHTTPHandler.Routes(r)
	})
	apiRouter.Group(func(r chi.Router) {
		leadHTTPHandler.Routes(r)
	})
	apiRouter.Group(func(r chi.Router) {
		subscriptionHTTPHandler.Routes(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
