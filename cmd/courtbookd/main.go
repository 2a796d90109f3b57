package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/smashvillage/courtbook/internal/httpserver"
	"github.com/smashvillage/courtbook/internal/notify"
	"github.com/smashvillage/courtbook/internal/paymongo"
	"github.com/smashvillage/courtbook/internal/store/gormstore"
	"github.com/smashvillage/courtbook/pkg/booking"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagEnvironment      = "environment"
	flagAllowedOrigins   = "allowed-origins"
	flagJWTSigningKey    = "jwt-signing-key"
	flagJWTIssuer        = "jwt-issuer"
	flagPaymongoSecret   = "paymongo-secret-key"
	flagWebhookSecret    = "paymongo-webhook-secret"
	flagPaymongoBaseURL  = "paymongo-base-url"
	flagSuccessURL       = "checkout-success-url"
	flagCancelURL        = "checkout-cancel-url"
	flagBrokerURL        = "broker-url"
	flagRedisURL         = "redis-url"
	flagPendingTTL       = "pending-ttl"
	flagSweepInterval    = "sweep-interval"

	configKeyDatabaseURL     = "database_url"
	configKeyListenAddr      = "listen_addr"
	configKeyEnvironment     = "environment"
	configKeyAllowedOrigins  = "allowed_origins"
	configKeyJWTSigningKey   = "jwt_signing_key"
	configKeyJWTIssuer       = "jwt_issuer"
	configKeyPaymongoSecret  = "paymongo_secret_key"
	configKeyWebhookSecret   = "paymongo_webhook_secret"
	configKeyPaymongoBaseURL = "paymongo_base_url"
	configKeySuccessURL      = "checkout_success_url"
	configKeyCancelURL       = "checkout_cancel_url"
	configKeyBrokerURL       = "broker_url"
	configKeyRedisURL        = "redis_url"
	configKeyPendingTTL      = "pending_ttl"
	configKeySweepInterval   = "sweep_interval"

	defaultDatabaseURL   = "sqlite:///tmp/courtbook.db"
	defaultListenAddr    = ":8080"
	defaultPendingTTL    = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	Environment    string
	AllowedOrigins string
	JWTSigningKey  string
	JWTIssuer      string

	PaymongoSecretKey  string
	PaymongoWebhookKey string
	PaymongoBaseURL    string
	SuccessURL         string
	CancelURL          string

	BrokerURL string
	RedisURL  string

	PendingTTL    time.Duration
	SweepInterval time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "courtbookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "courtbookd",
		Short:         "Badminton court reservation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagEnvironment, "development", "deployment environment")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "JWT HMAC signing key")
	cmd.Flags().String(flagJWTIssuer, "courtbook", "expected JWT issuer")
	cmd.Flags().String(flagPaymongoSecret, "", "payment gateway secret key")
	cmd.Flags().String(flagWebhookSecret, "", "payment gateway webhook secret")
	cmd.Flags().String(flagPaymongoBaseURL, "", "payment gateway API base URL")
	cmd.Flags().String(flagSuccessURL, "", "checkout success redirect URL")
	cmd.Flags().String(flagCancelURL, "", "checkout cancel redirect URL")
	cmd.Flags().String(flagBrokerURL, "", "AMQP broker URL for booking events")
	cmd.Flags().String(flagRedisURL, "", "Redis URL for rate limiting")
	cmd.Flags().Duration(flagPendingTTL, defaultPendingTTL, "how long unpaid pending reservations hold their slot")
	cmd.Flags().Duration(flagSweepInterval, defaultSweepInterval, "how often the pending sweeper runs")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	_ = godotenv.Load()

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:     "DATABASE_URL",
		configKeyListenAddr:      "LISTEN_ADDR",
		configKeyEnvironment:     "ENVIRONMENT",
		configKeyAllowedOrigins:  "ALLOWED_ORIGINS",
		configKeyJWTSigningKey:   "JWT_SIGNING_KEY",
		configKeyJWTIssuer:       "JWT_ISSUER",
		configKeyPaymongoSecret:  "PAYMONGO_SECRET_KEY",
		configKeyWebhookSecret:   "PAYMONGO_WEBHOOK_SECRET",
		configKeyPaymongoBaseURL: "PAYMONGO_BASE_URL",
		configKeySuccessURL:      "CHECKOUT_SUCCESS_URL",
		configKeyCancelURL:       "CHECKOUT_CANCEL_URL",
		configKeyBrokerURL:       "BROKER_URL",
		configKeyRedisURL:        "REDIS_URL",
		configKeyPendingTTL:      "PENDING_TTL",
		configKeySweepInterval:   "SWEEP_INTERVAL",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flags := map[string]string{
		configKeyDatabaseURL:     flagDatabaseURL,
		configKeyListenAddr:      flagListenAddr,
		configKeyEnvironment:     flagEnvironment,
		configKeyAllowedOrigins:  flagAllowedOrigins,
		configKeyJWTSigningKey:   flagJWTSigningKey,
		configKeyJWTIssuer:       flagJWTIssuer,
		configKeyPaymongoSecret:  flagPaymongoSecret,
		configKeyWebhookSecret:   flagWebhookSecret,
		configKeyPaymongoBaseURL: flagPaymongoBaseURL,
		configKeySuccessURL:      flagSuccessURL,
		configKeyCancelURL:       flagCancelURL,
		configKeyBrokerURL:       flagBrokerURL,
		configKeyRedisURL:        flagRedisURL,
		configKeyPendingTTL:      flagPendingTTL,
		configKeySweepInterval:   flagSweepInterval,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.Environment = viper.GetString(configKeyEnvironment)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.JWTSigningKey = viper.GetString(configKeyJWTSigningKey)
	cfg.JWTIssuer = viper.GetString(configKeyJWTIssuer)
	cfg.PaymongoSecretKey = viper.GetString(configKeyPaymongoSecret)
	cfg.PaymongoWebhookKey = viper.GetString(configKeyWebhookSecret)
	cfg.PaymongoBaseURL = viper.GetString(configKeyPaymongoBaseURL)
	cfg.SuccessURL = viper.GetString(configKeySuccessURL)
	cfg.CancelURL = viper.GetString(configKeyCancelURL)
	cfg.BrokerURL = viper.GetString(configKeyBrokerURL)
	cfg.RedisURL = viper.GetString(configKeyRedisURL)
	cfg.PendingTTL = viper.GetDuration(configKeyPendingTTL)
	cfg.SweepInterval = viper.GetDuration(configKeySweepInterval)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := booking.NewService(store, clock,
		booking.WithOperationLogger(booking.NewZapOperationLogger(logger)))
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	var gateway *paymongo.Client
	if cfg.PaymongoSecretKey != "" {
		gateway, err = paymongo.NewClient(paymongo.Config{
			SecretKey:     cfg.PaymongoSecretKey,
			WebhookSecret: cfg.PaymongoWebhookKey,
			BaseURL:       cfg.PaymongoBaseURL,
			SuccessURL:    cfg.SuccessURL,
			CancelURL:     cfg.CancelURL,
		}, nil)
		if err != nil {
			return fmt.Errorf("payment gateway init: %w", err)
		}
	} else {
		logger.Warn("payment gateway disabled: no secret key configured")
	}

	var publisher *notify.Publisher
	if cfg.BrokerURL != "" {
		publisher, err = notify.NewPublisher(cfg.BrokerURL, logger)
		if err != nil {
			logger.Warn("broker unavailable, booking events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		options, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		redisClient = redis.NewClient(options)
		defer redisClient.Close()
	}

	scheduler, err := startPendingSweeper(ctx, service, cfg.PendingTTL, cfg.SweepInterval, logger)
	if err != nil {
		return fmt.Errorf("sweeper init: %w", err)
	}
	defer func() { _ = scheduler.Shutdown() }()

	server, err := httpserver.NewServer(httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		Environment:    cfg.Environment,
		AllowedOrigins: httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
		JWTSigningKey:  cfg.JWTSigningKey,
		JWTIssuer:      cfg.JWTIssuer,
	}, httpserver.Deps{
		Service:       service,
		Gateway:       gateway,
		WebhookSecret: cfg.PaymongoWebhookKey,
		Publisher:     publisher,
		Redis:         redisClient,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	return server.Run(ctx)
}

// startPendingSweeper periodically cancels pending reservations whose
// payment never arrived, releasing their slots.
func startPendingSweeper(ctx context.Context, service *booking.Service, ttl time.Duration, interval time.Duration, logger *zap.Logger) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().Add(-ttl).Unix()
			expired, err := service.ExpirePendingReservations(ctx, cutoff)
			if err != nil {
				logger.Warn("pending sweep failed", zap.Error(err))
				return
			}
			if expired > 0 {
				logger.Info("expired pending reservations", zap.Int("count", expired))
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "courtbook.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
