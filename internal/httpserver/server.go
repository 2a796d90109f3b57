// Package httpserver exposes the reservation engine over HTTP: the
// self-service booking surface, the admin desk endpoints, availability
// queries, and the payment gateway webhook.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smashvillage/courtbook/internal/notify"
	"github.com/smashvillage/courtbook/internal/paymongo"
	"github.com/smashvillage/courtbook/pkg/booking"
)

// Deps carries the collaborators the server routes requests to.
type Deps struct {
	Service       *booking.Service
	Gateway       *paymongo.Client
	WebhookSecret string
	Publisher     *notify.Publisher
	Redis         *redis.Client
	Logger        *zap.Logger
}

// Server is the HTTP front over the booking service.
type Server struct {
	cfg           Config
	service       *booking.Service
	gateway       *paymongo.Client
	webhookSecret string
	publisher     *notify.Publisher
	redis         *redis.Client
	logger        *zap.Logger
}

// NewServer validates configuration and wires the server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("booking service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:           cfg,
		service:       deps.Service,
		gateway:       deps.Gateway,
		webhookSecret: deps.WebhookSecret,
		publisher:     deps.Publisher,
		redis:         deps.Redis,
		logger:        logger,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (server *Server) Run(ctx context.Context) error {
	router := server.setupRouter()

	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("courtbook listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/payment/webhook", server.handleWebhook)
	if !server.cfg.IsProduction() {
		router.POST("/payment/webhook/test", server.handleTestWebhook)
	}

	api := router.Group("/api/v1")
	api.Use(RateLimitMiddleware(server.redis, server.cfg.RateLimitRequests, server.cfg.RateLimitWindow, server.logger))

	api.GET("/availability/courts/:courtId", server.handleCourtAvailability)
	api.GET("/availability/equipment", server.handleEquipmentAvailability)

	authed := api.Group("")
	authed.Use(AuthMiddleware(server.cfg.JWTSigningKey, server.cfg.JWTIssuer))
	authed.POST("/reservations/check-duplicate", server.handleCheckDuplicate)
	authed.POST("/reservations/checkout", server.handleCheckout)
	authed.POST("/reservations/:reservationId/cancel", server.handleCancel)

	admin := authed.Group("/admin")
	admin.Use(AdminMiddleware())
	admin.POST("/cash", server.handleCashBooking)
	admin.POST("/qrph", server.handleQRBooking)

	return router
}
