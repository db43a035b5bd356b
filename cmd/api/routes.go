package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/audit"
	"github.com/Andres1439/verify-cod-orders/internal/auth"
	"github.com/Andres1439/verify-cod-orders/internal/calls"
	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/config"
	"github.com/Andres1439/verify-cod-orders/internal/events"
	"github.com/Andres1439/verify-cod-orders/internal/httpapi"
	"github.com/Andres1439/verify-cod-orders/internal/intake"
	"github.com/Andres1439/verify-cod-orders/internal/metrics"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/ratelimit"
	"github.com/Andres1439/verify-cod-orders/internal/reporting"
	"github.com/Andres1439/verify-cod-orders/internal/retry"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
	"github.com/Andres1439/verify-cod-orders/pkg/logger"
	"github.com/Andres1439/verify-cod-orders/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// buildRouter constructs every service and mounts it on a gin engine.
// Keep this file free of business logic.
func buildRouter(cfg config.Config, log *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) (*gin.Engine, error) {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	signer, err := telephony.NewCredentialSigner(cfg.Vonage.ApplicationID, cfg.Vonage.PrivateKey, cfg.Vonage.CredentialTTL)
	if err != nil {
		return nil, fmt.Errorf("vonage credentials: %w", err)
	}
	gateway := telephony.NewVonageClient(telephony.VonageOptions{
		BaseURL:    cfg.Vonage.APIBaseURL,
		FromNumber: cfg.Vonage.FromNumber,
		Timeout:    15 * time.Second,
	}, signer, log)

	store := orders.NewPostgresStore(db, log)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	shopify := commerce.NewShopifyClient(commerce.ShopifyOptions{
		APIVersion: cfg.Shopify.APIVersion,
		Scheme:     cfg.Shopify.Scheme,
		Timeout:    cfg.Shopify.RequestLimit,
	}, log)
	commerceSvc := commerce.NewService(shopify, store, commerce.NewRedisShopInfoCache(rdb), cfg.Shopify.ShopInfoTTL, log)

	workflow := calls.NewWorkflow(calls.Deps{
		Store:    store,
		Gateway:  gateway,
		Commerce: commerceSvc,
		Locker:   ratelimit.NewRedisLocker(rdb),
		Audit:    auditSvc,
		Log:      log,
	}, calls.Options{
		PublicURL:       cfg.App.PublicURL,
		MaxOrderAge:     cfg.Calls.MaxOrderAge,
		RingingTimer:    cfg.Calls.RingingTimer,
		LengthTimer:     cfg.Calls.LengthTimer,
		DefaultCountry:  cfg.Calls.DefaultCountry,
		CommerceTimeout: cfg.Shopify.RequestLimit,
	})

	h := httpapi.Handlers{
		Calls:  workflow,
		Events: events.NewIngestor(store, commerceSvc, log),
		Retry: retry.NewSweep(store, auditSvc, log, retry.Options{
			Ceiling:         cfg.Calls.RetryCeiling,
			Cooldown:        cfg.Calls.RetryCooldown,
			DefaultTimezone: cfg.Calls.DefaultTimezone,
			CallingHours:    &retry.Hours{From: cfg.Calls.CallingHourFrom, To: cfg.Calls.CallingHourTo},
		}),
		Intake:  intake.NewService(store, commerceSvc, auditSvc, validator.New(validator.WithRequiredStructEnabled()), log),
		Reports: reporting.NewService(store),
	}

	limiter := ratelimit.NewRedisLimiter(rdb, "cod:rl:", ratelimit.Policy{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
		Block:       cfg.RateLimit.Block,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	health := func(ctx context.Context) error {
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	httpapi.Register(r, h, health, httpapi.Middleware{
		Auth:      auth.RequireServiceToken(authManager),
		RateLimit: ratelimit.Middleware(limiter),
	})
	return r, nil
}
