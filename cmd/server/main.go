package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/marketbridge/identity-session/internal/api"
	"github.com/marketbridge/identity-session/internal/api/handler"
	"github.com/marketbridge/identity-session/internal/core/ports"
	"github.com/marketbridge/identity-session/internal/core/service"
	"github.com/marketbridge/identity-session/internal/infrastructure/cache"
	"github.com/marketbridge/identity-session/internal/infrastructure/db/mongo"
	"github.com/marketbridge/identity-session/internal/infrastructure/db/redis"
	"github.com/marketbridge/identity-session/internal/infrastructure/provider"
	"github.com/marketbridge/identity-session/internal/infrastructure/queue"
	"github.com/marketbridge/identity-session/internal/pkg/config"
	"github.com/marketbridge/identity-session/pkg/logger"
)

const serviceName = "identity-session"

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Service: serviceName})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: serviceName,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("identity-session stopped with error")
	}
	log.Info().Msg("identity-session stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Infrastructure ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		return err
	}
	defer disconnectMongo(mongoClient, log)

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	records := mongo.NewRecordStore(db)
	credentials := mongo.NewCredentialRepository(db)
	if err := records.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := credentials.EnsureIndexes(ctx); err != nil {
		return err
	}

	sessionCache, err := newSessionCache(cfg.Cache, rdb)
	if err != nil {
		return err
	}

	// --- Identity provider ---
	events := queue.NewDispatcher(logger.Component("dispatcher"))
	defer events.Close()

	signer, err := provider.NewTokenSigner(cfg.Token.Secret, cfg.Token.TTL)
	if err != nil {
		return err
	}

	deps := provider.Deps{
		Credentials: credentials,
		Signer:      signer,
		Tokens:      redis.NewTokenStore(rdb, redis.DefaultTokenKey),
		Throttle:    redis.NewResetThrottle(rdb, cfg.Reset.Throttle),
		ResetTokens: redis.NewResetTokens(rdb, cfg.Reset.TokenTTL),
		Events:      events,
	}

	authOpts := handler.AuthOptions{
		SecureCookies:   !cfg.Development(),
		OAuthSuccessURL: cfg.OIDC.SuccessURL,
	}
	if cfg.OIDC.Enabled() {
		oidcClient, err := provider.NewOIDCClient(ctx, provider.OIDCConfig{
			Issuer:       cfg.OIDC.Issuer,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
		})
		if err != nil {
			return err
		}
		deps.OAuth = oidcClient
		authOpts.OAuth = oidcClient
	}

	bridge := provider.NewBridge(deps, logger.Component("provider"))

	// --- Session controller ---
	nav := handler.NewNavigator()
	controller := service.NewSessionController(bridge, records, sessionCache, logger.Component("session"), service.Options{
		Trial: service.TrialPolicy{
			Plan:     cfg.Session.TrialPlan,
			Duration: cfg.Session.TrialDuration(),
		},
		Redirect: service.RedirectPolicy{
			AuthOnlyRoutes: cfg.Session.AuthOnlyRoutes,
			LandingRoute:   cfg.Session.LandingRoute,
		},
		Navigator: nav,
	})
	controller.Start(ctx)
	defer controller.Close()

	// The controller is subscribed before the persisted session is restored,
	// so it sees the initial state like any later change.
	if err := bridge.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("provider session restore failed, starting signed out")
	}

	// --- HTTP ---
	e := api.NewRouter(api.RouterDeps{
		Session:   controller,
		Navigator: nav,
		Auth:      authOpts,
		Checks: map[string]handler.Check{
			"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Log: logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().Str("port", cfg.Port).Str("cache", cfg.Cache.Backend).Bool("oauth", cfg.OIDC.Enabled()).Msg("identity-session started")

	select {
	case <-ctx.Done(): // wait for Ctrl+C
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return e.Shutdown(shutdownCtx)
}

func newSessionCache(cfg config.CacheConfig, rdb goredis.Cmdable) (ports.SessionCache, error) {
	if cfg.Backend == "file" {
		return cache.NewFileCache(cfg.File)
	}
	return redis.NewSessionCache(rdb, cfg.Key), nil
}

func disconnectMongo(client *mongodriver.Client, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("mongo disconnect failed")
	}
}
