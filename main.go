package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/botdash/botdash/handlers"
	"github.com/botdash/botdash/internal/chatbot/handler"
	"github.com/botdash/botdash/internal/chatbot/repository"
	"github.com/botdash/botdash/internal/chatbot/service"
	"github.com/botdash/botdash/internal/config"
	"github.com/botdash/botdash/internal/database"
	"github.com/botdash/botdash/internal/observability"
	"github.com/botdash/botdash/internal/oidc"
	"github.com/botdash/botdash/internal/sessions"
	"github.com/botdash/botdash/internal/storage"
	"github.com/botdash/botdash/internal/uploader"
	"github.com/botdash/botdash/internal/users"
	"github.com/botdash/botdash/pkg/logger"
	"github.com/botdash/botdash/pkg/metrics"
	"github.com/botdash/botdash/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal, LOG_FORMAT: console|json
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetFormat(os.Getenv("LOG_FORMAT"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: datastore=%s oidc=%v jwt=%v redis=%v minio=%v",
		cfg.Datastore.Driver, cfg.OIDC.Issuer != "", cfg.JWT.Secret != "", cfg.Redis.Host != "", cfg.Storage.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, cfg.Server.Environment)
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(middleware.CORS())

	var checks []handlers.Check

	// Redis backs credential revocation and the shared rate limiter. Both
	// degrade to in-process behaviour without it.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%s): %v", addr, err)
		} else {
			logger.Infof("connected to Redis at %s", addr)
		}
		defer rdb.Close()
		checks = append(checks, handlers.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	revocations := sessions.NewRevocationList(rdb)

	// The limiter runs after AuthMiddleware on owner-scoped routes so it keys
	// by caller there; routes that authenticate in the handler key by IP.
	var limit gin.HandlersChain
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limit = gin.HandlersChain{middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)}
		} else {
			limit = gin.HandlersChain{middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)}
		}
	}

	auth, err := buildAuthenticator(ctx, cfg, revocations)
	if err != nil {
		return err
	}

	repo, profiles, closeStore, storeCheck, err := buildRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if storeCheck != nil {
		checks = append(checks, *storeCheck)
	}

	opts := service.Options{LoaderURL: cfg.Widget.LoaderURL, PresignTTL: cfg.Storage.PresignTTL}
	var up *uploader.Uploader
	if cfg.Storage.Enabled() {
		store, err := storage.NewMinIOStorage(ctx, &cfg.Storage)
		if err != nil {
			logger.Warnf("object storage unavailable, resource endpoints disabled: %v", err)
		} else {
			up = uploader.New(store)
			opts.Presigner = store
			checks = append(checks, handlers.Check{Name: "storage", Probe: store.Ping})
		}
	}
	svc := service.New(repo, auth, opts)

	authed := append(gin.HandlersChain{middleware.AuthMiddleware(auth)}, limit...)
	api := r.Group("/api/v1")
	handler.RegisterChatbotRoutes(api, svc, limit, authed)
	handler.RegisterResourceRoutes(api, up, authed, cfg.Server.MaxUploadBytes)
	handlers.NewAuthHandler(auth, revocations, users.NewService(profiles)).Register(r, api, limit...)
	handlers.RegisterSwagger(r)
	handlers.RegisterHealth(r, startTime, checks...)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("botdash API listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func buildAuthenticator(ctx context.Context, cfg *config.Config, revoked oidc.RevocationChecker) (*oidc.Authenticator, error) {
	var verifiers []oidc.Verifier
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		v, err := oidc.NewProviderVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifiers = append(verifiers, v)
		}
	}
	if cfg.JWT.Secret != "" {
		v, err := oidc.NewHMACVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if len(verifiers) == 0 {
		return nil, errors.New("no identity provider could be initialized")
	}
	return oidc.NewAuthenticator(revoked, verifiers...), nil
}

// buildRepositories opens the configured datastore. Profiles live in Mongo
// when it is the datastore and in memory otherwise.
func buildRepositories(ctx context.Context, cfg *config.Config) (repository.Repository, users.Repository, func(), *handlers.Check, error) {
	noop := func() {}
	switch cfg.Datastore.Driver {
	case config.DriverMongo:
		client, err := database.Retry(ctx, "MongoDB", 5, time.Second, func(ctx context.Context) (*mongo.Client, error) {
			return database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		})
		if err != nil {
			return nil, nil, noop, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		db := client.Database(cfg.MongoDB.Database)
		repo, err := repository.NewMongoRepo(ctx, db.Collection(cfg.MongoDB.Collection))
		if err != nil {
			closeFn()
			return nil, nil, noop, nil, err
		}
		logger.Infof("using MongoDB datastore %s.%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
		check := &handlers.Check{Name: "datastore", Probe: func(ctx context.Context) error { return client.Ping(ctx, nil) }}
		return repo, users.NewMongoRepository(db.Collection("users")), closeFn, check, nil

	case config.DriverPostgres:
		db, err := database.Retry(ctx, "Postgres", 5, time.Second, func(ctx context.Context) (*gorm.DB, error) {
			return database.OpenPostgres(ctx, cfg.Postgres.DSN)
		})
		if err != nil {
			return nil, nil, noop, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, noop, nil, err
		}
		repo, err := repository.NewSQLRepo(db)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, noop, nil, err
		}
		logger.Infof("using Postgres datastore")
		check := &handlers.Check{Name: "datastore", Probe: sqlDB.PingContext}
		return repo, users.NewMemoryRepository(), func() { _ = sqlDB.Close() }, check, nil

	default:
		logger.Warnf("using in-memory datastore; chatbots are lost on restart")
		return repository.NewMemoryRepo(), users.NewMemoryRepository(), noop, nil, nil
	}
}
