package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chatgateway/internal/audit"
	"chatgateway/internal/auth"
	"chatgateway/internal/config"
	"chatgateway/internal/credentials"
	"chatgateway/internal/middleware"
	"chatgateway/internal/relay"
	"chatgateway/internal/storage"
	"chatgateway/internal/utils"
)

const healthCheckTimeout = 5 * time.Second

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	DB    *storage.DB
	Redis *storage.RedisClient

	Users    *storage.UserRepository
	Chats    *storage.ChatRepository
	Defaults *storage.DefaultKeyRepository

	Codec    *auth.TokenCodec
	Gate     *auth.Gate
	OAuth    *auth.GoogleClient
	States   *auth.StateStore
	Resolver *credentials.Resolver
	Relay    *relay.Client

	AuditSink   audit.Sink
	AuditWorker *audit.Worker
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := storage.NewRedisClient(storage.RedisClientConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	userRepo := storage.NewUserRepository(db)
	chatRepo := storage.NewChatRepository(db)
	defaultKeyRepo := storage.NewDefaultKeyRepository(db)

	codec := auth.NewTokenCodec(cfg.JWTSecret)
	gate := auth.NewGate(codec, userRepo)
	oauthClient := auth.NewGoogleClient(cfg.Google)
	stateStore := auth.NewStateStore(redisClient.Client(), cfg.Google.StateTTL)
	resolver := credentials.NewResolver(userRepo, defaultKeyRepo, cfg.EnvironmentAPIKey)
	relayClient := relay.NewClient(cfg.Upstream)

	// Audit sink: Redis-buffered S3 shipping when enabled, else a noop.
	var auditSink audit.Sink = audit.NewNoopSink()
	var auditWorker *audit.Worker
	if cfg.Audit.Enabled && cfg.Audit.S3Bucket != "" {
		writer, err := audit.NewS3Writer(
			context.Background(),
			cfg.Audit.S3Bucket,
			cfg.Audit.S3Region,
			cfg.Audit.S3Prefix,
			cfg.Audit.PodName,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize audit writer: %w", err)
		}

		buffer := audit.NewRedisBuffer(redisClient.Client(), cfg.Audit.BufferKey)
		auditSink = buffer
		auditWorker = audit.NewWorker(buffer, writer, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
		auditWorker.Start()
	}

	deps := &Dependencies{
		DB:          db,
		Redis:       redisClient,
		Users:       userRepo,
		Chats:       chatRepo,
		Defaults:    defaultKeyRepo,
		Codec:       codec,
		Gate:        gate,
		OAuth:       oauthClient,
		States:      stateStore,
		Resolver:    resolver,
		Relay:       relayClient,
		AuditSink:   auditSink,
		AuditWorker: auditWorker,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	authHandler := NewAuthHandler(deps.OAuth, deps.States, deps.Users, deps.Codec, cfg)
	userHandler := NewUserHandler(deps.Resolver)
	chatHandler := NewChatHandler(deps.Chats, deps.Resolver, deps.Relay, deps.AuditSink, cfg.Upstream.Model, cfg.Upstream.RequestTimeout)
	adminHandler := NewAdminHandler(deps.Users, deps.Chats, deps.Defaults, deps.Resolver)

	requireUser := middleware.RequireUser(deps.Gate)
	requireAdmin := middleware.RequireAdmin(deps.Gate)

	// Liveness message; anything else under "/" is an unknown route.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			utils.RespondWithError(w, http.StatusNotFound, "Not found")
			return
		}
		utils.RespondWithMessage(w, http.StatusOK, "Chat Gateway API")
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := deps.DB.Health(ctx); err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// OAuth endpoints - public
	mux.HandleFunc("/api/login/google", authHandler.Login)
	mux.HandleFunc("/auth/google", authHandler.Callback)

	// Authenticated user endpoints
	mux.Handle("/api/user/profile", requireUser(http.HandlerFunc(userHandler.Profile)))
	mux.Handle("/api/user/api-key-status", requireUser(http.HandlerFunc(userHandler.APIKeyStatus)))
	mux.Handle("/api/chat", requireUser(http.HandlerFunc(chatHandler.Chat)))
	mux.Handle("/api/chat/history", requireUser(http.HandlerFunc(chatHandler.History)))

	// Admin endpoints - admin flag re-read from the directory on every call
	mux.Handle("/api/admin/configure", requireUser(requireAdmin(http.HandlerFunc(adminHandler.Configure))))
	mux.Handle("/api/admin/users", requireUser(requireAdmin(http.HandlerFunc(adminHandler.Users))))
	mux.Handle("/api/admin/stats", requireUser(requireAdmin(http.HandlerFunc(adminHandler.Stats))))
	mux.Handle("/api/admin/user-api-key", requireUser(requireAdmin(http.HandlerFunc(adminHandler.UserAPIKey))))
	mux.Handle("/api/admin/manage-admin", requireUser(requireAdmin(http.HandlerFunc(adminHandler.ManageAdmin))))
}

// Shutdown releases all long-lived resources held by the dependency graph
func (d *Dependencies) Shutdown(ctx context.Context) error {
	if d.AuditWorker != nil {
		d.AuditWorker.Stop()
	}
	if d.Relay != nil {
		d.Relay.Close()
	}

	var firstErr error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
