package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookiez/backend/internal/auth"
	"github.com/bookiez/backend/internal/books"
	"github.com/bookiez/backend/internal/config"
	"github.com/bookiez/backend/internal/exchange"
	"github.com/bookiez/backend/internal/relay"
	"github.com/bookiez/backend/internal/server"
	"github.com/bookiez/backend/internal/store"
)

func newServeCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and chat relay",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(cfg *config.Config) {
	ctx := context.Background()

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, mongoStore, err := connectMongo(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer mongoClient.Disconnect(ctx)
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}

	// ── PostgreSQL ────────────────────────────────────────────
	var (
		history       exchange.History
		historyPinger server.Pinger
	)
	pgPool, err := connectPostgres(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if pgPool != nil {
		defer pgPool.Close()
		historyStore := store.NewHistoryStore(pgPool)
		if err := historyStore.Migrate(ctx); err != nil {
			log.Fatalf("postgres migrate: %v", err)
		}
		history, historyPinger = historyStore, historyStore
	} else {
		log.Println("POSTGRES_DSN not set, exchange history disabled")
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()
	revocations := auth.NewRevocationStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	images, err := store.NewImageStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("minio connect: %v", err)
	}

	// ── Chat relay ───────────────────────────────────────────
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := relay.NewHub()
	go hub.Run(hubCtx)

	// ── Services ─────────────────────────────────────────────
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	authSvc := auth.NewService(mongoStore.Accounts(), tokens, revocations)
	bookSvc := books.NewService(mongoStore.Books(), images)
	exchangeSvc := exchange.NewService(mongoStore.Books(), mongoStore.Exchanges(), mongoStore, history, hub)

	// ── Router ───────────────────────────────────────────────
	r := server.NewRouter(server.Deps{
		Auth:      auth.NewHandler(authSvc),
		Books:     books.NewHandler(bookSvc),
		Exchanges: exchange.NewHandler(exchangeSvc),
		Relay:     relay.NewHandler(hub, cfg.FrontendURLs),
		Health: server.Health{
			Mongo:    mongoStore,
			Postgres: historyPinger,
			Redis:    revocations,
		},
		Authenticator:  authSvc,
		AllowedOrigins: cfg.FrontendURLs,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	go func() {
		log.Printf("Backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	stopHub()
}
