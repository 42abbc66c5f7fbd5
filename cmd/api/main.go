package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperprop/internal/auth"
	"paperprop/internal/config"
	"paperprop/internal/db"
	"paperprop/internal/engine"
	"paperprop/internal/feed"
	"paperprop/internal/httpserver"
	"paperprop/internal/logger"
	"paperprop/internal/store"
	"paperprop/internal/stream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	opening, err := decimal.NewFromString(cfg.OpeningBalance)
	if err != nil {
		zl.Fatal("invalid OPENING_BALANCE", zap.Error(err))
	}

	ctx := context.Background()
	var accounts engine.AccountStore
	var users auth.UserStore
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			zl.Fatal("database unavailable", zap.Error(err))
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			zl.Fatal("migrate accounts", zap.Error(err))
		}
		pgUsers := auth.NewPostgresUsers(pool)
		if err := pgUsers.Migrate(ctx); err != nil {
			zl.Fatal("migrate users", zap.Error(err))
		}
		accounts, users = pg, pgUsers
	} else {
		zl.Warn("DB_DSN not set, state is lost on restart")
		accounts, users = store.NewMemory(), auth.NewMemoryUsers()
	}

	seed := cfg.FeedSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	watchlist := feed.DefaultWatchlist()
	bus := stream.NewBus()
	gen := feed.NewGenerator(watchlist, rand.New(rand.NewSource(seed)))
	priceFeed := feed.New(watchlist, gen, bus, cfg.FeedInterval, zl)

	hub := engine.NewHub(engine.HubConfig{
		StaleAfter:     cfg.StaleAfter,
		OpeningBalance: opening,
	}, priceFeed, bus, accounts, zl)
	defer hub.Close()

	authSvc := auth.NewService(users, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	authHandler := auth.NewHandler(authSvc)
	engineHandler := engine.NewHandler(hub, priceFeed)
	wsHandler := httpserver.NewWSHandler(bus, authSvc, hub, cfg.WSOrigin, zl)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:   authHandler,
		EngineHandler: engineHandler,
		AuthService:   authSvc,
		WSHandler:     wsHandler,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go priceFeed.Run(feedCtx)

	zl.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
