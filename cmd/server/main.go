package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/config"
	"dukaanpos/backend/internal/httpapi"
	"dukaanpos/backend/internal/ledger"
	"dukaanpos/backend/internal/messaging"
	"dukaanpos/backend/internal/outsourcing"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/store/memory"
	pgstore "dukaanpos/backend/internal/store/postgres"
	"dukaanpos/backend/internal/translation"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository: in-memory")
	}

	var translationCache cache.TranslationCache = cache.NoopTranslationCache{}
	var locker *redislock.Client
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisTranslationCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, using noop cache and local sync lock")
		} else {
			translationCache = redisCache
			locker = redislock.New(redisCache.Client())
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	var translator translation.Translator = translation.Unavailable{}
	var transcriber translation.Transcriber = translation.Unavailable{}
	if cfg.TranslationBaseURL != "" {
		client, err := translation.NewClient(cfg.TranslationBaseURL, cfg.TranslationAPIKey)
		if err != nil {
			log.WithError(err).Fatal("invalid translation configuration")
		}
		translator = client
		transcriber = client
		log.Info("translation: remote")
	} else {
		log.Info("translation: unavailable, reminders degrade to plain text")
	}
	translator = translation.NewCachedTranslator(translator, translationCache)

	var outsource outsourcing.Lister
	if cfg.OutsourcingBaseURL != "" {
		client, err := outsourcing.NewClient(cfg.OutsourcingBaseURL, cfg.OutsourcingAPIKey)
		if err != nil {
			log.WithError(err).Fatal("invalid outsourcing configuration")
		}
		outsource = client
		log.Info("outsourcing: remote")
	}

	book := ledger.NewBook(repo, locker, log)
	composer := messaging.NewComposer(translator, transcriber, log, cfg.PhoneRegion)
	svc := service.New(repo, book, composer, outsource, log)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("back office listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Error("close error")
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
