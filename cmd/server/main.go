package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestorpro/backend/internal/config"
	"gestorpro/backend/internal/httpapi"
	"gestorpro/backend/internal/remote"
	"gestorpro/backend/internal/replica"
	"gestorpro/backend/internal/service"
	"gestorpro/backend/internal/store"
	"gestorpro/backend/internal/store/memory"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	if cfg.SeedDemoData {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory (seeded)")
	} else {
		repo = memory.New()
		log.Println("repository: in-memory")
	}

	closers := make([]func() error, 0, 1)
	remoteStore, closer, err := buildRemote(ctx, cfg)
	if err != nil {
		log.Fatalf("remote backend %q unavailable: %v", cfg.RemoteBackend, err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	synchronizer := replica.New(repo, remoteStore, cfg.BackupObjectName)

	if remoteStore != nil {
		log.Printf("remote backend: %s", remoteStore.Name())
		// Startup check is advisory only: it logs whether the remote holds a
		// newer snapshot but never restores without an explicit API decision.
		go func() {
			checkCtx, checkCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer checkCancel()
			result, err := synchronizer.CheckRemoteNewer(checkCtx)
			if err != nil {
				log.Printf("startup remote check failed: %v", err)
				return
			}
			if result.RemoteNewer {
				log.Printf("remote snapshot is newer than local (modified %s); pull via API to restore", result.RemoteModifiedAt.Format(time.RFC3339))
			}
		}()
	} else {
		log.Println("remote backend: none")
	}

	svc := service.New(repo)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.AdminPassword)
	api := httpapi.New(svc, synchronizer, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// Best-effort final push so the remote does not lag the session's writes.
	if remoteStore != nil {
		if _, err := synchronizer.Push(shutdownCtx); err != nil && !errors.Is(err, replica.ErrBusy) {
			log.Printf("final push failed: %v", err)
		}
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// buildRemote instantiates the configured backup backend. A misconfigured or
// unreachable backend is fatal: silently running without backups is worse
// than refusing to start.
func buildRemote(ctx context.Context, cfg config.Config) (remote.Store, func() error, error) {
	switch cfg.RemoteBackend {
	case "", "none":
		return nil, nil, nil
	case "gcs":
		gcs, err := remote.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			return nil, nil, err
		}
		return gcs, gcs.Close, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
		rd := remote.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rd.Ping(ctx); err != nil {
			_ = rd.Close()
			return nil, nil, err
		}
		return rd, rd.Close, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		pg, err := remote.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown REMOTE_BACKEND %q", cfg.RemoteBackend)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	return nil
}
