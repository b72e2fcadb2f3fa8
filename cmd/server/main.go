// FileDash Server
//
// Serves per-user file listings for incremental browsing:
// - Root and folder listing endpoints (fetch-on-first-open clients)
// - Download request endpoint with SSE change notifications
// - JWT authentication
// - Prometheus metrics & structured logging (zap)
// - PostgreSQL or in-memory metadata backends
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/filedash/filedash/internal/api"
	"github.com/filedash/filedash/internal/auth"
	"github.com/filedash/filedash/internal/config"
	"github.com/filedash/filedash/internal/events"
	"github.com/filedash/filedash/internal/logging"
	"github.com/filedash/filedash/internal/metadata"
	"github.com/filedash/filedash/internal/metadata/memory"
	"github.com/filedash/filedash/internal/metadata/postgres"
	"github.com/filedash/filedash/internal/metrics"
	"github.com/filedash/filedash/pkg/models"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("FileDash Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("backend", cfg.MetadataBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store metadata.Store
	var users auth.UserSource

	switch cfg.MetadataBackend {
	case "postgres":
		logging.Info("connecting to PostgreSQL...")
		pgStore, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}

		migrationsDir := findMigrationsDir()
		if migrationsDir != "" {
			logging.Info("running migrations...", zap.String("dir", migrationsDir))
			if err := pgStore.Migrate(migrationsDir); err != nil {
				logging.Fatal("migration failed", zap.Error(err))
			}
		}

		// Periodic connection pool metrics
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pgStore.UpdateConnectionMetrics()
				}
			}
		}()

		store = pgStore
		users = &auth.DBUsers{DB: pgStore.DB()}

	case "memory":
		memStore, err := loadMemoryStore(cfg.SeedFile)
		if err != nil {
			logging.Fatal("seed load failed", zap.Error(err))
		}
		store = memStore
		users = memStore

	default:
		logging.Fatal("unknown metadata backend", zap.String("backend", cfg.MetadataBackend))
	}
	defer store.Close()

	authHandler := auth.New(users, cfg.JWTSecret, cfg.TokenExpiry)

	broadcaster := events.NewBroadcaster()
	logging.Info("SSE broadcaster initialized")

	srv := api.NewServer(store, authHandler, broadcaster)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}

// loadMemoryStore reads the seed file, or falls back to a small demo
// dataset so the server is browsable out of the box.
func loadMemoryStore(seedFile string) (*memory.Store, error) {
	if seedFile != "" {
		logging.Info("loading seed file", zap.String("file", seedFile))
		return memory.LoadSeed(seedFile)
	}

	logging.Warn("no seed file configured, serving demo data (demo/demo)")
	hash, err := auth.HashPassword("demo")
	if err != nil {
		return nil, err
	}

	store := memory.New(map[int64][]models.Entry{
		1: {
			{ID: 1, ParentID: 0, Name: "Documents", IsFolder: true},
			{ID: 2, ParentID: 0, Name: "Pictures", IsFolder: true},
			{ID: 3, ParentID: 1, Name: "notes.txt", Size: 420},
			{ID: 4, ParentID: 1, Name: "reports", IsFolder: true},
			{ID: 5, ParentID: 2, Name: "holiday.jpg", Size: 1 << 20},
			{ID: 6, ParentID: 4, Name: "q3.pdf", Size: 48213},
		},
	})
	store.AddUser("demo", 1, hash)
	return store, nil
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
