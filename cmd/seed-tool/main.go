// Seed-tool populates PostgreSQL with listing data from a JSON seed file.
//
// The seed file is the same format the memory backend accepts: an array of
// users, each with credentials and a flat list of entries. Passwords may be
// given pre-hashed ("password_hash") or in the clear ("password"), in which
// case they are bcrypt-hashed before insert.
//
// Designed to run once as an init container.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/filedash/filedash/internal/auth"
	"github.com/filedash/filedash/internal/config"
	"github.com/filedash/filedash/internal/logging"
	"github.com/filedash/filedash/internal/metadata/postgres"
	"github.com/filedash/filedash/pkg/models"
	"go.uber.org/zap"
)

type seedUser struct {
	UserID       int64          `json:"user_id"`
	Username     string         `json:"username"`
	Password     string         `json:"password,omitempty"`
	PasswordHash string         `json:"password_hash,omitempty"`
	Entries      []models.Entry `json:"entries"`
}

func main() {
	seedFile := flag.String("seed", "/seed/listing.json", "Seed file with users and entries")
	migrationsDir := flag.String("migrations", "/app/migrations", "Migrations directory")
	flag.Parse()

	if err := logging.Init(logging.Config{Level: "info", Format: "console"}); err != nil {
		panic("logging init: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("FileDash seed-tool starting...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("config error", zap.Error(err))
	}

	users, err := loadSeed(*seedFile)
	if err != nil {
		logging.Fatal("seed file error", zap.Error(err))
	}

	ctx := context.Background()

	// Connect to PostgreSQL with retries
	var store *postgres.Store
	for i := 0; i < 15; i++ {
		store, err = postgres.New(cfg.DatabaseURL)
		if err == nil {
			break
		}
		logging.Info("waiting for PostgreSQL",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logging.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer store.Close()

	logging.Info("running migrations...", zap.String("dir", *migrationsDir))
	if err := store.Migrate(*migrationsDir); err != nil {
		logging.Fatal("migration failed", zap.Error(err))
	}

	for _, u := range users {
		if err := seedOne(ctx, store, u); err != nil {
			logging.Fatal("seeding failed",
				zap.String("username", u.Username),
				zap.Error(err))
		}
	}

	total, _ := store.EntryCount(ctx)
	logging.Info("seeding complete",
		zap.Int("users", len(users)),
		zap.Int64("entries", total))
}

func loadSeed(path string) ([]seedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var users []seedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return users, nil
}

func seedOne(ctx context.Context, store *postgres.Store, u seedUser) error {
	if u.Username != "" {
		hash := u.PasswordHash
		if hash == "" {
			var err error
			hash, err = auth.HashPassword(u.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
		}
		if err := store.UpsertUser(ctx, u.UserID, u.Username, hash); err != nil {
			return err
		}
	}

	for _, e := range u.Entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = models.Timestamp{Time: time.Now()}
		}
		if err := store.UpsertEntry(ctx, u.UserID, e); err != nil {
			return err
		}
		kind := "FILE"
		if e.IsFolder {
			kind = "DIR"
		}
		logging.Info("  "+kind,
			zap.Int64("user_id", u.UserID),
			zap.Int64("id", e.ID),
			zap.String("name", e.Name))
	}
	return nil
}
