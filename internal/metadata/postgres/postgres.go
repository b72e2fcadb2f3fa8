// Package postgres provides a PostgreSQL-backed metadata store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"

	"github.com/filedash/filedash/internal/logging"
	"github.com/filedash/filedash/internal/metadata"
	"github.com/filedash/filedash/internal/metrics"
	"github.com/filedash/filedash/pkg/models"
	"go.uber.org/zap"
)

// Store is a PostgreSQL metadata store.
type Store struct {
	db *sql.DB
}

// entryRow maps to the entries table.
type entryRow struct {
	ID          int64
	UserID      int64
	ParentID    int64
	Name        string
	IsFolder    bool
	Size        int64
	CreatedAt   time.Time
	RequestedAt sql.NullTime
}

// New creates a new PostgreSQL metadata store.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs SQL migration files.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

const entryColumns = `id, user_id, parent_id, name, is_folder, size, created_at, requested_at`

// RootListing returns a user's root entries followed by their immediate
// children. Entries keep their insertion order within each tier.
func (s *Store) RootListing(ctx context.Context, userID int64) ([]models.Entry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("root_listing", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE user_id = $1
		   AND (parent_id = 0
		        OR parent_id IN (SELECT id FROM entries WHERE user_id = $1 AND parent_id = 0))
		 ORDER BY (parent_id <> 0), id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query root listing: %w", err)
	}
	defer rows.Close()

	listing, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(listing) == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM entries WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return nil, metadata.ErrUserNotFound
		}
	}
	return listing, nil
}

// Children returns the direct children of a folder in insertion order.
func (s *Store) Children(ctx context.Context, userID, folderID int64) ([]models.Entry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("children", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE user_id = $1 AND parent_id = $2 ORDER BY id`, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// FileByID returns the entry if it exists and is a file.
func (s *Store) FileByID(ctx context.Context, userID, fileID int64) (*models.Entry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("file_by_id", time.Since(start)) }()

	var r entryRow
	err := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE user_id = $1 AND id = $2 AND is_folder = FALSE`, userID, fileID).
		Scan(&r.ID, &r.UserID, &r.ParentID, &r.Name, &r.IsFolder, &r.Size, &r.CreatedAt, &r.RequestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query file: %w", err)
	}
	entry := rowToEntry(&r)
	return &entry, nil
}

// MarkRequested records a download request for a file.
func (s *Store) MarkRequested(ctx context.Context, userID, fileID int64) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("mark_requested", time.Since(start)) }()

	result, err := s.db.ExecContext(ctx,
		`UPDATE entries SET requested_at = NOW()
		 WHERE user_id = $1 AND id = $2 AND is_folder = FALSE`, userID, fileID)
	if err != nil {
		return fmt.Errorf("mark requested: %w", err)
	}
	rows, _ := result.RowsAffected()
	logging.Debug("marked file requested",
		zap.Int64("user_id", userID),
		zap.Int64("file_id", fileID),
		zap.Int64("rows", rows))
	return nil
}

// UpsertEntry inserts or updates an entry row. Used by seeding tools.
func (s *Store) UpsertEntry(ctx context.Context, userID int64, e models.Entry) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert_entry", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, user_id, parent_id, name, is_folder, size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id, user_id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			is_folder = EXCLUDED.is_folder,
			size = EXCLUDED.size`,
		e.ID, userID, e.ParentID, e.Name, e.IsFolder, e.Size, e.CreatedAt.Time)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// UpsertUser inserts or updates a login row. Used by seeding tools.
func (s *Store) UpsertUser(ctx context.Context, userID int64, username, passwordHash string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert_user", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		userID, username, passwordHash)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", username, err)
	}
	return nil
}

// EntryCount returns the total number of entry rows.
func (s *Store) EntryCount(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("entry_count", time.Since(start)) }()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	var entries []models.Entry
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.ParentID, &r.Name, &r.IsFolder,
			&r.Size, &r.CreatedAt, &r.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, rowToEntry(&r))
	}
	return entries, rows.Err()
}

func rowToEntry(r *entryRow) models.Entry {
	return models.Entry{
		ID:         r.ID,
		ParentID:   r.ParentID,
		Name:       r.Name,
		IsFolder:   r.IsFolder,
		Size:       r.Size,
		CreatedAt:  models.Timestamp{Time: r.CreatedAt},
		Downloaded: r.RequestedAt.Valid,
	}
}
