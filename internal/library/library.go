// Package library stores reusable signature images in a SQLite database.
// Each image is kept as PNG together with a BLAKE2b digest that is checked
// on every load.
package library

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"

	"signpad/internal/raster"
)

// MaxNameLength bounds signature names.
const MaxNameLength = 128

// Errors returned by the store.
var (
	ErrNotFound    = errors.New("library: signature not found")
	ErrInvalidName = errors.New("library: invalid signature name")
	ErrCorrupt     = errors.New("library: stored image does not match its digest")
	ErrExists      = errors.New("library: signature already exists")
)

// Entry describes a stored signature without its image data.
type Entry struct {
	Name      string
	Width     int
	Height    int
	Digest    [32]byte
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the signature library.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the library at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create library directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if err := MigrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate library: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "library")}, nil
}

// MigrationStatus reports the schema version of the library.
func (s *Store) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	return GetMigrationStatus(ctx, s.db)
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ValidateName checks a signature name and returns it trimmed.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return name, nil
}

// Digest returns the BLAKE2b-256 digest of data.
func Digest(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Save stores img under name, replacing any signature with that name.
func (s *Store) Save(ctx context.Context, name string, img image.Image) error {
	return s.save(ctx, name, img, "", true)
}

// Add stores img under name and fails with ErrExists when the name is taken.
func (s *Store) Add(ctx context.Context, name string, img image.Image) error {
	return s.save(ctx, name, img, "", false)
}

func (s *Store) save(ctx context.Context, name string, img image.Image, source string, replace bool) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return fmt.Errorf("encode signature %q: %w", name, err)
	}
	digest := Digest(data)
	now := time.Now().UnixNano()
	b := img.Bounds()

	query := `
		INSERT INTO signatures (name, created_at, updated_at, width, height, digest, png, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if replace {
		query += `
		ON CONFLICT(name) DO UPDATE SET
			updated_at = excluded.updated_at,
			width = excluded.width,
			height = excluded.height,
			digest = excluded.digest,
			png = excluded.png,
			source = excluded.source`
	}
	_, err = s.db.ExecContext(ctx, query, name, now, now, b.Dx(), b.Dy(), digest[:], data, source)
	if err != nil {
		if !replace && isConstraint(err) {
			return fmt.Errorf("%w: %q", ErrExists, name)
		}
		return fmt.Errorf("save signature %q: %w", name, err)
	}
	s.logger.Info("signature saved", "name", name, "size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), "bytes", len(data))
	return nil
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Load returns the named signature image. The stored digest is verified
// first; a mismatch returns ErrCorrupt.
func (s *Store) Load(ctx context.Context, name string) (image.Image, error) {
	var data, digest []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT png, digest FROM signatures WHERE name = ?", strings.TrimSpace(name),
	).Scan(&data, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load signature %q: %w", name, err)
	}
	sum := Digest(data)
	if !bytes.Equal(sum[:], digest) {
		s.logger.Error("signature digest mismatch", "name", name)
		return nil, fmt.Errorf("%w: %q", ErrCorrupt, name)
	}
	return raster.DecodeBytes(data, "signature "+name)
}

// Names returns the stored signature names in creation order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM signatures ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan signature name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return names, nil
}

// List returns every entry in creation order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, width, height, digest, source, created_at, updated_at
		FROM signatures
		ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var digest []byte
		var created, updated int64
		if err := rows.Scan(&e.Name, &e.Width, &e.Height, &digest, &e.Source, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		copy(e.Digest[:], digest)
		e.CreatedAt = time.Unix(0, created)
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return entries, nil
}

// Delete removes the named signature.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM signatures WHERE name = ?", strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("delete signature %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete signature %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.logger.Info("signature deleted", "name", name)
	return nil
}

// Verify checks every stored digest and returns the names that fail.
func (s *Store) Verify(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, png, digest FROM signatures ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query signatures: %w", err)
	}
	defer rows.Close()

	var corrupted []string
	for rows.Next() {
		var name string
		var data, digest []byte
		if err := rows.Scan(&name, &data, &digest); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		if sum := Digest(data); !bytes.Equal(sum[:], digest) {
			corrupted = append(corrupted, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return corrupted, nil
}
