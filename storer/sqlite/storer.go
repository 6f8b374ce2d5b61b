package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/w-h-a/vox/storer"
	_ "modernc.org/sqlite"
)

type sqliteStorer struct {
	options   storer.Options
	conn      *sql.DB
	dimension int
	mtx       sync.RWMutex
}

func (s *sqliteStorer) Exists(ctx context.Context, id string) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM commands WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *sqliteStorer) Add(ctx context.Context, rec storer.Record) error {
	return s.replace(ctx, rec)
}

func (s *sqliteStorer) Update(ctx context.Context, rec storer.Record) error {
	return s.replace(ctx, rec)
}

// replace is a single upsert statement, so the old row survives a failed write.
// seq and created_at are kept for an existing id.
func (s *sqliteStorer) replace(ctx context.Context, rec storer.Record) error {
	rec, err := storer.Prepare(rec)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := storer.CheckDimension(s.dimension, rec.Embedding); err != nil {
		return err
	}

	query := `
		INSERT INTO commands (id, description, payload, category, embedding, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			payload = excluded.payload,
			category = excluded.category,
			embedding = excluded.embedding,
			dimension = excluded.dimension
	`

	if _, err := s.conn.ExecContext(
		ctx,
		query,
		rec.Id,
		rec.Description,
		rec.Payload,
		rec.Category,
		encodeVector(rec.Embedding),
		len(rec.Embedding),
		rec.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert command %s: %w", rec.Id, err)
	}

	s.dimension = len(rec.Embedding)

	return nil
}

func (s *sqliteStorer) Delete(ctx context.Context, id string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	res, err := s.conn.ExecContext(ctx, `DELETE FROM commands WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete command %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *sqliteStorer) Search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]storer.Match, error) {
	if k < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := storer.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	return storer.Rank(records, vector, k, minSimilarity), nil
}

func (s *sqliteStorer) All(ctx context.Context) ([]storer.Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.load(ctx)
}

func (s *sqliteStorer) Stats(ctx context.Context) (storer.Stats, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `SELECT category, COUNT(1) FROM commands GROUP BY category`)
	if err != nil {
		return storer.Stats{}, err
	}
	defer rows.Close()

	stats := storer.Stats{
		Categories: map[string]int{},
		Location:   s.options.Location,
		Dimension:  s.dimension,
	}

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return storer.Stats{}, err
		}
		stats.Categories[category] = n
		stats.Total += n
	}

	if err := rows.Err(); err != nil {
		return storer.Stats{}, err
	}

	return stats, nil
}

func (s *sqliteStorer) Reset(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM commands`); err != nil {
		return fmt.Errorf("reset commands: %w", err)
	}

	s.dimension = s.options.Dimension

	return nil
}

func (s *sqliteStorer) Close() error {
	return s.conn.Close()
}

// load reads every record in insertion order. Callers hold the lock.
func (s *sqliteStorer) load(ctx context.Context) ([]storer.Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, description, payload, category, embedding, created_at
		FROM commands
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storer.Record

	for rows.Next() {
		var rec storer.Record
		var blob []byte
		var createdAt int64

		if err := rows.Scan(
			&rec.Id,
			&rec.Description,
			&rec.Payload,
			&rec.Category,
			&blob,
			&createdAt,
		); err != nil {
			return nil, err
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", rec.Id, err)
		}

		rec.Embedding = vec
		rec.CreatedAt = time.Unix(0, createdAt).UTC()

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func DefaultLocation() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "vox", "commands.sqlite")
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 {
		options.Location = DefaultLocation()
	}

	s := &sqliteStorer{
		options:   options,
		dimension: options.Dimension,
	}

	if err := os.MkdirAll(filepath.Dir(options.Location), 0o755); err != nil {
		detail := "failed to create sqlite storer directory"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	conn, err := sql.Open("sqlite", options.Location)
	if err != nil {
		detail := "failed to open sqlite storer"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	// one connection keeps the lock and the database file in agreement
	conn.SetMaxOpenConns(1)

	var mode string
	if err := conn.QueryRow(`PRAGMA journal_mode=WAL;`).Scan(&mode); err != nil {
		slog.WarnContext(context.Background(), "sqlite storer could not enable WAL", "error", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		detail := "failed to apply sqlite storer schema"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	var dim sql.NullInt64
	if err := conn.QueryRow(`SELECT dimension FROM commands ORDER BY seq LIMIT 1`).Scan(&dim); err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = conn.Close()
		detail := "failed to read sqlite storer dimension"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	if dim.Valid {
		if s.dimension != 0 && int(dim.Int64) != s.dimension {
			_ = conn.Close()
			detail := fmt.Sprintf("sqlite storer holds %d-dimensional embeddings, configured for %d", dim.Int64, s.dimension)
			slog.ErrorContext(context.Background(), detail)
			panic(detail)
		}
		s.dimension = int(dim.Int64)
	}

	s.conn = conn

	return s
}
