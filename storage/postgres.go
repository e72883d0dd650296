package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"media_scrooper/models"
)

// PostgresStore holds the download queue shared with the external
// downloader.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS media_queue (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL,
			site_id TEXT NOT NULL,
			canonical_url TEXT NOT NULL UNIQUE,
			original_url TEXT NOT NULL,
			media_type TEXT NOT NULL,
			width INTEGER,
			height INTEGER,
			metadata JSONB,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_media_queue_pending ON media_queue(created_at) WHERE status = 'pending';
	`)
	return err
}

// EnqueueMedia inserts items in one batch. A canonical URL already in the
// queue keeps its first row; the return value counts new rows only.
func (s *PostgresStore) EnqueueMedia(ctx context.Context, items []models.QueuedMedia) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO media_queue (
			id, run_id, site_id, canonical_url, original_url, media_type,
			width, height, metadata, status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (canonical_url) DO NOTHING`

	batch := &pgx.Batch{}
	for _, m := range items {
		batch.Queue(query,
			m.ID, m.RunID, m.SiteID, m.CanonicalURL, m.OriginalURL, m.MediaType,
			m.Width, m.Height, m.Metadata, m.Status, m.Attempts, m.CreatedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range items {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) PendingMedia(ctx context.Context, limit int) ([]models.QueuedMedia, error) {
	query := `
		SELECT id, run_id, site_id, canonical_url, original_url, media_type,
			width, height, metadata, status, attempts, created_at
		FROM media_queue
		WHERE status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []models.QueuedMedia
	for rows.Next() {
		var m models.QueuedMedia
		if err := rows.Scan(
			&m.ID, &m.RunID, &m.SiteID, &m.CanonicalURL, &m.OriginalURL, &m.MediaType,
			&m.Width, &m.Height, &m.Metadata, &m.Status, &m.Attempts, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *PostgresStore) UpdateMediaStatus(ctx context.Context, id uuid.UUID, status string, attempts int) error {
	_, err := s.pool.Exec(ctx, `UPDATE media_queue SET status = $2, attempts = $3 WHERE id = $1`, id, status, attempts)
	return err
}

// QueueDepth counts queued media by status.
func (s *PostgresStore) QueueDepth(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM media_queue GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
