package videostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediaqos/mediaqos/internal/model"
)

// PostgresStore is the SQL-backed Store for deployments that already run
// Postgres. Views are bumped with a relative UPDATE so the increment happens
// atomically inside the database, never as read-modify-write in Go.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the videos table if needed. Having the migration in
// code keeps the stack self-contained so docker-compose can bootstrap
// everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS videos (
	video_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	views BIGINT NOT NULL DEFAULT 0,
	s3_key TEXT NOT NULL DEFAULT '',
	s3_bucket TEXT NOT NULL DEFAULT '',
	file_size BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ,
	video_url TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *model.VideoRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO videos (video_id, filename, content_type, status, views, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.VideoID, rec.Filename, rec.ContentType, rec.Status, rec.Views, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: insert video: %s", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT video_id, filename, content_type, status, views, s3_key, s3_bucket,
			file_size, created_at, updated_at, processed_at, video_url, error_message
		FROM videos WHERE video_id=$1
	`, videoID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: select video: %s", ErrUnavailable, err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, videoID string, status model.VideoStatus, fields Fields) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE videos
		SET status=$1,
			s3_key = COALESCE($2, s3_key),
			s3_bucket = COALESCE($3, s3_bucket),
			file_size = COALESCE($4, file_size),
			processed_at = COALESCE($5, processed_at),
			video_url = COALESCE($6, video_url),
			error_message = COALESCE($7, error_message),
			updated_at=$8
		WHERE video_id=$9
	`, status, fields.S3Key, fields.S3Bucket, fields.FileSize, fields.ProcessedAt,
		fields.VideoURL, fields.ErrorMessage, time.Now().UTC(), videoID)
	if err != nil {
		return fmt.Errorf("%w: update video: %s", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementViews(ctx context.Context, videoID string, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE videos SET views = views + $1, updated_at=$2 WHERE video_id=$3
	`, delta, time.Now().UTC(), videoID)
	if err != nil {
		return fmt.Errorf("%w: increment views: %s", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ScanAll(ctx context.Context) ([]*model.VideoRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT video_id, filename, content_type, status, views, s3_key, s3_bucket,
			file_size, created_at, updated_at, processed_at, video_url, error_message
		FROM videos
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: select videos: %s", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*model.VideoRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan video: %s", ErrUnavailable, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate videos: %s", ErrUnavailable, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*model.VideoRecord, error) {
	var rec model.VideoRecord
	if err := row.Scan(&rec.VideoID, &rec.Filename, &rec.ContentType, &rec.Status,
		&rec.Views, &rec.S3Key, &rec.S3Bucket, &rec.FileSize, &rec.CreatedAt,
		&rec.UpdatedAt, &rec.ProcessedAt, &rec.VideoURL, &rec.ErrorMessage); err != nil {
		return nil, err
	}
	return &rec, nil
}
