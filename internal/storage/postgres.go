package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/clipfeed/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ConnString builds a postgres:// URL
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// SimilarClip is a search hit from SearchSimilarClips
type SimilarClip struct {
	VideoID    string
	StartFrame int
	Step       int
	Similarity float64
}

// PostgresStorage records sampled clips in PostgreSQL
type PostgresStorage struct {
	pool  *pgxpool.Pool
	runID int
	run   string
}

// ErrRunNotFound is returned by OpenPostgresRun for an unknown run name
var ErrRunNotFound = errors.New("run not found")

func connect(ctx context.Context, config PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresStorage connects and registers the run
func NewPostgresStorage(ctx context.Context, config PostgresConfig, run string) (*PostgresStorage, error) {
	pool, err := connect(ctx, config)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{
		pool: pool,
		run:  run,
	}

	runID, err := storage.getOrCreateRun(ctx, run)
	if err != nil {
		pool.Close()
		return nil, err
	}
	storage.runID = runID

	return storage, nil
}

// OpenPostgresRun connects to the ledger of an existing run for querying
func OpenPostgresRun(ctx context.Context, config PostgresConfig, run string) (*PostgresStorage, error) {
	pool, err := connect(ctx, config)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{pool: pool, run: run}
	err = pool.QueryRow(ctx, "SELECT id FROM runs WHERE name = $1", run).Scan(&storage.runID)
	if errors.Is(err, pgx.ErrNoRows) {
		pool.Close()
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, run)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error looking up run: %w", err)
	}
	return storage, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStorage) getOrCreateRun(ctx context.Context, run string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM runs WHERE name = $1",
		run).Scan(&id)

	if err == nil {
		return id, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("error checking for existing run: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"INSERT INTO runs (name, created_at) VALUES ($1, $2) RETURNING id",
		run, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create run entry: %w", err)
	}

	return id, nil
}

// AddClip stores one clip row with its signature
func (s *PostgresStorage) AddClip(ctx context.Context, record models.ClipRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clips
        (run_id, batch_id, step, video_id, label, start_frame, crop_y, crop_x, signature, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.runID, record.BatchID.String(), record.Step, record.VideoID, record.Label,
		record.StartFrame, record.Crop.Y0, record.Crop.X0,
		pgvector.NewVector(record.Signature), time.Now())
	if err != nil {
		return fmt.Errorf("failed to store clip: %w", err)
	}
	return nil
}

// Flush is a no-op, rows are written immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// ErrClipNotFound is returned by ClipSignature when the run never sampled the clip
var ErrClipNotFound = errors.New("clip not found")

// ClipSignature returns the signature of the earliest recorded clip of videoID starting at startFrame
func (s *PostgresStorage) ClipSignature(ctx context.Context, videoID string, startFrame int) ([]float32, error) {
	var v pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT signature FROM clips
        WHERE run_id = $1 AND video_id = $2 AND start_frame = $3
        ORDER BY step
        LIMIT 1`,
		s.runID, videoID, startFrame).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s from frame %d", ErrClipNotFound, videoID, startFrame)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load clip signature: %w", err)
	}
	return v.Slice(), nil
}

// SearchSimilarClips finds clips of this run whose signature is closest to signature
func (s *PostgresStorage) SearchSimilarClips(ctx context.Context, signature []float32, limit int) ([]SimilarClip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT video_id, start_frame, step,
        1 - (signature <=> $1) AS similarity
        FROM clips
        WHERE run_id = $2
        ORDER BY signature <=> $1
        LIMIT $3`,
		pgvector.NewVector(signature), s.runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar clips: %w", err)
	}
	defer rows.Close()

	var results []SimilarClip
	for rows.Next() {
		var r SimilarClip
		if err := rows.Scan(&r.VideoID, &r.StartFrame, &r.Step, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, config PostgresConfig) error {
	conn, err := pgx.Connect(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS runs (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(name)
        );

        CREATE TABLE IF NOT EXISTS clips (
            id BIGSERIAL PRIMARY KEY,
            run_id INTEGER REFERENCES runs(id) ON DELETE CASCADE,
            batch_id UUID NOT NULL,
            step INTEGER NOT NULL,
            video_id VARCHAR(255) NOT NULL,
            label INTEGER NOT NULL,
            start_frame INTEGER NOT NULL,
            crop_y INTEGER NOT NULL,
            crop_x INTEGER NOT NULL,
            signature vector(3),
            created_at TIMESTAMPTZ NOT NULL
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_clips_run_id ON clips(run_id);
        CREATE INDEX IF NOT EXISTS idx_clips_video_id ON clips(video_id);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}

var _ Storage = (*PostgresStorage)(nil)
