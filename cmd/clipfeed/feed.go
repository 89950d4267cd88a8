package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/clipfeed/internal/config"
	"github.com/bdougie/clipfeed/internal/feeder"
	"github.com/bdougie/clipfeed/internal/models"
	"github.com/bdougie/clipfeed/internal/source"
	"github.com/bdougie/clipfeed/internal/storage"
)

func feedCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	preset := fs.String("preset", "train-rgb", fmt.Sprintf("configuration preset %v", config.PresetNames()))
	configPath := fs.String("config", "", "YAML file overriding the preset")
	steps := fs.Int("steps", 10, "number of batches to consume")
	run := fs.String("run", "", "run name for the clip ledger (random when empty)")
	initSchema := fs.Bool("init-schema", false, "create the postgres ledger tables first")
	s3Region := fs.String("s3-region", "", "region for s3:// image roots")
	s3Endpoint := fs.String("s3-endpoint", "", "endpoint for s3:// image roots")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*debug)
	slog.SetDefault(logger)

	cfg, err := loadConfig(*preset, *configPath)
	if err != nil {
		return err
	}

	if *run == "" {
		*run = uuid.NewString()
	}

	store, closeStore, err := openLedger(ctx, cfg, *run, *initSchema)
	if err != nil {
		return err
	}
	defer closeStore()

	src := &source.Router{
		Local: source.FileSource{},
		S3: func() (source.Source, error) {
			return source.NewS3Source(source.S3Config{Region: *s3Region, Endpoint: *s3Endpoint})
		},
	}
	f, err := feeder.FromConfig(cfg, src, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	logger.Info("starting feeder",
		"preset", *preset,
		"run", *run,
		"buffer_size", cfg.BufferSize,
		"clip_length", cfg.ClipLength,
		"pool_size", cfg.PoolSize,
		"ledger", cfg.Ledger.Kind,
	)
	return consume(ctx, f, store, *steps, logger)
}

// loadConfig resolves a preset, overlaid with the YAML file at path when given
func loadConfig(preset, path string) (*config.Config, error) {
	base, err := config.Preset(preset)
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.Load(path, base)
	}
	if err := config.Validate(&base); err != nil {
		return nil, err
	}
	return &base, nil
}

// consume drives the feeder like a training loop would and records every clip
func consume(ctx context.Context, f *feeder.Feeder, store storage.Storage, steps int, logger *slog.Logger) error {
	outputs, err := f.Setup(ctx, len(feeder.OutputNames))
	if err != nil {
		return err
	}
	for _, out := range outputs {
		logger.Debug("declared output", "name", out.Name, "shape", out.Shape)
	}

	for i := 0; i < steps; i++ {
		start := time.Now()
		batch, err := f.Step(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted", "completed_steps", i)
			break
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		if err := record(ctx, store, batch); err != nil {
			return err
		}
		logger.Info("batch",
			"step", batch.Step,
			"id", batch.ID,
			"frames", len(batch.Labels),
			"clips", len(batch.Clips),
			"wait", time.Since(start),
		)
	}

	if err := store.Flush(); err != nil {
		return fmt.Errorf("failed to flush clip ledger: %w", err)
	}
	return nil
}

func record(ctx context.Context, store storage.Storage, batch *models.Batch) error {
	for k, clip := range batch.Clips {
		err := store.AddClip(ctx, models.ClipRecord{
			BatchID:    batch.ID,
			Step:       batch.Step,
			ClipSample: clip,
			Signature:  batch.ClipSignature(k),
		})
		if err != nil {
			return fmt.Errorf("failed to record clip %s of batch %d: %w", clip.VideoID, batch.Step, err)
		}
	}
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config, run string, initSchema bool) (storage.Storage, func(), error) {
	switch cfg.Ledger.Kind {
	case config.LedgerJSON:
		return storage.NewJSONStorage(cfg.Ledger.Dir, run), func() {}, nil
	case config.LedgerPostgres:
		pgCfg := postgresConfig(cfg)
		if initSchema {
			if err := storage.InitSchema(ctx, pgCfg); err != nil {
				return nil, nil, err
			}
		}
		store, err := storage.NewPostgresStorage(ctx, pgCfg, run)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return storage.Discard{}, func() {}, nil
	}
}

func postgresConfig(cfg *config.Config) storage.PostgresConfig {
	pg := cfg.Ledger.Postgres
	return storage.PostgresConfig{
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		DBName:   pg.DBName,
	}
}
