package feeder

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/bdougie/clipfeed/internal/config"
	"github.com/bdougie/clipfeed/internal/frames"
	"github.com/bdougie/clipfeed/internal/manifest"
	"github.com/bdougie/clipfeed/internal/sequence"
	"github.com/bdougie/clipfeed/internal/source"
)

// FromConfig loads the manifest named by cfg and wires a feeder reading frames from src
func FromConfig(cfg *config.Config, src source.Source, logger *slog.Logger) (*Feeder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	layout, err := manifest.ParseLayout(cfg.ManifestLayout)
	if err != nil {
		return nil, err
	}
	m, err := manifest.LoadFile(cfg.VideoList, manifest.Options{
		Layout:     layout,
		Flow:       cfg.Flow,
		ImagesRoot: cfg.ImagesRoot,
		Reshape:    cfg.Reshape,
		Crop:       cfg.Crop,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("loaded manifest", "path", cfg.VideoList, "videos", m.Len())

	gen, err := sequence.New(cfg.BufferSize, cfg.ClipLength, m, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sequence generator: %w", err)
	}

	norm := frames.RGBNormalizer()
	if cfg.Flow {
		norm = frames.FlowNormalizer()
	}
	pool := frames.NewPool(cfg.PoolSize, frames.NewProcessor(src, norm))
	adv := NewAdvancer(gen, pool, cfg.Channels, cfg.Height, cfg.Width)

	return New(adv, logger.With("mode", cfg.Mode, "flow", cfg.Flow)), nil
}
