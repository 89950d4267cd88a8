package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bdougie/clipfeed/internal/config"
	"github.com/bdougie/clipfeed/internal/storage"
)

// clipIndex looks clips up by signature
type clipIndex interface {
	ClipSignature(ctx context.Context, videoID string, startFrame int) ([]float32, error)
	SearchSimilarClips(ctx context.Context, signature []float32, limit int) ([]storage.SimilarClip, error)
}

func similarCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("similar", flag.ContinueOnError)
	preset := fs.String("preset", "train-rgb", fmt.Sprintf("configuration preset %v", config.PresetNames()))
	configPath := fs.String("config", "", "YAML file with the postgres ledger settings")
	run := fs.String("run", "", "run whose ledger is searched")
	video := fs.String("video", "", "video id of the query clip")
	start := fs.Int("start", 0, "start frame of the query clip")
	k := fs.Int("k", 5, "number of neighbours to print")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *run == "" || *video == "" || *start <= 0 {
		return errors.New("-run, -video and a positive -start are required")
	}

	logger := newLogger(*debug)
	cfg, err := loadConfig(*preset, *configPath)
	if err != nil {
		return err
	}
	if cfg.Ledger.Kind != config.LedgerPostgres {
		return fmt.Errorf("similar needs a postgres ledger, configured %q", cfg.Ledger.Kind)
	}

	store, err := storage.OpenPostgresRun(ctx, postgresConfig(cfg), *run)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := nearestClips(ctx, store, *video, *start, *k)
	if err != nil {
		return err
	}
	logger.Debug("similar clips", "run", *run, "video", *video, "start", *start, "hits", len(hits))
	printClips(os.Stdout, hits)
	return nil
}

// nearestClips returns up to k clips closest to the recorded clip of videoID at startFrame,
// leaving out the query clip itself
func nearestClips(ctx context.Context, idx clipIndex, videoID string, startFrame, k int) ([]storage.SimilarClip, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	signature, err := idx.ClipSignature(ctx, videoID, startFrame)
	if err != nil {
		return nil, err
	}
	hits, err := idx.SearchSimilarClips(ctx, signature, k+1)
	if err != nil {
		return nil, err
	}

	nearest := make([]storage.SimilarClip, 0, k)
	for _, h := range hits {
		if h.VideoID == videoID && h.StartFrame == startFrame {
			continue
		}
		if len(nearest) == k {
			break
		}
		nearest = append(nearest, h)
	}
	return nearest, nil
}

func printClips(w io.Writer, clips []storage.SimilarClip) {
	for _, c := range clips {
		fmt.Fprintf(w, "%s\tframe %d\tstep %d\t%.4f\n", c.VideoID, c.StartFrame, c.Step, c.Similarity)
	}
}
