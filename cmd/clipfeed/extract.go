package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bdougie/clipfeed/internal/extractor"
	"github.com/bdougie/clipfeed/internal/manifest"
)

func extractCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	outputDir := fs.String("out", "frames", "directory receiving one frame folder per video")
	manifestPath := fs.String("manifest", "", "manifest file to write")
	labelList := fs.String("labels", "", "comma separated label per video (all 0 when empty)")
	layout := fs.String("layout", "compact", "manifest layout: compact or expanded")
	fps := fs.Int("fps", 0, "frames per second to keep (every frame when 0)")
	workers := fs.Int("workers", 4, "concurrent ffmpeg processes")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	videos := fs.Args()
	if len(videos) == 0 {
		return errors.New("no videos given")
	}
	if *manifestPath == "" {
		return errors.New("-manifest is required")
	}
	l, err := manifest.ParseLayout(*layout)
	if err != nil {
		return err
	}
	labels, err := parseLabels(*labelList, len(videos))
	if err != nil {
		return err
	}

	logger := newLogger(*debug)
	e := &extractor.Extractor{FPS: *fps, Logger: logger}
	extracted, err := e.ExtractAll(ctx, videos, *outputDir, *workers)
	if err != nil {
		return err
	}

	entries, err := extractor.Entries(extracted, labels)
	if err != nil {
		return err
	}
	f, err := os.Create(*manifestPath)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if err := manifest.Write(f, entries, l); err != nil {
		f.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("manifest written", "path", *manifestPath, "videos", len(entries), "images_root", *outputDir)
	return nil
}

func parseLabels(list string, n int) ([]int, error) {
	labels := make([]int, n)
	if list == "" {
		return labels, nil
	}
	parts := strings.Split(list, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("got %d labels for %d videos", len(parts), n)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("label %q is not an integer", p)
		}
		labels[i] = v
	}
	return labels, nil
}
