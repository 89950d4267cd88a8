package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/clipfeed/internal/manifest"
)

const framePattern = "frame_%04d.jpg"

// Extractor splits videos into numbered JPEG frames with ffmpeg
type Extractor struct {
	FFmpeg string // ffmpeg binary, "ffmpeg" when empty
	FPS    int    // frames per second to keep, every frame when 0
	Logger *slog.Logger
}

// Video is one extracted video
type Video struct {
	Name   string   // directory name under the output dir
	Frames []string // frame paths relative to the output dir, in order
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// ExtractFrames writes the frames of videoPath to <outputDir>/<video name>/frame_%04d.jpg.
// Existing frames are reused.
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath, outputDir string) (*Video, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	if frames, err := listFrames(frameDirPath); err == nil && len(frames) > 0 {
		e.logger().Info("frames already exist, skipping extraction",
			"dir", frameDirPath, "frames", len(frames))
		return newVideo(videoName, frames), nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	bin := e.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	args := []string{"-loglevel", "error", "-i", videoPath}
	if e.FPS > 0 {
		args = append(args, "-vf", fmt.Sprintf("fps=%d", e.FPS))
	}
	args = append(args, filepath.Join(frameDirPath, framePattern))

	e.logger().Info("extracting frames", "video", videoPath, "dir", frameDirPath)
	output, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed on '%s': %w\nOutput: %s", videoPath, err, string(output))
	}

	frames, err := listFrames(frameDirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %w", frameDirPath, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no JPEG frames found in directory '%s'", frameDirPath)
	}
	return newVideo(videoName, frames), nil
}

// ExtractAll extracts every video with at most workers ffmpeg processes at a time.
// Results keep the order of videoPaths.
func (e *Extractor) ExtractAll(ctx context.Context, videoPaths []string, outputDir string, workers int) ([]*Video, error) {
	videos := make([]*Video, len(videoPaths))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range videoPaths {
		g.Go(func() error {
			v, err := e.ExtractFrames(ctx, path, outputDir)
			if err != nil {
				return err
			}
			videos[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return videos, nil
}

// Entries turns extracted videos into manifest entries with one label each
func Entries(videos []*Video, labels []int) ([]manifest.Entry, error) {
	if len(labels) != len(videos) {
		return nil, fmt.Errorf("%d labels for %d videos", len(labels), len(videos))
	}
	entries := make([]manifest.Entry, len(videos))
	for i, v := range videos {
		entries[i] = manifest.Entry{
			Label:      labels[i],
			NumFrames:  len(v.Frames),
			FramePaths: v.Frames,
		}
	}
	return entries, nil
}

func newVideo(name string, frames []string) *Video {
	rel := make([]string, len(frames))
	for i, f := range frames {
		rel[i] = name + "/" + f
	}
	return &Video{Name: name, Frames: rel}
}

func listFrames(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(strings.ToLower(file.Name()), ".jpg") {
			frames = append(frames, file.Name())
		}
	}
	sortFrames(frames)
	return frames, nil
}

// sortFrames orders names by frame number so frame_10000 follows frame_9999
func sortFrames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, aok := frameNumber(names[i])
		b, bok := frameNumber(names[j])
		if aok && bok && a != b {
			return a < b
		}
		if aok != bok {
			return aok
		}
		return names[i] < names[j]
	})
}

// frameNumber returns the trailing number of a frame file name
func frameNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(base[i:])
	return n, err == nil
}
