package config

import (
	"fmt"
	"sort"

	"github.com/bdougie/clipfeed/internal/models"
)

const (
	DefaultPoolSize = 24
	DefaultSeed     = 10
)

var DefaultReshape = models.Size{H: 240, W: 320}

// TrainRGB returns the RGB training preset
func TrainRGB() Config {
	return Config{
		Mode:       ModeTrain,
		Flow:       false,
		BufferSize: 24,
		ClipLength: 16,
		Channels:   3,
		Height:     227,
		Width:      227,
		ImagesRoot: "/mnt/y/lisaanne/ucf101/frames/",
		VideoList:  "ucf101_RGB_train_split_1.txt",
		PoolSize:   DefaultPoolSize,
		Seed:       DefaultSeed,
		Reshape:    DefaultReshape,
		Crop:       models.Size{H: 227, W: 227},
	}
}

// TestRGB returns the RGB evaluation preset
func TestRGB() Config {
	cfg := TrainRGB()
	cfg.Mode = ModeTest
	cfg.BufferSize = 3
	cfg.VideoList = "ucf101_RGB_test_split_1.txt"
	return cfg
}

// TrainFlow returns the optical flow training preset.
// Flow clips are single frames, so a batch is many videos wide.
func TrainFlow() Config {
	cfg := TrainRGB()
	cfg.Flow = true
	cfg.BufferSize = 128
	cfg.ClipLength = 1
	cfg.ImagesRoot = "/mnt/y/lisaanne/ucf101/flow_images_Georgia/"
	cfg.VideoList = "ucf101_flow_train_split_1.txt"
	return cfg
}

// TestFlow returns the optical flow evaluation preset
func TestFlow() Config {
	cfg := TrainFlow()
	cfg.Mode = ModeTest
	cfg.VideoList = "ucf101_flow_test_split_1.txt"
	return cfg
}

var presets = map[string]func() Config{
	"train-rgb":  TrainRGB,
	"test-rgb":   TestRGB,
	"train-flow": TrainFlow,
	"test-flow":  TestFlow,
}

// Preset looks up a preset by name
func Preset(name string) (Config, error) {
	fn, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q (have %v)", ErrInvalid, name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the known presets in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
