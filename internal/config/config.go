package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bdougie/clipfeed/internal/models"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Mode selects the train or test split
type Mode string

const (
	ModeTrain Mode = "train"
	ModeTest  Mode = "test"
)

// Manifest layouts understood by the loader
const (
	LayoutCompact  = "compact"
	LayoutExpanded = "expanded"
)

// Ledger kinds
const (
	LedgerNone     = "none"
	LedgerJSON     = "json"
	LedgerPostgres = "postgres"
)

// Config holds everything the feeder needs to produce batches
type Config struct {
	Mode           Mode        `yaml:"mode"`
	Flow           bool        `yaml:"flow"`
	BufferSize     int         `yaml:"buffer_size"` // videos per batch
	ClipLength     int         `yaml:"clip_length"` // frames per clip
	Channels       int         `yaml:"channels"`
	Height         int         `yaml:"height"`
	Width          int         `yaml:"width"`
	ImagesRoot     string      `yaml:"images_root"` // prepended to every manifest path, may be s3://bucket/prefix/
	VideoList      string      `yaml:"video_list"`
	ManifestLayout string      `yaml:"manifest_layout"`
	PoolSize       int         `yaml:"pool_size"`
	Seed           int64       `yaml:"seed"`
	Reshape        models.Size `yaml:"reshape"`
	Crop           models.Size `yaml:"crop"`
	Ledger         Ledger      `yaml:"ledger"`
}

// Ledger configures where sampled clips are recorded
type Ledger struct {
	Kind     string   `yaml:"kind"`
	Dir      string   `yaml:"dir"`
	Postgres Postgres `yaml:"postgres"`
}

// Postgres holds connection details for the postgres ledger
type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// BatchFrames returns the number of frames in every batch
func (c *Config) BatchFrames() int {
	return c.BufferSize * c.ClipLength
}

// Load reads a YAML file on top of base and validates the result
func Load(path string, base Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration and fills defaults
func Validate(cfg *Config) error {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeTrain
	case ModeTrain, ModeTest:
	default:
		return fmt.Errorf("%w: mode must be train or test, got %q", ErrInvalid, cfg.Mode)
	}

	if cfg.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer_size must be > 0", ErrInvalid)
	}
	if cfg.ClipLength <= 0 {
		return fmt.Errorf("%w: clip_length must be > 0", ErrInvalid)
	}
	if cfg.Channels != 3 {
		return fmt.Errorf("%w: channels must be 3, got %d", ErrInvalid, cfg.Channels)
	}
	if cfg.VideoList == "" {
		return fmt.Errorf("%w: video_list is required", ErrInvalid)
	}

	if cfg.Reshape == (models.Size{}) {
		cfg.Reshape = DefaultReshape
	}
	if cfg.Crop == (models.Size{}) {
		cfg.Crop = models.Size{H: cfg.Height, W: cfg.Width}
	}
	if cfg.Crop.H != cfg.Height || cfg.Crop.W != cfg.Width {
		return fmt.Errorf("%w: crop %dx%d must match output %dx%d",
			ErrInvalid, cfg.Crop.H, cfg.Crop.W, cfg.Height, cfg.Width)
	}
	if cfg.Crop.H > cfg.Reshape.H || cfg.Crop.W > cfg.Reshape.W {
		return fmt.Errorf("%w: crop %dx%d exceeds reshape %dx%d",
			ErrInvalid, cfg.Crop.H, cfg.Crop.W, cfg.Reshape.H, cfg.Reshape.W)
	}

	switch cfg.ManifestLayout {
	case "":
		cfg.ManifestLayout = LayoutCompact
	case LayoutCompact, LayoutExpanded:
	default:
		return fmt.Errorf("%w: manifest_layout must be compact or expanded", ErrInvalid)
	}

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	switch cfg.Ledger.Kind {
	case "":
		cfg.Ledger.Kind = LedgerNone
	case LedgerNone:
	case LedgerJSON:
		if cfg.Ledger.Dir == "" {
			cfg.Ledger.Dir = "ledger"
		}
	case LedgerPostgres:
		if cfg.Ledger.Postgres.Host == "" {
			cfg.Ledger.Postgres.Host = "localhost"
		}
		if cfg.Ledger.Postgres.Port == "" {
			cfg.Ledger.Postgres.Port = "5432"
		}
		if cfg.Ledger.Postgres.DBName == "" {
			return fmt.Errorf("%w: ledger.postgres.dbname is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown ledger kind %q", ErrInvalid, cfg.Ledger.Kind)
	}

	return nil
}
