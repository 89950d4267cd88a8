package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/bdougie/clipfeed/internal/models"
)

// ErrMalformed is wrapped by every parse failure
var ErrMalformed = errors.New("malformed manifest")

// Layout of the records in a manifest file
type Layout int

const (
	// Compact records are exactly three lines: label, frame count, sample frame path.
	Compact Layout = iota
	// Expanded records list every frame path after the count; only the first is read.
	Expanded
)

// ParseLayout maps a config value onto a Layout
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "compact":
		return Compact, nil
	case "expanded":
		return Expanded, nil
	}
	return Compact, fmt.Errorf("unknown manifest layout %q", s)
}

const (
	rgbPlaceholder  = "0001"
	flowPlaceholder = "0002"
)

// Options control how sample paths become frame templates
type Options struct {
	Layout     Layout
	Flow       bool
	ImagesRoot string
	Reshape    models.Size
	Crop       models.Size
}

// Manifest is the set of videos to sample from, in file order
type Manifest struct {
	Videos map[string]models.VideoRecord
	Order  []string
}

// Len returns the number of videos
func (m *Manifest) Len() int {
	return len(m.Order)
}

// At returns the video at position i of the file order
func (m *Manifest) At(i int) models.VideoRecord {
	return m.Videos[m.Order[i]]
}

// LoadFile opens and parses a manifest file
func LoadFile(name string, opts Options) (*Manifest, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest '%s': %w", name, err)
	}
	defer f.Close()

	m, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// Load parses manifest records from r
func Load(r io.Reader, opts Options) (*Manifest, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	// a trailing newline is not a record
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	m := &Manifest{Videos: make(map[string]models.VideoRecord)}
	for cur := 0; cur < len(lines); {
		if cur+2 >= len(lines) {
			return nil, fmt.Errorf("%w: line %d: truncated record", ErrMalformed, cur+1)
		}

		label, err := strconv.Atoi(strings.TrimSpace(lines[cur]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: label %q is not an integer", ErrMalformed, cur+1, lines[cur])
		}
		count, err := strconv.Atoi(strings.TrimSpace(lines[cur+1]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: frame count %q is not an integer", ErrMalformed, cur+2, lines[cur+1])
		}
		if count <= 0 {
			return nil, fmt.Errorf("%w: line %d: frame count must be positive", ErrMalformed, cur+2)
		}

		sample := strings.TrimSpace(lines[cur+2])
		rec, err := newRecord(sample, label, count, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, cur+3, err)
		}
		if _, dup := m.Videos[rec.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate video %q", ErrMalformed, cur+3, rec.ID)
		}
		m.Videos[rec.ID] = rec
		m.Order = append(m.Order, rec.ID)

		switch opts.Layout {
		case Expanded:
			cur += count + 2
			if cur > len(lines) {
				return nil, fmt.Errorf("%w: video %q lists fewer than %d frames", ErrMalformed, rec.ID, count)
			}
		default:
			cur += 3
		}
	}

	if len(m.Order) == 0 {
		return nil, fmt.Errorf("%w: no videos", ErrMalformed)
	}
	return m, nil
}

func newRecord(sample string, label, count int, opts Options) (models.VideoRecord, error) {
	if sample == "" {
		return models.VideoRecord{}, errors.New("empty frame path")
	}

	id := path.Base(path.Dir(sample))
	if id == "." || id == "/" {
		return models.VideoRecord{}, fmt.Errorf("frame path %q has no video directory", sample)
	}

	placeholder := rgbPlaceholder
	if opts.Flow {
		placeholder = flowPlaceholder
		// the first flow image pairs frames 1 and 2
		count--
	}

	// the position digits live in the file name, never in the directory
	idx := strings.LastIndex(sample, placeholder)
	if idx < 0 || idx < strings.LastIndex(sample, "/") {
		return models.VideoRecord{}, fmt.Errorf("frame path %q has no %s frame number", sample, placeholder)
	}

	return models.VideoRecord{
		ID:    id,
		Label: label,
		FrameTemplate: models.FrameTemplate{
			Prefix: opts.ImagesRoot + sample[:idx],
			Suffix: sample[idx+len(placeholder):],
			Width:  len(placeholder),
		},
		NumFrames: count,
		Reshape:   opts.Reshape,
		Crop:      opts.Crop,
	}, nil
}

// Entry is one video as written by Write
type Entry struct {
	Label      int
	NumFrames  int
	FramePaths []string
}

// Write emits entries in the given layout.
// Compact writes only the first frame path of each entry.
func Write(w io.Writer, entries []Entry, layout Layout) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if len(e.FramePaths) == 0 {
			return fmt.Errorf("entry with label %d has no frames", e.Label)
		}
		fmt.Fprintf(bw, "%d\n%d\n", e.Label, e.NumFrames)
		paths := e.FramePaths[:1]
		if layout == Expanded {
			paths = e.FramePaths
		}
		for _, p := range paths {
			fmt.Fprintln(bw, p)
		}
	}
	return bw.Flush()
}
