package extractor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes three frames next to the output pattern given as last argument
const fakeFFmpeg = `#!/bin/sh
for last; do :; done
dir=$(dirname "$last")
case "$*" in *broken*) echo "invalid data" >&2; exit 1;; esac
for i in 1 2 3; do printf x > "$dir/frame_000$i.jpg"; done
`

func setup(t *testing.T) (string, *Extractor) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte(fakeFFmpeg), 0755))
	return dir, &Extractor{FFmpeg: bin}
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func TestExtractFrames(t *testing.T) {
	dir, e := setup(t)
	video := touch(t, filepath.Join(dir, "v_Run_g01.avi"))
	out := filepath.Join(dir, "frames")

	v, err := e.ExtractFrames(context.Background(), video, out)
	require.NoError(t, err)
	assert.Equal(t, "v_Run_g01", v.Name)
	assert.Equal(t, []string{
		"v_Run_g01/frame_0001.jpg",
		"v_Run_g01/frame_0002.jpg",
		"v_Run_g01/frame_0003.jpg",
	}, v.Frames)

	// second run reuses the frames on disk
	e.FFmpeg = filepath.Join(dir, "missing-ffmpeg")
	again, err := e.ExtractFrames(context.Background(), video, out)
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestExtractFramesErrors(t *testing.T) {
	dir, e := setup(t)

	_, err := e.ExtractFrames(context.Background(), filepath.Join(dir, "nope.avi"), dir)
	assert.Error(t, err)

	broken := touch(t, filepath.Join(dir, "broken.avi"))
	_, err = e.ExtractFrames(context.Background(), broken, filepath.Join(dir, "frames"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data")
}

func TestExtractAllAndEntries(t *testing.T) {
	dir, e := setup(t)
	paths := []string{
		touch(t, filepath.Join(dir, "a.avi")),
		touch(t, filepath.Join(dir, "b.avi")),
		touch(t, filepath.Join(dir, "c.avi")),
	}

	videos, err := e.ExtractAll(context.Background(), paths, filepath.Join(dir, "out"), 2)
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "a", videos[0].Name)
	assert.Equal(t, "c", videos[2].Name)

	entries, err := Entries(videos, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, entries[1].NumFrames)
	assert.Equal(t, "b/frame_0001.jpg", entries[1].FramePaths[0])

	_, err = Entries(videos, []int{0})
	assert.Error(t, err)

	paths = append(paths, touch(t, filepath.Join(dir, "broken.avi")))
	_, err = e.ExtractAll(context.Background(), paths, filepath.Join(dir, "out2"), 2)
	assert.Error(t, err)
}

func TestListFramesNumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_10000.jpg", "frame_1001.jpg", "frame_9999.jpg", "frame_0002.jpg", "notes.txt"} {
		touch(t, filepath.Join(dir, name))
	}

	frames, err := listFrames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"frame_0002.jpg", "frame_1001.jpg", "frame_9999.jpg", "frame_10000.jpg"}, frames)
}
