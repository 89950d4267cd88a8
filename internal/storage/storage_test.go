package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/clipfeed/internal/models"
)

func record(step int, video string) models.ClipRecord {
	return models.ClipRecord{
		BatchID: uuid.New(),
		Step:    step,
		ClipSample: models.ClipSample{
			VideoID:    video,
			Label:      step % 3,
			StartFrame: 2 + step,
			Crop:       models.CropBox{Y0: 1, X0: 4, Y1: 228, X1: 231},
		},
		Signature: []float32{0.5, -1, 2},
	}
}

func TestJSONStorageFlushesInBatches(t *testing.T) {
	ctx := context.Background()
	s := NewJSONStorage(t.TempDir(), "run-1")

	for i := 0; i < batchSize-1; i++ {
		require.NoError(t, s.AddClip(ctx, record(i, "a")))
	}
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "nothing written before the batch fills")

	require.NoError(t, s.AddClip(ctx, record(batchSize-1, "b")))
	got, err := ReadJSON(s.Path())
	require.NoError(t, err)
	assert.Len(t, got, batchSize)

	require.NoError(t, s.AddClip(ctx, record(999, "c")))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Flush())

	got, err = ReadJSON(s.Path())
	require.NoError(t, err)
	require.Len(t, got, batchSize+1)
	last := got[len(got)-1]
	assert.Equal(t, "c", last.VideoID)
	assert.Equal(t, 999, last.Step)
	assert.Equal(t, []float32{0.5, -1, 2}, last.Signature)
	assert.Equal(t, models.CropBox{Y0: 1, X0: 4, Y1: 228, X1: 231}, last.Crop)
}

func TestJSONStorageAppendsToExisting(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewJSONStorage(dir, "run")
	require.NoError(t, first.AddClip(ctx, record(0, "a")))
	require.NoError(t, first.Flush())

	second := NewJSONStorage(dir, "run")
	require.NoError(t, second.AddClip(ctx, record(1, "b")))
	require.NoError(t, second.Flush())

	got, err := ReadJSON(second.Path())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].VideoID)
	assert.Equal(t, "b", got[1].VideoID)
}

func TestJSONStorageCorruptLedger(t *testing.T) {
	s := NewJSONStorage(t.TempDir(), "run")
	require.NoError(t, os.MkdirAll(s.Path()[:len(s.Path())-len(ledgerFile)], 0755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{"), 0644))

	require.NoError(t, s.AddClip(context.Background(), record(0, "a")))
	assert.Error(t, s.Flush())
}

func TestDiscard(t *testing.T) {
	var s Storage = Discard{}
	assert.NoError(t, s.AddClip(context.Background(), record(0, "a")))
	assert.NoError(t, s.Flush())
}

func TestPostgresConnString(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5433", User: "feeder", Password: "pw", DBName: "clips"}
	assert.Equal(t, "postgres://feeder:pw@db:5433/clips", cfg.ConnString())
}
