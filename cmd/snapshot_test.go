// File: cmd/snapshot_test.go
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/config"
	"github.com/xkilldash9x/repose/internal/snapshot"
)

func TestReadSceneFile(t *testing.T) {
	t.Parallel()

	t.Run("round trips snapshots", func(t *testing.T) {
		t.Parallel()
		snaps := []snapshot.Snapshot{
			{
				Name:    "start",
				Data:    schemas.PositionData{Left: schemas.NewFloat(10), Top: schemas.NewFloat(20)},
				SavedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
			},
			{Name: "end", Extra: map[string]any{"note": "after the glide"}},
		}
		raw, err := json.Marshal(snaps)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "scene.json")
		require.NoError(t, os.WriteFile(path, raw, 0644))

		got, err := readSceneFile(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "start", got[0].Name)
		assert.Equal(t, 10.0, got[0].Data.Left.Or(0))
		assert.Equal(t, "end", got[1].Name)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := readSceneFile(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "scene.json")
		require.NoError(t, os.WriteFile(path, []byte("{not a scene"), 0644))

		_, err := readSceneFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})
}

func TestOpenStoreRequiresURL(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()

	_, _, err := openStore(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage URL is not configured")
}

func TestSnapshotCommandWithoutStorage(t *testing.T) {
	_, err := runCommand(t, "snapshot", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage URL is not configured")
}

func TestSnapshotSaveRequiresFile(t *testing.T) {
	_, err := runCommand(t, "snapshot", "save", "scene")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}
