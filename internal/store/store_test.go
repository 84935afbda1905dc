// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/snapshot"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

const sqlDeleteScene = `DELETE FROM snapshot_scenes WHERE scene = $1;`

var sceneColumns = []string{"scene", "name", "data", "extra", "saved_at"}

func sampleSnapshot(name string, left float64) snapshot.Snapshot {
	d := schemas.PositionData{}
	d.Left = schemas.NewFloat(left)
	d.Width = schemas.Px(100)
	return snapshot.Snapshot{
		Name:    name,
		Data:    d,
		SavedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}
}

func newMockedStore(t *testing.T, logger *zap.Logger) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	if logger == nil {
		logger = zap.NewNop()
	}
	mockPool.ExpectPing().WillReturnError(nil)
	st, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return mockPool, st
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	t.Run("should create the table", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		require.NoError(t, st.EnsureSchema(context.Background()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate DDL errors", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		ddlErr := errors.New("permission denied")
		mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).WillReturnError(ddlErr)

		err := st.EnsureSchema(context.Background())
		assert.ErrorIs(t, err, ddlErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveScene(t *testing.T) {
	ctx := context.Background()

	t.Run("should replace a scene in one transaction without rollback noise", func(t *testing.T) {
		observedCore, observedLogs := observer.New(zapcore.ErrorLevel)
		mockPool, st := newMockedStore(t, zap.New(observedCore))

		snaps := []snapshot.Snapshot{
			sampleSnapshot("default", 0),
			sampleSnapshot("docked", 40),
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteScene)).
			WithArgs("main").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"snapshot_scenes"}, sceneColumns).
			WillReturnResult(2)
		mockPool.ExpectCommit()
		// Rollback after commit reports ErrTxClosed; the store must stay quiet.
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, st.SaveScene(ctx, "main", snaps))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should clear the scene when given no snapshots", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteScene)).
			WithArgs("main").
			WillReturnResult(pgxmock.NewResult("DELETE", 4))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, st.SaveScene(ctx, "main", nil))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject an empty scene name", func(t *testing.T) {
		_, st := newMockedStore(t, nil)

		err := st.SaveScene(ctx, "", []snapshot.Snapshot{sampleSnapshot("a", 1)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scene name required")
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := st.SaveScene(ctx, "main", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback when the copy fails", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		copyErr := errors.New("copy from failed")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteScene)).
			WithArgs("main").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"snapshot_scenes"}, sceneColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := st.SaveScene(ctx, "main", []snapshot.Snapshot{sampleSnapshot("a", 1)})
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a copy count mismatch", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteScene)).
			WithArgs("main").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"snapshot_scenes"}, sceneColumns).
			WillReturnResult(1)
		mockPool.ExpectRollback()

		err := st.SaveScene(ctx, "main", []snapshot.Snapshot{
			sampleSnapshot("a", 1),
			sampleSnapshot("b", 2),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied snapshot count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("should upsert with exact payloads", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		snap := sampleSnapshot("default", 12)
		data, err := json.Marshal(snap.Data)
		require.NoError(t, err)

		mockPool.ExpectExec(flexibleSQLMatcher(upsertSQL)).
			WithArgs("main", "default", data, []byte("{}"), snap.SavedAt.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, st.SaveSnapshot(ctx, "main", snap))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject an empty scene name", func(t *testing.T) {
		_, st := newMockedStore(t, nil)

		err := st.SaveSnapshot(ctx, "", sampleSnapshot("a", 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scene name required")
	})

	t.Run("should propagate exec errors", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		execErr := errors.New("deadlock detected")
		mockPool.ExpectExec(flexibleSQLMatcher(upsertSQL)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(execErr)

		err := st.SaveSnapshot(ctx, "main", sampleSnapshot("a", 1))
		assert.ErrorIs(t, err, execErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLoadScene(t *testing.T) {
	ctx := context.Background()

	sqlLoad := `
        SELECT name, data, extra, saved_at
        FROM snapshot_scenes
        WHERE scene = $1
        ORDER BY name ASC;
    `

	t.Run("should retrieve and decode snapshots", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		savedAt := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
		rows := pgxmock.NewRows([]string{"name", "data", "extra", "saved_at"}).
			AddRow("default", []byte(`{"left": 10, "width": "auto"}`), []byte(`{}`), savedAt).
			AddRow("docked", []byte(`{"left": 40, "top": 8}`), []byte(`{"tag": "sidebar"}`), savedAt)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlLoad)).
			WithArgs("main").
			WillReturnRows(rows)

		snaps, err := st.LoadScene(ctx, "main")
		require.NoError(t, err)
		require.Len(t, snaps, 2)

		assert.Equal(t, "default", snaps[0].Name)
		assert.InDelta(t, 10.0, snaps[0].Data.Left.Or(-1), 1e-9)
		assert.True(t, snaps[0].Data.Width.IsAuto())
		assert.False(t, snaps[0].Data.Top.Valid(), "absent JSON keys stay null")
		assert.Nil(t, snaps[0].Extra)
		assert.True(t, snaps[0].SavedAt.Equal(savedAt))

		assert.Equal(t, "docked", snaps[1].Name)
		assert.InDelta(t, 8.0, snaps[1].Data.Top.Or(-1), 1e-9)
		assert.Equal(t, map[string]any{"tag": "sidebar"}, snaps[1].Extra)

		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		queryErr := errors.New("connection reset")
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlLoad)).
			WithArgs("main").
			WillReturnError(queryErr)

		_, err := st.LoadScene(ctx, "main")
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should surface corrupt payloads", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		rows := pgxmock.NewRows([]string{"name", "data", "extra", "saved_at"}).
			AddRow("broken", []byte(`{"left":`), []byte(`{}`), time.Now().UTC())

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlLoad)).
			WithArgs("main").
			WillReturnRows(rows)

		_, err := st.LoadScene(ctx, "main")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode snapshot data")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestDeleteScene(t *testing.T) {
	ctx := context.Background()

	t.Run("should report how many snapshots were removed", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteScene)).
			WithArgs("main").
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		n, err := st.DeleteScene(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate exec errors", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		execErr := errors.New("relation does not exist")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteScene)).
			WithArgs("main").
			WillReturnError(execErr)

		_, err := st.DeleteScene(ctx, "main")
		assert.ErrorIs(t, err, execErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestScenes(t *testing.T) {
	ctx := context.Background()

	t.Run("should list distinct scene names", func(t *testing.T) {
		mockPool, st := newMockedStore(t, nil)

		rows := pgxmock.NewRows([]string{"scene"}).
			AddRow("main").
			AddRow("sidebar")

		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT DISTINCT scene FROM snapshot_scenes ORDER BY scene ASC;`)).
			WillReturnRows(rows)

		scenes, err := st.Scenes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"main", "sidebar"}, scenes)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEncodeSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("round-trips position data including nulls", func(t *testing.T) {
		t.Parallel()

		snap := sampleSnapshot("default", 25)
		data, extra, err := encodeSnapshot(snap)
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), extra)

		var decoded schemas.PositionData
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.InDelta(t, 25.0, decoded.Left.Or(-1), 1e-9)
		px, ok := decoded.Width.Pixels()
		require.True(t, ok)
		assert.InDelta(t, 100.0, px, 1e-9)
		assert.False(t, decoded.Top.Valid())
		assert.False(t, decoded.Scale.Valid())
	})

	t.Run("keeps extra payloads", func(t *testing.T) {
		t.Parallel()

		snap := sampleSnapshot("tagged", 1)
		snap.Extra = map[string]any{"tag": "sidebar"}

		_, extra, err := encodeSnapshot(snap)
		require.NoError(t, err)
		assert.JSONEq(t, `{"tag": "sidebar"}`, string(extra))
	})
}
