// File: internal/store/store.go

// Package store persists named snapshot scenes to PostgreSQL. A scene is
// one element's full set of snapshots; saving replaces the scene wholesale
// so the table always mirrors what restore will reproduce.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides the PostgreSQL snapshot-scene repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaSQL = `
    CREATE TABLE IF NOT EXISTS snapshot_scenes (
        scene     TEXT NOT NULL,
        name      TEXT NOT NULL,
        data      JSONB NOT NULL,
        extra     JSONB NOT NULL DEFAULT '{}',
        saved_at  TIMESTAMPTZ NOT NULL,
        stored_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (scene, name)
    );
`

// EnsureSchema creates the snapshot_scenes table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}
	return nil
}

// SaveScene replaces every stored snapshot of the scene with snaps, in one
// transaction. An empty slice clears the scene.
func (s *Store) SaveScene(ctx context.Context, scene string, snaps []snapshot.Snapshot) error {
	if scene == "" {
		return errors.New("scene name required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after commit reports ErrTxClosed; that one is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM snapshot_scenes WHERE scene = $1;`, scene); err != nil {
		return fmt.Errorf("failed to clear scene %q: %w", scene, err)
	}

	if len(snaps) > 0 {
		rows := make([][]interface{}, len(snaps))
		for i, snap := range snaps {
			data, extra, err := encodeSnapshot(snap)
			if err != nil {
				return fmt.Errorf("failed to encode snapshot %q: %w", snap.Name, err)
			}
			rows[i] = []interface{}{scene, snap.Name, data, extra, snap.SavedAt.UTC()}
		}

		copyCount, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"snapshot_scenes"},
			[]string{"scene", "name", "data", "extra", "saved_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy snapshots: %w", err)
		}
		if int(copyCount) != len(snaps) {
			return fmt.Errorf("mismatch in copied snapshot count: expected %d, got %d", len(snaps), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Scene saved",
		zap.String("scene", scene),
		zap.Int("snapshots", len(snaps)),
	)
	return nil
}

const upsertSQL = `
    INSERT INTO snapshot_scenes (scene, name, data, extra, saved_at)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (scene, name) DO UPDATE SET
        data = EXCLUDED.data,
        extra = EXCLUDED.extra,
        saved_at = EXCLUDED.saved_at,
        stored_at = now();
`

// SaveSnapshot upserts a single snapshot without touching the rest of the
// scene.
func (s *Store) SaveSnapshot(ctx context.Context, scene string, snap snapshot.Snapshot) error {
	if scene == "" {
		return errors.New("scene name required")
	}
	data, extra, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %q: %w", snap.Name, err)
	}
	if _, err := s.pool.Exec(ctx, upsertSQL, scene, snap.Name, data, extra, snap.SavedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert snapshot %q: %w", snap.Name, err)
	}
	return nil
}

// LoadScene reads every snapshot of a scene, ordered by name.
func (s *Store) LoadScene(ctx context.Context, scene string) ([]snapshot.Snapshot, error) {
	query := `
        SELECT name, data, extra, saved_at
        FROM snapshot_scenes
        WHERE scene = $1
        ORDER BY name ASC;
    `
	rows, err := s.pool.Query(ctx, query, scene)
	if err != nil {
		return nil, fmt.Errorf("failed to query scene %q: %w", scene, err)
	}
	defer rows.Close()

	var snaps []snapshot.Snapshot
	for rows.Next() {
		var snap snapshot.Snapshot
		var dataRaw, extraRaw []byte

		if err := rows.Scan(&snap.Name, &dataRaw, &extraRaw, &snap.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if err := json.Unmarshal(dataRaw, &snap.Data); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot data for %q: %w", snap.Name, err)
		}
		if len(extraRaw) > 0 && string(extraRaw) != "{}" {
			if err := json.Unmarshal(extraRaw, &snap.Extra); err != nil {
				return nil, fmt.Errorf("failed to decode snapshot extra for %q: %w", snap.Name, err)
			}
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return snaps, nil
}

// DeleteScene removes a whole scene and reports how many snapshots went.
func (s *Store) DeleteScene(ctx context.Context, scene string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshot_scenes WHERE scene = $1;`, scene)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scene %q: %w", scene, err)
	}
	return tag.RowsAffected(), nil
}

// Scenes lists the stored scene names.
func (s *Store) Scenes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT scene FROM snapshot_scenes ORDER BY scene ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []string
	for rows.Next() {
		var scene string
		if err := rows.Scan(&scene); err != nil {
			return nil, fmt.Errorf("failed to scan scene name: %w", err)
		}
		scenes = append(scenes, scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return scenes, nil
}

// encodeSnapshot renders the JSONB payloads. Extra never stores SQL null;
// an absent map becomes an empty object.
func encodeSnapshot(snap snapshot.Snapshot) (data, extra []byte, err error) {
	data, err = json.Marshal(snap.Data)
	if err != nil {
		return nil, nil, err
	}
	if len(snap.Extra) == 0 {
		return data, []byte("{}"), nil
	}
	extra, err = json.Marshal(snap.Extra)
	if err != nil {
		return nil, nil, err
	}
	return data, extra, nil
}
