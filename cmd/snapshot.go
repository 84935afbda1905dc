// File: cmd/snapshot.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/internal/config"
	"github.com/xkilldash9x/repose/internal/observability"
	"github.com/xkilldash9x/repose/internal/snapshot"
	"github.com/xkilldash9x/repose/internal/store"
)

// newSnapshotCmd groups the scene persistence commands.
func newSnapshotCmd(v *viper.Viper) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Saves, loads and lists snapshot scenes in PostgreSQL",
	}
	snapshotCmd.PersistentFlags().String("storage-url", "", "PostgreSQL DSN. (Overrides config/env REPOSE_STORAGE_URL)")

	snapshotCmd.AddCommand(
		newSnapshotSaveCmd(v),
		newSnapshotLoadCmd(v),
		newSnapshotListCmd(v),
		newSnapshotRemoveCmd(v),
	)
	return snapshotCmd
}

// snapshotPreRun binds the storage override flag into v so the DSN follows
// the usual flag > env > file precedence.
func snapshotPreRun(v *viper.Viper) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return v.BindPFlag("storage.url", cmd.Flags().Lookup("storage-url"))
	}
}

// openStore connects to the configured PostgreSQL database and prepares the
// snapshot schema. The caller owns the returned pool.
func openStore(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*store.Store, *pgxpool.Pool, error) {
	url := cfg.Storage().URL
	if url == "" {
		return nil, nil, errors.New("storage URL is not configured (hint: set REPOSE_STORAGE_URL or --storage-url)")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool, nil
}

// readSceneFile decodes a snapshots JSON file.
func readSceneFile(path string) ([]snapshot.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	var snaps []snapshot.Snapshot
	if err := json.Unmarshal(raw, &snaps); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return snaps, nil
}

func newSnapshotSaveCmd(v *viper.Viper) *cobra.Command {
	saveCmd := &cobra.Command{
		Use:     "save <scene>",
		Short:   "Replaces a stored scene with the snapshots from a JSON file",
		Args:    cobra.ExactArgs(1),
		PreRunE: snapshotPreRun(v),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			path, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			snaps, err := readSceneFile(path)
			if err != nil {
				return err
			}

			st, pool, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := st.SaveScene(ctx, args[0], snaps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved scene %q (%d snapshots).\n", args[0], len(snaps))
			return nil
		},
	}
	saveCmd.Flags().StringP("file", "f", "", "JSON file holding the scene's snapshots")
	_ = saveCmd.MarkFlagRequired("file")
	return saveCmd
}

func newSnapshotLoadCmd(v *viper.Viper) *cobra.Command {
	loadCmd := &cobra.Command{
		Use:     "load <scene>",
		Short:   "Fetches a stored scene and writes its snapshots as JSON",
		Args:    cobra.ExactArgs(1),
		PreRunE: snapshotPreRun(v),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			st, pool, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			snaps, err := st.LoadScene(ctx, args[0])
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				return fmt.Errorf("scene %q has no stored snapshots", args[0])
			}

			out, err := json.MarshalIndent(snaps, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode scene %q: %w", args[0], err)
			}

			if path, _ := cmd.Flags().GetString("file"); path != "" {
				if err := os.WriteFile(path, out, 0644); err != nil {
					return fmt.Errorf("failed to write %q: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote scene %q to %s.\n", args[0], path)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	loadCmd.Flags().StringP("file", "f", "", "Write the JSON here instead of stdout")
	return loadCmd
}

func newSnapshotListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "Lists the stored scene names",
		Args:    cobra.NoArgs,
		PreRunE: snapshotPreRun(v),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			st, pool, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			scenes, err := st.Scenes(ctx)
			if err != nil {
				return err
			}
			if len(scenes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scenes stored.")
				return nil
			}
			for _, scene := range scenes {
				fmt.Fprintln(cmd.OutOrStdout(), scene)
			}
			return nil
		},
	}
}

func newSnapshotRemoveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <scene>",
		Short:   "Deletes a stored scene",
		Args:    cobra.ExactArgs(1),
		PreRunE: snapshotPreRun(v),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			st, pool, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := st.DeleteScene(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted scene %q (%d snapshots).\n", args[0], n)
			return nil
		},
	}
}
