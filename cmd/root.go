// File: cmd/root.go

// Package cmd wires the repose command line: persistent configuration and
// logger bootstrap on the root command, with the play, stage, render and
// snapshot subcommands hanging off it.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/internal/config"
	"github.com/xkilldash9x/repose/internal/observability"
)

// ctxKey keys values stored on the command context by the root pre-run.
type ctxKey int

const configKey ctxKey = iota

// NewRootCommand builds the repose root command with every subcommand
// attached. Each call returns a fresh instance with its own viper state, so
// flags and config never leak between executions.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "repose",
		Short: "Repose positions on-screen elements through a validated, tweened pipeline.",
		// Version is set at build time. See cmd/version.go.
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Runs before any subcommand, setting up config and logging.
			if err := initializeConfig(cmd, v); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Bring up a plain console logger so the failure itself is
				// reported somewhere sane.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "repose"})
				return err
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("Starting repose", zap.String("version", Version))

			// Subcommands read the validated config back off their context.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, config.Interface(cfg)))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newPlayCmd(v),
		newStageCmd(),
		newRenderCmd(),
		newSnapshotCmd(v),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute builds a fresh root command and runs it under the given
// signal-aware context. The caller maps the returned error to an exit code.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// configFromContext returns the validated configuration stored by the root
// pre-run.
func configFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration missing from command context")
	}
	return cfg, nil
}

// initializeConfig loads defaults, the config file and REPOSE_* environment
// variables into v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REPOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}
