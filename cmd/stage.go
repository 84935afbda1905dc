// File: cmd/stage.go
package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/repose/internal/observability"
	"github.com/xkilldash9x/repose/internal/tui"
)

// newStageCmd creates the `stage` command, the interactive terminal
// playground.
func newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Opens an interactive playground that drives the engine in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			stage := cfg.Stage()
			scene, err := tui.NewScene(logger, tui.Geometry{
				ParentWidth:   stage.ParentWidth,
				ParentHeight:  stage.ParentHeight,
				ElementWidth:  stage.ElementWidth,
				ElementHeight: stage.ElementHeight,
			})
			if err != nil {
				return fmt.Errorf("failed to build the stage scene: %w", err)
			}
			defer scene.Close()

			scene.Drag.SetEnabled(cfg.Drag().Enabled)

			p := tea.NewProgram(tui.New(scene),
				tea.WithAltScreen(),
				tea.WithMouseAllMotion(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := p.Run(); err != nil {
				// A cancelled command context killed the program; that is a
				// normal shutdown, not a failure.
				if ctxErr := cmd.Context().Err(); ctxErr != nil {
					return ctxErr
				}
				return fmt.Errorf("stage session failed: %w", err)
			}
			return nil
		},
	}
}
