// File: cmd/render.go
package cmd

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/frame"
	"github.com/xkilldash9x/repose/internal/observability"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/render"
)

// newRenderCmd creates the `render` command: apply a patch to a fresh scene
// and rasterize the transformed element to a WebP file.
func newRenderCmd() *cobra.Command {
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Rasterizes a positioned element to a WebP image",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			outPath, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			patchJSON, err := cmd.Flags().GetString("patch")
			if err != nil {
				return err
			}
			fillHex, err := cmd.Flags().GetString("fill")
			if err != nil {
				return err
			}
			bgHex, err := cmd.Flags().GetString("background")
			if err != nil {
				return err
			}

			fill, err := parseHexColor(fillHex)
			if err != nil {
				return fmt.Errorf("bad --fill value: %w", err)
			}
			var bg color.NRGBA
			if bgHex != "" {
				if bg, err = parseHexColor(bgHex); err != nil {
					return fmt.Errorf("bad --background value: %w", err)
				}
			}

			stage := cfg.Stage()
			pos, err := position.New(position.Config{
				Initial: schemas.PositionData{
					Left:   schemas.NewFloat((stage.ParentWidth - stage.ElementWidth) / 2),
					Top:    schemas.NewFloat((stage.ParentHeight - stage.ElementHeight) / 2),
					Width:  schemas.Px(stage.ElementWidth),
					Height: schemas.Px(stage.ElementHeight),
					Scale:  schemas.NewFloat(1),
				},
				Parent:    schemas.Size{Width: schemas.Px(stage.ParentWidth), Height: schemas.Px(stage.ParentHeight)},
				Scheduler: frame.NewManual(),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			if patchJSON != "" {
				var raw map[string]any
				if err := json.Unmarshal([]byte(patchJSON), &raw); err != nil {
					return fmt.Errorf("failed to parse --patch: %w", err)
				}
				if !pos.Set(toPatch(raw)) {
					logger.Warn("Patch was rejected; rendering the initial state")
				}
			}

			data := pos.Data()
			item := render.ItemFrom(pos.TransformData(), fill, data.ZIndex.Or(0))
			img, err := render.Frame([]render.Item{item}, render.Options{
				Width:      int(stage.ParentWidth),
				Height:     int(stage.ParentHeight),
				Background: bg,
			})
			if err != nil {
				return err
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %q: %w", outPath, err)
			}
			if err := render.WriteWebP(f, img); err != nil {
				f.Close()
				return fmt.Errorf("failed to encode %q: %w", outPath, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to finish %q: %w", outPath, err)
			}

			logger.Info("Rendered scene",
				zap.String("path", outPath),
				zap.Float64("left", data.Left.Or(0)),
				zap.Float64("top", data.Top.Or(0)),
			)
			return nil
		},
	}

	renderCmd.Flags().StringP("out", "o", "repose.webp", "Output file path for the rendered frame")
	renderCmd.Flags().String("patch", "", `JSON patch applied before rendering, e.g. '{"left":"+=50","rotate_z":0.4}'`)
	renderCmd.Flags().String("fill", "#4c8fd0", "Element fill color, #rrggbb or #rrggbbaa")
	renderCmd.Flags().String("background", "", "Canvas background color; empty keeps it transparent")
	return renderCmd
}

// parseHexColor reads #rrggbb or #rrggbbaa.
func parseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("want #rrggbb or #rrggbbaa, got %q", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("bad hex in %q: %w", s, err)
	}
	c := color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 0xff}
	if len(raw) == 4 {
		c.A = raw[3]
	}
	return c, nil
}
