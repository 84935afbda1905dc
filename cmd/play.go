// File: cmd/play.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/attach"
	"github.com/xkilldash9x/repose/internal/config"
	"github.com/xkilldash9x/repose/internal/constraint"
	"github.com/xkilldash9x/repose/internal/frame"
	"github.com/xkilldash9x/repose/internal/observability"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/snapshot"
	"github.com/xkilldash9x/repose/internal/tween"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newPlayCmd creates and configures the `play` command.
func newPlayCmd(v *viper.Viper) *cobra.Command {
	playCmd := &cobra.Command{
		Use:   "play [url]",
		Short: "Drives a scripted scene against a live page or an in-memory target",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind the override flags to their viper keys so command-line
			// values win over the config file and environment.
			if err := v.BindPFlag("frame.fps", cmd.Flags().Lookup("fps")); err != nil {
				return err
			}
			if err := v.BindPFlag("browser.remote_url", cmd.Flags().Lookup("remote")); err != nil {
				return err
			}
			return v.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// The pre-run config predates the flag binding above, so
			// rebuild it with the overrides applied.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}

			play := config.PlayConfig{}
			if play.Selector, err = cmd.Flags().GetString("selector"); err != nil {
				return err
			}
			if play.Script, err = cmd.Flags().GetString("script"); err != nil {
				return err
			}
			if play.DryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
				return err
			}
			if play.Duration, err = cmd.Flags().GetDuration("duration"); err != nil {
				return err
			}
			if len(args) > 0 {
				play.TargetURL = args[0]
			}
			if play.TargetURL == "" && !play.DryRun {
				return errors.New("a target URL is required unless --dry-run is set")
			}
			cfg.SetPlayConfig(play)

			steps, err := loadScript(play.Script)
			if err != nil {
				return err
			}

			logger.Info("Starting play session",
				zap.String("url", play.TargetURL),
				zap.String("selector", play.Selector),
				zap.Bool("dry_run", play.DryRun),
				zap.Int("steps", len(steps)),
			)
			return runPlay(ctx, cfg, steps, logger)
		},
	}

	playCmd.Flags().StringP("selector", "s", "#repose-target", "CSS selector of the element to drive")
	playCmd.Flags().String("script", "", "Path to a JSON scene script; a built-in demo plays when unset")
	playCmd.Flags().Bool("dry-run", false, "Drive an in-memory target instead of a browser tab")
	playCmd.Flags().DurationP("duration", "d", 0, "Extra time to keep the frame loop running after the script ends")
	playCmd.Flags().Int("fps", 0, "Frame rate of the style-flush loop. (Overrides config/env)")
	playCmd.Flags().String("remote", "", "DevTools websocket URL of an already-running browser. (Overrides config/env)")
	playCmd.Flags().Bool("headless", true, "Launch the local browser headless. (Overrides config/env)")
	return playCmd
}

// playStep is one instruction of a scene script. Exactly one action field
// may be set per step.
type playStep struct {
	// Set applies a raw patch through the pipeline; values may use the
	// relative and unit forms the resolver understands ("+=50", "25%").
	Set map[string]any `json:"set,omitempty"`
	// Tween animates numeric fields toward absolute values.
	Tween map[string]float64 `json:"tween,omitempty"`
	// Duration, Easing and Strategy shape tweens and animated restores;
	// unset fields fall back to the configured defaults.
	Duration string `json:"duration,omitempty"`
	Easing   string `json:"easing,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	// Background starts the tween without waiting for it to settle, so a
	// later step can conflict with it on purpose.
	Background bool `json:"background,omitempty"`
	// Wait pauses the script.
	Wait string `json:"wait,omitempty"`
	// Snapshot saves the current state under the given name; Restore
	// applies a saved state back, animated when Animate is set.
	Snapshot string `json:"snapshot,omitempty"`
	Restore  string `json:"restore,omitempty"`
	Animate  bool   `json:"animate,omitempty"`
	// Reset re-applies the default snapshot.
	Reset bool `json:"reset,omitempty"`
}

func (s playStep) validate() error {
	actions := 0
	if s.Set != nil {
		actions++
	}
	if s.Tween != nil {
		actions++
	}
	if s.Wait != "" {
		actions++
	}
	if s.Snapshot != "" {
		actions++
	}
	if s.Restore != "" {
		actions++
	}
	if s.Reset {
		actions++
	}
	if actions != 1 {
		return errors.New("each step needs exactly one of set, tween, wait, snapshot, restore or reset")
	}
	if s.Duration != "" {
		if _, err := time.ParseDuration(s.Duration); err != nil {
			return fmt.Errorf("bad duration %q: %w", s.Duration, err)
		}
	}
	if s.Wait != "" {
		if _, err := time.ParseDuration(s.Wait); err != nil {
			return fmt.Errorf("bad wait %q: %w", s.Wait, err)
		}
	}
	if e := tween.Easing(s.Easing); !e.Valid() {
		return fmt.Errorf("unknown easing %q", s.Easing)
	}
	switch tween.Strategy(s.Strategy) {
	case tween.StrategyNone, tween.StrategyCancel, tween.StrategyCancelAll, tween.StrategyExclusive:
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	return nil
}

// tweenOptions resolves the step's animation settings over the configured
// defaults.
func (s playStep) tweenOptions(cfg config.Interface) (tween.Options, error) {
	opts := tween.Options{
		Duration: cfg.Tween().Duration,
		Easing:   tween.Easing(cfg.Tween().Easing),
		Strategy: tween.Strategy(s.Strategy),
	}
	if s.Duration != "" {
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return opts, fmt.Errorf("bad duration %q: %w", s.Duration, err)
		}
		opts.Duration = d
	}
	if s.Easing != "" {
		opts.Easing = tween.Easing(s.Easing)
	}
	return opts, nil
}

// loadScript reads a JSON scene script, falling back to the built-in demo
// when path is empty.
func loadScript(path string) ([]playStep, error) {
	if path == "" {
		return demoScript(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %q: %w", path, err)
	}
	var steps []playStep
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse script %q: %w", path, err)
	}
	for i := range steps {
		if err := steps[i].validate(); err != nil {
			return nil, fmt.Errorf("script step %d: %w", i+1, err)
		}
	}
	return steps, nil
}

// demoScript is a short tour over set, tween, snapshot and restore, played
// when no script file is given.
func demoScript() []playStep {
	return []playStep{
		{Set: map[string]any{"left": 40.0, "top": 40.0, "z_index": 3.0}},
		{Snapshot: "start"},
		{Tween: map[string]float64{"left": 420, "top": 180}, Duration: "600ms", Easing: "out_cubic"},
		{Tween: map[string]float64{"rotate_z": 0.7854, "scale": 1.25}, Duration: "450ms", Easing: "in_out_sine"},
		{Wait: "150ms"},
		{Set: map[string]any{"left": "+=10%", "rotate_z": nil}},
		{Restore: "start", Animate: true, Duration: "500ms"},
	}
}

// playComponents holds the wired pipeline for one play session.
type playComponents struct {
	Loop     *frame.Loop
	Position *position.Position
	Tweens   *tween.Scheduler
	Snaps    *snapshot.Store

	// browser teardown callbacks, outermost first.
	cancels []context.CancelFunc
}

// Shutdown releases the pipeline in reverse construction order.
func (pc *playComponents) Shutdown() {
	if pc.Tweens != nil {
		pc.Tweens.Close()
	}
	if pc.Position != nil {
		pc.Position.Detach()
	}
	for i := len(pc.cancels) - 1; i >= 0; i-- {
		pc.cancels[i]()
	}
}

// openBrowser establishes the tab context play drives: a remote debugger
// connection when one is configured, a locally launched browser otherwise.
func (pc *playComponents) openBrowser(ctx context.Context, cfg config.Interface) context.Context {
	allocCtx := ctx
	if remote := cfg.Browser().RemoteURL; remote != "" {
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, remote)
		pc.cancels = append(pc.cancels, cancel)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("headless", cfg.Browser().Headless),
		)
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, opts...)
		pc.cancels = append(pc.cancels, cancel)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	pc.cancels = append(pc.cancels, tabCancel)
	return tabCtx
}

// initializePlayComponents wires the session pipeline against either a live
// element or an in-memory fake, seeded with the real element geometry.
func initializePlayComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*playComponents, error) {
	play := cfg.Play()
	pc := &playComponents{
		Loop: frame.NewLoop(cfg.Frame().Interval(), logger),
	}

	var (
		target    position.Target
		attachCtx = ctx
		parent    schemas.Size
		obs       schemas.ResizeObservation
	)
	if play.DryRun {
		stage := cfg.Stage()
		obs = schemas.ResizeObservation{
			OffsetWidth:   stage.ElementWidth,
			OffsetHeight:  stage.ElementHeight,
			ContentWidth:  stage.ElementWidth,
			ContentHeight: stage.ElementHeight,
		}
		parent = schemas.Size{Width: schemas.Px(stage.ParentWidth), Height: schemas.Px(stage.ParentHeight)}

		fake := attach.NewFake()
		fake.SetBounds(obs, parent)
		target = fake
	} else {
		tabCtx := pc.openBrowser(ctx, cfg)

		element, err := attach.NewElement(play.Selector, logger, attach.WithTimeout(cfg.Browser().SelectorTimeout))
		if err != nil {
			return pc, err
		}

		navCtx, cancel := context.WithTimeout(tabCtx, cfg.Browser().SelectorTimeout)
		defer cancel()
		if err := chromedp.Run(navCtx,
			chromedp.Navigate(play.TargetURL),
			chromedp.WaitVisible(play.Selector, chromedp.ByQuery),
		); err != nil {
			return pc, fmt.Errorf("failed to open %q: %w", play.TargetURL, err)
		}

		m, err := element.Metrics(tabCtx)
		if err != nil {
			return pc, err
		}
		obs, parent = m.Observation(), m.ParentSize()
		target = element
		attachCtx = tabCtx
	}

	bounds, err := constraint.NewBasicBounds(constraint.DefaultConfig())
	if err != nil {
		return pc, err
	}

	// Center the element inside the discovered parent box; a degenerate
	// parent just skips initial placement.
	var placement position.Placement
	if pw, ph := parent.Width.Or(0), parent.Height.Or(0); pw > 0 && ph > 0 {
		centered, err := constraint.NewCentered(constraint.Config{Enabled: true, Width: pw, Height: ph})
		if err != nil {
			return pc, err
		}
		placement = centered
	}

	pos, err := position.New(position.Config{
		Parent:     parent,
		Scheduler:  pc.Loop,
		Logger:     logger,
		Validators: position.NewValidators(position.Entry{Weight: 0.5, Validator: bounds, Notifier: bounds}),
		Placement:  placement,
	})
	if err != nil {
		return pc, err
	}
	pos.ObserveResize(obs)
	pc.Position = pos

	pc.Tweens = tween.NewScheduler(pc.Loop, logger)

	snaps, err := snapshot.New(snapshot.Config{Position: pos, Tweens: pc.Tweens, Logger: logger})
	if err != nil {
		return pc, err
	}
	pc.Snaps = snaps

	if err := pos.Attach(attachCtx, target); err != nil {
		return pc, err
	}
	return pc, nil
}

// runPlay wires the pipeline, then runs the frame loop and the script
// concurrently until the script finishes or either side fails.
func runPlay(ctx context.Context, cfg config.Interface, steps []playStep, logger *zap.Logger) error {
	pc, err := initializePlayComponents(ctx, cfg, logger)
	if err != nil {
		if pc != nil {
			pc.Shutdown()
		}
		return fmt.Errorf("failed to initialize play components: %w", err)
	}
	defer pc.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	g.Go(func() error {
		// The loop reports its context error on shutdown; a plain stop is
		// not a failure.
		if err := pc.Loop.Run(loopCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer stopLoop()
		if err := runScript(gctx, pc, cfg, steps, logger); err != nil {
			return err
		}
		if linger := cfg.Play().Duration; linger > 0 {
			logger.Info("Script finished; keeping the session alive", zap.Duration("for", linger))
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-time.After(linger):
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Play session aborted")
		}
		return err
	}

	logger.Info("Play session completed")
	return nil
}

// runScript executes the steps in order on the session pipeline, then lets
// the final style writes land.
func runScript(ctx context.Context, pc *playComponents, cfg config.Interface, steps []playStep, logger *zap.Logger) error {
	log := logger.Named("script")
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pc.applyStep(ctx, cfg, step, log.With(zap.Int("step", i+1))); err != nil {
			return fmt.Errorf("script step %d: %w", i+1, err)
		}
	}

	if pc.Position.Attached() {
		if _, err := pc.Position.ElementUpdated(ctx); err != nil {
			return err
		}
	}
	return nil
}

// applyStep performs one script instruction.
func (pc *playComponents) applyStep(ctx context.Context, cfg config.Interface, step playStep, log *zap.Logger) error {
	switch {
	case step.Set != nil:
		accepted := pc.Position.Set(toPatch(step.Set))
		log.Debug("Applied patch", zap.Bool("accepted", accepted))

	case step.Tween != nil:
		opts, err := step.tweenOptions(cfg)
		if err != nil {
			return err
		}
		h := pc.Tweens.To(pc.Position, toValues(step.Tween), opts)
		if h == nil {
			// The exclusive strategy skips requests on an occupied target.
			log.Debug("Tween skipped by strategy")
			return nil
		}
		if step.Background {
			return nil
		}
		if err := h.Wait(ctx); err != nil {
			return err
		}

	case step.Wait != "":
		d, err := time.ParseDuration(step.Wait)
		if err != nil {
			return fmt.Errorf("bad wait %q: %w", step.Wait, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}

	case step.Snapshot != "":
		pc.Snaps.Save(step.Snapshot, nil)
		log.Debug("Saved snapshot", zap.String("name", step.Snapshot))

	case step.Restore != "":
		opts := snapshot.RestoreOptions{}
		if step.Animate {
			animate, err := step.tweenOptions(cfg)
			if err != nil {
				return err
			}
			opts.AnimateTo = &animate
		}
		res, err := pc.Snaps.Restore(step.Restore, opts)
		if err != nil {
			return err
		}
		if !step.Background {
			if err := res.Wait(ctx); err != nil {
				return err
			}
		}

	case step.Reset:
		if err := pc.Snaps.Reset(snapshot.ResetOptions{}); err != nil {
			return err
		}

	default:
		return errors.New("empty step")
	}
	return nil
}

// toPatch lowers decoded JSON keys into a typed patch.
func toPatch(m map[string]any) schemas.Patch {
	patch := make(schemas.Patch, len(m))
	for k, v := range m {
		patch[schemas.Key(k)] = v
	}
	return patch
}

// toValues lowers decoded JSON keys into typed tween targets.
func toValues(m map[string]float64) map[schemas.Key]float64 {
	values := make(map[schemas.Key]float64, len(m))
	for k, v := range m {
		values[schemas.Key(k)] = v
	}
	return values
}
