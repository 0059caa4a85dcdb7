// Package main is the entry point for the headless physics demo.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/game"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine/simple"
	"github.com/Faultbox/midgard-physics/internal/physics/vehicle"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const defaultDriveFrames = 600

var (
	flags       config.Flags
	cfg         *config.Config
	vehicleKind string
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "physdemo",
		Short:             "headless rigid body, vehicle and cloth demo",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) { logger.Sync() },
	}
	flags.Register(rootCmd.PersistentFlags())

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate the demo scene and print a summary",
		Args:  cobra.NoArgs,
		RunE:  runDemo,
	}
	runCmd.Flags().StringVar(&vehicleKind, "vehicle", vehicle.Pickup.String(), "vehicle preset")

	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "drive the vehicle with scripted controls and plot its speed",
		Args:  cobra.NoArgs,
		RunE:  runDrive,
	}
	driveCmd.Flags().StringVar(&vehicleKind, "vehicle", vehicle.Pickup.String(), "vehicle preset")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list vehicle presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage the config file",
		// Skip loading so a broken file can be replaced.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.Init("info", "")
		},
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd, driveCmd, presetsCmd, configCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func setup(*cobra.Command, []string) error {
	var err error
	cfg, err = config.Load(&flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return err
	}
	logger.Sugar.Debugf("Config: %+v", cfg)
	return nil
}

// sim is one demo scene in its own world.
type sim struct {
	backend *simple.Backend
	world   *physics.World
	demo    *game.Demo
	loop    *game.Loop
	watcher *config.Watcher
}

func newSim(kind vehicle.Kind) (*sim, error) {
	s := &sim{backend: simple.New()}
	w, err := physics.NewWorld(s.backend, cfg.Physics)
	if err != nil {
		return nil, fmt.Errorf("creating world: %w", err)
	}
	s.world = w

	d, err := game.BuildDemo(w, cfg, kind)
	if d == nil {
		w.Destroy()
		return nil, err
	}
	for _, e := range multierr.Errors(err) {
		logger.Warn("demo object skipped", zap.Error(e))
	}
	s.demo = d
	s.loop = game.NewLoop(w)
	return s, nil
}

// watch hot-reloads the config file passed with --config.
func (s *sim) watch() {
	if !cfg.Loop.Watch {
		return
	}
	if flags.ConfigPath == "" {
		logger.Warn("config watch needs an explicit --config path")
		return
	}
	w, err := config.Watch(flags.ConfigPath)
	if err != nil {
		logger.Error("failed to watch config", zap.String("path", flags.ConfigPath), zap.Error(err))
		return
	}
	s.watcher = w
	s.loop.Watch(w.Updates, w.Errors)
	logger.Info("watching config", zap.String("path", flags.ConfigPath))
}

func (s *sim) run(ctx context.Context, frames int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := s.loop.Run(ctx, frames, float32(cfg.Loop.FrameTime.Seconds()))
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted", zap.Int("frame", s.loop.Frame()))
		return nil
	}
	return err
}

func (s *sim) close() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.demo.Destroy()
	s.world.Destroy()
}

func runDemo(cmd *cobra.Command, _ []string) error {
	kind, err := vehicle.ParseKind(vehicleKind)
	if err != nil {
		return err
	}
	s, err := newSim(kind)
	if err != nil {
		logger.Error("failed to build demo", zap.Error(err))
		return err
	}
	defer s.close()

	s.demo.Attach(s.loop)
	s.watch()
	if err := s.run(cmd.Context(), cfg.Loop.Frames); err != nil {
		logger.Error("loop error", zap.Error(err))
		return err
	}

	fmt.Println(s.summary())
	return nil
}

func runDrive(cmd *cobra.Command, _ []string) error {
	kind, err := vehicle.ParseKind(vehicleKind)
	if err != nil {
		return err
	}
	s, err := newSim(kind)
	if err != nil {
		logger.Error("failed to build demo", zap.Error(err))
		return err
	}
	defer s.close()
	if s.demo.Vehicle == nil {
		return errors.New("demo has no vehicle")
	}

	frames := cfg.Loop.Frames
	if frames <= 0 {
		frames = defaultDriveFrames
	}
	driver := &game.Driver{Vehicle: s.demo.Vehicle, Script: game.DriveScript(frames)}
	s.loop.Add(driver)
	s.demo.Attach(s.loop)
	s.watch()

	if err := s.run(cmd.Context(), frames); err != nil {
		logger.Error("loop error", zap.Error(err))
		return err
	}

	speeds := driver.Speeds()
	if len(speeds) == 0 {
		fmt.Println(warnStyle.Render("vehicle never became ready"))
		return nil
	}
	fmt.Println(asciigraph.Plot(speeds,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s speed (km/h) over %d frames", kind, len(speeds))),
	))
	fmt.Println()
	fmt.Println(s.summary())
	return nil
}

func (s *sim) summary() string {
	stats := s.backend.Stats()
	rows := []row{
		{"frames", s.loop.Frame()},
		{"steps", s.loop.Steps()},
		{"bodies", s.world.NumRigidBodies()},
		{"constraints", s.world.NumConstraints()},
		{"soft bodies", stats.SoftBodies},
		{"vehicles", stats.Vehicles},
		{"crate hits", s.demo.Impacts()},
	}

	if v := s.demo.Vehicle; v != nil && v.Native() != nil {
		pos := v.Chassis().Node().Position
		rows = append(rows,
			row{"speed km/h", fmt.Sprintf("%.1f", v.Native().CurrentSpeedKmHour())},
			row{"chassis", fmt.Sprintf("(%.2f, %.2f, %.2f)", pos.X, pos.Y, pos.Z)},
			row{"steering", fmt.Sprintf("%.3f", v.Steering())},
		)
		// Ray down to see what lies under the chassis.
		from := pos.Add(math.Vec3{Y: -1})
		to := pos.Add(math.Vec3{Y: -20})
		if node, hit, ok := s.world.Pick(from, to); ok {
			rows = append(rows, row{"under", fmt.Sprintf("%s at y=%.2f", node.Name, hit.Point.Y)})
		}
	}
	if f := s.demo.Flag; f != nil {
		rows = append(rows, row{"flag drift", f.Drift()})
	}
	return panel("physics demo", rows...)
}

func listPresets(*cobra.Command, []string) error {
	for k := vehicle.Pickup; k <= vehicle.LargePickup; k++ {
		p, err := vehicle.PresetFor(k)
		if err != nil {
			return err
		}
		fmt.Println(panel(k.String(),
			row{"mass", p.ChassisMass},
			row{"wheels", len(p.Offsets)},
			row{"axles", len(p.Axles)},
			row{"engine", p.Tuning.MaxEngineForce},
			row{"brake", p.Tuning.MaxBreakingForce},
			row{"steer clamp", p.Tuning.SteeringClamp},
			row{"wheel scale", p.Tuning.WheelSize},
		))
	}
	return nil
}

func initConfig(_ *cobra.Command, args []string) error {
	def := config.Default()
	if len(args) == 0 {
		if err := def.Save(); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			return err
		}
		logger.Info("config written", zap.String("dir", config.ConfigDir()))
		return nil
	}
	if err := def.SaveTo(args[0]); err != nil {
		logger.Error("failed to save config", zap.String("path", args[0]), zap.Error(err))
		return err
	}
	logger.Info("config written", zap.String("path", args[0]))
	return nil
}
