package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Physics defaults
	if cfg.Physics.Gravity.Y != -9.8 {
		t.Errorf("expected gravity y -9.8, got %f", cfg.Physics.Gravity.Y)
	}
	if cfg.Physics.FixedTimeStep != 1.0/60.0 {
		t.Errorf("expected fixed step 1/60, got %f", cfg.Physics.FixedTimeStep)
	}
	if cfg.Physics.MaxSubSteps != 1 {
		t.Errorf("expected 1 sub step, got %d", cfg.Physics.MaxSubSteps)
	}
	if cfg.Physics.WorldHalfExtent != 1000 {
		t.Errorf("expected world half extent 1000, got %f", cfg.Physics.WorldHalfExtent)
	}
	if cfg.Physics.SoftBody {
		t.Error("expected rigid-only world by default")
	}
	if cfg.Physics.CollisionMargin != 0.04 {
		t.Errorf("expected margin 0.04, got %f", cfg.Physics.CollisionMargin)
	}

	// Vehicle defaults
	v := cfg.Vehicle
	if v.Friction != 1000 || v.SuspensionStiffness != 20 || v.SuspensionRestLength != 0.35 {
		t.Errorf("unexpected suspension defaults %+v", v)
	}
	if v.SteeringIncrement != 0.04 || v.SteeringClamp != 0.35 {
		t.Errorf("unexpected steering defaults %+v", v)
	}
	if v.MaxEngineForce != 1000 || v.MaxBreakingForce != 60 {
		t.Errorf("unexpected force defaults %+v", v)
	}

	// Cloth defaults
	if cfg.Cloth.Margin != 0.05 || cfg.Cloth.AnchorInfluence != 0.5 {
		t.Errorf("unexpected cloth defaults %+v", cfg.Cloth)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "physics.yaml")

	yamlContent := `
physics:
  gravity: {x: 0, y: -3.7, z: 0}
  max_sub_steps: 4
  soft_body: true

vehicle:
  steering_increment: 0.01
  max_engine_force: 2500

loop:
  frames: 120
  frame_time: 20ms

logging:
  level: "debug"
  log_file: "physics.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Physics.Gravity.Y != -3.7 {
		t.Errorf("expected gravity y -3.7, got %f", cfg.Physics.Gravity.Y)
	}
	if cfg.Physics.MaxSubSteps != 4 {
		t.Errorf("expected 4 sub steps, got %d", cfg.Physics.MaxSubSteps)
	}
	if !cfg.Physics.SoftBody {
		t.Error("expected soft body world")
	}
	// Untouched keys keep their defaults.
	if cfg.Physics.WorldHalfExtent != 1000 {
		t.Errorf("expected default half extent to survive, got %f", cfg.Physics.WorldHalfExtent)
	}
	if cfg.Vehicle.SteeringIncrement != 0.01 {
		t.Errorf("expected steering increment 0.01, got %f", cfg.Vehicle.SteeringIncrement)
	}
	if cfg.Vehicle.SteeringClamp != 0.35 {
		t.Errorf("expected default steering clamp, got %f", cfg.Vehicle.SteeringClamp)
	}
	if cfg.Loop.FrameTime != 20*time.Millisecond {
		t.Errorf("expected frame time 20ms, got %v", cfg.Loop.FrameTime)
	}
	if cfg.Logging.LogFile != "physics.log" {
		t.Errorf("expected log file 'physics.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("physics: [not, a, map"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadWithFlags(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "physics.yaml")
	if err := os.WriteFile(configPath, []byte("loop:\n  frames: 10\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(&Flags{ConfigPath: configPath, Debug: true, Frames: 42, SoftBody: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Loop.Frames != 42 {
		t.Errorf("flag should override file frames, got %d", cfg.Loop.Frames)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if !cfg.Physics.SoftBody {
		t.Error("expected soft body flag to apply")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Physics.FixedTimeStep = 0
	cfg.Physics.MaxSubSteps = 0
	cfg.Cloth.AnchorInfluence = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if n := len(multierr.Errors(err)); n != 3 {
		t.Errorf("expected 3 errors, got %d: %v", n, err)
	}
	if !strings.Contains(err.Error(), "max_sub_steps") {
		t.Errorf("expected max_sub_steps in %q", err.Error())
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "physics.yaml")

	cfg := Default()
	cfg.Vehicle.MaxEngineForce = 1234
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Vehicle.MaxEngineForce != 1234 {
		t.Errorf("expected engine force 1234, got %f", loaded.Vehicle.MaxEngineForce)
	}
	if loaded.Loop.FrameTime != cfg.Loop.FrameTime {
		t.Errorf("expected frame time %v, got %v", cfg.Loop.FrameTime, loaded.Loop.FrameTime)
	}
}

func TestWatcherDeliversReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.yaml")
	if err := Default().SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	cfg := Default()
	cfg.Vehicle.SteeringClamp = 0.5
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-w.Updates:
			if got.Vehicle.SteeringClamp == 0.5 {
				return
			}
		case err := <-w.Errors:
			// A partially written file may fail to parse; the next event retries.
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				t.Fatalf("unexpected watcher error: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
