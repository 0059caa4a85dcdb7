package config

import "github.com/spf13/pflag"

// Flags holds command-line overrides. Zero values leave the loaded
// configuration untouched.
type Flags struct {
	ConfigPath string
	Debug      bool
	LogFile    string
	SoftBody   bool
	Frames     int
	Watch      bool
}

// Register binds the flags onto fs (usually a cobra persistent flag set).
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to this file as well")
	fs.BoolVar(&f.SoftBody, "soft-body", false, "Create a soft body capable world")
	fs.IntVar(&f.Frames, "frames", 0, "Number of frames to simulate")
	fs.BoolVar(&f.Watch, "watch", false, "Reload vehicle and cloth tuning when the config file changes")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.SoftBody {
		cfg.Physics.SoftBody = true
	}
	if f.Frames > 0 {
		cfg.Loop.Frames = f.Frames
	}
	if f.Watch {
		cfg.Loop.Watch = true
	}
}
