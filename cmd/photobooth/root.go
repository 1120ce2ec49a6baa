package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "photobooth",
		Short: "Photo booth kiosk controller",
		Long: `photobooth drives a tethered camera, renders print collages and sends
them to a CUPS printer, while tablets follow the session over the web API.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", filepath.Join("configs", "photobooth.yaml"), "path to config file")
	cmd.PersistentFlags().IntVar(&flags.logLevel, "log-level", -1, "override logging.level (0-4)")

	cmd.AddCommand(newServeCmd(flags), newDoctorCmd(flags), newRebuildCmd(flags))
	return cmd
}

// load reads the config, applies CLI overrides and initializes the logger.
// Callers must defer debug.Close.
func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyLogLevel(cfg, f.logLevel); err != nil {
		return nil, err
	}
	if err := debug.InitFile(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, err
	}
	debug.Section("Configuration")
	debug.Value("Config path", f.configPath)
	debug.Value("Debug level", cfg.Logging.Level)
	debug.Value("Content dir", cfg.ContentDir)
	return cfg, nil
}

// applyLogLevel overrides logging.level; a negative level keeps the config value.
func applyLogLevel(cfg *config.Config, level int) error {
	if level < 0 {
		return nil
	}
	if level > 4 {
		return fmt.Errorf("--log-level must be between 0 and 4, got %d", level)
	}
	cfg.Logging.Level = level
	return nil
}
