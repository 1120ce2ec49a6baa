package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/booth"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
	"github.com/cjeanneret/photobooth/internal/telemetry"
	"github.com/cjeanneret/photobooth/internal/web"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk: camera, printer and web API",
		Example: `  # Start with the default config
  photobooth serve

  # Override the listen port
  photobooth serve --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			defer debug.Close()

			if err := applyPort(cfg, port); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the port of webapp.addr")
	return cmd
}

// applyPort replaces the port of webapp.addr, keeping its host. Zero keeps
// the configured address.
func applyPort(cfg *config.Config, port int) error {
	if port == 0 {
		return nil
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", port)
	}
	host, _, err := net.SplitHostPort(cfg.Webapp.Addr)
	if err != nil {
		host = ""
	}
	cfg.Webapp.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	debug.Section("Initialization")
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	debug.Step(1, "Initializing GPIO")
	hw, err := newHardware(cfg)
	if err != nil {
		return fmt.Errorf("init GPIO failed: %w", err)
	}
	defer hw.Close()

	debug.Step(2, "Initializing camera")
	cam := newCamera(cfg)
	if ok, msg, err := cam.Initialize(ctx); !ok {
		// Not fatal: the pipeline retries on the first trigger.
		debug.Warn("camera not ready: %s (%v)", msg, err)
	}
	pipeline := capture.NewPipeline(cam, newProcessor(cfg), hw.led)

	debug.Step(3, "Initializing printing")
	debug.Value("Printer", cfg.Printing.Printer)
	debug.Value("Simulated", cfg.PrintingSimulated())
	debug.Value("Limit per user", cfg.Printing.LimitPerUser)
	driver := newPrintDriver(cfg)
	auditLog, closeAudit := newAuditLog(ctx, cfg)
	defer closeAudit()

	debug.Step(4, "Wiring session")
	composer := collage.NewGrid(cfg.Collage.Layouts, cfg.TmpDir(), cfg.Collage.PreviewWidth)
	store := photo.NewStore(cfg.PhotosDir())
	hub := web.NewHub()
	if cfg.MQTT.Broker != "" {
		mirror := telemetry.Connect(cfg.MQTT)
		defer mirror.Close()
		hub.AddMirror(mirror)
	}
	b := booth.New(pipeline, composer, driver, auditLog, store, hub, booth.OptionsFromConfig(cfg))

	if hw.button != nil {
		go hw.button.Watch(ctx, func() {
			if _, err := b.Shoot(ctx); err != nil {
				debug.Error("button capture", err)
			}
		})
	}

	srv := web.NewServer(cfg.Webapp.Addr, hub, b, store)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	debug.Section("Shutdown complete")
	return nil
}
