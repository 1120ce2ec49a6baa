package main

import (
	"context"

	"github.com/cjeanneret/photobooth/internal/audit"
	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
	"github.com/cjeanneret/photobooth/internal/hw/printer"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
	"github.com/cjeanneret/photobooth/internal/sysexec"
)

// newCamera selects the camera implementation from configuration.
func newCamera(cfg *config.Config) camera.Camera {
	if cfg.Camera.Simulate {
		debug.Info("Using SIMULATED camera")
		return camera.NewSimulatedDevice()
	}
	backend := camera.NewGPhoto2Backend(sysexec.ExecRunner{}, cfg.Camera.GPhoto2Bin)
	return camera.NewDevice(backend, camera.Options{
		CaptureTarget: cfg.Camera.CaptureTarget,
		Keep:          cfg.Camera.Keep,
	})
}

func newCUPSBackend(cfg *config.Config) *printer.CUPSBackend {
	return printer.NewCUPSBackend(sysexec.ExecRunner{}, cfg.Printing.LpBin, cfg.Printing.LpstatBin)
}

// newPrintDriver selects the print driver from configuration.
func newPrintDriver(cfg *config.Config) printer.Driver {
	if cfg.PrintingSimulated() {
		debug.Info("Using SIMULATED printer")
		return printer.SimulatedDriver{}
	}
	return printer.NewPollingDriver(newCUPSBackend(cfg), cfg.Printing.Printer, cfg.PollInterval())
}

func newProcessor(cfg *config.Config) *photo.Processor {
	return photo.NewProcessor(photo.Options{
		PhotosDir:    cfg.PhotosDir(),
		FullSizeDir:  cfg.FullSizeDir(),
		KeepFullSize: cfg.KeepFullSize(),
		MaxWidth:     cfg.MaxImageSize,
	})
}

// newAuditLog returns print-log.txt, mirrored into Postgres when configured.
// A database that cannot be reached is logged and skipped.
func newAuditLog(ctx context.Context, cfg *config.Config) (audit.Log, func()) {
	file := audit.NewFileLog(cfg.PrintLogPath())
	if cfg.Audit.PostgresURL == "" {
		return file, func() {}
	}
	pg, err := audit.NewPostgresLog(ctx, cfg.Audit.PostgresURL)
	if err != nil {
		debug.Error("postgres audit disabled", err)
		return file, func() {}
	}
	debug.Info("print audit mirrored to postgres")
	return audit.Multi{file, pg}, func() { pg.Close(context.Background()) }
}

// hardware is the optional GPIO button and LED.
type hardware struct {
	driver gpio.Driver
	button *gpio.Button
	led    *gpio.LED
}

// newHardware returns a zero hardware when GPIO is disabled. LED and button
// are nil-safe for callers.
func newHardware(cfg *config.Config) (*hardware, error) {
	hw := &hardware{}
	if !cfg.GPIO.Enabled {
		return hw, nil
	}
	debug.Value("Mock GPIO", cfg.GPIO.Mock)
	d, err := gpio.NewDriver(cfg.GPIO.Mock)
	if err != nil {
		return nil, err
	}
	hw.driver = d

	hw.button, err = gpio.NewButton(d, cfg.GPIO.ButtonPin, cfg.Debounce(), cfg.ButtonPoll())
	if err != nil {
		d.Close()
		return nil, err
	}
	if cfg.GPIO.LEDPin > 0 {
		hw.led, err = gpio.NewLED(d, cfg.GPIO.LEDPin)
		if err != nil {
			d.Close()
			return nil, err
		}
	}
	return hw, nil
}

func (h *hardware) Close() {
	if h.driver == nil {
		return
	}
	h.led.Off()
	if err := h.driver.Close(); err != nil {
		debug.Error("closing GPIO driver failed", err)
	}
}
