package capture

import (
	"context"
	"errors"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

// SavedPhoto is a photo that made it to disk.
type SavedPhoto struct {
	LocalPath string
	WebPath   string
	Timestamp time.Time // when the photo was named, matches its filename
}

// Processor turns raw camera bytes into a stored photo.
type Processor interface {
	Process(ctx context.Context, raw []byte) photo.Result
}

// Pipeline chains one exposure with post-processing.
type Pipeline struct {
	camera    camera.Camera
	processor Processor
	led       *gpio.LED
}

// NewPipeline creates a pipeline. led may be nil.
func NewPipeline(c camera.Camera, p Processor, led *gpio.LED) *Pipeline {
	return &Pipeline{camera: c, processor: p, led: led}
}

// Run takes one picture and stores it. A camera that is not initialized gets
// one Initialize attempt first; if that fails the capture still runs and
// reports the camera's own status.
func (p *Pipeline) Run(ctx context.Context) (SavedPhoto, error) {
	debug.Section("Capture")

	if !p.camera.IsInitialized() {
		debug.Step(1, "initialize camera")
		ok, msg, err := p.camera.Initialize(ctx)
		if !ok {
			debug.Warn("Camera not ready: %s (%v)", msg, err)
		}
	}

	debug.Step(2, "take picture")
	if err := p.led.On(); err != nil {
		debug.Error("busy LED on", err)
	}
	res := p.camera.TakePicture(ctx)
	if err := p.led.Off(); err != nil {
		debug.Error("busy LED off", err)
	}

	if !res.OK() {
		debug.Capture(int(res.Status), res.Message)
		return SavedPhoto{}, statusError(res.Status, res.Message, res.Err)
	}

	debug.Step(3, "post-process")
	out := p.processor.Process(ctx, res.Data)
	if !out.OK() {
		debug.Capture(int(out.Status), out.Message)
		return SavedPhoto{}, statusError(out.Status, out.Message, out.Err)
	}

	debug.Capture(int(out.Status), out.WebPath)
	return SavedPhoto{LocalPath: out.LocalPath, WebPath: out.WebPath, Timestamp: out.Taken}, nil
}

// statusError maps a capture status onto an application error.
func statusError(s camera.Status, msg string, cause error) error {
	if cause == nil {
		cause = errors.New(msg)
	}
	switch s {
	case camera.StatusNotInitialized:
		return apperrors.Wrap(apperrors.DeviceNotInitialized, "capture", "", cause)
	case camera.StatusConnectionFailed:
		return apperrors.Wrap(apperrors.DeviceConnectionFailure, "capture", "", cause)
	case camera.StatusSaveFailed:
		// The processor already wraps its error.
		if apperrors.Is(cause, apperrors.ImageSaveFailure) {
			return cause
		}
		return apperrors.Wrap(apperrors.ImageSaveFailure, "capture", "", cause)
	default:
		return apperrors.Wrap(apperrors.Internal, "capture", "", cause)
	}
}
