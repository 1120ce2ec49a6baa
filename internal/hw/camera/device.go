package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// State is the lifecycle of a physical camera handle.
//
//	Uninitialized -> Ready -> Disconnected -> Ready
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Model is one detected camera as reported by the backend.
type Model struct {
	Name string
	Port string
}

// Backend is the hardware abstraction a Device drives.
type Backend interface {
	List(ctx context.Context) ([]Model, error)
	SetConfig(ctx context.Context, port, key, value string) error
	GetConfig(ctx context.Context, port, key string) (string, error)
	Capture(ctx context.Context, port string, keep bool) ([]byte, error)
}

// Options configures a physical Device.
type Options struct {
	CaptureTarget string // pushed on Initialize when set
	Keep          bool   // keep the image on the camera's card
}

// livenessKey is read by IsConnected; every gphoto2 camera exposes it.
const livenessKey = "cameramodel"

// Device is a Camera backed by real hardware.
type Device struct {
	backend Backend
	opts    Options

	mu         sync.Mutex
	state      State
	model      Model
	configured bool // capture target pushed on this handle

	busy atomic.Bool
	// io serializes backend calls: detection, config push, liveness reads
	// and captures share one USB port.
	io sync.Mutex
}

// NewDevice creates an uninitialized device. Call Initialize before capturing.
func NewDevice(b Backend, opts Options) *Device {
	return &Device{backend: b, opts: opts}
}

// State returns the current handle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Model returns the camera selected by the last successful detection.
func (d *Device) Model() Model {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model
}

// Initialize detects the camera and pushes the capture target. A device
// that is already ready and configured returns immediately, so concurrent
// callers trigger a single detection.
func (d *Device) Initialize(ctx context.Context) (bool, string, error) {
	d.io.Lock()
	defer d.io.Unlock()

	d.mu.Lock()
	done := d.state == StateReady && (d.opts.CaptureTarget == "" || d.configured)
	d.mu.Unlock()
	if done {
		return true, "", nil
	}

	models, err := d.backend.List(ctx)
	if err != nil {
		debug.Error("camera detection", err)
		return false, "camera detection failed", err
	}
	if len(models) == 0 {
		debug.Warn("No camera found")
		return false, "no camera found", nil
	}
	model := models[0]
	debug.Info("Found camera %s on %s", model.Name, model.Port)

	d.mu.Lock()
	d.model = model
	d.state = StateReady
	d.configured = false
	d.mu.Unlock()

	if d.opts.CaptureTarget != "" {
		if err := d.backend.SetConfig(ctx, model.Port, "capturetarget", d.opts.CaptureTarget); err != nil {
			debug.Error("setting capturetarget", err)
			return false, "setting config failed", err
		}
		d.mu.Lock()
		d.configured = true
		d.mu.Unlock()
		debug.Verbose("Camera: capturetarget=%s", d.opts.CaptureTarget)
	}
	return true, "", nil
}

func (d *Device) IsInitialized() bool {
	return d.State() == StateReady
}

func (d *Device) IsConnected(ctx context.Context) (bool, error) {
	d.mu.Lock()
	state, port := d.state, d.model.Port
	d.mu.Unlock()
	if state != StateReady {
		return false, errors.New("camera not initialized")
	}

	d.io.Lock()
	_, err := d.backend.GetConfig(ctx, port, livenessKey)
	d.io.Unlock()
	if err != nil {
		d.invalidate()
		debug.Error("camera connection test", err)
		return false, err
	}
	return true, nil
}

func (d *Device) TakePicture(ctx context.Context) Result {
	if !d.busy.CompareAndSwap(false, true) {
		return Result{Status: StatusNotInitialized, Message: "camera busy"}
	}
	defer d.busy.Store(false)

	d.io.Lock()
	defer d.io.Unlock()

	d.mu.Lock()
	state, port := d.state, d.model.Port
	d.mu.Unlock()
	if state != StateReady {
		return Result{Status: StatusNotInitialized, Message: "camera not initialized"}
	}

	data, err := d.backend.Capture(ctx, port, d.opts.Keep)
	if err == nil && len(data) == 0 {
		err = errors.New("camera returned no image data")
	}
	if err != nil {
		d.invalidate()
		return Result{Status: StatusConnectionFailed, Message: "connection to camera failed", Err: err}
	}
	debug.Verbose("Camera: captured %d bytes", len(data))
	return Result{Status: StatusOK, Data: data}
}

// invalidate forces a new Initialize before the next capture.
func (d *Device) invalidate() {
	d.mu.Lock()
	if d.state == StateReady {
		d.state = StateDisconnected
	}
	d.configured = false
	d.mu.Unlock()
}
