package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

// mockCamera records calls and returns canned results.
type mockCamera struct {
	mu          sync.Mutex
	initialized bool
	initOK      bool
	result      camera.Result
	inits       int
	shots       int
}

func (m *mockCamera) Initialize(ctx context.Context) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	m.initialized = m.initOK
	if !m.initOK {
		return false, "no camera found", nil
	}
	return true, "", nil
}

func (m *mockCamera) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *mockCamera) IsConnected(ctx context.Context) (bool, error) { return m.IsInitialized(), nil }

func (m *mockCamera) TakePicture(ctx context.Context) camera.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shots++
	if !m.initialized {
		return camera.Result{Status: camera.StatusNotInitialized, Message: "camera not initialized"}
	}
	return m.result
}

type recordingProcessor struct {
	got    [][]byte
	result photo.Result
}

func (r *recordingProcessor) Process(ctx context.Context, raw []byte) photo.Result {
	r.got = append(r.got, raw)
	return r.result
}

func okProcessor() *recordingProcessor {
	return &recordingProcessor{result: photo.Result{
		Status:    camera.StatusOK,
		LocalPath: "/c/photos/img_x.jpg",
		WebPath:   "photos/img_x.jpg",
	}}
}

func TestRun_Success(t *testing.T) {
	cam := &mockCamera{initialized: true, result: camera.Result{Status: camera.StatusOK, Data: []byte("jpeg")}}
	proc := okProcessor()

	saved, err := NewPipeline(cam, proc, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if saved.WebPath != "photos/img_x.jpg" || saved.LocalPath != "/c/photos/img_x.jpg" {
		t.Errorf("saved = %+v", saved)
	}
	if len(proc.got) != 1 || string(proc.got[0]) != "jpeg" {
		t.Errorf("processor got %q", proc.got)
	}
	if cam.inits != 0 {
		t.Error("initialized camera must not be initialized again")
	}
}

func TestRun_LazyInitialize(t *testing.T) {
	cam := &mockCamera{initOK: true, result: camera.Result{Status: camera.StatusOK, Data: []byte("jpeg")}}

	if _, err := NewPipeline(cam, okProcessor(), nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cam.inits != 1 {
		t.Errorf("inits = %d, want 1", cam.inits)
	}
}

func TestRun_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		cam  *mockCamera
		proc *recordingProcessor
		want apperrors.Kind
	}{
		{
			name: "no camera",
			cam:  &mockCamera{initOK: false},
			proc: okProcessor(),
			want: apperrors.DeviceNotInitialized,
		},
		{
			name: "connection lost",
			cam: &mockCamera{initialized: true, result: camera.Result{
				Status: camera.StatusConnectionFailed, Message: "connection to camera failed", Err: errors.New("usb"),
			}},
			proc: okProcessor(),
			want: apperrors.DeviceConnectionFailure,
		},
		{
			name: "save failed",
			cam:  &mockCamera{initialized: true, result: camera.Result{Status: camera.StatusOK, Data: []byte("x")}},
			proc: &recordingProcessor{result: photo.Result{Status: camera.StatusSaveFailed, Message: "resizing image failed"}},
			want: apperrors.ImageSaveFailure,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPipeline(tc.cam, tc.proc, nil).Run(context.Background())
			if !apperrors.Is(err, tc.want) {
				t.Errorf("err = %v (kind %s), want %s", err, apperrors.KindOf(err), tc.want)
			}
		})
	}
}

func TestRun_ProcessorNotCalledOnCameraFailure(t *testing.T) {
	cam := &mockCamera{initialized: true, result: camera.Result{Status: camera.StatusConnectionFailed}}
	proc := okProcessor()

	_, _ = NewPipeline(cam, proc, nil).Run(context.Background())
	if len(proc.got) != 0 {
		t.Error("processor must not run when the capture failed")
	}
}

func TestRun_LEDOffAfterCapture(t *testing.T) {
	drv := gpio.NewMockDriver()
	led, err := gpio.NewLED(drv, 27)
	if err != nil {
		t.Fatal(err)
	}
	cam := &mockCamera{initialized: true, result: camera.Result{Status: camera.StatusOK, Data: []byte("x")}}

	if _, err := NewPipeline(cam, okProcessor(), led).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := drv.ReadPin(27); lvl != gpio.Low {
		t.Error("LED left on after capture")
	}
}

// brokenLED accepts setup but fails every write once armed.
type brokenLED struct {
	*gpio.MockDriver
	armed bool
}

func (b *brokenLED) WritePin(pin int, level gpio.Level) error {
	if b.armed {
		return errors.New("gpio write: device busy")
	}
	return b.MockDriver.WritePin(pin, level)
}

func TestRun_LEDFailureIsLoggedNotFatal(t *testing.T) {
	var logs bytes.Buffer
	debug.SetOutput(&logs)
	debug.Init(debug.LevelInfo)
	t.Cleanup(func() {
		debug.Init(debug.LevelOff)
		debug.SetOutput(os.Stdout)
	})

	drv := &brokenLED{MockDriver: gpio.NewMockDriver()}
	led, err := gpio.NewLED(drv, 27)
	if err != nil {
		t.Fatal(err)
	}
	drv.armed = true
	cam := &mockCamera{initialized: true, result: camera.Result{Status: camera.StatusOK, Data: []byte("x")}}

	if _, err := NewPipeline(cam, okProcessor(), led).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := logs.String()
	for _, want := range []string{"busy LED on", "busy LED off", "device busy"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestRun_CarriesCaptureTime(t *testing.T) {
	taken := time.Date(2024, 6, 1, 14, 30, 5, 123e6, time.Local)
	proc := okProcessor()
	proc.result.Taken = taken
	cam := &mockCamera{initialized: true, result: camera.Result{Status: camera.StatusOK, Data: []byte("x")}}

	saved, err := NewPipeline(cam, proc, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !saved.Timestamp.Equal(taken) {
		t.Errorf("Timestamp = %v, want %v", saved.Timestamp, taken)
	}
}

func TestRun_SimulatedCameraEndToEnd(t *testing.T) {
	dir := t.TempDir()
	sim := camera.NewSimulatedDevice()
	sim.Width, sim.Height = 600, 400
	taken := time.Date(2024, 6, 1, 14, 30, 5, 0, time.Local)
	proc := photo.NewProcessor(photo.Options{PhotosDir: dir, MaxWidth: 300, Now: func() time.Time { return taken }})

	saved, err := NewPipeline(sim, proc, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if saved.WebPath != "photos/"+photo.Filename(taken) || saved.LocalPath == "" {
		t.Errorf("saved = %+v", saved)
	}
	if !saved.Timestamp.Equal(taken) {
		t.Errorf("Timestamp = %v, want %v", saved.Timestamp, taken)
	}
}
