package camera

import "context"

// Status is the small integer outcome of a capture, stable across the
// capture and post-processing stages.
type Status int

const (
	StatusOK               Status = 0
	StatusNotInitialized   Status = -1
	StatusConnectionFailed Status = -2
	StatusSaveFailed       Status = -3 // set by the photo processor, never by a camera
)

// Result is the outcome of one trigger. Data is set only when Status is StatusOK.
type Result struct {
	Status  Status
	Message string
	Data    []byte
	Err     error
}

// OK reports whether the capture succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// Camera is the high-level interface used by the rest of the application.
// It represents a single exclusive capture device, real or simulated.
type Camera interface {
	// Initialize detects the device and pushes startup configuration.
	// ready is false when no camera was found or the configuration push failed;
	// msg describes why and err carries the underlying failure, if any.
	Initialize(ctx context.Context) (ready bool, msg string, err error)

	// IsInitialized reports whether TakePicture can reach the device without
	// a new Initialize.
	IsInitialized() bool

	// IsConnected issues a lightweight read. On failure the device must be
	// initialized again before the next capture.
	IsConnected(ctx context.Context) (bool, error)

	// TakePicture triggers one exposure and returns the raw image.
	TakePicture(ctx context.Context) Result
}
