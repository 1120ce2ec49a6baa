package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Default frame size of simulated captures, close to a DSLR's 3:2 output.
const (
	DefaultSimWidth  = 3000
	DefaultSimHeight = 2000
)

// SimulatedDevice is a Camera that renders a placeholder frame instead of
// talking to hardware: a solid red frame with the capture time as caption.
type SimulatedDevice struct {
	Width  int
	Height int
	Now    func() time.Time

	busy atomic.Bool
}

// NewSimulatedDevice creates a simulated camera producing full-size frames.
func NewSimulatedDevice() *SimulatedDevice {
	return &SimulatedDevice{Width: DefaultSimWidth, Height: DefaultSimHeight, Now: time.Now}
}

func (s *SimulatedDevice) Initialize(ctx context.Context) (bool, string, error) {
	debug.Info("Using SIMULATED camera (development mode)")
	return true, "", nil
}

func (s *SimulatedDevice) IsInitialized() bool { return true }

func (s *SimulatedDevice) IsConnected(ctx context.Context) (bool, error) { return true, nil }

func (s *SimulatedDevice) TakePicture(ctx context.Context) Result {
	if !s.busy.CompareAndSwap(false, true) {
		return Result{Status: StatusNotInitialized, Message: "camera busy"}
	}
	defer s.busy.Store(false)

	debug.Verbose("Camera: sample picture")
	data, err := s.render(s.Now().Format("2006-01-02 15:04:05.000"))
	if err != nil {
		return Result{Status: StatusConnectionFailed, Message: "failed to create sample picture", Err: err}
	}
	return Result{Status: StatusOK, Data: data}
}

func (s *SimulatedDevice) render(caption string) ([]byte, error) {
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 {
		w, h = DefaultSimWidth, DefaultSimHeight
	}
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.RGBA{R: 0xff, G: 0x80, B: 0x80, A: 0xff}), image.Point{}, draw.Src)

	// basicfont is 7x13; draw at native size then scale up to ~1/3 of the width.
	face := basicfont.Face7x13
	textW := font.MeasureString(face, caption).Ceil()
	textH := face.Metrics().Height.Ceil()
	text := image.NewRGBA(image.Rect(0, 0, textW, textH))
	d := &font.Drawer{
		Dst:  text,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(caption)

	scale := (w * 2 / 3) / max(textW, 1)
	if scale < 1 {
		scale = 1
	}
	dw, dh := textW*scale, textH*scale
	x0, y0 := (w-dw)/2, (h-dh)/2
	draw.NearestNeighbor.Scale(frame, image.Rect(x0, y0, x0+dw, y0+dh), text, text.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
