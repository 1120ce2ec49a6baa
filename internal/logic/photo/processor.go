package photo

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"

	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
)

// DefaultMaxWidth is the web photo width used when none is configured.
const DefaultMaxWidth = 1500

// TimestampLayout names photos with millisecond resolution, so names sort
// chronologically.
const TimestampLayout = "20060102-150405.000"

// JPEGQuality is used for every image this package writes.
const JPEGQuality = 90

// WebPrefix is the URL segment under which photos are served.
const WebPrefix = "photos/"

// Result is the outcome of post-processing one capture.
type Result struct {
	Status    camera.Status
	LocalPath string // absolute path of the resized photo
	WebPath   string // "photos/<filename>"
	Taken     time.Time
	Message   string // set on failure
	Err       error
}

func (r Result) OK() bool { return r.Status == camera.StatusOK }

// Options configures a Processor.
type Options struct {
	PhotosDir    string
	FullSizeDir  string
	KeepFullSize bool
	MaxWidth     int
	Now          func() time.Time
}

// Processor turns raw camera bytes into a stored, web-sized photo.
type Processor struct {
	opts Options
}

func NewProcessor(opts Options) *Processor {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{opts: opts}
}

// Filename returns the photo name for a capture taken at t.
func Filename(t time.Time) string {
	return "img_" + t.Format(TimestampLayout) + ".jpg"
}

// Process names the photo, writes the original first when full-size
// retention is on, then resizes into the photos directory.
// Any failure yields StatusSaveFailed.
func (p *Processor) Process(ctx context.Context, raw []byte) Result {
	now := p.opts.Now()
	name := Filename(now)

	if p.opts.KeepFullSize {
		full := filepath.Join(p.opts.FullSizeDir, name)
		if err := os.WriteFile(full, raw, 0o644); err != nil {
			return saveFailed("saving full-size image failed", full, err)
		}
		debug.Verbose("Full-size original written: %s", full)
	}

	if err := ctx.Err(); err != nil {
		return saveFailed("processing cancelled", name, err)
	}

	local := filepath.Join(p.opts.PhotosDir, name)
	if err := p.resizeBytes(raw, local); err != nil {
		return saveFailed("resizing image failed", local, err)
	}
	if abs, err := filepath.Abs(local); err == nil {
		local = abs
	}

	debug.Info("Photo saved: %s", local)
	return Result{Status: camera.StatusOK, LocalPath: local, WebPath: WebPrefix + name, Taken: now}
}

func saveFailed(msg, path string, err error) Result {
	debug.Error(msg, err)
	return Result{
		Status:  camera.StatusSaveFailed,
		Message: msg,
		Err:     apperrors.Wrap(apperrors.ImageSaveFailure, "process", path, err),
	}
}

func (p *Processor) resizeBytes(raw []byte, dst string) error {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if x, err := exif.Decode(bytes.NewReader(raw)); err == nil {
		img = orient(img, orientation(x))
		if t, err := x.DateTime(); err == nil {
			debug.Verbose("EXIF capture time: %s", t.Format(time.RFC3339))
		}
	}
	return WriteJPEG(dst, Fit(img, p.opts.MaxWidth))
}

// Rebuild re-derives every web photo from the full-size originals.
// progress is called once per file, after it is processed.
func (p *Processor) Rebuild(ctx context.Context, progress func()) (int, error) {
	names, err := listPhotos(p.opts.FullSizeDir)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.IOFailure, "rebuild", p.opts.FullSizeDir, err)
	}
	done := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		raw, err := os.ReadFile(filepath.Join(p.opts.FullSizeDir, name))
		if err != nil {
			return done, apperrors.Wrap(apperrors.IOFailure, "rebuild", name, err)
		}
		if err := p.resizeBytes(raw, filepath.Join(p.opts.PhotosDir, name)); err != nil {
			return done, apperrors.Wrap(apperrors.ImageSaveFailure, "rebuild", name, err)
		}
		done++
		if progress != nil {
			progress()
		}
	}
	return done, nil
}

// FullSizeCount returns how many originals Rebuild would process.
func (p *Processor) FullSizeCount() (int, error) {
	names, err := listPhotos(p.opts.FullSizeDir)
	return len(names), err
}

// Fit scales img down to maxWidth, preserving aspect ratio.
// Images already narrow enough are returned unchanged.
func Fit(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// WriteJPEG encodes img to path at JPEGQuality.
func WriteJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
