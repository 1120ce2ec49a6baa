package collage

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

// Composer renders photos into a named layout. Every method returns the
// local path of the rendered image.
type Composer interface {
	CreatePreviewCollage(ctx context.Context, layout string, photoPaths []string) (string, error)
	CreateCollage(ctx context.Context, layout string, photoPaths []string) (string, error)
	PlaceholderImage(ctx context.Context, layout string) (string, error)
}

var placeholderGrey = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}

// Grid lays photos out row by row in a rows x cols grid.
type Grid struct {
	layouts      map[string]config.LayoutConfig
	outDir       string
	previewWidth int
	now          func() time.Time
}

// NewGrid creates a composer writing into outDir.
func NewGrid(layouts map[string]config.LayoutConfig, outDir string, previewWidth int) *Grid {
	return &Grid{layouts: layouts, outDir: outDir, previewWidth: previewWidth, now: time.Now}
}

// Layouts returns the configured layout names.
func (g *Grid) Layouts() []string {
	names := make([]string, 0, len(g.layouts))
	for name := range g.layouts {
		names = append(names, name)
	}
	return names
}

func (g *Grid) CreatePreviewCollage(ctx context.Context, layout string, photoPaths []string) (string, error) {
	return g.render(ctx, "preview", layout, photoPaths, g.previewWidth)
}

func (g *Grid) CreateCollage(ctx context.Context, layout string, photoPaths []string) (string, error) {
	return g.render(ctx, "collage", layout, photoPaths, 0)
}

// PlaceholderImage renders the empty layout once and reuses the file.
func (g *Grid) PlaceholderImage(ctx context.Context, layout string) (string, error) {
	l, err := g.layout(layout)
	if err != nil {
		return "", err
	}
	out := filepath.Join(g.outDir, "layout_"+layout+".jpg")
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}
	canvas, err := compose(ctx, l, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CollageCompositionFailure, "placeholder", layout, err)
	}
	if err := photo.WriteJPEG(out, photo.Fit(canvas, g.previewWidth)); err != nil {
		return "", apperrors.Wrap(apperrors.CollageCompositionFailure, "placeholder", out, err)
	}
	return out, nil
}

func (g *Grid) layout(name string) (config.LayoutConfig, error) {
	l, ok := g.layouts[name]
	if !ok {
		return l, apperrors.New(apperrors.CollageCompositionFailure, "layout", "unknown layout "+strconv.Quote(name))
	}
	return l, nil
}

func (g *Grid) render(ctx context.Context, kind, layout string, photoPaths []string, width int) (string, error) {
	l, err := g.layout(layout)
	if err != nil {
		return "", err
	}
	if len(photoPaths) == 0 {
		return "", apperrors.New(apperrors.CollageCompositionFailure, kind, "no photos selected")
	}
	if !hasRoom(l) {
		return "", apperrors.New(apperrors.CollageCompositionFailure, kind,
			fmt.Sprintf("layout %s leaves no room for photos", layout))
	}
	if len(photoPaths) > l.Rows*l.Cols {
		return "", apperrors.New(apperrors.CollageCompositionFailure, kind,
			fmt.Sprintf("layout %s holds %d photos, got %d", layout, l.Rows*l.Cols, len(photoPaths)))
	}

	imgs := make([]image.Image, len(photoPaths))
	for i, p := range photoPaths {
		img, err := load(p)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CollageCompositionFailure, kind, p, err)
		}
		imgs[i] = img
	}

	canvas, err := compose(ctx, l, imgs)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CollageCompositionFailure, kind, layout, err)
	}

	name := fmt.Sprintf("%s_%s_%s.jpg", kind, layout, g.now().Format(photo.TimestampLayout))
	out := filepath.Join(g.outDir, name)
	if err := photo.WriteJPEG(out, photo.Fit(canvas, width)); err != nil {
		return "", apperrors.Wrap(apperrors.CollageCompositionFailure, kind, out, err)
	}
	debug.Verbose("Collage %s written: %s (%d photos)", kind, out, len(imgs))
	return out, nil
}

func load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// Cells returns the cell rectangles of l in row-major order.
func Cells(l config.LayoutConfig) []image.Rectangle {
	cw := (l.Width - l.Margin*(l.Cols+1)) / l.Cols
	ch := (l.Height - l.Margin*(l.Rows+1)) / l.Rows
	cells := make([]image.Rectangle, 0, l.Rows*l.Cols)
	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			x := l.Margin + c*(cw+l.Margin)
			y := l.Margin + r*(ch+l.Margin)
			cells = append(cells, image.Rect(x, y, x+cw, y+ch))
		}
	}
	return cells
}

// hasRoom reports whether every cell of l has a positive size.
func hasRoom(l config.LayoutConfig) bool {
	for _, c := range Cells(l) {
		if c.Empty() {
			return false
		}
	}
	return true
}

// compose fills cells with imgs in order; cells without a photo are grey.
func compose(ctx context.Context, l config.LayoutConfig, imgs []image.Image) (*image.RGBA, error) {
	bg, err := ParseHexColor(l.Background)
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for i, cell := range Cells(l) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(imgs) {
			draw.Draw(canvas, cell, image.NewUniform(placeholderGrey), image.Point{}, draw.Src)
			continue
		}
		src := imgs[i]
		draw.CatmullRom.Scale(canvas, cell, src, coverCrop(src.Bounds(), cell.Dx(), cell.Dy()), draw.Src, nil)
	}
	return canvas, nil
}

// coverCrop returns the centred part of src with the aspect ratio of a
// w x h cell, so the cell is filled without distortion.
func coverCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 || sw <= 0 || sh <= 0 {
		return src
	}
	if sw*h > sh*w {
		cw := sh * w / h
		x := src.Min.X + (sw-cw)/2
		return image.Rect(x, src.Min.Y, x+cw, src.Max.Y)
	}
	ch := sw * h / w
	y := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y, src.Max.X, y+ch)
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
