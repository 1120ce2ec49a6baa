package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cjeanneret/photobooth/internal/sysexec"
)

// GPhoto2Backend drives the gphoto2 command line tool.
type GPhoto2Backend struct {
	runner sysexec.Runner
	bin    string
}

// NewGPhoto2Backend creates a backend running bin (usually "gphoto2") through r.
func NewGPhoto2Backend(r sysexec.Runner, bin string) *GPhoto2Backend {
	if bin == "" {
		bin = "gphoto2"
	}
	return &GPhoto2Backend{runner: r, bin: bin}
}

// columnSplit separates the model and port columns of --auto-detect.
var columnSplit = regexp.MustCompile(`\s{2,}`)

func (g *GPhoto2Backend) List(ctx context.Context) ([]Model, error) {
	out, err := g.runner.Run(ctx, g.bin, "--auto-detect")
	if err != nil {
		return nil, err
	}
	return parseAutoDetect(out), nil
}

// parseAutoDetect reads the table printed by `gphoto2 --auto-detect`:
//
//	Model                          Port
//	----------------------------------------------------------
//	Canon EOS 600D                 usb:001,005
func parseAutoDetect(out []byte) []Model {
	var models []Model
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "Model") || strings.HasPrefix(line, "---") {
			continue
		}
		cols := columnSplit.Split(line, -1)
		if len(cols) < 2 {
			continue
		}
		models = append(models, Model{
			Name: strings.Join(cols[:len(cols)-1], " "),
			Port: cols[len(cols)-1],
		})
	}
	return models
}

func (g *GPhoto2Backend) SetConfig(ctx context.Context, port, key, value string) error {
	_, err := g.runner.Run(ctx, g.bin, "--port", port, "--set-config", key+"="+value)
	return err
}

func (g *GPhoto2Backend) GetConfig(ctx context.Context, port, key string) (string, error) {
	out, err := g.runner.Run(ctx, g.bin, "--port", port, "--get-config", key)
	if err != nil {
		return "", err
	}
	return parseCurrent(out, key)
}

// parseCurrent extracts the "Current:" line of `gphoto2 --get-config`.
func parseCurrent(out []byte, key string) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "Current:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("gphoto2: no current value for %s", key)
}

func (g *GPhoto2Backend) Capture(ctx context.Context, port string, keep bool) ([]byte, error) {
	args := []string{"--port", port, "--capture-image-and-download", "--stdout"}
	if keep {
		args = append(args, "--keep")
	}
	return g.runner.Run(ctx, g.bin, args...)
}
