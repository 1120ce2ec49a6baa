package printer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cjeanneret/photobooth/internal/sysexec"
)

// CUPSBackend drives a local CUPS server through lp and lpstat.
type CUPSBackend struct {
	runner sysexec.Runner
	lp     string
	lpstat string
}

// NewCUPSBackend creates a backend running the given lp and lpstat binaries.
func NewCUPSBackend(r sysexec.Runner, lpBin, lpstatBin string) *CUPSBackend {
	if lpBin == "" {
		lpBin = "lp"
	}
	if lpstatBin == "" {
		lpstatBin = "lpstat"
	}
	return &CUPSBackend{runner: r, lp: lpBin, lpstat: lpstatBin}
}

func (c *CUPSBackend) Printer(ctx context.Context, name string) (*PrinterInfo, error) {
	out, err := c.runner.Run(ctx, c.lpstat, "-p", name)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "Invalid destination") || strings.Contains(msg, "Unknown destination") {
			return nil, nil
		}
		return nil, err
	}
	line := firstLine(out)
	if !strings.HasPrefix(line, "printer "+name+" ") {
		return nil, nil
	}
	return &PrinterInfo{Name: name, Status: strings.TrimPrefix(line, "printer "+name+" ")}, nil
}

var requestID = regexp.MustCompile(`request id is (\S+)`)

func (c *CUPSBackend) Submit(ctx context.Context, printer, path string) (string, error) {
	out, err := c.runner.Run(ctx, c.lp, "-d", printer, "-o", "fit-to-page", path)
	if err != nil {
		return "", err
	}
	m := requestID.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("lp: unexpected output %q", strings.TrimSpace(string(out)))
	}
	return string(m[1]), nil
}

// Job combines three lpstat views: not-completed jobs, the printer's
// "now printing" line, and completed jobs with their alerts.
func (c *CUPSBackend) Job(ctx context.Context, printer, id string) (*JobInfo, error) {
	out, err := c.runner.Run(ctx, c.lpstat, "-W", "not-completed", "-o", printer)
	if err != nil {
		return nil, err
	}
	if listsJob(out, id) {
		status, err := c.runner.Run(ctx, c.lpstat, "-p", printer)
		if err != nil {
			return nil, err
		}
		state := "PENDING"
		if strings.Contains(string(status), "now printing "+id) {
			state = "PRINTING"
		}
		return &JobInfo{ID: id, Printer: printer, Status: []string{state}}, nil
	}

	out, err = c.runner.Run(ctx, c.lpstat, "-W", "completed", "-l", "-o", printer)
	if err != nil {
		return nil, err
	}
	alerts, ok := completedAlerts(out, id)
	if !ok {
		return nil, nil
	}
	return &JobInfo{ID: id, Printer: printer, Status: []string{completedState(alerts)}}, nil
}

func firstLine(out []byte) string {
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// listsJob reports whether an lpstat -o listing has a row for id.
func listsJob(out []byte, id string) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && fields[0] == id {
			return true
		}
	}
	return false
}

// completedAlerts finds id in an lpstat -l -o listing and returns the value
// of its "Alerts:" line.
func completedAlerts(out []byte, id string) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	found := false
	alerts := ""
	for sc.Scan() {
		raw := sc.Text()
		indented := strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")
		if !indented {
			if found {
				break
			}
			fields := strings.Fields(raw)
			found = len(fields) > 0 && fields[0] == id
			continue
		}
		if found {
			if v, ok := strings.CutPrefix(strings.TrimSpace(raw), "Alerts:"); ok {
				alerts = strings.TrimSpace(v)
			}
		}
	}
	return alerts, found
}

func completedState(alerts string) string {
	switch {
	case strings.Contains(alerts, "canceled"):
		return "CANCELLED"
	case strings.Contains(alerts, "aborted"):
		return "ABORTED"
	default:
		return "COMPLETED"
	}
}
