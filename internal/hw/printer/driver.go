package printer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
)

// DefaultPollInterval is the delay between two job status reads.
const DefaultPollInterval = 5 * time.Second

// PollingDriver queues jobs on a Backend and polls each one until it leaves
// the pending/printing states. There is no attempt cap: a job that stays
// pending forever is polled forever, until ctx is cancelled.
type PollingDriver struct {
	backend  Backend
	printer  string
	interval time.Duration
}

// NewPollingDriver creates a driver for one named printer.
func NewPollingDriver(b Backend, printerName string, interval time.Duration) *PollingDriver {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingDriver{backend: b, printer: printerName, interval: interval}
}

// Print checks the printer, queues path, then polls until the job is terminal.
// A terminal job whose status reads as a failure is returned together with
// an error of kind PrintJobFailed.
func (d *PollingDriver) Print(ctx context.Context, path string) (*JobInfo, error) {
	if err := d.checkPrinter(ctx); err != nil {
		return nil, err
	}

	id, err := d.backend.Submit(ctx, d.printer, path)
	if err != nil {
		debug.Error("print job queue failed", err)
		return nil, apperrors.Wrap(apperrors.PrintBackendUnavailable, "submit", path, err)
	}
	debug.Info("Print job queued successfully: %s", id)

	return d.poll(ctx, id, path)
}

func (d *PollingDriver) checkPrinter(ctx context.Context) error {
	info, err := d.backend.Printer(ctx, d.printer)
	if err != nil {
		return apperrors.Wrap(apperrors.PrintBackendUnavailable, "printer", d.printer, err)
	}
	if info == nil {
		return apperrors.Wrap(apperrors.PrintBackendUnavailable, "printer", d.printer,
			fmt.Errorf("printer %s not found", d.printer))
	}
	return nil
}

// poll is the Pending/Printing -> Terminal state machine for one job.
// Returned infos carry the submitted path.
func (d *PollingDriver) poll(ctx context.Context, id, path string) (*JobInfo, error) {
	for attempt := 1; ; attempt++ {
		info, err := d.backend.Job(ctx, d.printer, id)
		if err == nil && info == nil {
			err = errors.New("could not get job info")
		}
		if err != nil {
			debug.Error("could not get job "+id+" info", err)
			return nil, apperrors.Wrap(apperrors.PrintJobQueryFailure, "job", id, err)
		}

		if info.File == "" {
			info.File = path
		}

		state := Classify(info.Status)
		debug.PrintJob(id, fmt.Sprintf("%s %v (poll %d)", state, info.Status, attempt))
		if state == JobTerminal {
			if Failed(info.Status) {
				return info, apperrors.Wrap(apperrors.PrintJobFailed, "job", id,
					fmt.Errorf("job ended as %s", strings.Join(info.Status, ",")))
			}
			return info, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.PrintJobQueryFailure, "job", id, ctx.Err())
		case <-time.After(d.interval):
		}
	}
}

// SimulatedDriver never contacts a backend. Every print succeeds immediately.
type SimulatedDriver struct{}

func (SimulatedDriver) Print(ctx context.Context, path string) (*JobInfo, error) {
	debug.Info("Printing is in simulation mode: %s", path)
	return &JobInfo{ID: "simulated", Status: []string{"SIMULATED"}, File: path}, nil
}
