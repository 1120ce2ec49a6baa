package printer

import (
	"context"
	"strings"
)

// JobState is the driver-side view of a print job.
type JobState string

const (
	JobPending  JobState = "pending"
	JobPrinting JobState = "printing"
	JobTerminal JobState = "terminal"
)

// JobInfo is what the backend reports about a queued job.
type JobInfo struct {
	ID      string   `json:"id"`
	Printer string   `json:"printer"`
	Status  []string `json:"status"` // upper-case states, e.g. ["PRINTING"]
	File    string   `json:"file,omitempty"`
}

// PrinterInfo describes a print queue.
type PrinterInfo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Backend is the print subsystem a PollingDriver talks to.
type Backend interface {
	// Printer returns the named queue, or (nil, nil) when it does not exist.
	Printer(ctx context.Context, name string) (*PrinterInfo, error)
	Submit(ctx context.Context, printer, path string) (string, error)
	// Job returns (nil, nil) when the backend has no record of the job.
	Job(ctx context.Context, printer, id string) (*JobInfo, error)
}

// Driver submits a finished image and reports its terminal outcome.
// Print blocks until the job is terminal.
type Driver interface {
	Print(ctx context.Context, path string) (*JobInfo, error)
}

var workingStates = []string{"PENDING", "PRINTING"}

var failedStates = []string{"CANCELLED", "CANCELED", "ABORTED", "ERROR", "FAILED"}

// Classify maps a backend status list onto the poll state machine.
// Anything that is neither pending nor printing, including an empty list,
// is terminal.
func Classify(status []string) JobState {
	for _, s := range status {
		if strings.Contains(s, "PRINTING") {
			return JobPrinting
		}
	}
	for _, s := range status {
		for _, w := range workingStates {
			if strings.Contains(s, w) {
				return JobPending
			}
		}
	}
	return JobTerminal
}

// Failed reports whether a terminal status describes a failed job.
func Failed(status []string) bool {
	for _, s := range status {
		for _, f := range failedStates {
			if strings.Contains(s, f) {
				return true
			}
		}
	}
	return false
}
