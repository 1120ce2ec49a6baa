package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/audit"
	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/hw/printer"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

const probeTimeout = 15 * time.Second

var (
	okColor    = lipgloss.Color("#85DCB0")
	failColor  = lipgloss.Color("#E85D75")
	mutedColor = lipgloss.Color("#9CA3AF")

	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	okStyle     = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(failColor).Bold(true)
	nameStyle   = lipgloss.NewStyle().Width(12)
	detailStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// check is one line of the doctor report.
type check struct {
	name   string
	ok     bool
	detail string
}

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Probe camera, printer and storage without starting the kiosk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			defer debug.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			checks := runChecks(ctx, cfg)
			renderReport(cmd.OutOrStdout(), checks)
			if n := failures(checks); n > 0 {
				return fmt.Errorf("%d check(s) failed", n)
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, cfg *config.Config) []check {
	checks := []check{checkDirs(cfg), probeCamera(ctx, newCamera(cfg))}
	if cfg.PrintingSimulated() {
		checks = append(checks, check{name: "printer", ok: true, detail: "simulated"})
	} else {
		checks = append(checks, probePrinter(ctx, newCUPSBackend(cfg), cfg.Printing.Printer))
	}
	checks = append(checks, countPhotos(cfg))
	if cfg.Audit.PostgresURL != "" {
		checks = append(checks, probePostgres(ctx, cfg.Audit.PostgresURL))
	}
	return checks
}

func checkDirs(cfg *config.Config) check {
	if err := cfg.EnsureDirs(); err != nil {
		return check{name: "storage", detail: err.Error()}
	}
	return check{name: "storage", ok: true, detail: cfg.ContentDir}
}

func probeCamera(ctx context.Context, cam camera.Camera) check {
	ok, msg, err := cam.Initialize(ctx)
	if !ok {
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		return check{name: "camera", detail: msg}
	}
	connected, err := cam.IsConnected(ctx)
	if !connected {
		detail := "not responding"
		if err != nil {
			detail = err.Error()
		}
		return check{name: "camera", detail: detail}
	}
	return check{name: "camera", ok: true, detail: msg}
}

func probePrinter(ctx context.Context, b printer.Backend, name string) check {
	info, err := b.Printer(ctx, name)
	switch {
	case err != nil:
		return check{name: "printer", detail: err.Error()}
	case info == nil:
		return check{name: "printer", detail: fmt.Sprintf("queue %q not found", name)}
	}
	return check{name: "printer", ok: true, detail: fmt.Sprintf("%s (%s)", info.Name, info.Status)}
}

func countPhotos(cfg *config.Config) check {
	latest, err := photo.NewStore(cfg.PhotosDir()).Latest(0)
	if err != nil {
		return check{name: "photos", detail: err.Error()}
	}
	originals, err := newProcessor(cfg).FullSizeCount()
	if err != nil {
		return check{name: "photos", detail: err.Error()}
	}
	return check{name: "photos", ok: true, detail: fmt.Sprintf("%d web, %d full size", len(latest), originals)}
}

func probePostgres(ctx context.Context, url string) check {
	pg, err := audit.NewPostgresLog(ctx, url)
	if err != nil {
		return check{name: "postgres", detail: err.Error()}
	}
	pg.Close(ctx)
	return check{name: "postgres", ok: true, detail: "print_log ready"}
}

func failures(checks []check) int {
	n := 0
	for _, c := range checks {
		if !c.ok {
			n++
		}
	}
	return n
}

func renderReport(w io.Writer, checks []check) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("photobooth doctor"))
	b.WriteString("\n")
	for _, c := range checks {
		mark := okStyle.Render("ok  ")
		if !c.ok {
			mark = failStyle.Render("FAIL")
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, mark, " ", nameStyle.Render(c.name), detailStyle.Render(c.detail)))
		b.WriteString("\n")
	}
	fmt.Fprint(w, b.String())
}
