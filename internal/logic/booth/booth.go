package booth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cjeanneret/photobooth/internal/audit"
	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/hw/printer"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

// Capturer takes and stores one photo.
type Capturer interface {
	Run(ctx context.Context) (capture.SavedPhoto, error)
}

// Options holds the settings the orchestrator consults per request.
type Options struct {
	Password            string
	EnableRemoteRelease bool
	LimitPerUser        int // 0 = unlimited
	MaxImages           int
	GrayscaleMode       bool
	Slideshow           config.SlideshowConfig
	ContactsPath        string
}

// OptionsFromConfig extracts Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Password:            cfg.Webapp.Password,
		EnableRemoteRelease: cfg.Webapp.EnableRemoteRelease,
		LimitPerUser:        cfg.Printing.LimitPerUser,
		MaxImages:           cfg.Webapp.MaxImages,
		GrayscaleMode:       cfg.Webapp.GrayscaleMode,
		Slideshow:           cfg.Slideshow,
		ContactsPath:        cfg.ContactsPath(),
	}
}

// Booth is the session orchestrator. Every collaborator is constructed once
// by the caller and handed in; Booth owns none of them.
type Booth struct {
	capture  Capturer
	composer collage.Composer
	printer  printer.Driver
	audit    audit.Log
	store    *photo.Store
	notifier Notifier
	opts     Options

	contactsMu sync.Mutex
}

func New(c Capturer, comp collage.Composer, drv printer.Driver, log audit.Log, store *photo.Store, n Notifier, opts Options) *Booth {
	if n == nil {
		n = NotifierFunc(func(string, ...any) {})
	}
	return &Booth{
		capture:  c,
		composer: comp,
		printer:  drv,
		audit:    log,
		store:    store,
		notifier: n,
		opts:     opts,
	}
}

// Authenticate reports whether password matches the configured one.
// With no password configured nobody authenticates.
func (b *Booth) Authenticate(password string) bool {
	if b.opts.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(b.opts.Password)) == 1
}

// TriggerPhoto is the remote shutter. It requires remote release to be
// enabled or a valid password.
func (b *Booth) TriggerPhoto(ctx context.Context, password string) (capture.SavedPhoto, error) {
	if !b.opts.EnableRemoteRelease && !b.Authenticate(password) {
		return capture.SavedPhoto{}, apperrors.New(apperrors.Unauthorized, "trigger", "remote release disabled and password invalid")
	}
	return b.Shoot(ctx)
}

// Shoot takes a photo and announces it to every client. The physical
// button calls it directly.
func (b *Booth) Shoot(ctx context.Context) (capture.SavedPhoto, error) {
	saved, err := b.capture.Run(ctx)
	if err != nil {
		debug.Error("trigger photo", err)
		return saved, err
	}
	b.notifier.Broadcast(EventNewPhotos, []string{saved.WebPath})
	return saved, nil
}

// PreviewCollage renders a screen-sized collage and returns its web path.
func (b *Booth) PreviewCollage(ctx context.Context, layout string, webPaths []string) (string, error) {
	paths, err := b.localPaths(webPaths)
	if err != nil {
		return "", err
	}
	local, err := b.composer.CreatePreviewCollage(ctx, layout, paths)
	if err != nil {
		debug.Error("print preview", err)
		return "", err
	}
	return b.webPath(local)
}

// PlaceholderImage returns the local path of an empty layout preview.
func (b *Booth) PlaceholderImage(ctx context.Context, layout string) (string, error) {
	return b.composer.PlaceholderImage(ctx, layout)
}

// PrintRequest is one client's print order.
type PrintRequest struct {
	Layout     string
	Images     []string // web paths
	PrintCount int      // prints this client already made
	Password   string
}

// Print checks the quota before any other work, composes the print
// collage, drives the printer and writes two audit lines. The result goes
// to the requester only.
func (b *Booth) Print(ctx context.Context, req PrintRequest) (*printer.JobInfo, error) {
	limit := b.opts.LimitPerUser
	if limit > 0 && req.PrintCount >= limit && !b.Authenticate(req.Password) {
		debug.Live("print_limit_exceeded (count %d, limit %d)", req.PrintCount, limit)
		return nil, apperrors.New(apperrors.QuotaExceeded, "print",
			fmt.Sprintf("print count %d reached limit %d", req.PrintCount, limit))
	}

	paths, err := b.localPaths(req.Images)
	if err != nil {
		return nil, err
	}
	imagePath, err := b.composer.CreateCollage(ctx, req.Layout, paths)
	if err != nil {
		debug.Error("print error (collage)", err)
		return nil, err
	}

	debug.Info("Printing image %s", imagePath)
	b.appendAudit(ctx, "Print "+imagePath)

	info, err := b.printer.Print(ctx, imagePath)
	outcome := "Print result of " + imagePath + " "
	if err != nil {
		debug.Error("print error (send to printer)", err)
		outcome += "FAILED " + err.Error()
	} else {
		js, _ := json.Marshal(info)
		outcome += "SUCCESSFULL " + string(js)
		debug.Info("Printing successful: %s", imagePath)
	}
	b.appendAudit(ctx, outcome)
	return info, err
}

// appendAudit never fails the caller.
func (b *Booth) appendAudit(ctx context.Context, line string) {
	if b.audit == nil {
		return
	}
	if err := b.audit.Append(ctx, line); err != nil {
		debug.Verbose("audit log write ignored: %v", err)
	}
}

// LatestPhotos returns the newest photos, up to the configured maximum.
func (b *Booth) LatestPhotos() ([]string, error) {
	return b.store.Latest(b.opts.MaxImages)
}

// SaveContact appends a visitor address to the contacts file.
func (b *Booth) SaveContact(address string) error {
	address = strings.TrimSpace(address)
	if address == "" || strings.ContainsAny(address, "\r\n") {
		return apperrors.New(apperrors.IOFailure, "contact", "invalid contact address")
	}
	b.contactsMu.Lock()
	defer b.contactsMu.Unlock()

	f, err := os.OpenFile(b.opts.ContactsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.IOFailure, "contact", b.opts.ContactsPath, err)
	}
	if _, err := f.WriteString(address + ",\n"); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.IOFailure, "contact", b.opts.ContactsPath, err)
	}
	return f.Close()
}

// Settings are the flags sent to a client when it connects.
type Settings struct {
	Grayscale     bool
	RemoteRelease bool
	Slideshow     config.SlideshowConfig
}

func (b *Booth) ClientSettings() Settings {
	return Settings{
		Grayscale:     b.opts.GrayscaleMode,
		RemoteRelease: b.opts.EnableRemoteRelease,
		Slideshow:     b.opts.Slideshow,
	}
}

func (b *Booth) localPaths(webPaths []string) ([]string, error) {
	out := make([]string, 0, len(webPaths))
	for _, w := range webPaths {
		p, err := b.store.WebToLocal(w)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CollageCompositionFailure, "resolve", w, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// webPath maps a file under the photos directory back to its URL path.
func (b *Booth) webPath(local string) (string, error) {
	rel, err := filepath.Rel(b.store.Dir(), local)
	if err != nil || strings.HasPrefix(rel, "..") {
		if err == nil {
			err = errors.New("outside the photos directory")
		}
		return "", apperrors.Wrap(apperrors.CollageCompositionFailure, "preview", local, err)
	}
	return photo.WebPrefix + filepath.ToSlash(rel), nil
}
