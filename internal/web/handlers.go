package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/photobooth/internal/debug"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/hw/printer"
	"github.com/cjeanneret/photobooth/internal/logic/booth"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
)

// Orchestrator is the booth as seen by the transport.
type Orchestrator interface {
	TriggerPhoto(ctx context.Context, password string) (capture.SavedPhoto, error)
	PreviewCollage(ctx context.Context, layout string, webPaths []string) (string, error)
	Print(ctx context.Context, req booth.PrintRequest) (*printer.JobInfo, error)
	PlaceholderImage(ctx context.Context, layout string) (string, error)
	LatestPhotos() ([]string, error)
	Authenticate(password string) bool
	SaveContact(address string) error
	ClientSettings() booth.Settings
}

// PhotoResolver maps "photos/..." URL paths onto local files.
type PhotoResolver interface {
	WebToLocal(webPath string) (string, error)
}

// inbound is the body of POST /events/:client.
type inbound struct {
	Event string            `json:"event" binding:"required"`
	Args  []json.RawMessage `json:"args"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	hub       *Hub
	booth     Orchestrator
	photos    PhotoResolver
	heartbeat time.Duration

	// ctx bounds the work started by inbound events; cancelled on shutdown.
	ctx context.Context
}

func NewHandlers(hub *Hub, b Orchestrator, photos PhotoResolver) *Handlers {
	return &Handlers{hub: hub, booth: b, photos: photos, heartbeat: 30 * time.Second, ctx: context.Background()}
}

// Events handles GET /events for SSE. The first message carries the client
// id to use with POST /events/:client.
func (h *Handlers) Events(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	id, ch, unsub := h.hub.Subscribe()
	defer unsub()
	debug.Live("client connected: %s", id)

	h.hub.SendTo(id, "connected", id)
	s := h.booth.ClientSettings()
	if s.Grayscale {
		h.hub.SendTo(id, booth.EventUseGrayscale)
	}
	if s.RemoteRelease {
		h.hub.SendTo(id, booth.EventEnableRemoteRelease)
	}
	if s.Slideshow.Enabled {
		h.hub.SendTo(id, booth.EventSlideshow, s.Slideshow.ActivatesAfterSeconds, s.Slideshow.SecondsPerPhoto)
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			w.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			w.Flush()

		case <-c.Request.Context().Done():
			debug.Live("client disconnected: %s", id)
			return
		}
	}
}

// PostEvent handles POST /events/:client. The event runs in the background;
// its outcome is pushed to the client over SSE.
func (h *Handlers) PostEvent(c *gin.Context) {
	client := c.Param("client")
	if !h.hub.Connected(client) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown client"})
		return
	}
	var req inbound
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	handle, ok := h.route(req.Event)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event " + strconv.Quote(req.Event)})
		return
	}
	debug.Event("in", client, req.Event)

	go h.dispatch(h.ctx, client, req.Event, handle, args(req.Args))
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// dispatch runs one inbound event. A panic in the handler is logged and
// answered with the event's error reply; it never takes the process down.
func (h *Handlers) dispatch(ctx context.Context, client, event string, handle eventFunc, a args) {
	defer func() {
		if r := recover(); r != nil {
			debug.Error("event "+strconv.Quote(event)+" panicked", fmt.Errorf("%v", r))
			if reply, ok := errorReplies[event]; ok {
				h.hub.SendTo(client, reply)
			}
		}
	}()
	handle(ctx, client, a)
}

// errorReplies maps inbound events to the reply sent when they fail.
var errorReplies = map[string]string{
	booth.EventTriggerPhoto: booth.EventTriggerPhotoError,
	booth.EventPrintPreview: booth.EventPrintPreviewError,
	booth.EventPrint:        booth.EventPrintError,
}

type eventFunc func(ctx context.Context, client string, a args)

func (h *Handlers) route(event string) (eventFunc, bool) {
	switch event {
	case booth.EventTriggerPhoto:
		return h.onTriggerPhoto, true
	case booth.EventPrintPreview:
		return h.onPrintPreview, true
	case booth.EventPrint:
		return h.onPrint, true
	case booth.EventLatestPhotos:
		return h.onLatestPhotos, true
	case booth.EventAuthenticate:
		return h.onAuthenticate, true
	case booth.EventContactAddress:
		return h.onContactAddress, true
	}
	return nil, false
}

func (h *Handlers) onTriggerPhoto(ctx context.Context, client string, a args) {
	_, err := h.booth.TriggerPhoto(ctx, a.str(0))
	switch {
	case apperrors.Is(err, apperrors.Unauthorized):
		debug.Warn("trigger_photo refused for client %s", client)
	case err != nil:
		h.hub.SendTo(client, booth.EventTriggerPhotoError)
	default:
		h.hub.SendTo(client, booth.EventTriggerPhotoSuccess)
	}
}

func (h *Handlers) onPrintPreview(ctx context.Context, client string, a args) {
	path, err := h.booth.PreviewCollage(ctx, a.str(0), a.strs(1))
	if err != nil {
		h.hub.SendTo(client, booth.EventPrintPreviewError)
		return
	}
	h.hub.SendTo(client, booth.EventPrintPreviewSuccess, path)
}

func (h *Handlers) onPrint(ctx context.Context, client string, a args) {
	_, err := h.booth.Print(ctx, booth.PrintRequest{
		Layout:     a.str(0),
		Images:     a.strs(1),
		PrintCount: a.num(2),
		Password:   a.str(3),
	})
	if err != nil {
		if reason := apperrors.Reason(err); reason != "" {
			h.hub.SendTo(client, booth.EventPrintError, reason)
		} else {
			h.hub.SendTo(client, booth.EventPrintError)
		}
		return
	}
	h.hub.SendTo(client, booth.EventPrintSuccess)
}

func (h *Handlers) onLatestPhotos(ctx context.Context, client string, a args) {
	photos, err := h.booth.LatestPhotos()
	if err != nil {
		debug.Error("get latest photos", err)
		return
	}
	if len(photos) == 0 {
		debug.Verbose("no files to send")
		return
	}
	h.hub.SendTo(client, booth.EventNewPhotos, photos)
}

func (h *Handlers) onAuthenticate(ctx context.Context, client string, a args) {
	h.hub.SendTo(client, booth.EventAuthenticated, h.booth.Authenticate(a.str(0)))
}

func (h *Handlers) onContactAddress(ctx context.Context, client string, a args) {
	if err := h.booth.SaveContact(a.str(0)); err != nil {
		debug.Error("writing contact address failed", err)
	}
}

// Photo serves GET /photos/*path, including rendered collages under tmp/.
func (h *Handlers) Photo(c *gin.Context) {
	local, err := h.photos.WebToLocal("photos" + c.Param("path"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	serveFile(c, local)
}

// Layout serves GET /layouts/:name, the empty preview of a layout.
func (h *Handlers) Layout(c *gin.Context) {
	local, err := h.booth.PlaceholderImage(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": apperrors.UserMessage(err)})
		return
	}
	serveFile(c, local)
}

// Healthcheck handles GET /healthcheck.
func (h *Handlers) Healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.hub.ClientCount()})
}

func serveFile(c *gin.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(path)
}

// args decodes positional event arguments leniently: a missing or
// mistyped argument reads as the zero value.
type args []json.RawMessage

func (a args) str(i int) string {
	var s string
	if i < len(a) {
		_ = json.Unmarshal(a[i], &s)
	}
	return s
}

func (a args) strs(i int) []string {
	var s []string
	if i < len(a) {
		_ = json.Unmarshal(a[i], &s)
	}
	return s
}

// num accepts a JSON number or a numeric string; clients send either.
func (a args) num(i int) int {
	if i >= len(a) {
		return 0
	}
	var n int
	if err := json.Unmarshal(a[i], &n); err == nil {
		return n
	}
	if n, err := strconv.Atoi(a.str(i)); err == nil {
		return n
	}
	return 0
}
