package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/photobooth/internal/config"
	apperrors "github.com/cjeanneret/photobooth/internal/errors"
	"github.com/cjeanneret/photobooth/internal/hw/printer"
	"github.com/cjeanneret/photobooth/internal/logic/booth"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBooth records calls and returns canned results.
type fakeBooth struct {
	mu sync.Mutex

	triggerErr  error
	previewPath string
	previewErr  error
	printErr    error
	latest      []string
	placeholder string
	settings    booth.Settings
	panics      bool // collage work panics

	printReqs []booth.PrintRequest
	contacts  []string
}

func (f *fakeBooth) TriggerPhoto(ctx context.Context, password string) (capture.SavedPhoto, error) {
	return capture.SavedPhoto{WebPath: "photos/img_1.jpg"}, f.triggerErr
}

func (f *fakeBooth) PreviewCollage(ctx context.Context, layout string, webPaths []string) (string, error) {
	if f.panics {
		panic("runtime error: integer divide by zero")
	}
	return f.previewPath, f.previewErr
}

func (f *fakeBooth) Print(ctx context.Context, req booth.PrintRequest) (*printer.JobInfo, error) {
	if f.panics {
		panic("runtime error: integer divide by zero")
	}
	f.mu.Lock()
	f.printReqs = append(f.printReqs, req)
	f.mu.Unlock()
	return &printer.JobInfo{ID: "1"}, f.printErr
}

func (f *fakeBooth) PlaceholderImage(ctx context.Context, layout string) (string, error) {
	if f.placeholder == "" {
		return "", apperrors.New(apperrors.CollageCompositionFailure, "layout", "unknown layout")
	}
	return f.placeholder, nil
}

func (f *fakeBooth) LatestPhotos() ([]string, error) { return f.latest, nil }

func (f *fakeBooth) Authenticate(password string) bool { return password == "secret" }

func (f *fakeBooth) SaveContact(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, address)
	return nil
}

func (f *fakeBooth) ClientSettings() booth.Settings { return f.settings }

// sseClient reads messages from a live /events stream.
type sseClient struct {
	id   string
	msgs chan Message
}

func connect(t *testing.T, base string) *sseClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	c := &sseClient{msgs: make(chan Message, 16)}
	go func() {
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var m Message
			if json.Unmarshal([]byte(data), &m) == nil {
				c.msgs <- m
			}
		}
	}()

	first := c.next(t)
	if first.Event != "connected" || len(first.Args) != 1 {
		t.Fatalf("first message = %+v", first)
	}
	c.id = first.Args[0].(string)
	return c
}

func (c *sseClient) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-c.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for SSE message")
	}
	return Message{}
}

func post(t *testing.T, base, client, body string) int {
	t.Helper()
	resp, err := http.Post(base+"/events/"+client, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func newTestServer(t *testing.T, b *fakeBooth, photosDir string) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	s := NewServer(":0", hub, b, photo.NewStore(photosDir))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, hub
}

// ---------- SSE + events ----------

func TestEvents_ConnectSendsSettings(t *testing.T) {
	b := &fakeBooth{settings: booth.Settings{
		Grayscale:     true,
		RemoteRelease: true,
		Slideshow:     config.SlideshowConfig{Enabled: true, ActivatesAfterSeconds: 30, SecondsPerPhoto: 8},
	}}
	ts, _ := newTestServer(t, b, t.TempDir())

	c := connect(t, ts.URL)
	want := []string{booth.EventUseGrayscale, booth.EventEnableRemoteRelease, booth.EventSlideshow}
	for _, w := range want {
		if m := c.next(t); m.Event != w {
			t.Errorf("event = %q, want %q", m.Event, w)
		}
	}
}

func TestPostEvent_TriggerPhoto(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, booth.EventTriggerPhotoSuccess},
		{"failure", apperrors.New(apperrors.DeviceConnectionFailure, "capture", "usb"), booth.EventTriggerPhotoError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, _ := newTestServer(t, &fakeBooth{triggerErr: tc.err}, t.TempDir())
			c := connect(t, ts.URL)

			if code := post(t, ts.URL, c.id, `{"event":"trigger_photo","args":["secret"]}`); code != http.StatusAccepted {
				t.Fatalf("status = %d", code)
			}
			if m := c.next(t); m.Event != tc.want {
				t.Errorf("event = %q, want %q", m.Event, tc.want)
			}
		})
	}
}

func TestPostEvent_PrintQuotaReason(t *testing.T) {
	b := &fakeBooth{printErr: apperrors.New(apperrors.QuotaExceeded, "print", "limit")}
	ts, _ := newTestServer(t, b, t.TempDir())
	c := connect(t, ts.URL)

	post(t, ts.URL, c.id, `{"event":"print","args":["quad",["photos/img_1.jpg"],"5",null]}`)
	m := c.next(t)
	if m.Event != booth.EventPrintError || len(m.Args) != 1 || m.Args[0] != "print_limit_exceeded" {
		t.Errorf("message = %+v", m)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if req := b.printReqs[0]; req.PrintCount != 5 || req.Layout != "quad" || len(req.Images) != 1 {
		t.Errorf("request = %+v", req)
	}
}

func TestPostEvent_PrintFailureHasNoReason(t *testing.T) {
	b := &fakeBooth{printErr: apperrors.New(apperrors.PrintJobQueryFailure, "job", "lpstat")}
	ts, _ := newTestServer(t, b, t.TempDir())
	c := connect(t, ts.URL)

	post(t, ts.URL, c.id, `{"event":"print","args":["quad",["photos/img_1.jpg"],2,""]}`)
	if m := c.next(t); m.Event != booth.EventPrintError || len(m.Args) != 0 {
		t.Errorf("message = %+v", m)
	}
}

func TestPostEvent_PrintSuccessOnlyToRequester(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBooth{}, t.TempDir())
	requester := connect(t, ts.URL)
	other := connect(t, ts.URL)

	post(t, ts.URL, requester.id, `{"event":"print","args":["quad",["photos/img_1.jpg"],0]}`)
	if m := requester.next(t); m.Event != booth.EventPrintSuccess {
		t.Errorf("event = %q", m.Event)
	}
	select {
	case m := <-other.msgs:
		t.Errorf("bystander received %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPostEvent_PreviewLatestAuthenticateContact(t *testing.T) {
	b := &fakeBooth{previewPath: "photos/tmp/preview.jpg", latest: []string{"photos/img_2.jpg", "photos/img_1.jpg"}}
	ts, _ := newTestServer(t, b, t.TempDir())
	c := connect(t, ts.URL)

	post(t, ts.URL, c.id, `{"event":"print_preview","args":["quad",["photos/img_1.jpg"]]}`)
	if m := c.next(t); m.Event != booth.EventPrintPreviewSuccess || m.Args[0] != "photos/tmp/preview.jpg" {
		t.Errorf("preview = %+v", m)
	}

	post(t, ts.URL, c.id, `{"event":"get latest photos"}`)
	if m := c.next(t); m.Event != booth.EventNewPhotos || len(m.Args[0].([]any)) != 2 {
		t.Errorf("latest = %+v", m)
	}

	post(t, ts.URL, c.id, `{"event":"authenticate","args":["secret"]}`)
	if m := c.next(t); m.Event != booth.EventAuthenticated || m.Args[0] != true {
		t.Errorf("authenticate = %+v", m)
	}

	post(t, ts.URL, c.id, `{"event":"contact address","args":["ann@example.org"]}`)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		n := len(b.contacts)
		b.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("contact address not saved")
}

func TestPostEvent_PreviewError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBooth{previewErr: errors.New("boom")}, t.TempDir())
	c := connect(t, ts.URL)

	post(t, ts.URL, c.id, `{"event":"print_preview","args":["quad",[]]}`)
	if m := c.next(t); m.Event != booth.EventPrintPreviewError {
		t.Errorf("event = %q", m.Event)
	}
}

func TestPostEvent_PanicBecomesErrorReply(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBooth{panics: true}, t.TempDir())
	c := connect(t, ts.URL)

	post(t, ts.URL, c.id, `{"event":"print_preview","args":["quad",["photos/img_1.jpg"]]}`)
	if m := c.next(t); m.Event != booth.EventPrintPreviewError {
		t.Errorf("preview reply = %+v", m)
	}
	post(t, ts.URL, c.id, `{"event":"print","args":["quad",["photos/img_1.jpg"],0]}`)
	if m := c.next(t); m.Event != booth.EventPrintError {
		t.Errorf("print reply = %+v", m)
	}

	// The server keeps answering after a handler panicked.
	post(t, ts.URL, c.id, `{"event":"authenticate","args":["secret"]}`)
	if m := c.next(t); m.Event != booth.EventAuthenticated {
		t.Errorf("authenticate reply = %+v", m)
	}
}

func TestPostEvent_Rejections(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBooth{}, t.TempDir())
	c := connect(t, ts.URL)

	cases := []struct {
		name   string
		client string
		body   string
		want   int
	}{
		{"unknown client", "not-a-client", `{"event":"authenticate"}`, http.StatusNotFound},
		{"invalid json", c.id, `{`, http.StatusBadRequest},
		{"missing event", c.id, `{"args":[]}`, http.StatusBadRequest},
		{"unknown event", c.id, `{"event":"set_config"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := post(t, ts.URL, tc.client, tc.body); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, got, tc.want)
		}
	}
}

// ---------- files ----------

func TestPhoto_ServesFilesUnderPhotosDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "img_1.jpg"), []byte("jpeg"), 0o644)
	os.WriteFile(filepath.Join(dir, "tmp", "collage.jpg"), []byte("collage"), 0o644)
	ts, _ := newTestServer(t, &fakeBooth{}, dir)

	cases := []struct {
		path string
		code int
		body string
	}{
		{"/photos/img_1.jpg", http.StatusOK, "jpeg"},
		{"/photos/tmp/collage.jpg", http.StatusOK, "collage"},
		{"/photos/missing.jpg", http.StatusNotFound, ""},
		{"/photos/tmp", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		resp.Body.Close()
		if resp.StatusCode != tc.code {
			t.Errorf("%s: status = %d, want %d", tc.path, resp.StatusCode, tc.code)
		}
		if tc.body != "" && string(buf[:n]) != tc.body {
			t.Errorf("%s: body = %q", tc.path, buf[:n])
		}
	}
}

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	placeholder := filepath.Join(dir, "layout_quad.jpg")
	os.WriteFile(placeholder, []byte("grey"), 0o644)

	ts, _ := newTestServer(t, &fakeBooth{placeholder: placeholder}, dir)
	resp, err := http.Get(ts.URL + "/layouts/quad")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ts2, _ := newTestServer(t, &fakeBooth{}, dir)
	resp, err = http.Get(ts2.URL + "/layouts/unknown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown layout status = %d", resp.StatusCode)
	}
}

func TestHealthcheck(t *testing.T) {
	h := NewHandlers(NewHub(), &fakeBooth{}, photo.NewStore(t.TempDir()))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthcheck", nil)

	h.Healthcheck(c)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

// ---------- args ----------

func TestArgs(t *testing.T) {
	var a args
	if err := json.Unmarshal([]byte(`["quad",["a","b"],"3",4,null,{"x":1}]`), &a); err != nil {
		t.Fatal(err)
	}
	if a.str(0) != "quad" || len(a.strs(1)) != 2 {
		t.Error("str/strs")
	}
	if a.num(2) != 3 || a.num(3) != 4 || a.num(4) != 0 || a.num(5) != 0 || a.num(9) != 0 {
		t.Error("num")
	}
	if a.str(9) != "" || a.strs(9) != nil || a.str(1) != "" {
		t.Error("missing or mistyped arguments must read as zero values")
	}
}

// ---------- Run ----------

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewHub(), &fakeBooth{}, photo.NewStore(t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
