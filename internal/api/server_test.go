package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"beatshop/internal/api"
	"beatshop/internal/catalog"
	"beatshop/internal/config"
	"beatshop/internal/ingest"
	"beatshop/internal/notifications"
	"beatshop/internal/preview"
	"beatshop/internal/services"
	"beatshop/internal/storage"
	"beatshop/internal/storage/memory"
	"beatshop/internal/testsupport"
)

type fakePreviewer struct {
	err error
}

func (f fakePreviewer) Extract(_ context.Context, payload []byte, durationSec int) (preview.Clip, error) {
	if f.err != nil {
		return preview.Clip{}, f.err
	}
	if durationSec < 0 || durationSec > 60 {
		return preview.Clip{}, services.Wrap(services.ErrValidation, "preview", "extract", "bad duration", nil)
	}
	return preview.Clip{Data: append([]byte("ID3-free:"), payload[:1]...), ContentType: preview.ContentType}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	server   *httptest.Server
	backend  storage.Backend
	notifier *recordingNotifier
	cfg      *config.Config
}

func newFixture(t *testing.T, backend storage.Backend, previewer catalog.Previewer) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMaxUploadMB(1))
	set, err := catalog.NewSet(cfg.Catalog.Categories)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if backend == nil {
		backend = memory.New()
	}
	if previewer == nil {
		previewer = fakePreviewer{}
	}
	notifier := &recordingNotifier{}
	srv := api.NewServer(api.Options{
		Config:   cfg,
		Catalog:  catalog.NewService(set, backend, previewer, nil),
		Ingest:   ingest.NewFromConfig(cfg, set, backend, notifier, nil),
		Backend:  backend,
		Notifier: notifier,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &fixture{server: ts, backend: backend, notifier: notifier, cfg: cfg}
}

func (f *fixture) upload(t *testing.T, category, filename, code string, payload []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if code != "" {
		if err := mw.WriteField("code", code); err != nil {
			t.Fatalf("write code: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/categories/"+category+"/beats", &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestUploadListDownloadPreview(t *testing.T) {
	f := newFixture(t, nil, nil)
	payload := testsupport.Payload(512 * 1024)

	resp := f.upload(t, "afro", "demo.mp3", testsupport.TestSecretCode, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	if resp.Header.Get(api.RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
	created := decode[api.UploadResponse](t, resp)
	if created.Reason != "ok" || created.Beat.Name != "demo.mp3" || created.Beat.SizeBytes != int64(len(payload)) {
		t.Fatalf("unexpected upload response: %+v", created)
	}
	if f.notifier.count(notifications.EventBeatUploaded) != 1 {
		t.Fatal("expected an upload notification")
	}

	list := decode[api.BeatListResponse](t, f.get(t, "/api/categories/afro/beats"))
	if len(list.Beats) != 1 || list.Beats[0].Name != "demo.mp3" {
		t.Fatalf("unexpected listing: %+v", list)
	}
	if list.Beats[0].PreviewURL != "/api/categories/afro/beats/demo.mp3/preview" {
		t.Fatalf("unexpected preview url %q", list.Beats[0].PreviewURL)
	}

	dl := f.get(t, "/api/categories/afro/beats/demo.mp3")
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dl.StatusCode)
	}
	if got := dl.Header.Get("Content-Disposition"); !strings.Contains(got, `attachment; filename=demo.mp3`) {
		t.Fatalf("unexpected disposition %q", got)
	}
	got, _ := io.ReadAll(dl.Body)
	if !bytes.Equal(got, payload) {
		t.Fatal("downloaded bytes differ")
	}

	pv := f.get(t, "/api/categories/afro/beats/demo.mp3/preview?duration=10")
	if pv.StatusCode != http.StatusOK || pv.Header.Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("preview status=%d type=%q", pv.StatusCode, pv.Header.Get("Content-Type"))
	}

	cats := decode[api.CategoryListResponse](t, f.get(t, "/api/categories"))
	if len(cats.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %+v", cats)
	}
}

func TestUploadStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		category string
		filename string
		code     string
		size     int64
		status   int
		reason   string
	}{
		{"wrong code", "afro", "demo.mp3", "nope", 10, http.StatusForbidden, "bad_code"},
		{"missing code", "afro", "demo.mp3", "", 10, http.StatusForbidden, "bad_code"},
		{"bad extension", "afro", "demo.exe", testsupport.TestSecretCode, 10, http.StatusBadRequest, "bad_extension"},
		{"unknown category", "jazz", "demo.mp3", testsupport.TestSecretCode, 10, http.StatusBadRequest, "bad_category"},
		{"too large", "afro", "demo.mp3", testsupport.TestSecretCode, 1024*1024 + 1, http.StatusRequestEntityTooLarge, "too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := memory.New()
			f := newFixture(t, backend, nil)
			resp := f.upload(t, tt.category, tt.filename, tt.code, testsupport.Payload(tt.size))
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decode[api.ErrorResponse](t, resp)
			if body.Reason != tt.reason || body.Kind != "validation" {
				t.Fatalf("unexpected error body: %+v", body)
			}
			if body.RequestID == "" {
				t.Fatal("expected request id in error body")
			}
			if backend.Categories() != 0 {
				t.Fatal("rejected upload reached storage")
			}
		})
	}
}

func TestUploadDuplicateConflicts(t *testing.T) {
	f := newFixture(t, nil, nil)
	if resp := f.upload(t, "rap", "demo.wav", testsupport.TestSecretCode, []byte("one")); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first upload status = %d", resp.StatusCode)
	}
	resp := f.upload(t, "rap", "demo.wav", testsupport.TestSecretCode, []byte("two"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}
}

func TestNotFoundAndPreviewErrors(t *testing.T) {
	unsupported := services.Wrap(services.ErrUnsupportedAudio, "preview", "decode", "garbage", nil)
	f := newFixture(t, nil, fakePreviewer{err: unsupported})
	if resp := f.upload(t, "rnb", "junk.mp3", testsupport.TestSecretCode, []byte("junk")); resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	cases := map[string]int{
		"/api/categories/jazz/beats":                              http.StatusNotFound,
		"/api/categories/rnb/beats/missing.mp3":                   http.StatusNotFound,
		"/api/categories/rnb/beats/junk.mp3/preview":              http.StatusUnprocessableEntity,
		"/api/categories/rnb/beats/junk.mp3/preview?duration=abc": http.StatusBadRequest,
		"/api/categories/rnb/beats/junk.mp3/preview?duration=0":   http.StatusBadRequest,
	}
	for path, want := range cases {
		if resp := f.get(t, path); resp.StatusCode != want {
			t.Fatalf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

type failingBackend struct{ *memory.Backend }

func (failingBackend) List(context.Context, string) ([]storage.AssetRef, error) {
	return nil, services.Wrap(services.ErrUnavailable, "storage-test", "list", "offline", errors.New("503"))
}

func TestUnavailableBackendNotifiesOperator(t *testing.T) {
	f := newFixture(t, failingBackend{memory.New()}, nil)
	resp := f.get(t, "/api/categories/rap/beats")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if f.notifier.count(notifications.EventError) != 1 {
		t.Fatal("expected an error notification")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t, nil, nil)
	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	req.Header.Set(api.RequestIDHeader, "storefront-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(api.RequestIDHeader); got != "storefront-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)
	status := decode[api.StatusResponse](t, f.get(t, "/api/status"))
	if status.StorageBackend != "memory" {
		t.Fatalf("storage backend = %q", status.StorageBackend)
	}
	if len(status.Dependencies) != 1 || status.Dependencies[0].Name != "FFmpeg" {
		t.Fatalf("unexpected dependencies: %+v", status.Dependencies)
	}
	if len(status.Categories) != 3 || len(status.Checks) == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
