package preview_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"beatshop/internal/preview"
	"beatshop/internal/services"
	"beatshop/internal/testsupport"
)

// fakeRunner decodes to a fixed number of PCM frames and "encodes" by
// prefixing the PCM length, so clip length is observable in the output.
type fakeRunner struct {
	mu        sync.Mutex
	frames    int
	extra     int
	decodeErr error
	encodeErr error
	calls     [][]string
	encoded   []byte
}

func (f *fakeRunner) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{binary}, args...))
	if contains(args, "libmp3lame") {
		if f.encodeErr != nil {
			return nil, f.encodeErr
		}
		f.encoded = stdin
		return []byte(fmt.Sprintf("MP3:%d", len(stdin))), nil
	}
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return make([]byte, f.frames*4+f.extra), nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func newExtractor(runner preview.Runner) *preview.Extractor {
	return preview.New(preview.Options{
		Defaults:           preview.Params{DurationSeconds: 30, SampleRate: 100, Channels: 2, Bitrate: "128k"},
		MaxDurationSeconds: 120,
		Runner:             runner,
	})
}

func TestExtractShortSourceReturnedWhole(t *testing.T) {
	runner := &fakeRunner{frames: 500, extra: 3}
	clip, err := newExtractor(runner).Extract(context.Background(), []byte("src"), 30)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if clip.Truncated {
		t.Fatal("expected short source not to be truncated")
	}
	if clip.Duration != 5*time.Second || clip.SourceDuration != 5*time.Second {
		t.Fatalf("unexpected durations: clip=%s source=%s", clip.Duration, clip.SourceDuration)
	}
	if len(runner.encoded) != 500*4 {
		t.Fatalf("expected partial frame trimmed, encoder got %d bytes", len(runner.encoded))
	}
	if clip.ContentType != preview.ContentType {
		t.Fatalf("content type = %q", clip.ContentType)
	}
}

func TestExtractLongSourceTruncated(t *testing.T) {
	runner := &fakeRunner{frames: 10000}
	clip, err := newExtractor(runner).Extract(context.Background(), []byte("src"), 30)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !clip.Truncated {
		t.Fatal("expected truncation")
	}
	if clip.Duration != 30*time.Second {
		t.Fatalf("clip duration = %s, want 30s", clip.Duration)
	}
	if clip.SourceDuration != 100*time.Second {
		t.Fatalf("source duration = %s", clip.SourceDuration)
	}
	if len(runner.encoded) != 30*100*4 {
		t.Fatalf("encoder got %d bytes", len(runner.encoded))
	}
	got, _ := bytesOf(clip)
	if got != "MP3:12000" {
		t.Fatalf("clip reader = %q", got)
	}
}

func bytesOf(clip preview.Clip) (string, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(clip.Reader())
	return buf.String(), err
}

func TestExtractDefaultDuration(t *testing.T) {
	runner := &fakeRunner{frames: 10000}
	clip, err := newExtractor(runner).Extract(context.Background(), []byte("src"), 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if clip.Params.DurationSeconds != 30 {
		t.Fatalf("expected default duration, got %d", clip.Params.DurationSeconds)
	}
}

func TestExtractRejectsBadDuration(t *testing.T) {
	ext := newExtractor(&fakeRunner{frames: 10})
	for _, d := range []int{-1, 121} {
		_, err := ext.Extract(context.Background(), []byte("src"), d)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("duration %d: expected validation error, got %v", d, err)
		}
	}
}

func TestExtractErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		extractor *preview.Extractor
		payload   []byte
		want      error
		status    int
	}{
		{name: "empty payload", runner: &fakeRunner{frames: 10}, payload: nil, want: services.ErrUnsupportedAudio},
		{name: "decode failure", runner: &fakeRunner{decodeErr: errors.New("invalid data")}, payload: []byte("x"), want: services.ErrUnsupportedAudio},
		{name: "zero samples", runner: &fakeRunner{frames: 0, extra: 3}, payload: []byte("x"), want: services.ErrUnsupportedAudio},
		{name: "encode failure", runner: &fakeRunner{frames: 10, encodeErr: errors.New("no lame")}, payload: []byte("x"), want: services.ErrExternalTool},
		{
			name:      "missing ffmpeg binary",
			extractor: preview.New(preview.Options{FFmpegBinary: "/nonexistent/ffmpeg"}),
			payload:   []byte("x"),
			want:      services.ErrExternalTool,
			status:    500,
		},
		{name: "not started", runner: &fakeRunner{decodeErr: fmt.Errorf("ffmpeg: %w", preview.ErrNotStarted)}, payload: []byte("x"), want: services.ErrExternalTool, status: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := tt.extractor
			if ex == nil {
				ex = newExtractor(tt.runner)
			}
			_, err := ex.Extract(context.Background(), tt.payload, 10)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.want == services.ErrExternalTool && errors.Is(err, services.ErrUnsupportedAudio) {
				t.Fatalf("tool failure classified as unsupported audio: %v", err)
			}
			if tt.status != 0 && services.HTTPStatus(err) != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, services.HTTPStatus(err))
			}
		})
	}
}

func TestExtractTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{decodeErr: context.Canceled}
	_, err := newExtractor(runner).Extract(ctx, []byte("x"), 10)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestEncodeArgsStripMetadata(t *testing.T) {
	runner := &fakeRunner{frames: 10}
	if _, err := newExtractor(runner).Extract(context.Background(), []byte("x"), 10); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected two ffmpeg runs, got %d", len(runner.calls))
	}
	encode := strings.Join(runner.calls[1], " ")
	for _, want := range []string{"-map_metadata -1", "+bitexact", "-b:a 128k", "-ar 100", "-ac 2"} {
		if !strings.Contains(encode, want) {
			t.Fatalf("encode args missing %q: %s", want, encode)
		}
	}
}

func TestExtractWithFFmpeg(t *testing.T) {
	bin := testsupport.RequireFFmpeg(t)
	ext := preview.New(preview.Options{FFmpegBinary: bin, MaxDurationSeconds: 60, Timeout: 30 * time.Second})
	ctx := context.Background()

	short := testsupport.WAV(1.5, 44100, 2)
	clip, err := ext.Extract(ctx, short, 3)
	if err != nil {
		t.Fatalf("Extract short: %v", err)
	}
	if clip.Truncated || clip.Duration != 1500*time.Millisecond {
		t.Fatalf("short source: truncated=%v duration=%s", clip.Truncated, clip.Duration)
	}

	long := testsupport.WAV(4, 44100, 2)
	first, err := ext.Extract(ctx, long, 2)
	if err != nil {
		t.Fatalf("Extract long: %v", err)
	}
	if !first.Truncated || first.Duration != 2*time.Second {
		t.Fatalf("long source: truncated=%v duration=%s", first.Truncated, first.Duration)
	}
	second, err := ext.Extract(ctx, long, 2)
	if err != nil {
		t.Fatalf("Extract again: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("expected identical output for identical input")
	}

	if _, err := ext.Extract(ctx, []byte("definitely not audio"), 2); !errors.Is(err, services.ErrUnsupportedAudio) {
		t.Fatalf("expected unsupported audio, got %v", err)
	}
}
