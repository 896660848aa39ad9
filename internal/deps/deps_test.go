package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"beatshop/internal/config"
)

func TestCheckMarksFFmpegOptional(t *testing.T) {
	binDir := t.TempDir()
	stub := writeStub(t, binDir, `echo libmp3lame`)
	cfg := config.Default()
	cfg.Preview.FFmpegBinary = stub

	statuses := Check(context.Background(), &cfg)
	if len(statuses) != 1 {
		t.Fatalf("expected one status, got %#v", statuses)
	}
	if !statuses[0].Optional || !statuses[0].Available || statuses[0].Command != stub {
		t.Fatalf("unexpected status %#v", statuses[0])
	}
}

func writeStub(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return path
}

func TestCheckFFmpegWithEncoder(t *testing.T) {
	stub := writeStub(t, t.TempDir(), `echo " A..... libmp3lame           libmp3lame MP3 (MPEG audio layer 3)"`)
	status := CheckFFmpeg(context.Background(), stub)
	if !status.Available {
		t.Fatalf("expected ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Command != stub {
		t.Fatalf("expected command %q, got %q", stub, status.Command)
	}
}

func TestCheckFFmpegWithoutEncoder(t *testing.T) {
	stub := writeStub(t, t.TempDir(), `echo " A..... aac AAC"`)
	status := CheckFFmpeg(context.Background(), stub)
	if status.Available {
		t.Fatal("expected ffmpeg without libmp3lame to be unavailable")
	}
	if status.Detail != "ffmpeg lacks the libmp3lame encoder" {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

func TestCheckFFmpegPathLookup(t *testing.T) {
	binDir := t.TempDir()
	stub := writeStub(t, binDir, `echo libmp3lame`)
	t.Setenv("PATH", binDir)

	status := CheckFFmpeg(context.Background(), "")
	if !status.Available || status.Command != stub {
		t.Fatalf("expected PATH lookup to find %q, got %#v", stub, status)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg(context.Background(), "ffmpeg")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}
