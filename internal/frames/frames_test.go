package frames

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestExtractor_Args(t *testing.T) {
	e := Extractor{Path: "ffmpeg", Rate: 0.25, Crop: "1905:40:15:1020"}
	got := e.Args("video/2020_0731_184119_552.MOV", "frames")
	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "video/2020_0731_184119_552.MOV",
		"-r", "0.25",
		"-filter:v", "crop=1905:40:15:1020",
		filepath.Join("frames", "frame_%04d.png"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%q\nwant %q", got, want)
	}
}

func TestExtractor_Extract(t *testing.T) {
	// The last argument is the output pattern; emit two frames next to it.
	tool := writeFakeTool(t, `for last; do :; done
dir=$(dirname "$last")
touch "$dir/frame_0001.png" "$dir/frame_0002.png"
`)
	out := filepath.Join(t.TempDir(), "frames")
	e := Extractor{Path: tool, Rate: 0.25, Crop: "1905:40:15:1020"}
	if err := e.Extract(context.Background(), "in.MOV", out); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	names, err := List(out)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if want := []string{"frame_0001.png", "frame_0002.png"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("frames=%q want %q", names, want)
	}
}

func TestExtractor_ExtractReportsStderr(t *testing.T) {
	tool := writeFakeTool(t, "echo 'in.MOV: No such file or directory' >&2\nexit 1\n")
	e := Extractor{Path: tool, Rate: 1, Crop: "10:10:0:0"}
	err := e.Extract(context.Background(), "in.MOV", t.TempDir())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "exited with code 1") || !strings.Contains(err.Error(), "No such file or directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractor_Validation(t *testing.T) {
	if err := (Extractor{Rate: 1}).Extract(context.Background(), "in.MOV", t.TempDir()); err == nil {
		t.Fatalf("expected missing path error")
	}
	if err := (Extractor{Path: "ffmpeg"}).Extract(context.Background(), "in.MOV", t.TempDir()); err == nil {
		t.Fatalf("expected rate error")
	}
}

func TestListAndClear(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"frame_0002.png", "frame_0001.png", ".DS_Store"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir() error: %v", err)
	}

	names, err := List(dir)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if want := []string{"frame_0001.png", "frame_0002.png"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names=%q want %q", names, want)
	}

	if err := Clear(dir); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	names, _ = List(dir)
	if len(names) != 0 {
		t.Fatalf("expected empty dir, got %q", names)
	}
	if _, err := os.Stat(filepath.Join(dir, ".DS_Store")); err != nil {
		t.Fatalf("hidden file should be kept: %v", err)
	}
	if err := Clear(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("Clear(missing) error: %v", err)
	}
}

func TestTailBuffer_KeepsLastLines(t *testing.T) {
	tb := newTailBuffer(2, 4)
	tb.readFrom(strings.NewReader("first\nsecond\rthird-long\n"))
	if got := tb.String(); got != "seco\nthir" {
		t.Fatalf("tail=%q", got)
	}
}
