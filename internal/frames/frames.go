package frames

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Pattern is the ffmpeg output name for sampled frames.
const Pattern = "frame_%04d.png"

// Extractor samples frames from a video with ffmpeg, cropping them to the
// overlay strip:
//
//	ffmpeg -i <video> -r <rate> -filter:v crop=<crop> <dir>/frame_%04d.png
type Extractor struct {
	Path string
	Rate float64
	Crop string

	// StderrTailLines is how much ffmpeg output is kept for error reports.
	// If 0, defaults to 20.
	StderrTailLines int
}

func (e Extractor) Args(video string, outDir string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-r", strconv.FormatFloat(e.Rate, 'f', -1, 64),
		"-filter:v", "crop=" + e.Crop,
		filepath.Join(outDir, Pattern),
	}
}

// Extract writes the sampled frames of video into outDir, creating it.
func (e Extractor) Extract(ctx context.Context, video string, outDir string) error {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		return fmt.Errorf("ffmpeg path is empty")
	}
	if e.Rate <= 0 {
		return fmt.Errorf("frame rate must be > 0")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("frames dir: %w", err)
	}

	tailLines := e.StderrTailLines
	if tailLines <= 0 {
		tailLines = 20
	}
	stderr := newTailBuffer(tailLines, 0)

	cmd := exec.CommandContext(ctx, path, e.Args(video, outDir)...)
	pipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	stderr.readFrom(pipe)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("command (%s %s) exited with code %d: %s",
				path, strings.Join(e.Args(video, outDir), " "), exitErr.ExitCode(), stderr.String())
		}
		return fmt.Errorf("%s: %w", path, waitErr)
	}
	return nil
}

// List returns the regular, non-hidden files in dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes the files List would return. A missing dir is not an error.
func Clear(dir string) error {
	names, err := List(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, n := range names {
		if err := os.Remove(filepath.Join(dir, n)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
