// Package store checkpoints pipeline results so an interrupted run resumes
// where it stopped.
//
// Two JSON files are kept:
//
//	output.json    [ {date, coordinates, videoFileName}, ... ]
//	progress.json  { "<video>": { "frames": bool, "finished": bool,
//	                              "<frame file>": true | "<error> -- <ocr text>" } }
//
// Both are rewritten atomically after every change.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dashtrack/internal/overlay"
)

// Record is one parsed frame in output.json.
type Record struct {
	overlay.Frame
	VideoFileName string `json:"videoFileName"`
}

// VideoProgress tracks one source video.
type VideoProgress struct {
	// Frames is true once frames have been extracted for the video.
	Frames bool
	// Finished is true once every frame has been processed and removed.
	Finished bool
	// Files maps a frame file name to "" on success or the failure report.
	Files map[string]string
}

// Done reports whether file has been attempted, successfully or not.
func (v VideoProgress) Done(file string) bool {
	_, ok := v.Files[file]
	return ok
}

// Parsed reports whether file produced a record. Failed frames are retried
// on the next run.
func (v VideoProgress) Parsed(file string) bool {
	msg, ok := v.Files[file]
	return ok && msg == ""
}

func (v VideoProgress) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(v.Files)+2)
	for k, s := range v.Files {
		if s == "" {
			m[k] = true
			continue
		}
		m[k] = s
	}
	m["frames"] = v.Frames
	m["finished"] = v.Finished
	return json.Marshal(m)
}

func (v *VideoProgress) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := VideoProgress{Files: make(map[string]string, len(raw))}
	for k, msg := range raw {
		switch k {
		case "frames":
			if err := json.Unmarshal(msg, &out.Frames); err != nil {
				return fmt.Errorf("progress %q: %w", k, err)
			}
			continue
		case "finished":
			if err := json.Unmarshal(msg, &out.Finished); err != nil {
				return fmt.Errorf("progress %q: %w", k, err)
			}
			continue
		}
		var ok bool
		if err := json.Unmarshal(msg, &ok); err == nil {
			// Only true marks a completed frame.
			if ok {
				out.Files[k] = ""
			}
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return fmt.Errorf("progress %q: expected bool or string", k)
		}
		out.Files[k] = s
	}
	*v = out
	return nil
}

// Store is safe for concurrent use.
type Store struct {
	outputPath   string
	progressPath string

	mu       sync.Mutex
	output   []Record
	progress map[string]VideoProgress
}

// Open loads both files. Missing or unreadable files start empty, so a
// damaged checkpoint never blocks a run.
func Open(outputPath, progressPath string) (*Store, error) {
	if outputPath == "" || progressPath == "" {
		return nil, errors.New("store: output and progress paths are required")
	}
	s := &Store{
		outputPath:   outputPath,
		progressPath: progressPath,
		output:       []Record{},
		progress:     map[string]VideoProgress{},
	}

	if err := readJSON(outputPath, &s.output); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("store: output %s unreadable, starting empty: %v", outputPath, err)
		}
		s.output = []Record{}
		if err := writeJSONAtomic(outputPath, s.output); err != nil {
			return nil, err
		}
	}
	if err := readJSON(progressPath, &s.progress); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("store: progress %s unreadable, starting empty: %v", progressPath, err)
		}
		s.progress = map[string]VideoProgress{}
		if err := writeJSONAtomic(progressPath, s.progress); err != nil {
			return nil, err
		}
	}
	if s.progress == nil {
		s.progress = map[string]VideoProgress{}
	}
	return s, nil
}

// ReadProgress loads a progress file without opening a Store.
func ReadProgress(path string) (map[string]VideoProgress, error) {
	out := map[string]VideoProgress{}
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Progress returns a copy of the progress of video.
func (s *Store) Progress(video string) VideoProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProgress(s.progress[video])
}

// Videos returns the names of all videos with progress, sorted.
func (s *Store) Videos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.progress))
	for k := range s.progress {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Records returns a copy of output.json's contents.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.output...)
}

// MarkFramesExtracted records that frames exist on disk for video.
func (s *Store) MarkFramesExtracted(video string) error {
	return s.updateProgress(video, func(v *VideoProgress) { v.Frames = true })
}

// MarkFinished records that video is fully processed and its frames removed.
func (s *Store) MarkFinished(video string) error {
	return s.updateProgress(video, func(v *VideoProgress) {
		v.Frames = false
		v.Finished = true
	})
}

// AddRecord appends rec to the output and marks its frame done.
func (s *Store) AddRecord(file string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.output = append(s.output, rec)
	if err := writeJSONAtomic(s.outputPath, s.output); err != nil {
		s.output = s.output[:len(s.output)-1]
		return fmt.Errorf("write output: %w", err)
	}
	return s.updateProgressLocked(rec.VideoFileName, func(v *VideoProgress) { v.Files[file] = "" })
}

// AddFailure records why file of video could not be parsed, with the text
// OCR produced, for later review.
func (s *Store) AddFailure(video, file string, cause error, text string) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.updateProgress(video, func(v *VideoProgress) { v.Files[file] = msg + " -- " + text })
}

func (s *Store) updateProgress(video string, fn func(v *VideoProgress)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateProgressLocked(video, fn)
}

func (s *Store) updateProgressLocked(video string, fn func(v *VideoProgress)) error {
	prev, had := s.progress[video]
	v := cloneProgress(prev)
	fn(&v)
	s.progress[video] = v
	if err := writeJSONAtomic(s.progressPath, s.progress); err != nil {
		if had {
			s.progress[video] = prev
		} else {
			delete(s.progress, video)
		}
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

func cloneProgress(v VideoProgress) VideoProgress {
	files := make(map[string]string, len(v.Files))
	for k, s := range v.Files {
		files[k] = s
	}
	v.Files = files
	return v
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// writeJSONAtomic writes through a temp file in the same directory so a
// crash never leaves a truncated checkpoint.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
