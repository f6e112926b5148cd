package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"dashtrack/internal/overlay"
	"dashtrack/internal/store"
)

type progressSummary struct {
	Videos         int
	Finished       int
	Extracted      int
	Parsed         int
	Failed         int
	FailuresByKind map[string]int
}

func summarizeProgress(progress map[string]store.VideoProgress) progressSummary {
	s := progressSummary{FailuresByKind: map[string]int{}}
	for _, v := range progress {
		s.Videos++
		if v.Finished {
			s.Finished++
		}
		if v.Frames {
			s.Extracted++
		}
		for _, msg := range v.Files {
			if msg == "" {
				s.Parsed++
				continue
			}
			s.Failed++
			s.FailuresByKind[failureKind(msg)]++
		}
	}
	return s
}

// failureKind classifies a stored "<err> -- <text>" report by the prefix the
// pipeline gave it.
func failureKind(msg string) string {
	prefix, _, ok := strings.Cut(msg, ":")
	if !ok {
		return "OTHER"
	}
	switch k := overlay.Kind(prefix); k {
	case overlay.KindInvalidLatLong, overlay.KindInvalidSpeed, overlay.KindInvalidTimestamp:
		return string(k)
	}
	switch prefix {
	case "ocr", "cleanup":
		return strings.ToUpper(prefix)
	}
	return "OTHER"
}

func printProgressSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	progress, err := store.ReadProgress(path)
	if err != nil {
		return err
	}
	s := summarizeProgress(progress)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "videos: %d\n", s.Videos)
	fmt.Fprintf(w, "videos_finished: %d\n", s.Finished)
	fmt.Fprintf(w, "videos_extracted: %d\n", s.Extracted)
	fmt.Fprintf(w, "frames_parsed: %d\n", s.Parsed)
	fmt.Fprintf(w, "frames_failed: %d\n", s.Failed)

	kinds := make([]string, 0, len(s.FailuresByKind))
	for k := range s.FailuresByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "failures_by_kind:\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, s.FailuresByKind[k])
	}
	return nil
}
