package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"dashtrack/internal/ocr"
	"dashtrack/internal/overlay"
)

type AboutResponse struct {
	Service      string `json:"service"`
	NowUTC       string `json:"now_utc"`
	GoVersion    string `json:"go_version"`
	OCRCompiled  bool   `json:"ocr_compiled"`
	TimestampFmt string `json:"timestamp_format"`
	Version      string `json:"version,omitempty"`
	Commit       string `json:"commit,omitempty"`
	Dirty        bool   `json:"dirty,omitempty"`
}

func about(now time.Time) AboutResponse {
	resp := AboutResponse{
		Service:      "dashtrack",
		NowUTC:       now.UTC().Format(time.RFC3339Nano),
		GoVersion:    runtime.Version(),
		OCRCompiled:  ocr.Available,
		TimestampFmt: overlay.TimestampLayout,
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		resp.Version = bi.Main.Version
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				resp.Commit = s.Value
			case "vcs.modified":
				resp.Dirty = s.Value == "true"
			}
		}
	}
	return resp
}

func AboutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, about(time.Now()))
	})
}
