package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"dashtrack/internal/overlay"
)

// maxParseBody bounds POST /api/parse; a caption line is well under 1 KiB.
const maxParseBody = 64 << 10

type ParseRequest struct {
	Text string `json:"text"`
}

type ParseErrorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
	Text  string `json:"text,omitempty"`
}

// Options carries the optional pieces of the server. A nil Parser uses the
// package default; a nil Metrics leaves /metrics unregistered.
type Options struct {
	Logs    *LogBuffer
	Parser  *overlay.Parser
	Metrics http.Handler
}

func Handler(status *Status, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/parse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		text, err := readParseText(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var frame overlay.Frame
		if opts.Parser != nil {
			frame, err = opts.Parser.ParseFrame(text)
		} else {
			frame, err = overlay.ParseFrame(text)
		}
		if err != nil {
			resp := ParseErrorResponse{Kind: string(overlay.KindOf(err)), Error: err.Error()}
			var pe *overlay.ParseError
			if errors.As(err, &pe) {
				resp.Error = pe.Msg
				resp.Text = pe.Text
			}
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		writeJSON(w, http.StatusOK, frame)
	})

	if opts.Logs != nil {
		mux.Handle("/api/logs", opts.Logs.Handler())
	}
	mux.Handle("/api/about", AboutHandler())
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><meta http-equiv=\"refresh\" content=\"5\"><title>dashtrack</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>dashtrack</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a>, <a href=\"/api/logs?format=text\">/api/logs</a> and <a href=\"/metrics\">/metrics</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>videos_dir=%s\ncurrent_video=%s\npending_frames=%d\nvideos_finished=%d\nframes_parsed=%d\nframes_failed=%d</pre>",
			html.EscapeString(snap.VideosDir), html.EscapeString(snap.CurrentVideo), snap.PendingFrames,
			snap.VideosFinished, snap.FramesParsed, snap.FramesFailed,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

// readParseText accepts {"text": "..."} or a plain-text body.
func readParseText(r *http.Request) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxParseBody+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxParseBody {
		return "", errors.New("body too large")
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req ParseRequest
		if err := json.Unmarshal(b, &req); err != nil {
			return "", fmt.Errorf("invalid json: %w", err)
		}
		return req.Text, nil
	}
	return string(b), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, status *Status, opts Options) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
