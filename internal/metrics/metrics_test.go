package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dashtrack/internal/overlay"
)

func TestObserveFailure_ByKind(t *testing.T) {
	m := New()
	_, err := overlay.ParseSpeed("nothing")
	m.ObserveFailure(err, KindOCR)
	m.ObserveFailure(errors.New("tesseract crashed"), KindOCR)
	m.ObserveFailure(errors.New("tesseract crashed"), KindOCR)

	if got := testutil.ToFloat64(m.FrameFailures.WithLabelValues(string(overlay.KindInvalidSpeed))); got != 1 {
		t.Fatalf("INVALID_SPEED=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.FrameFailures.WithLabelValues(KindOCR)); got != 2 {
		t.Fatalf("OCR=%v want 2", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	m := New()
	m.FramesParsed.Add(3)
	m.ObserveOCR(120 * time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "dashtrack_frames_parsed_total 3") {
		t.Fatalf("missing counter in:\n%s", body)
	}
	if !strings.Contains(string(body), "dashtrack_ocr_duration_seconds_count 1") {
		t.Fatalf("missing histogram in:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFailure(errors.New("x"), KindOCR)
	m.ObserveOCR(time.Second)
}
