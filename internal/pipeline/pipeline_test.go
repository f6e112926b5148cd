package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashtrack/internal/metrics"
	"dashtrack/internal/ocr"
	"dashtrack/internal/overlay"
	"dashtrack/internal/store"
)

const (
	goodText = "2020/07/31 18:41:14 DOD LS475W 52KM/H N48°30°32.44” E34°59’ 9.63” 1S0:00050"
	badText  = "2020/07/31 18:41:16 DOD LS475W N48°30°32.44” E34°59’ 9.63”"
)

type fakeExtractor struct {
	mu     sync.Mutex
	calls  []string
	frames int
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, video string, outDir string) error {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(video))
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for i := 1; i <= f.frames; i++ {
		name := filepath.Join(outDir, fmt.Sprintf("frame_%04d.png", i))
		if err := os.WriteFile(name, []byte("png"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  map[string]int
	ok, bad  int
	finished []string
}

func (o *recordingObserver) VideoStarted(video string, pending int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started == nil {
		o.started = map[string]int{}
	}
	o.started[video] = pending
}

func (o *recordingObserver) FrameProcessed(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.bad++
		return
	}
	o.ok++
}

func (o *recordingObserver) VideoFinished(video string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, video)
}

// textByFrame answers OCR with texts[name], defaulting to goodText.
func textByFrame(texts map[string]string) ocr.Engine {
	return ocr.Func(func(_ context.Context, path string) (string, error) {
		if t, ok := texts[filepath.Base(path)]; ok {
			return t, nil
		}
		return goodText + "\n", nil
	})
}

type fixture struct {
	videos string
	frames string
	store  *store.Store
	parser *overlay.Parser
}

func newFixture(t *testing.T, videos ...string) fixture {
	t.Helper()
	root := t.TempDir()
	fx := fixture{
		videos: filepath.Join(root, "videos"),
		frames: filepath.Join(root, "frames"),
	}
	require.NoError(t, os.MkdirAll(fx.videos, 0o755))
	for _, v := range videos {
		require.NoError(t, os.WriteFile(filepath.Join(fx.videos, v), []byte("mov"), 0o644))
	}
	st, err := store.Open(filepath.Join(root, "output.json"), filepath.Join(root, "progress.json"))
	require.NoError(t, err)
	fx.store = st
	p, err := overlay.New(overlay.Config{TimeZone: "UTC"})
	require.NoError(t, err)
	fx.parser = p
	return fx
}

func (fx fixture) pipeline(t *testing.T, ex Extractor, eng ocr.Engine, extra func(*Deps)) *Pipeline {
	t.Helper()
	deps := Deps{Parser: fx.parser, Extractor: ex, Engine: eng, Store: fx.store}
	if extra != nil {
		extra(&deps)
	}
	p, err := New(Options{VideosDir: fx.videos, FramesDir: fx.frames, Workers: 3}, deps)
	require.NoError(t, err)
	return p
}

func TestVideos_SkipsHiddenAndDirs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.MOV", "a.MOV", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	got, err := Videos(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.MOV", "b.MOV"}, got)
}

func TestRun_ParsesAndCheckpoints(t *testing.T) {
	fx := newFixture(t, "2020_0731_184119_552.MOV")
	ex := &fakeExtractor{frames: 3}
	obs := &recordingObserver{}
	m := metrics.New()

	var mu sync.Mutex
	var emitted []store.Record
	sink := SinkFunc(func(rec store.Record) error {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, rec)
		return errors.New("sink down")
	})

	p := fx.pipeline(t, ex, textByFrame(map[string]string{"frame_0002.png": badText}), func(d *Deps) {
		d.Metrics = m
		d.Observer = obs
		d.Sinks = []Sink{sink}
	})
	require.NoError(t, p.Run(context.Background()))

	recs := fx.store.Records()
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "2020_0731_184119_552.MOV", r.VideoFileName)
		assert.Equal(t, "2020-07-31T18:41:14.000Z", r.Date.String())
		assert.Equal(t, overlay.Position{Latitude: 48.509011, Longitude: 34.986008, Speed: 52}, r.Coordinates)
	}
	assert.Len(t, emitted, 2)

	prog := fx.store.Progress("2020_0731_184119_552.MOV")
	assert.True(t, prog.Finished)
	assert.False(t, prog.Frames)
	assert.True(t, prog.Parsed("frame_0001.png"))
	assert.True(t, prog.Parsed("frame_0003.png"))
	assert.Equal(t, "INVALID_SPEED: Speed not found -- "+badText, prog.Files["frame_0002.png"])

	left, err := os.ReadDir(fx.frames)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.Equal(t, 3, obs.started["2020_0731_184119_552.MOV"])
	assert.Equal(t, 2, obs.ok)
	assert.Equal(t, 1, obs.bad)
	assert.Equal(t, []string{"2020_0731_184119_552.MOV"}, obs.finished)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesParsed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameFailures.WithLabelValues("INVALID_SPEED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VideosFinished))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WorkersBusy))
}

func TestRun_SkipsFinishedVideos(t *testing.T) {
	fx := newFixture(t, "a.MOV", "b.MOV")
	require.NoError(t, fx.store.MarkFinished("a.MOV"))

	ex := &fakeExtractor{frames: 1}
	p := fx.pipeline(t, ex, textByFrame(nil), nil)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"b.MOV"}, ex.calls)
	assert.True(t, fx.store.Progress("b.MOV").Finished)

	// A second run has nothing left to do.
	ex.calls = nil
	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, ex.calls)
	assert.Len(t, fx.store.Records(), 1)
}

func TestRun_ResumesExtractedFrames(t *testing.T) {
	fx := newFixture(t, "a.MOV")
	require.NoError(t, os.MkdirAll(fx.frames, 0o755))
	for _, n := range []string{"frame_0001.png", "frame_0002.png", ".keep"} {
		require.NoError(t, os.WriteFile(filepath.Join(fx.frames, n), []byte("png"), 0o644))
	}
	require.NoError(t, fx.store.MarkFramesExtracted("a.MOV"))
	require.NoError(t, fx.store.AddRecord("frame_0001.png", store.Record{VideoFileName: "a.MOV"}))
	require.NoError(t, fx.store.AddFailure("a.MOV", "frame_0002.png", errors.New("earlier"), "junk"))

	var mu sync.Mutex
	var seen []string
	eng := ocr.Func(func(_ context.Context, path string) (string, error) {
		mu.Lock()
		seen = append(seen, filepath.Base(path))
		mu.Unlock()
		return goodText, nil
	})
	ex := &fakeExtractor{frames: 5}
	p := fx.pipeline(t, ex, eng, nil)
	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, ex.calls, "extraction must not rerun")
	sort.Strings(seen)
	assert.Equal(t, []string{"frame_0002.png"}, seen, "parsed frames are not retried, failed ones are")
	assert.True(t, fx.store.Progress("a.MOV").Parsed("frame_0002.png"))

	_, err := os.Stat(filepath.Join(fx.frames, ".keep"))
	assert.NoError(t, err, "hidden files are left alone")
}

func TestRun_OCRFailureRecorded(t *testing.T) {
	fx := newFixture(t, "a.MOV")
	m := metrics.New()
	eng := ocr.Func(func(context.Context, string) (string, error) {
		return "", errors.New("tesseract crashed")
	})
	p := fx.pipeline(t, &fakeExtractor{frames: 2}, eng, func(d *Deps) { d.Metrics = m })
	require.NoError(t, p.Run(context.Background()))

	prog := fx.store.Progress("a.MOV")
	assert.Equal(t, "ocr: tesseract crashed -- ", prog.Files["frame_0001.png"])
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FrameFailures.WithLabelValues(metrics.KindOCR)))
	assert.Empty(t, fx.store.Records())
}

func TestRun_ExtractErrorStops(t *testing.T) {
	fx := newFixture(t, "a.MOV", "b.MOV")
	ex := &fakeExtractor{err: errors.New("ffmpeg: exited with code 1")}
	p := fx.pipeline(t, ex, textByFrame(nil), nil)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video a.MOV")
	assert.Equal(t, []string{"a.MOV"}, ex.calls)
	assert.False(t, fx.store.Progress("a.MOV").Frames)
}

func TestRun_CancelLeavesVideoUnfinished(t *testing.T) {
	fx := newFixture(t, "a.MOV")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := ocr.Func(func(ctx context.Context, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := fx.pipeline(t, &fakeExtractor{frames: 4}, eng, nil)

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	prog := fx.store.Progress("a.MOV")
	assert.True(t, prog.Frames)
	assert.False(t, prog.Finished)
	assert.Empty(t, prog.Files, "cancelled frames are not recorded as failures")

	names, err := os.ReadDir(fx.frames)
	require.NoError(t, err)
	assert.Len(t, names, 4, "frames are kept for the next run")
}

func TestNew_Validation(t *testing.T) {
	fx := newFixture(t)
	_, err := New(Options{FramesDir: fx.frames}, Deps{})
	assert.EqualError(t, err, "pipeline: videos dir is required")
	_, err = New(Options{VideosDir: fx.videos}, Deps{})
	assert.EqualError(t, err, "pipeline: frames dir is required")
	_, err = New(Options{VideosDir: fx.videos, FramesDir: fx.frames}, Deps{Parser: fx.parser})
	assert.EqualError(t, err, "pipeline: parser, extractor, engine and store are required")
}
