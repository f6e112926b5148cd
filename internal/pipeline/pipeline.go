// Package pipeline turns a directory of dashcam videos into parsed overlay
// records.
//
// For every unfinished video it extracts caption frames, cleans and OCRs
// them on a worker pool, parses the text and checkpoints each result in the
// store. Frames that fail are recorded with the OCR text and retried on the
// next run until the video is marked finished.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dashtrack/internal/frames"
	"dashtrack/internal/imageprep"
	"dashtrack/internal/metrics"
	"dashtrack/internal/ocr"
	"dashtrack/internal/overlay"
	"dashtrack/internal/store"
)

// Extractor writes the frames of video into outDir.
type Extractor interface {
	Extract(ctx context.Context, video string, outDir string) error
}

// Sink receives every parsed record. Sink errors are logged, never fatal.
type Sink interface {
	Emit(rec store.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec store.Record) error

func (f SinkFunc) Emit(rec store.Record) error { return f(rec) }

// Observer is notified of progress. web.Status implements it.
type Observer interface {
	VideoStarted(video string, pending int)
	FrameProcessed(video string, err error)
	VideoFinished(video string)
}

type Options struct {
	VideosDir string
	FramesDir string
	Workers   int
	// Cleanup is applied to each frame before OCR; nil skips it.
	Cleanup *imageprep.Options
}

type Pipeline struct {
	opts      Options
	parser    *overlay.Parser
	extractor Extractor
	engine    ocr.Engine
	store     *store.Store
	metrics   *metrics.Metrics
	sinks     []Sink
	observer  Observer
}

// Deps are the collaborators a Pipeline drives. Metrics, Sinks and Observer
// are optional.
type Deps struct {
	Parser    *overlay.Parser
	Extractor Extractor
	Engine    ocr.Engine
	Store     *store.Store
	Metrics   *metrics.Metrics
	Sinks     []Sink
	Observer  Observer
}

func New(opts Options, deps Deps) (*Pipeline, error) {
	if strings.TrimSpace(opts.VideosDir) == "" {
		return nil, errors.New("pipeline: videos dir is required")
	}
	if strings.TrimSpace(opts.FramesDir) == "" {
		return nil, errors.New("pipeline: frames dir is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if deps.Parser == nil || deps.Extractor == nil || deps.Engine == nil || deps.Store == nil {
		return nil, errors.New("pipeline: parser, extractor, engine and store are required")
	}
	return &Pipeline{
		opts:      opts,
		parser:    deps.Parser,
		extractor: deps.Extractor,
		engine:    deps.Engine,
		store:     deps.Store,
		metrics:   deps.Metrics,
		sinks:     deps.Sinks,
		observer:  deps.Observer,
	}, nil
}

// Videos lists the candidate video files: regular, non-hidden, sorted.
func Videos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Run processes every unfinished video and returns when all are done, the
// context is cancelled, or a video-level step fails.
func (p *Pipeline) Run(ctx context.Context) error {
	videos, err := Videos(p.opts.VideosDir)
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}
	log.Printf("pipeline: start videos=%d workers=%d engine=%s", len(videos), p.opts.Workers, p.engine.Name())

	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.store.Progress(v).Finished {
			continue
		}
		if err := p.processVideo(ctx, v); err != nil {
			return fmt.Errorf("video %s: %w", v, err)
		}
	}
	log.Printf("pipeline: done records=%d", len(p.store.Records()))
	return nil
}

func (p *Pipeline) processVideo(ctx context.Context, video string) error {
	dir := p.opts.FramesDir
	if !p.store.Progress(video).Frames {
		// Leftovers belong to a video whose extraction never completed.
		if err := frames.Clear(dir); err != nil {
			return fmt.Errorf("clear frames: %w", err)
		}
		log.Printf("pipeline: extracting video=%s dir=%s", video, dir)
		if err := p.extractor.Extract(ctx, filepath.Join(p.opts.VideosDir, video), dir); err != nil {
			return err
		}
		if err := p.store.MarkFramesExtracted(video); err != nil {
			return err
		}
	}

	names, err := frames.List(dir)
	if err != nil {
		return fmt.Errorf("list frames: %w", err)
	}
	prog := p.store.Progress(video)
	pending := make([]string, 0, len(names))
	for _, n := range names {
		if prog.Parsed(n) {
			continue
		}
		pending = append(pending, n)
	}
	log.Printf("pipeline: video=%s frames=%d pending=%d", video, len(names), len(pending))
	if p.observer != nil {
		p.observer.VideoStarted(video, len(pending))
	}

	p.runWorkers(ctx, video, pending)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := frames.Clear(dir); err != nil {
		return fmt.Errorf("clear frames: %w", err)
	}
	if err := p.store.MarkFinished(video); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.VideosFinished.Inc()
	}
	if p.observer != nil {
		p.observer.VideoFinished(video)
	}
	log.Printf("pipeline: finished video=%s", video)
	return nil
}

func (p *Pipeline) runWorkers(ctx context.Context, video string, files []string) {
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				p.processFrame(ctx, video, f)
			}
		}()
	}

feed:
	for _, f := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- f:
		}
	}
	close(jobs)
	wg.Wait()
}

func (p *Pipeline) processFrame(ctx context.Context, video string, file string) {
	if ctx.Err() != nil {
		return
	}
	if p.metrics != nil {
		p.metrics.WorkersBusy.Inc()
		defer p.metrics.WorkersBusy.Dec()
	}
	path := filepath.Join(p.opts.FramesDir, file)

	start := time.Now()
	if p.opts.Cleanup != nil {
		if err := imageprep.CleanFile(path, *p.opts.Cleanup); err != nil {
			p.fail(video, file, fmt.Errorf("cleanup: %w", err), "", metrics.KindCleanup)
			return
		}
	}
	text, err := p.engine.Recognize(ctx, path)
	p.metrics.ObserveOCR(time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.fail(video, file, fmt.Errorf("ocr: %w", err), "", metrics.KindOCR)
		return
	}
	text = strings.TrimSpace(text)

	frame, err := p.parser.ParseFrame(text)
	if err != nil {
		p.fail(video, file, err, text, "")
		return
	}

	rec := store.Record{Frame: frame, VideoFileName: video}
	if err := p.store.AddRecord(file, rec); err != nil {
		log.Printf("pipeline: store record failed video=%s file=%s err=%v", video, file, err)
		p.metrics.ObserveFailure(err, metrics.KindStore)
		p.notify(video, err)
		return
	}
	if p.metrics != nil {
		p.metrics.FramesParsed.Inc()
	}
	p.notify(video, nil)

	for _, s := range p.sinks {
		if err := s.Emit(rec); err != nil {
			log.Printf("pipeline: sink failed video=%s file=%s err=%v", video, file, err)
		}
	}
}

func (p *Pipeline) fail(video, file string, cause error, text string, kind string) {
	log.Printf("pipeline: frame failed video=%s file=%s err=%v text=%q", video, file, cause, text)
	p.metrics.ObserveFailure(cause, kind)
	if err := p.store.AddFailure(video, file, cause, text); err != nil {
		log.Printf("pipeline: store failure failed video=%s file=%s err=%v", video, file, err)
	}
	p.notify(video, cause)
}

func (p *Pipeline) notify(video string, err error) {
	if p.observer != nil {
		p.observer.FrameProcessed(video, err)
	}
}
