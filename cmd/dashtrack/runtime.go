package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"dashtrack/internal/config"
	"dashtrack/internal/frames"
	"dashtrack/internal/fsutil"
	"dashtrack/internal/imageprep"
	"dashtrack/internal/metrics"
	"dashtrack/internal/mqtt"
	"dashtrack/internal/nmea"
	"dashtrack/internal/ocr"
	"dashtrack/internal/overlay"
	"dashtrack/internal/pipeline"
	"dashtrack/internal/store"
	"dashtrack/internal/udp"
	"dashtrack/internal/web"
)

// newEngine is replaced in tests.
var newEngine = ocr.New

func printParse(w io.Writer, cfg overlay.Config, text string) error {
	p, err := overlay.New(cfg)
	if err != nil {
		return err
	}
	f, err := p.ParseFrame(text)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func cleanupOptions(c config.CleanupConfig) (*imageprep.Options, error) {
	if !c.Enabled() {
		return nil, nil
	}
	keep, err := imageprep.ParseHexColor(c.Color)
	if err != nil {
		return nil, err
	}
	return &imageprep.Options{Keep: keep, FuzzPercent: c.FuzzPercent, Scale: c.Scale}, nil
}

// sinks opens the configured outputs. The returned closer releases all of
// them and is safe to call when some failed to open.
func sinks(cfg config.Config) ([]pipeline.Sink, func(), error) {
	var (
		out     []pipeline.Sink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.NMEA.File != "" {
		w, err := nmea.OpenWriter(cfg.NMEA.File)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("nmea file: %w", err)
		}
		closers = append(closers, func() { _ = w.Close() })
		out = append(out, pipeline.SinkFunc(func(rec store.Record) error { return w.WriteFrame(rec.Frame) }))
		log.Printf("nmea log file=%s", cfg.NMEA.File)
	}
	if cfg.NMEA.UDPDest != "" {
		b, err := udp.NewBroadcaster(cfg.NMEA.UDPDest)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("nmea udp: %w", err)
		}
		closers = append(closers, func() { _ = b.Close() })
		out = append(out, pipeline.SinkFunc(func(rec store.Record) error { return b.SendFrame(rec.Frame) }))
		log.Printf("nmea udp dest=%s", b.Dest())
	}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.Connect(mqtt.Config{Broker: cfg.MQTT.Broker, Topic: cfg.MQTT.Topic, ClientID: cfg.MQTT.ClientID})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, p.Close)
		out = append(out, pipeline.SinkFunc(p.Publish))
		log.Printf("mqtt broker=%s topic=%s", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}
	return out, closeAll, nil
}

func run(ctx context.Context, cfg config.Config, logs *web.LogBuffer) error {
	if err := fsutil.EnsureWritableDir(cfg.Videos.FramesDir); err != nil {
		return fmt.Errorf("frames dir: %w", err)
	}
	for _, p := range []string{cfg.Output.Path, cfg.Output.ProgressPath} {
		if err := fsutil.EnsureWritableFileDir(p); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	parser, err := overlay.New(cfg.Overlay)
	if err != nil {
		return err
	}
	cleanup, err := cleanupOptions(cfg.Cleanup)
	if err != nil {
		return err
	}

	engine, err := newEngine(ocr.Options{Languages: cfg.OCR.Languages, Whitelist: cfg.OCR.Whitelist})
	if err != nil {
		return err
	}
	defer engine.Close()

	st, err := store.Open(cfg.Output.Path, cfg.Output.ProgressPath)
	if err != nil {
		return err
	}

	out, closeSinks, err := sinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	m := metrics.New()
	status := web.NewStatus()
	status.SetStatic(cfg.Videos.Dir, engine.Name(), cfg.Workers)

	if cfg.Web.Listen != "" {
		go func() {
			log.Printf("web listening on %s", cfg.Web.Listen)
			err := web.Serve(ctx, cfg.Web.Listen, status, web.Options{Logs: logs, Parser: parser, Metrics: m.Handler()})
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	p, err := pipeline.New(pipeline.Options{
		VideosDir: cfg.Videos.Dir,
		FramesDir: cfg.Videos.FramesDir,
		Workers:   cfg.Workers,
		Cleanup:   cleanup,
	}, pipeline.Deps{
		Parser: parser,
		Extractor: frames.Extractor{
			Path: cfg.FFmpeg.Path,
			Rate: cfg.FFmpeg.Rate,
			Crop: cfg.FFmpeg.Crop,
		},
		Engine:   engine,
		Store:    st,
		Metrics:  m,
		Sinks:    out,
		Observer: status,
	})
	if err != nil {
		return err
	}
	return p.Run(ctx)
}
