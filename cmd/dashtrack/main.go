package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dashtrack/internal/config"
	"dashtrack/internal/web"
)

func main() {
	var (
		configPath string
		parseText  string
		summary    bool
	)
	flag.StringVar(&configPath, "config", "./dashtrack.yaml", "Path to YAML config")
	flag.StringVar(&parseText, "parse", "", "Parse one line of overlay text, print it as JSON and exit")
	flag.BoolVar(&summary, "summary", false, "Print a summary of the progress file and exit")
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	switch {
	case parseText != "":
		cfg, err := optionalConfig(configPath, explicitConfig)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		if err := printParse(os.Stdout, cfg.Overlay, parseText); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	case summary:
		cfg, err := optionalConfig(configPath, explicitConfig)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		progress := cfg.Output.ProgressPath
		if progress == "" {
			progress = "./progress.json"
		}
		if err := printProgressSummary(os.Stdout, progress); err != nil {
			log.Fatalf("summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("dashtrack starting config=%s videos=%s", configPath, cfg.Videos.Dir)
	err = run(ctx, cfg, logs)
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("dashtrack stopped; progress saved to %s", cfg.Output.ProgressPath)
	case err != nil:
		log.Fatalf("dashtrack failed: %v", err)
	default:
		log.Printf("dashtrack done output=%s", cfg.Output.Path)
	}
}

// optionalConfig loads the config only when -config was given, so -parse and
// -summary work without one.
func optionalConfig(path string, explicit bool) (config.Config, error) {
	if !explicit {
		return config.Config{}, nil
	}
	return config.Load(path)
}
