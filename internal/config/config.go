package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dashtrack/internal/overlay"
)

type Config struct {
	Videos  VideosConfig   `yaml:"videos"`
	Output  OutputConfig   `yaml:"output"`
	Workers int            `yaml:"workers"`
	Overlay overlay.Config `yaml:"overlay"`
	FFmpeg  FFmpegConfig   `yaml:"ffmpeg"`
	Cleanup CleanupConfig  `yaml:"cleanup"`
	OCR     OCRConfig      `yaml:"ocr"`
	Web     WebConfig      `yaml:"web"`
	NMEA    NMEAConfig     `yaml:"nmea"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
}

type VideosConfig struct {
	Dir       string `yaml:"dir"`
	FramesDir string `yaml:"frames_dir"`
}

type OutputConfig struct {
	Path         string `yaml:"path"`
	ProgressPath string `yaml:"progress_path"`
}

type FFmpegConfig struct {
	Path string  `yaml:"path"`
	Rate float64 `yaml:"rate"`
	// Crop is ffmpeg's w:h:x:y for the overlay strip.
	Crop string `yaml:"crop"`
}

type CleanupConfig struct {
	Enable      *bool  `yaml:"enable"`
	Color       string `yaml:"color"`
	FuzzPercent int    `yaml:"fuzz_percent"`
	Scale       int    `yaml:"scale"`
}

// Enabled defaults to true when unset.
func (c CleanupConfig) Enabled() bool {
	return c.Enable == nil || *c.Enable
}

type OCRConfig struct {
	Languages []string `yaml:"languages"`
	Whitelist string   `yaml:"whitelist"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type NMEAConfig struct {
	File    string `yaml:"file"`
	UDPDest string `yaml:"udp_dest"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// VideoDirEnv overrides videos.dir when set.
const VideoDirEnv = "VIDEO_DIR"

const DefaultWhitelist = "NSWE0123456789DOWLSKMH.:°”’/ "

var (
	cropRE  = regexp.MustCompile(`^\d+:\d+:\d+:\d+$`)
	colorRE = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML strictly, applies VIDEO_DIR, then defaults and validation.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			msg := stripYAMLLines(te.Errors)
			if strings.Contains(msg, " not found in type ") {
				return Config{}, fmt.Errorf("config contains unknown fields: %s", msg)
			}
			return Config{}, fmt.Errorf("config: %s", msg)
		}
		return Config{}, err
	}

	if dir := strings.TrimSpace(os.Getenv(VideoDirEnv)); dir != "" {
		cfg.Videos.Dir = dir
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.Videos.Dir = strings.TrimSpace(cfg.Videos.Dir)
	if cfg.Videos.Dir == "" {
		return fmt.Errorf("videos.dir is required")
	}
	if strings.TrimSpace(cfg.Videos.FramesDir) == "" {
		cfg.Videos.FramesDir = "./frames"
	}
	if strings.TrimSpace(cfg.Output.Path) == "" {
		cfg.Output.Path = "./output.json"
	}
	if strings.TrimSpace(cfg.Output.ProgressPath) == "" {
		cfg.Output.ProgressPath = "./progress.json"
	}
	if cfg.Output.Path == cfg.Output.ProgressPath {
		return fmt.Errorf("output.path and output.progress_path must differ")
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU() / 2
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
	}

	// Fail early on a bad zone instead of at the first frame.
	if _, err := overlay.New(cfg.Overlay); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}

	if strings.TrimSpace(cfg.FFmpeg.Path) == "" {
		cfg.FFmpeg.Path = "ffmpeg"
	}
	if cfg.FFmpeg.Rate == 0 {
		cfg.FFmpeg.Rate = 0.25
	}
	if cfg.FFmpeg.Rate < 0 {
		return fmt.Errorf("ffmpeg.rate must be > 0")
	}
	if strings.TrimSpace(cfg.FFmpeg.Crop) == "" {
		cfg.FFmpeg.Crop = "1905:40:15:1020"
	}
	if !cropRE.MatchString(cfg.FFmpeg.Crop) {
		return fmt.Errorf("ffmpeg.crop must be w:h:x:y, got %q", cfg.FFmpeg.Crop)
	}

	if cfg.Cleanup.Color == "" {
		cfg.Cleanup.Color = "#FFFB53"
	}
	if !colorRE.MatchString(cfg.Cleanup.Color) {
		return fmt.Errorf("cleanup.color must be #RRGGBB, got %q", cfg.Cleanup.Color)
	}
	if cfg.Cleanup.FuzzPercent == 0 {
		cfg.Cleanup.FuzzPercent = 40
	}
	if cfg.Cleanup.FuzzPercent < 0 || cfg.Cleanup.FuzzPercent > 100 {
		return fmt.Errorf("cleanup.fuzz_percent must be in [0,100]")
	}
	if cfg.Cleanup.Scale == 0 {
		cfg.Cleanup.Scale = 1
	}
	if cfg.Cleanup.Scale < 1 || cfg.Cleanup.Scale > 4 {
		return fmt.Errorf("cleanup.scale must be in [1,4]")
	}

	if len(cfg.OCR.Languages) == 0 {
		cfg.OCR.Languages = []string{"eng"}
	}
	if cfg.OCR.Whitelist == "" {
		cfg.OCR.Whitelist = DefaultWhitelist
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "dashtrack/frames"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "dashtrack"
		}
	} else if cfg.MQTT.Topic != "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.topic is set")
	}

	return nil
}

func stripYAMLLines(errs []string) string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		e = strings.TrimSpace(e)
		if strings.HasPrefix(e, "line ") {
			if i := strings.Index(e, ": "); i != -1 {
				if _, err := strconv.Atoi(e[len("line "):i]); err == nil {
					e = e[i+2:]
				}
			}
		}
		out = append(out, e)
	}
	return strings.Join(out, "; ")
}
