//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Available reports whether a real OCR engine is compiled in.
const Available = true

// TesseractEngine runs Tesseract through gosseract. Clients are not
// goroutine-safe, so each call gets its own.
type TesseractEngine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

func New(opts Options) (Engine, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	return &TesseractEngine{opts: opts, clientFactory: gosseract.NewClient}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, path string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.opts.Languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if e.opts.Whitelist != "" {
		if err := c.SetWhitelist(e.opts.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	// The caption is a single line.
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetImage(path); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *TesseractEngine) Close() error { return nil }
