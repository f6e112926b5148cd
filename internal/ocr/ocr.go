// Package ocr recognizes the caption text in a cleaned frame image.
package ocr

import (
	"context"
	"errors"
)

// Engine turns an image file into text. Implementations must be safe for
// concurrent use; the pipeline calls Recognize from several workers.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, path string) (string, error)
	Close() error
}

type Options struct {
	Languages []string
	// Whitelist restricts the characters the engine may emit.
	Whitelist string
}

// ErrUnavailable is returned by New when the binary was built without OCR support.
var ErrUnavailable = errors.New("ocr: support not compiled in (build with -tags=ocr)")

// Func adapts a function to Engine.
type Func func(ctx context.Context, path string) (string, error)

func (f Func) Name() string { return "func" }

func (f Func) Recognize(ctx context.Context, path string) (string, error) { return f(ctx, path) }

func (f Func) Close() error { return nil }
