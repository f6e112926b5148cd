// Package imageprep isolates the overlay caption in a frame before OCR.
//
// The caption is printed in a single colour. Every pixel that is not close to
// that colour is painted black, which removes the scenery behind the text.
// Closeness follows ImageMagick's -fuzz: the RGB distance scaled to [0,1].
package imageprep

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

type Options struct {
	// Keep is the caption colour.
	Keep color.RGBA
	// FuzzPercent is how far (0-100) a pixel may be from Keep and survive.
	FuzzPercent int
	// Scale is an integer upscale applied after masking; 0 or 1 leaves size alone.
	Scale int
}

// ParseHexColor parses "#RRGGBB".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color must be #RRGGBB, got %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color must be #RRGGBB, got %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Isolate returns a copy of src where every pixel farther than the fuzz
// distance from opts.Keep is black.
func Isolate(src image.Image, opts Options) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	limit := float64(opts.FuzzPercent) / 100
	kr, kg, kb := float64(opts.Keep.R)/255, float64(opts.Keep.G)/255, float64(opts.Keep.B)/255
	black := color.RGBA{A: 0xff}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			dr := float64(c.R)/255 - kr
			dg := float64(c.G)/255 - kg
			db := float64(c.B)/255 - kb
			dist := math.Sqrt((dr*dr + dg*dg + db*db) / 3)
			if dist <= limit {
				c.A = 0xff
				dst.SetRGBA(x-b.Min.X, y-b.Min.Y, c)
				continue
			}
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, black)
		}
	}
	return dst
}

// Upscale enlarges img by an integer factor. Tesseract reads the small
// caption font better at 2x or 3x.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Process applies Isolate and then Upscale.
func Process(src image.Image, opts Options) image.Image {
	return Upscale(Isolate(src, opts), opts.Scale)
}

// CleanFile rewrites the PNG at path in place.
func CleanFile(path string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	src, err := png.Decode(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return writePNGAtomic(path, Process(src, opts))
}

func writePNGAtomic(path string, img image.Image) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
