//go:build !ocr

package ocr

// Available reports whether a real OCR engine is compiled in.
const Available = false

// New is a stub when OCR support is not compiled in.
func New(opts Options) (Engine, error) {
	return nil, ErrUnavailable
}
