// Package overlay parses the telemetry caption that dashcams burn into their
// video frames, as recovered by OCR, into a timestamp, a position and a speed.
//
// OCR output is noisy. The parser recognizes a fixed set of misreads of the
// overlay font and repairs them before converting:
//   - degree/minute separators read as '7', '"', '’' or '”'
//   - fractional seconds split off by a space, or carrying a trailing noise digit
//   - the digit 0 read as the letter o/O in the speed field
//   - stray '.' inside the date and time fields
//
// Everything here is a pure function of the input text. A Parser holds only
// immutable configuration and is safe for concurrent use.
package overlay
