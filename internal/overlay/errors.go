package overlay

import (
	"errors"
	"fmt"
)

// Kind classifies a parse failure.
type Kind string

const (
	KindInvalidLatLong   Kind = "INVALID_LAT_LONG"
	KindInvalidSpeed     Kind = "INVALID_SPEED"
	KindInvalidTimestamp Kind = "INVALID_TIMESTAMP"
)

// Sentinels for errors.Is. They match any *ParseError of the same Kind.
var (
	ErrInvalidLatLong   = &ParseError{Kind: KindInvalidLatLong}
	ErrInvalidSpeed     = &ParseError{Kind: KindInvalidSpeed}
	ErrInvalidTimestamp = &ParseError{Kind: KindInvalidTimestamp}
)

// ParseError is the only error type returned by this package.
// Text holds the offending input so callers can persist it for review.
type ParseError struct {
	Kind Kind
	Msg  string
	Text string
}

func (e *ParseError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target is a *ParseError of the same Kind.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *ParseError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func latLongErr(text, msg string) error {
	return &ParseError{Kind: KindInvalidLatLong, Msg: msg, Text: text}
}

func speedErr(text, msg string) error {
	return &ParseError{Kind: KindInvalidSpeed, Msg: msg, Text: text}
}

func timestampErr(text, msg string) error {
	return &ParseError{Kind: KindInvalidTimestamp, Msg: msg, Text: text}
}
