package overlay

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Config struct {
	// TimeZone is an IANA zone id used to interpret the overlay clock, which
	// carries no zone of its own. Empty or "Local" means the process zone.
	TimeZone string `yaml:"time_zone"`

	Noise Noise `yaml:"noise"`
}

// Parser turns overlay text into measurements. It is immutable after New.
type Parser struct {
	loc   *time.Location
	noise Noise

	coordRE *regexp.Regexp
	speedRE *regexp.Regexp
	zeroRE  *regexp.Regexp
}

func New(cfg Config) (*Parser, error) {
	loc := time.Local
	tz := strings.TrimSpace(cfg.TimeZone)
	if tz != "" && tz != "Local" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("overlay: time zone %q: %w", tz, err)
		}
		loc = l
	}

	n := cfg.Noise.withDefaults()
	if n.DegreeLookalike < '0' || n.DegreeLookalike > '9' {
		return nil, fmt.Errorf("overlay: degree lookalike must be a digit, got %q", n.DegreeLookalike)
	}
	if strings.ContainsAny(n.ZeroLookalikes, "0123456789") {
		return nil, fmt.Errorf("overlay: zero lookalikes must not contain digits")
	}

	seps := charClass(n.CoordinateSeparators + string(n.DegreeLookalike))
	// Hemisphere, two "<digits><mark>" groups (marks may be followed by
	// dashes), then seconds. The fraction separator is any single character:
	// OCR reads the decimal point as '.', ':' or a space.
	coordRE, err := regexp.Compile(`(?i)[NESW](?:\s*\d+\s*[` + seps + `\s]\s*-*){2}\s*\d+.?\d*\s*\d+`)
	if err != nil {
		return nil, fmt.Errorf("overlay: coordinate pattern: %w", err)
	}
	zeros := charClass(n.ZeroLookalikes)
	speedRE, err := regexp.Compile(`([0-9` + zeros + `]+)(?i:` + regexp.QuoteMeta(n.SpeedUnit) + `)`)
	if err != nil {
		return nil, fmt.Errorf("overlay: speed pattern: %w", err)
	}
	zeroRE, err := regexp.Compile(`[` + zeros + `]+`)
	if err != nil {
		return nil, fmt.Errorf("overlay: zero pattern: %w", err)
	}

	return &Parser{
		loc:     loc,
		noise:   n,
		coordRE: coordRE,
		speedRE: speedRE,
		zeroRE:  zeroRE,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(cfg Config) *Parser {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// Location returns the zone timestamps are interpreted in.
func (p *Parser) Location() *time.Location { return p.loc }

// Frame is everything recovered from one overlay line.
type Frame struct {
	Date        Timestamp `json:"date"`
	Coordinates Position  `json:"coordinates"`
}

// ParseFrame parses the timestamp, then the speed, then the position.
// The first failure is returned unchanged; no partial Frame is produced.
func (p *Parser) ParseFrame(text string) (Frame, error) {
	date, err := p.ParseTimestamp(text)
	if err != nil {
		return Frame{}, err
	}
	pos, err := p.ParsePosition(text)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Date: date, Coordinates: pos}, nil
}

var defaultParser = MustNew(Config{})

// ParseFrame parses text with the default noise set in the local time zone.
func ParseFrame(text string) (Frame, error) { return defaultParser.ParseFrame(text) }

func ParsePosition(text string) (Position, error) { return defaultParser.ParsePosition(text) }

func ParseCoordinate(raw string) (float64, error) { return defaultParser.ParseCoordinate(raw) }

func ParseSpeed(text string) (float64, error) { return defaultParser.ParseSpeed(text) }

func ParseTimestamp(text string) (Timestamp, error) { return defaultParser.ParseTimestamp(text) }
