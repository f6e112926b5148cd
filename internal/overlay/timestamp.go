package overlay

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// overlayLayout is yyyy/MM/dd HH:mm:ss as printed by the camera.
	overlayLayout = "2006/01/02 15:04:05"

	// TimestampLayout is the ISO-8601 rendering used in output records.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// time.Parse accepts single-digit hours; the overlay never prints them.
var overlayShape = regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}$`)

// Timestamp is the overlay clock reading, resolved in the parser's zone.
type Timestamp struct {
	time.Time
}

func (t Timestamp) String() string {
	return t.Time.Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	v, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = v
	return nil
}

// ParseTimestamp reads the date and time from the first two
// whitespace-separated fields of text. Stray '.' characters are removed
// before matching.
func (p *Parser) ParseTimestamp(text string) (Timestamp, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Timestamp{}, timestampErr(text, "timestamp not found")
	}
	raw := strings.ReplaceAll(fields[0], ".", "") + " " + strings.ReplaceAll(fields[1], ".", "")
	if !overlayShape.MatchString(raw) {
		return Timestamp{}, timestampErr(text, "timestamp does not match yyyy/MM/dd HH:mm:ss")
	}
	v, err := time.ParseInLocation(overlayLayout, raw, p.loc)
	if err != nil {
		return Timestamp{}, timestampErr(text, fmt.Sprintf("timestamp out of range: %v", err))
	}
	return Timestamp{Time: v}, nil
}
