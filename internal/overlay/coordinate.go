package overlay

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// DMS is a coordinate token after OCR repair, still in text form.
type DMS struct {
	Hemisphere byte
	Degrees    string
	Minutes    string
	Seconds    string
}

// String renders d the way a clean overlay would print it.
func (d DMS) String() string {
	return string(d.Hemisphere) + d.Degrees + "°" + d.Minutes + "’" + d.Seconds + "”"
}

// Position is one fix: signed decimal degrees plus the speed shown next to it.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
}

// ParsePosition locates the speed and the latitude/longitude pair in text.
// Exactly two coordinate tokens must be present, latitude first.
func (p *Parser) ParsePosition(text string) (Position, error) {
	speed, err := p.ParseSpeed(text)
	if err != nil {
		return Position{}, err
	}
	lat, lon, err := p.parseLatLon(text)
	if err != nil {
		return Position{}, err
	}
	return Position{Latitude: lat, Longitude: lon, Speed: speed}, nil
}

func (p *Parser) parseLatLon(text string) (float64, float64, error) {
	repaired := p.noise.repairHemispheres(text)
	matches := p.coordRE.FindAllString(repaired, -1)
	if len(matches) == 0 {
		return 0, 0, latLongErr(text, "no latitude and longitude found")
	}
	if len(matches) != 2 {
		return 0, 0, latLongErr(text, "latitude or longitude not found")
	}
	lat, err := p.ParseCoordinate(matches[0])
	if err != nil {
		return 0, 0, err
	}
	lon, err := p.ParseCoordinate(matches[1])
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// ParseCoordinate repairs and converts one raw token such as "N48°30°32.44".
func (p *Parser) ParseCoordinate(raw string) (float64, error) {
	d, err := p.NormalizeCoordinate(raw)
	if err != nil {
		return 0, err
	}
	v, err := ConvertDMS(d.Degrees, d.Minutes, d.Seconds, d.Hemisphere)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Text = raw
		}
		return 0, err
	}
	return v, nil
}

// NormalizeCoordinate splits raw into degrees, minutes and seconds, applying
// the repair passes in order: digit-run split, decimal rejoin, trailing digit
// drop. Each pass depends on the previous one's output.
func (p *Parser) NormalizeCoordinate(raw string) (DMS, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DMS{}, latLongErr(raw, "empty coordinate")
	}
	s = strings.ReplaceAll(s, ":", ".")
	s = strings.ReplaceAll(s, "-", "")

	hemi := byte(unicode.ToUpper(rune(s[0])))
	switch hemi {
	case 'N', 'S', 'E', 'W':
	default:
		return DMS{}, latLongErr(raw, "coordinate must start with N, S, E or W")
	}

	seps := p.noise.CoordinateSeparators
	parts := strings.FieldsFunc(s[1:], func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(seps, r)
	})
	parts = splitDigitRuns(parts, p.noise.DegreeLookalike)
	parts = rejoinDecimals(parts)
	parts = dropTrailingNoise(parts)

	if len(parts) != 3 {
		return DMS{}, latLongErr(raw, "error parsing latitude or longitude")
	}
	return DMS{Hemisphere: hemi, Degrees: parts[0], Minutes: parts[1], Seconds: parts[2]}, nil
}

// splitDigitRuns undoes a mark misread as the lookalike digit, which glues
// two fields together: "30739." becomes "30", "39.".
func splitDigitRuns(parts []string, lookalike byte) []string {
	out := make([]string, 0, len(parts)+1)
	for _, part := range parts {
		for len(part) > 5 && part[2] == lookalike {
			out = append(out, part[:2])
			part = part[3:]
		}
		out = append(out, part)
	}
	return out
}

// rejoinDecimals glues a fraction split off by a space back on: "32.", "44"
// becomes "32.44".
func rejoinDecimals(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		if strings.HasSuffix(part, ".") && i+1 < len(parts) {
			part += parts[i+1]
			i++
		}
		out = append(out, part)
	}
	return out
}

// dropTrailingNoise removes the extra digit OCR repeats after the seconds
// fraction: "15.617" becomes "15.61".
func dropTrailingNoise(parts []string) []string {
	out := make([]string, len(parts))
	for i, part := range parts {
		if strings.Contains(part, ".") && len(part) > 5 {
			part = part[:len(part)-1]
		}
		out[i] = part
	}
	return out
}

// ConvertDMS converts degrees, minutes and seconds to signed decimal degrees
// rounded to 6 places. S and W are negative. Magnitudes above 90 are
// rejected for both axes.
func ConvertDMS(degrees, minutes, seconds string, hemisphere byte) (float64, error) {
	var vals [3]float64
	for i, s := range [3]string{degrees, minutes, seconds} {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, latLongErr(s, "error parsing latitude or longitude")
		}
		vals[i] = v
	}

	dd := vals[0] + vals[1]/60 + vals[2]/3600
	switch hemisphere {
	case 'S', 's', 'W', 'w':
		dd = -dd
	}
	dd = math.Round(dd*1e6) / 1e6

	if dd > 90 || dd < -90 {
		return 0, latLongErr(string(hemisphere)+degrees, "latitude or longitude cannot be bigger or smaller than 90")
	}
	return dd, nil
}
