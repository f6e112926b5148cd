package overlay

import (
	"math"
	"strconv"
)

// ParseSpeed finds the first "<digits>KM/H" run in text and returns the
// number. Letters that OCR reads in place of 0 are accepted and repaired.
func (p *Parser) ParseSpeed(text string) (float64, error) {
	m := p.speedRE.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return 0, speedErr(text, "Speed not found")
	}
	digits := p.zeroRE.ReplaceAllString(m[1], "0")
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, speedErr(text, "Speed not valid")
	}
	return v, nil
}
