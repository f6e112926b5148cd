package overlay

import "strings"

// Noise is the set of OCR misreads the parser knows how to repair.
//
// The defaults describe the overlay font of one camera model. Another
// firmware or font needs its own values; zero fields fall back to the
// defaults in New.
type Noise struct {
	// CoordinateSeparators are the characters OCR produces for the degree,
	// minute and second marks. Whitespace is always a separator.
	CoordinateSeparators string `yaml:"coordinate_separators"`

	// DegreeLookalike is the digit a degree/minute mark is misread as. When a
	// coordinate token is too long and carries this digit in its third
	// position, the token is split around it.
	DegreeLookalike byte `yaml:"-"`

	// ZeroLookalikes are letters read in place of the digit 0 in the speed field.
	ZeroLookalikes string `yaml:"zero_lookalikes"`

	// SpeedUnit follows the speed digits. Matched case-insensitively.
	SpeedUnit string `yaml:"speed_unit"`

	// HemisphereRepairs run in order over the whole line before coordinates
	// are located. Each replaces only the first occurrence.
	HemisphereRepairs []Replacement `yaml:"hemisphere_repairs"`
}

type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func DefaultNoise() Noise {
	return Noise{
		CoordinateSeparators: "°’\"”",
		DegreeLookalike:      '7',
		ZeroLookalikes:       "oO",
		SpeedUnit:            "KM/H",
		// The latitude hemisphere follows a "4" that OCR tends to read as "A".
		HemisphereRepairs: []Replacement{
			{From: "NA", To: "N4"},
			{From: "N4A", To: "N4"},
		},
	}
}

func (n Noise) withDefaults() Noise {
	def := DefaultNoise()
	if n.CoordinateSeparators == "" {
		n.CoordinateSeparators = def.CoordinateSeparators
	}
	if n.DegreeLookalike == 0 {
		n.DegreeLookalike = def.DegreeLookalike
	}
	if n.ZeroLookalikes == "" {
		n.ZeroLookalikes = def.ZeroLookalikes
	}
	if n.SpeedUnit == "" {
		n.SpeedUnit = def.SpeedUnit
	}
	if n.HemisphereRepairs == nil {
		n.HemisphereRepairs = def.HemisphereRepairs
	}
	return n
}

func (n Noise) repairHemispheres(text string) string {
	for _, r := range n.HemisphereRepairs {
		if r.From == "" {
			continue
		}
		text = strings.Replace(text, r.From, r.To, 1)
	}
	return text
}

// charClass renders chars as the body of a regexp character class.
func charClass(chars string) string {
	var b strings.Builder
	for _, r := range chars {
		switch r {
		case '\\', ']', '[', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
