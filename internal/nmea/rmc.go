package nmea

import (
	"fmt"
	"math"
	"strings"

	"dashtrack/internal/overlay"
)

const kmhPerKnot = 1.852

// RMC renders f as a $GPRMC sentence with checksum, without line terminator.
// Course is unknown and left empty.
func RMC(f overlay.Frame) string {
	utc := f.Date.Time.UTC()
	lat, latHemi := formatLatLon(f.Coordinates.Latitude, 2, "N", "S")
	lon, lonHemi := formatLatLon(f.Coordinates.Longitude, 3, "E", "W")
	knots := f.Coordinates.Speed / kmhPerKnot

	payload := strings.Join([]string{
		"GPRMC",
		utc.Format("150405.00"),
		"A",
		lat, latHemi,
		lon, lonHemi,
		fmt.Sprintf("%.1f", knots),
		"",
		utc.Format("020106"),
		"", "",
	}, ",")
	return sentence(payload)
}

func sentence(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, checksum(payload))
}

func checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// formatLatLon renders decimal degrees as NMEA ddmm.mmmm (latitude) or
// dddmm.mmmm (longitude) plus hemisphere.
func formatLatLon(v float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	mins := (v - deg) * 60
	// Rounding can carry the minutes up to 60.
	if math.Round(mins*1e4)/1e4 >= 60 {
		deg++
		mins = 0
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(deg), mins), hemi
}
