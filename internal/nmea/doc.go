// Package nmea encodes parsed overlay frames as NMEA 0183 sentences so the
// recovered track can be loaded by GPS tools or streamed to navigation apps.
//
// Only RMC is produced: it carries everything the overlay provides
// (time, date, position, ground speed).
package nmea
