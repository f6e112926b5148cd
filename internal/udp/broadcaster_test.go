package udp

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"dashtrack/internal/overlay"
)

type fakeConn struct {
	writes   []string
	writeErr error
	closed   bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func sampleFrame() overlay.Frame {
	return overlay.Frame{
		Date:        overlay.Timestamp{Time: time.Date(2020, 7, 31, 16, 41, 14, 0, time.UTC)},
		Coordinates: overlay.Position{Latitude: 48.509011, Longitude: 34.986008, Speed: 52},
	}
}

func TestNewBroadcaster_Dial(t *testing.T) {
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}
	resolveErr := errors.New("nope")

	cases := []struct {
		name    string
		dest    string
		resolve resolveFunc
		dialErr error
		wantErr error
	}{
		{name: "ok", dest: "127.0.0.1:10110", resolve: net.ResolveUDPAddr},
		{name: "resolve", dest: "bad:addr", resolve: func(string, string) (*net.UDPAddr, error) { return nil, resolveErr }, wantErr: resolveErr},
		{name: "dial", dest: "127.0.0.1:10110", resolve: net.ResolveUDPAddr, dialErr: net.ErrClosed, wantErr: net.ErrClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dial := func(network string, _, raddr *net.UDPAddr) (udpConn, error) {
				if network != "udp" {
					t.Fatalf("network=%q want udp", network)
				}
				gotRaddr = raddr
				if tc.dialErr != nil {
					return nil, tc.dialErr
				}
				return fc, nil
			}
			b, err := newBroadcaster(tc.dest, tc.resolve, dial)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err=%v want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("newBroadcaster() error: %v", err)
			}
			defer b.Close()
			if gotRaddr.Port != 10110 || b.Dest() != tc.dest {
				t.Fatalf("raddr=%v dest=%q", gotRaddr, b.Dest())
			}
		})
	}
}

func TestBroadcaster_SendFrame(t *testing.T) {
	fc := &fakeConn{}
	b := &Broadcaster{dest: "x", conn: fc}

	if err := b.Send(nil); err != nil {
		t.Fatalf("Send(nil) error: %v", err)
	}
	if err := b.SendFrame(sampleFrame()); err != nil {
		t.Fatalf("SendFrame() error: %v", err)
	}
	if len(fc.writes) != 1 {
		t.Fatalf("writes=%d want 1", len(fc.writes))
	}
	got := fc.writes[0]
	if !strings.HasPrefix(got, "$GPRMC,164114.00,A,4830.5407,N,03459.1605,E,") || !strings.HasSuffix(got, "\r\n") {
		t.Fatalf("unexpected sentence %q", got)
	}
}

func TestBroadcaster_WriteError(t *testing.T) {
	wantErr := errors.New("network unreachable")
	b := &Broadcaster{dest: "x", conn: &fakeConn{writeErr: wantErr}}
	if err := b.SendFrame(sampleFrame()); !errors.Is(err, wantErr) {
		t.Fatalf("err=%v want %v", err, wantErr)
	}
}

func TestBroadcaster_Close(t *testing.T) {
	if err := (&Broadcaster{}).Close(); err != nil {
		t.Fatalf("Close() on unopened broadcaster: %v", err)
	}

	fc := &fakeConn{}
	b := &Broadcaster{dest: "x", conn: fc}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !fc.closed {
		t.Fatalf("expected conn closed")
	}
	if err := b.SendFrame(sampleFrame()); err == nil {
		t.Fatalf("expected error after close")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestBroadcaster_Loopback(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("udp loopback unavailable: %v", err)
	}
	defer ln.Close()

	b, err := NewBroadcaster(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewBroadcaster() error: %v", err)
	}
	defer b.Close()
	if err := b.SendFrame(sampleFrame()); err != nil {
		t.Fatalf("SendFrame() error: %v", err)
	}

	_ = ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error: %v", err)
	}
	s, err := gonmea.Parse(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		t.Fatalf("nmea.Parse() error: %v", err)
	}
	rmc, ok := s.(gonmea.RMC)
	if !ok {
		t.Fatalf("sentence type %T", s)
	}
	if rmc.Latitude < 48.50 || rmc.Latitude > 48.52 || rmc.Longitude < 34.98 || rmc.Longitude > 34.99 {
		t.Fatalf("lat=%v lon=%v", rmc.Latitude, rmc.Longitude)
	}
}
