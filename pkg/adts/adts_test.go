package adts

import (
	"bytes"
	"errors"
	"testing"
)

// 44100 Hz AAC-LC header as seen on the wire from icecast AAC relays. Its
// frame length field is zero, so it decodes but is rejected as a candidate.
var wireHeader = []byte{0xFF, 0xF1, 0x50, 0x80, 0x00, 0x1F, 0xFC}

// validHeader is wireHeader with the frame length field set to 512.
var validHeader = []byte{0xFF, 0xF1, 0x50, 0x80, 0x40, 0x1F, 0xFC}

func TestParseFrameWireHeaderFields(t *testing.T) {
	f, err := ParseFrame(wireHeader)
	if !errors.Is(err, ErrBadFrameLen) {
		t.Fatalf("got %v, want ErrBadFrameLen", err)
	}
	if f.MPEGVersion != 0 {
		t.Errorf("MPEGVersion = %d, want 0", f.MPEGVersion)
	}
	if !f.ProtectionAbsent {
		t.Error("expected protection absent")
	}
	if f.SamplingIndex != 4 {
		t.Errorf("SamplingIndex = %d, want 4", f.SamplingIndex)
	}
	if f.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", f.SampleRate)
	}
	if f.ChannelConfig != 2 {
		t.Errorf("ChannelConfig = %d, want 2", f.ChannelConfig)
	}
}

func TestParseFrameValidHeader(t *testing.T) {
	f, err := ParseFrame(validHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FrameLength != 512 {
		t.Errorf("FrameLength = %d, want 512", f.FrameLength)
	}
	if f.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", f.SampleRate)
	}
}

func TestParseFrameNoSync(t *testing.T) {
	_, err := ParseFrame([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	if !errors.Is(err, ErrNoSync) {
		t.Fatalf("got %v, want ErrNoSync", err)
	}
}

func TestParseFrameShortBuffer(t *testing.T) {
	_, err := ParseFrame(validHeader[:6])
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("got %v, want ErrShortBuffer", err)
	}
	if _, err := ParseFrame(nil); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("nil buffer: got %v, want ErrShortBuffer", err)
	}
}

func TestParseFrameReservedSamplingIndex(t *testing.T) {
	h := append([]byte(nil), validHeader...)
	h[2] = 0x70 // sampling index 12
	_, err := ParseFrame(h)
	if !errors.Is(err, ErrBadSampleRate) {
		t.Fatalf("got %v, want ErrBadSampleRate", err)
	}
}

func TestParseFrameLengthBelowMinimum(t *testing.T) {
	h := append([]byte(nil), validHeader...)
	// Frame length field = 3.
	h[3] = 0x80
	h[4] = 0x00
	h[5] = 0x7F
	_, err := ParseFrame(h)
	if !errors.Is(err, ErrBadFrameLen) {
		t.Fatalf("got %v, want ErrBadFrameLen", err)
	}
}

func TestFrameLengthDecoding(t *testing.T) {
	h := append([]byte(nil), validHeader...)
	// Frame length field = 1024.
	h[4] = 0x80
	f, err := ParseFrame(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FrameLength != 1024 {
		t.Errorf("FrameLength = %d, want 1024", f.FrameLength)
	}
}

func TestVBRSentinel(t *testing.T) {
	f, err := ParseFrame(validHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.BufferFullness != VBRSentinel {
		t.Errorf("BufferFullness = %#x, want %#x", f.BufferFullness, VBRSentinel)
	}
	if !f.VBR() {
		t.Error("expected VBR sentinel to report true")
	}
}

func TestScanFindsOffsetFrame(t *testing.T) {
	window := append([]byte{0x12, 0x34, 0xFF, 0x00}, validHeader...)
	f, off, ok := Scan(window)
	if !ok {
		t.Fatal("expected a frame")
	}
	if off != 4 {
		t.Errorf("offset = %d, want 4", off)
	}
	if f.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", f.SampleRate)
	}
}

func TestScanNoFrame(t *testing.T) {
	window := bytes.Repeat([]byte{0xAA}, 64)
	if _, off, ok := Scan(window); ok || off != -1 {
		t.Fatalf("expected no frame, got offset %d", off)
	}
}

func TestScanRejectsBadCandidates(t *testing.T) {
	// A sync word with a reserved sampling index, then the wire header with
	// its zero frame length, then a valid frame.
	bad := []byte{0xFF, 0xF1, 0x70, 0x80, 0x40, 0x1F, 0xFC}
	window := append(append(append([]byte(nil), bad...), wireHeader...), validHeader...)
	_, off, ok := Scan(window)
	if !ok {
		t.Fatal("expected a frame")
	}
	if off != len(bad)+len(wireHeader) {
		t.Errorf("offset = %d, want %d", off, len(bad)+len(wireHeader))
	}
}
