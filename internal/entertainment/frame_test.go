package entertainment

import (
	"bytes"
	"testing"
)

func buildFrame(colorSpace byte, records ...[9]byte) []byte {
	frame := []byte(sentinel)
	frame = append(frame, 1, 0, 0, 0, 0, colorSpace, 0) // version major, version minor, seq, reserved, reserved, colorspace@14, reserved
	for _, rec := range records {
		frame = append(frame, rec[:]...)
	}
	return frame
}

// TestSplitFramesEmitsEveryFrame covers §8 property 10 directly: for a
// buffer holding n sentinel-prefixed frames back to back (exactly what
// one UDP/DTLS Read() returns when a sender batches several updates),
// the demultiplexer emits exactly n complete frames, in order.
func TestSplitFramesEmitsEveryFrame(t *testing.T) {
	f1 := buildFrame(colorSpaceRGB, [9]byte{0, 0, 0, 0xFF, 0, 0, 0, 0, 0})
	f2 := buildFrame(colorSpaceRGB, [9]byte{0, 0, 1, 0, 0xFF, 0, 0, 0, 0})
	f3 := buildFrame(colorSpaceRGB, [9]byte{0, 0, 2, 0, 0, 0xFF, 0, 0, 0})

	buf := append(append(append([]byte{}, f1...), f2...), f3...)
	frames := splitFrames(buf)

	if len(frames) != 3 {
		t.Fatalf("expected 3 complete frames, got %d", len(frames))
	}
	for i, want := range [][]byte{f1, f2, f3} {
		if !bytes.Equal(frames[i], want) {
			t.Fatalf("frame %d mismatch: got %x want %x", i, frames[i], want)
		}
	}
}

// TestSplitFramesDropsLeadingGarbage verifies any bytes preceding the
// first sentinel occurrence are discarded rather than misread as part
// of the first frame.
func TestSplitFramesDropsLeadingGarbage(t *testing.T) {
	f1 := buildFrame(colorSpaceRGB, [9]byte{0, 0, 0, 0xFF, 0, 0, 0, 0, 0})
	leadingGarbage := []byte("desync-bytes-before-first-sentinel")

	buf := append(append([]byte{}, leadingGarbage...), f1...)
	frames := splitFrames(buf)

	if len(frames) != 1 {
		t.Fatalf("expected 1 complete frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], f1) {
		t.Fatalf("frame mismatch: got %x want %x", frames[0], f1)
	}
}

// TestSplitFramesNoSentinelYieldsNothing covers a read with no
// sentinel at all: there is no complete frame to emit.
func TestSplitFramesNoSentinelYieldsNothing(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	if frames := splitFrames(buf); frames != nil {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
}

// TestDecodeFrameV1RGB decodes a single v1 RGB record per §4.9: record
// layout is 1-byte type, 2-byte big-endian light id, then three
// 2-byte big-endian color channels, with only the high byte of each
// channel carrying the 0-255 value (the low byte is discarded, per the
// original implementation's int((hi*256+lo)/256) formula).
func TestDecodeFrameV1RGB(t *testing.T) {
	frame := buildFrame(colorSpaceRGB, [9]byte{0, 0x00, 0x02, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00})
	cmds := decodeFrame(frame)
	if len(cmds) != 1 {
		t.Fatalf("expected 1 light command, got %d", len(cmds))
	}
	c := cmds[0]
	if c.LightID != 2 {
		t.Fatalf("expected light id 2, got %d", c.LightID)
	}
	if c.ColorSpace != colorSpaceRGB {
		t.Fatalf("expected RGB color space, got %d", c.ColorSpace)
	}
	if c.RGB != [3]uint8{255, 0, 0} {
		t.Fatalf("expected rgb [255 0 0], got %v", c.RGB)
	}
	if c.Brightness != 85 {
		t.Fatalf("expected brightness 85, got %d", c.Brightness)
	}
}

// TestDecodeFrameV1MultipleLights verifies a frame carrying several
// light records fans out to one LightCommand per record, in order.
func TestDecodeFrameV1MultipleLights(t *testing.T) {
	frame := buildFrame(colorSpaceRGB,
		[9]byte{0, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
		[9]byte{0, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00},
	)
	cmds := decodeFrame(frame)
	if len(cmds) != 2 {
		t.Fatalf("expected 2 light commands, got %d", len(cmds))
	}
	if cmds[0].LightID != 0 || cmds[0].RGB != [3]uint8{255, 0, 0} {
		t.Fatalf("light 0 mismatch: %+v", cmds[0])
	}
	if cmds[1].LightID != 1 || cmds[1].RGB != [3]uint8{0, 255, 0} {
		t.Fatalf("light 1 mismatch: %+v", cmds[1])
	}
}

// TestDecodeFrameV1XYBrightness covers the XY+Brightness color space
// (indicator byte 1): the two channel pairs map to normalized x/y and
// the third pair's high byte carries brightness directly.
func TestDecodeFrameV1XYBrightness(t *testing.T) {
	frame := buildFrame(colorSpaceXY, [9]byte{0, 0x00, 0x00, 0x7F, 0xFF, 0x3F, 0xFF, 0x80, 0x00})
	cmds := decodeFrame(frame)
	if len(cmds) != 1 {
		t.Fatalf("expected 1 light command, got %d", len(cmds))
	}
	c := cmds[0]
	if c.ColorSpace != colorSpaceXY {
		t.Fatalf("expected XY color space, got %d", c.ColorSpace)
	}
	if c.Brightness != 0x80 {
		t.Fatalf("expected brightness 128, got %d", c.Brightness)
	}
	if c.XY[0] <= 0.49 || c.XY[0] >= 0.51 {
		t.Fatalf("expected x near 0.5, got %f", c.XY[0])
	}
}

// TestDecodeFrameTooShortIsIgnored guards against truncated frames
// (a partial header with no light records) producing no commands
// rather than panicking on an out-of-range slice.
func TestDecodeFrameTooShortIsIgnored(t *testing.T) {
	frame := []byte(sentinel)
	if cmds := decodeFrame(frame); cmds != nil {
		t.Fatalf("expected nil commands for truncated frame, got %v", cmds)
	}
}
