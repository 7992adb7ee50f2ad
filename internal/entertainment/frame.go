// Package entertainment runs the Entertainment streaming server (§4.9):
// a DTLS-PSK UDP listener on port 2100 that demultiplexes high-rate
// per-light color frames and fans them through the normal device
// throttle gate.
package entertainment

import "bytes"

const (
	sentinel = "HueStream"

	// headerSizeV1 is the offset at which light records begin for
	// protocol version 1 (no UUID block).
	headerSizeV1 = 16
	// headerSizeV2 carries a 36-byte UUID plus padding before the
	// light records begin.
	headerSizeV2   = 52
	lightRecordLen = 9

	colorSpaceRGB = 0
	colorSpaceXY  = 1
)

// LightCommand is one decoded per-light instruction from a streaming
// frame, ready to hand to command.New+setters.
type LightCommand struct {
	LightID    uint16
	ColorSpace int
	RGB        [3]uint8
	XY         [2]float64
	Brightness uint8
}

// splitFrames splits buf on the "HueStream" sentinel, dropping
// whatever precedes the first occurrence as a partial header (§4.9,
// §8 property 10: "for any byte sequence s1·s2·...·sn each prefixed
// by HueStream, the parser emits exactly n frames in order"). Each
// read off the Entertainment connection already carries one or more
// complete, sentinel-delimited frames — the transport is UDP/DTLS, so
// message boundaries are preserved per Read() and no frame ever spans
// two reads — which is why, unlike a byte-stream demuxer, this never
// needs to hold a trailing chunk back as a partial remainder.
func splitFrames(buf []byte) [][]byte {
	parts := bytes.Split(buf, []byte(sentinel))
	if len(parts) <= 1 {
		return nil
	}
	frames := make([][]byte, 0, len(parts)-1)
	for _, p := range parts[1:] {
		frames = append(frames, append([]byte(sentinel), p...))
	}
	return frames
}

// decodeFrame parses one complete "HueStream..." frame into its
// constituent light commands, per the header layout in §4.9.
func decodeFrame(frame []byte) []LightCommand {
	const minHeader = 9 + 7
	if len(frame) < minHeader {
		return nil
	}

	version := frame[9]
	colorSpace := colorSpaceRGB
	if frame[14] != 0 {
		colorSpace = colorSpaceXY
	}

	start := headerSizeV1
	if version != 1 {
		start = headerSizeV2
	}
	if start >= len(frame) {
		return nil
	}

	records := frame[start:]
	var out []LightCommand
	for len(records) >= lightRecordLen {
		rec := records[:lightRecordLen]
		records = records[lightRecordLen:]

		lightID := uint16(rec[1])<<8 | uint16(rec[2])
		cmd := LightCommand{LightID: lightID, ColorSpace: colorSpace}

		c1 := uint16(rec[3])<<8 | uint16(rec[4])
		c2 := uint16(rec[5])<<8 | uint16(rec[6])
		c3 := uint16(rec[7])<<8 | uint16(rec[8])

		if colorSpace == colorSpaceRGB {
			// Per the original implementation's formula
			// int((hi*256+lo)/256): the low byte's fractional
			// contribution is always discarded, so this reduces to
			// the high byte of each 16-bit channel.
			cmd.RGB = [3]uint8{rec[3], rec[5], rec[7]}
			cmd.Brightness = uint8((int(cmd.RGB[0]) + int(cmd.RGB[1]) + int(cmd.RGB[2])) / 3)
		} else {
			cmd.XY = [2]float64{float64(c1) / 65535, float64(c2) / 65535}
			cmd.Brightness = rec[7]
			_ = c3 // third channel unused in XY+Brightness mode
		}

		out = append(out, cmd)
	}
	return out
}
