// Package wav reads the header of RIFF/WAVE PCM payloads produced by audio
// extraction.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed reports bytes that are not a readable PCM WAV stream.
var ErrMalformed = errors.New("malformed wav")

// Format describes a PCM WAV stream.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataBytes     int64
}

// Duration returns the stream length in seconds.
func (f Format) Duration() float64 {
	bytesPerSecond := f.SampleRate * f.Channels * f.BitsPerSample / 8
	if bytesPerSecond <= 0 {
		return 0
	}
	return float64(f.DataBytes) / float64(bytesPerSecond)
}

// Parse walks the RIFF chunks until the fmt and data chunks are found. A data
// chunk whose declared size runs past the buffer (ffmpeg writes 0xFFFFFFFF
// when streaming to a pipe) is clamped to the bytes present.
func Parse(data []byte) (Format, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return Format{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrMalformed)
	}
	var (
		format    Format
		sawFormat bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int64(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Format{}, fmt.Errorf("%w: short fmt chunk", ErrMalformed)
			}
			if tag := binary.LittleEndian.Uint16(data[body : body+2]); tag != 1 && tag != 0xFFFE {
				return Format{}, fmt.Errorf("%w: unsupported encoding tag %d", ErrMalformed, tag)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFormat = true
		case "data":
			if !sawFormat {
				return Format{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			if remaining := int64(len(data) - body); size > remaining {
				size = remaining
			}
			format.DataBytes = size
			return format, nil
		}
		next := int64(body) + size
		if size%2 == 1 {
			next++
		}
		if next > int64(len(data)) {
			break
		}
		offset = int(next)
	}
	return Format{}, fmt.Errorf("%w: no data chunk", ErrMalformed)
}

// Duration returns the length in seconds of a PCM WAV payload.
func Duration(data []byte) (float64, error) {
	format, err := Parse(data)
	if err != nil {
		return 0, err
	}
	return format.Duration(), nil
}
