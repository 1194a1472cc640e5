package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotWAV     = errors.New("not a wav file")
	ErrInvalidWAV = errors.New("invalid wav file")
)

// Info describes the format of a PCM WAV file as read from its header.
type Info struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataBytes     int64
	Duration      time.Duration
}

// IsWAVPath reports whether the path looks like a WAV file by extension.
// Non-WAV inputs skip probing; the transcription engine decides whether it
// can decode them.
func IsWAVPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ProbeWAV walks the RIFF chunks of a WAV file and returns its format info.
// It reads only headers, never the sample data.
func ProbeWAV(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Info{}, fmt.Errorf("%w: truncated header", ErrInvalidWAV)
		}
		return Info{}, fmt.Errorf("read wav header: %w", err)
	}

	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Info{}, ErrNotWAV
	}

	var (
		info    Info
		hasFmt  bool
		hasData bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Info{}, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		// Chunks are word-aligned; odd sizes carry one padding byte.
		skip := int64(chunkSize)
		if chunkSize%2 != 0 {
			skip++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Info{}, fmt.Errorf("%w: fmt chunk too small", ErrInvalidWAV)
			}

			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return Info{}, fmt.Errorf("read wav fmt chunk: %w", err)
			}

			info.Format = binary.LittleEndian.Uint16(buf[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))
			hasFmt = true

			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return Info{}, fmt.Errorf("seek wav fmt padding: %w", err)
				}
			}
		case "data":
			info.DataBytes = int64(chunkSize)
			hasData = true
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("seek wav data chunk: %w", err)
			}
		default:
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}

		if hasFmt && hasData {
			break
		}
	}

	if !hasFmt || !hasData {
		return Info{}, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidWAV)
	}

	if info.Channels > 0 && info.SampleRate > 0 && info.BitsPerSample > 0 {
		bytesPerSecond := int64(info.SampleRate) * int64(info.Channels) * int64(info.BitsPerSample/8)
		if bytesPerSecond > 0 {
			info.Duration = time.Duration(float64(info.DataBytes) / float64(bytesPerSecond) * float64(time.Second))
		}
	}

	return info, nil
}
