package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Decoder turns an audio file into a mono Waveform.
type Decoder interface {
	Decode(ctx context.Context, path string) (Waveform, error)
}

// FFmpegDecoder decodes any format ffmpeg understands, downmixed to mono
// and resampled to SampleRate.
type FFmpegDecoder struct {
	SampleRate int
	Binary     string // defaults to "ffmpeg" on PATH
}

// NewFFmpegDecoder returns a decoder producing Waveforms at sampleRate.
func NewFFmpegDecoder(sampleRate int) *FFmpegDecoder {
	return &FFmpegDecoder{SampleRate: sampleRate, Binary: "ffmpeg"}
}

// Decode reads path into a mono Waveform. Missing or undecodable files
// yield a *DecodeError.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return Waveform{}, &DecodeError{Path: path, Err: err}
	}

	pcm, err := runDecode(ctx, d.binary(), path, d.SampleRate, 1)
	if err != nil {
		return Waveform{}, &DecodeError{Path: path, Err: err}
	}
	if len(pcm) == 0 {
		return Waveform{}, &DecodeError{Path: path, Err: ErrEmptyAudio}
	}

	return Waveform{Samples: PCM16ToFloat(pcm), SampleRate: d.SampleRate}, nil
}

func (d *FFmpegDecoder) binary() string {
	if d.Binary == "" {
		return "ffmpeg"
	}
	return d.Binary
}

// DecodeFile runs FFmpeg to decode an audio file to raw PCM int16 samples.
// Returns interleaved stereo samples at 48kHz, ready for the audition stream.
func DecodeFile(ctx context.Context, path string) ([]int16, error) {
	samples, err := runDecode(ctx, "ffmpeg", path, SampleRate, Channels)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return samples, nil
}

func runDecode(ctx context.Context, bin, path string, rate, channels int) ([]int16, error) {
	cmd := exec.CommandContext(ctx, bin,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	return BytesToSamples(out), nil
}

// BytesToSamples decodes little-endian int16 PCM. A trailing odd byte is dropped.
func BytesToSamples(buf []byte) []int16 {
	// Ensure even byte count for int16 alignment
	if len(buf)%2 != 0 {
		buf = buf[:len(buf)-1]
	}

	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// PCM16ToFloat scales int16 samples to [-1, 1).
func PCM16ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768
	}
	return out
}

// FloatToPCM16 scales and clips float samples to int16.
func FloatToPCM16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767
		// Clip to int16 range
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
