package audio

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

// Metadata is written into the encoded file where the container supports it.
type Metadata struct {
	Title       string
	Album       string
	Comment     string
	TrackNumber int
}

// Encoder writes a Waveform to path. Implementations never leave a
// partially written file at path.
type Encoder interface {
	Encode(ctx context.Context, path string, w Waveform, meta Metadata) error
}

// Formats lists the output formats NewEncoder accepts.
func Formats() []string {
	return []string{"mp3", "flac", "wav", "opus"}
}

// NewEncoder returns the encoder for an output format name.
func NewEncoder(format string) (Encoder, error) {
	switch strings.ToLower(format) {
	case "mp3", "flac", "wav":
		return &FFmpegEncoder{Format: strings.ToLower(format), Binary: "ffmpeg"}, nil
	case "opus", "ogg":
		return &OpusEncoder{Bitrate: 96000}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q (want one of %s)", format, strings.Join(Formats(), ", "))
}

var ffmpegCodecArgs = map[string][]string{
	"mp3":  {"-codec:a", "libmp3lame", "-b:a", "192k", "-f", "mp3"},
	"flac": {"-codec:a", "flac", "-f", "flac"},
	"wav":  {"-codec:a", "pcm_s16le", "-f", "wav"},
}

// FFmpegEncoder pipes 16-bit PCM into ffmpeg. MP3 output gets ID3 tags.
type FFmpegEncoder struct {
	Format string
	Binary string
}

func (e *FFmpegEncoder) Encode(ctx context.Context, path string, w Waveform, meta Metadata) error {
	codec, ok := ffmpegCodecArgs[e.Format]
	if !ok {
		return fmt.Errorf("ffmpeg encoder: unsupported format %q", e.Format)
	}
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	return writeAtomic(path, func(tmp string) error {
		args := []string{
			"-f", "s16le",
			"-ar", strconv.Itoa(w.SampleRate),
			"-ac", "1",
			"-i", "pipe:0",
		}
		args = append(args, codec...)
		args = append(args, "-loglevel", "error", "-y", tmp)

		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Stdin = bytes.NewReader(SamplesToBytes(FloatToPCM16(w.Samples)))
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("ffmpeg encode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
		}

		if e.Format == "mp3" {
			return TagMP3(tmp, meta)
		}
		return nil
	})
}

// TagMP3 writes title, album, track number and comment frames.
func TagMP3(path string, meta Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		return fmt.Errorf("open id3 tag %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}
	if meta.Album != "" {
		tag.SetAlbum(meta.Album)
	}
	if meta.TrackNumber > 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(meta.TrackNumber))
	}
	if meta.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "segue",
			Text:        meta.Comment,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag %s: %w", path, err)
	}
	return nil
}

// OpusEncoder writes Ogg Opus without an external process. The waveform
// is resampled to 48kHz and encoded in 20ms mono frames.
type OpusEncoder struct {
	Bitrate int
}

func (e *OpusEncoder) Encode(ctx context.Context, path string, w Waveform, _ Metadata) error {
	pcm, err := to48k(w)
	if err != nil {
		return err
	}

	enc, err := opus.NewEncoder(SampleRate, 1, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}
	if e.Bitrate > 0 {
		if err := enc.SetBitrate(e.Bitrate); err != nil {
			return fmt.Errorf("opus bitrate: %w", err)
		}
	}

	return writeAtomic(path, func(tmp string) error {
		ogg, err := oggwriter.New(tmp, SampleRate, 1)
		if err != nil {
			return fmt.Errorf("ogg writer: %w", err)
		}

		frame := make([]int16, FrameSize)
		buf := make([]byte, 4000)
		ssrc := rand.Uint32()
		for i, seq := 0, uint16(0); i < len(pcm); i, seq = i+FrameSize, seq+1 {
			if err := ctx.Err(); err != nil {
				ogg.Close()
				return err
			}
			n := copy(frame, pcm[i:])
			clear(frame[n:])

			size, err := enc.Encode(frame, buf)
			if err != nil {
				ogg.Close()
				return fmt.Errorf("opus encode: %w", err)
			}
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    111,
					SequenceNumber: seq,
					Timestamp:      uint32(i),
					SSRC:           ssrc,
				},
				Payload: buf[:size],
			}
			if err := ogg.WriteRTP(pkt); err != nil {
				ogg.Close()
				return fmt.Errorf("ogg write: %w", err)
			}
		}
		return ogg.Close()
	})
}

// to48k converts w to int16 PCM at the playout rate.
func to48k(w Waveform) ([]int16, error) {
	if w.SampleRate == SampleRate {
		return FloatToPCM16(w.Samples), nil
	}
	rs, err := resample.NewForRates(float64(w.SampleRate), SampleRate, resample.WithQuality(resample.QualityBalanced))
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", w.SampleRate, SampleRate, err)
	}
	return FloatToPCM16(rs.Process(w.Samples)), nil
}

// writeAtomic lets write produce a temporary sibling of path and renames it
// into place only when write succeeds.
func writeAtomic(path string, write func(tmp string) error) error {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base+".part")

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
