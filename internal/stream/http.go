package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/satindergrewal/segue/internal/audio"
)

// MetaInt is the number of audio bytes between ICY metadata blocks.
const MetaInt = 16000

// ListenerID names the listener behind a stream or API request: the
// listener query parameter, else the remote address.
func ListenerID(r *http.Request) string {
	if id := r.URL.Query().Get("listener"); id != "" {
		return id
	}
	return r.RemoteAddr
}

// HTTPHandler serves the audition as MP3 through a per-connection ffmpeg
// process. Clients sending Icy-MetaData: 1 get the clip title in-band.
type HTTPHandler struct {
	broadcaster *Broadcaster
	binary      string
}

// NewHTTPHandler creates an HTTP stream handler. An empty binary means
// "ffmpeg" from PATH.
func NewHTTPHandler(b *Broadcaster, binary string) *HTTPHandler {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &HTTPHandler{broadcaster: b, binary: binary}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	id := ListenerID(r)
	icy := r.Header.Get("Icy-MetaData") == "1"

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("icy-name", "segue audition")
	if icy {
		w.Header().Set("icy-metaint", strconv.Itoa(MetaInt))
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := h.encoder(ctx)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Printf("HTTP stream: stdin pipe error: %v", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Printf("HTTP stream: stdout pipe error: %v", err)
		return
	}
	if err := cmd.Start(); err != nil {
		log.Printf("HTTP stream: ffmpeg start error: %v", err)
		return
	}

	listener := h.broadcaster.Subscribe(id)
	defer h.broadcaster.Unsubscribe(listener)

	log.Printf("HTTP listener %s connected (total: %d)", id, h.broadcaster.ListenerCount())
	defer log.Printf("HTTP listener %s disconnected", id)

	var clip atomic.Int64
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				if listener.Take(frame) {
					clip.Store(int64(frame.Clip))
					log.Printf("HTTP listener %s: %s", id, ClipTitle(frame.Clip))
				}
				if _, err := stdin.Write(audio.SamplesToBytes(frame.PCM)); err != nil {
					return
				}
			}
		}
	}()

	var out io.Writer = w
	if icy {
		out = newICYWriter(w, MetaInt, func() string { return ClipTitle(int(clip.Load())) })
	}

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("HTTP stream: ffmpeg read error: %v", err)
			}
			break
		}
	}

	cmd.Wait()
}

// encoder turns s16le PCM on stdin into MP3 on stdout.
func (h *HTTPHandler) encoder(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binary,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
}

// icyWriter interleaves SHOUTcast metadata after every metaint audio bytes.
// A block is only spelled out when the title changed; otherwise it is the
// single zero length byte.
type icyWriter struct {
	w       io.Writer
	metaint int
	left    int
	title   func() string
	sent    string
}

func newICYWriter(w io.Writer, metaint int, title func() string) *icyWriter {
	return &icyWriter{w: w, metaint: metaint, left: metaint, title: title}
}

func (iw *icyWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if iw.left == 0 {
			if err := iw.writeMeta(); err != nil {
				return written, err
			}
			iw.left = iw.metaint
		}
		n := min(len(p), iw.left)
		m, err := iw.w.Write(p[:n])
		written += m
		iw.left -= m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

func (iw *icyWriter) writeMeta() error {
	title := iw.title()
	if title == iw.sent {
		_, err := iw.w.Write([]byte{0})
		return err
	}
	iw.sent = title
	_, err := iw.w.Write(icyBlock(title))
	return err
}

// icyBlock encodes a StreamTitle block: a length byte in 16-byte units
// followed by the zero padded text.
func icyBlock(title string) []byte {
	text := fmt.Sprintf("StreamTitle='%s';", strings.ReplaceAll(title, "'", ""))
	if len(text) > 255*16 {
		text = text[:255*16]
	}
	units := (len(text) + 15) / 16
	block := make([]byte, 1+units*16)
	block[0] = byte(units)
	copy(block[1:], text)
	return block
}
