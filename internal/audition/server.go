package audition

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/satindergrewal/segue/internal/stream"
)

// Server exposes playout, streams and the rating API over HTTP.
type Server struct {
	player      *Player
	ratings     *RatingLog
	broadcaster *stream.Broadcaster
	webrtc      *stream.WebRTCHandler
	clips       map[int]Clip
	page        []byte
	ffmpeg      string
}

// NewServer wires the HTTP surface. clips resolves the clip a listener
// heard back to its study file; page is served at "/".
func NewServer(p *Player, ratings *RatingLog, b *stream.Broadcaster, clips []Clip, page []byte, ffmpeg string) *Server {
	byNumber := make(map[int]Clip, len(clips))
	for _, c := range clips {
		byNumber[c.Number] = c
	}
	return &Server{
		player:      p,
		ratings:     ratings,
		broadcaster: b,
		webrtc:      stream.NewWebRTCHandler(b),
		clips:       byNumber,
		page:        page,
		ffmpeg:      ffmpeg,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(s.page)
	})

	mux.Handle("/stream", stream.NewHTTPHandler(s.broadcaster, s.ffmpeg))
	mux.Handle("/offer", s.webrtc)

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/skip", s.handleSkip)
	mux.HandleFunc("/api/rate", s.handleRate)
	return mux
}

// heardClip is the clip a listener is rating: the last one its stream
// played, else whatever the player is on.
func (s *Server) heardClip(listener string) Clip {
	if n, ok := s.broadcaster.Heard(listener); ok {
		if c, ok := s.clips[n]; ok {
			return c
		}
		return Clip{Number: n}
	}
	return s.player.Status().Clip
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.player.Status()
	resp := map[string]any{
		"clip":             st.Clip.Number,
		"file":             st.Clip.File,
		"playing":          st.Playing,
		"position":         st.Position.Seconds(),
		"duration":         st.Duration.Seconds(),
		"queue_size":       st.Queued,
		"frames_sent":      s.broadcaster.FramesSent(),
		"live_clip":        s.broadcaster.Clip(),
		"http_listeners":   s.broadcaster.ListenerCount(),
		"webrtc_listeners": s.webrtc.PeerCount(),
	}
	if n, ok := s.broadcaster.Heard(r.URL.Query().Get("listener")); ok {
		resp["heard"] = n
		resp["heard_title"] = stream.ClipTitle(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	s.player.Skip()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Rating   int    `json:"rating"`
		Listener string `json:"listener"` // stream listener id
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Listener == "" {
		req.Listener = r.RemoteAddr
	}
	who := req.Name
	if who == "" {
		who = req.Listener
	}

	clip := s.heardClip(req.Listener)
	err := s.ratings.Append(Rating{
		Time:     time.Now(),
		Clip:     clip.Number,
		File:     clip.File,
		Score:    req.Rating,
		Listener: who,
	})
	switch {
	case errors.Is(err, ErrInvalidRating):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil && clip.Number == 0:
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		log.Printf("Rating write failed: %v", err)
		http.Error(w, "rating not saved", http.StatusInternalServerError)
		return
	}
	log.Printf("Rating: clip=%s rating=%d listener=%s", clip.File, req.Rating, who)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "clip": clip.Number})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
