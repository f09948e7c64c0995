package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/satindergrewal/segue/internal/audio"
	"gopkg.in/hraban/opus.v2"
)

// ClipChannel is the data channel label a peer opens to be told which
// clip it is hearing.
const ClipChannel = "clip"

// ClipNotice is the data channel message sent when a peer starts a clip.
type ClipNotice struct {
	Clip  int    `json:"clip"`
	Title string `json:"title"`
}

// WebRTCHandler negotiates Opus playout with peers over SDP offer/answer.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	mu          sync.Mutex
	peers       map[*webrtc.PeerConnection]string
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		peers:       make(map[*webrtc.PeerConnection]string),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	id := ListenerID(r)
	pc, track, err := h.negotiate(offer)
	if err != nil {
		log.Printf("WebRTC %s: %v", id, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	notices := &clipNotifier{}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ClipChannel {
			return
		}
		dc.OnOpen(func() {
			notices.attach(dc)
			if clip, ok := h.broadcaster.Heard(id); ok {
				notices.send(clip)
			}
		})
	})

	h.mu.Lock()
	h.peers[pc] = id
	h.mu.Unlock()
	log.Printf("WebRTC peer %s connected (total: %d)", id, h.PeerCount())

	go h.streamToPeer(id, track, notices)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			h.removePeer(pc)
			pc.Close()
			log.Printf("WebRTC peer %s disconnected (remaining: %d)", id, h.PeerCount())
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// negotiate answers offer with an Opus track and waits for ICE gathering.
func (h *WebRTCHandler) negotiate(offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, fmt.Errorf("create peer connection: %w", err)
	}
	fail := func(step string, err error) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
		pc.Close()
		return nil, nil, fmt.Errorf("%s: %w", step, err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"segue-audition",
	)
	if err != nil {
		return fail("create audio track", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail("add track", err)
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail("set remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail("create answer", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail("set local description", err)
	}
	<-webrtc.GatheringCompletePromise(pc)
	return pc, track, nil
}

func (h *WebRTCHandler) streamToPeer(id string, track *webrtc.TrackLocalStaticSample, notices *clipNotifier) {
	listener := h.broadcaster.Subscribe(id)
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("WebRTC: opus encoder error: %v", err)
		return
	}
	enc.SetBitrate(128000)

	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if listener.Take(frame) {
				notices.send(frame.Clip)
			}
			n, err := enc.Encode(frame.PCM, opusBuf)
			if err != nil {
				log.Printf("WebRTC: opus encode error: %v", err)
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, pc)
}

// clipNotifier sends clip notices once the peer's clip channel is open.
// Notices before that are dropped; the channel opens with the last heard clip.
type clipNotifier struct {
	mu sync.Mutex
	dc *webrtc.DataChannel
}

func (n *clipNotifier) attach(dc *webrtc.DataChannel) {
	n.mu.Lock()
	n.dc = dc
	n.mu.Unlock()
}

func (n *clipNotifier) send(clip int) {
	n.mu.Lock()
	dc := n.dc
	n.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return
	}
	if err := dc.SendText(string(clipNotice(clip))); err != nil {
		log.Printf("WebRTC: clip notice: %v", err)
	}
}

func clipNotice(clip int) []byte {
	msg, _ := json.Marshal(ClipNotice{Clip: clip, Title: ClipTitle(clip)})
	return msg
}
