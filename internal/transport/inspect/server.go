// Package inspect serves a read-only view of the channel to local
// tooling: an HTTP bootstrap with controller status and a websocket
// stream of transcript entries. Loopback connections only.
package inspect

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"botlink.gg/internal/controller"
	"botlink.gg/internal/protocol"
)

type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tags            []string `json:"tags,omitempty"`
}

type BootstrapResponse struct {
	ProtocolVersion string                    `json:"protocol_version"`
	Status          controller.StatusSnapshot `json:"status"`
}

type subscriber struct {
	out  chan []byte
	tags map[string]bool
}

type Server struct {
	ctrl *controller.Controller
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[uint64]*subscriber
}

func NewServer(ctrl *controller.Controller, logger *log.Logger) *Server {
	return &Server{
		ctrl: ctrl,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[uint64]*subscriber),
	}
}

// Record implements controller.Sink. Slow subscribers lose entries
// rather than stalling the channel.
func (s *Server) Record(e controller.TranscriptEntry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if len(sub.tags) > 0 && !sub.tags[e.Tag] {
			continue
		}
		select {
		case sub.out <- b:
		default:
		}
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			Status:          s.ctrl.Status(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := s.nextID.Add(1)
		out := make(chan []byte, 4096)
		s.attach(sid, out, sub.Tags)
		defer s.detach(sid)

		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates to change the tag filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != protocol.Version {
				continue
			}
			s.retag(sid, upd.Tags)
		}

		s.detach(sid)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) attach(id uint64, out chan []byte, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = &subscriber{out: out, tags: tagSet(tags)}
}

func (s *Server) retag(id uint64, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		sub.tags = tagSet(tags)
	}
}

func (s *Server) detach(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(sub.out)
	}
}

func tagSet(tags []string) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
