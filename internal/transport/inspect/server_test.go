package inspect

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"testing"

	"botlink.gg/internal/controller"
	"botlink.gg/internal/protocol"
)

type nullSlot struct{}

func (nullSlot) Poll() (string, bool) { return "", false }
func (nullSlot) Emit(string) error    { return nil }

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestServer() *Server {
	return NewServer(controller.New(nullSlot{}, quiet()), quiet())
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:52341", true},
		{"[::1]:52341", true},
		{"192.168.1.5:1000", false},
		{"example.com:80", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isLoopbackRemote(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemote(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestBootstrap_RejectsNonLoopback(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/bootstrap", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != 403 {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestBootstrap_ReportsStatus(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ProtocolVersion != protocol.Version {
		t.Fatalf("protocol_version = %q", resp.ProtocolVersion)
	}
}

func TestRecord_FanOutAndTagFilter(t *testing.T) {
	s := newTestServer()

	all := make(chan []byte, 4)
	acksOnly := make(chan []byte, 4)
	s.attach(1, all, nil)
	s.attach(2, acksOnly, []string{protocol.TagAck})

	s.Record(controller.TranscriptEntry{Direction: controller.DirSend, Tag: protocol.TagCommand, UID: 1})
	s.Record(controller.TranscriptEntry{Direction: controller.DirRecv, Tag: protocol.TagAck, UID: 1})

	if len(all) != 2 {
		t.Fatalf("unfiltered subscriber got %d entries, want 2", len(all))
	}
	if len(acksOnly) != 1 {
		t.Fatalf("filtered subscriber got %d entries, want 1", len(acksOnly))
	}
	var e controller.TranscriptEntry
	if err := json.Unmarshal(<-acksOnly, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Tag != protocol.TagAck {
		t.Fatalf("tag = %q, want %q", e.Tag, protocol.TagAck)
	}

	s.detach(1)
	s.detach(2)
}

func TestRecord_DropsWhenSubscriberFull(t *testing.T) {
	s := newTestServer()
	out := make(chan []byte, 1)
	s.attach(1, out, nil)
	defer s.detach(1)

	s.Record(controller.TranscriptEntry{Tag: protocol.TagCommand, UID: 1})
	s.Record(controller.TranscriptEntry{Tag: protocol.TagCommand, UID: 2})

	if len(out) != 1 {
		t.Fatalf("queue length = %d, want 1 (overflow dropped)", len(out))
	}
}
