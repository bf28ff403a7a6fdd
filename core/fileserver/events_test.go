package fileserver

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docserve/docserve/core/tempstore"
)

func TestStreamDeliversLifecycleEvents(t *testing.T) {
	srv, store := newTestServer(t)

	ts := newIPv4Server(t, srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register the client channel.
	time.Sleep(20 * time.Millisecond)

	rec := createServerFile(t, store, "streamed.docx", time.Hour)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var ev tempstore.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	if ev.Kind != tempstore.EventRegistered || ev.FileID != rec.FileID {
		t.Fatalf("event %+v", ev)
	}
}

func TestBroadcastEvictsSlowStreamClient(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := newIPv4Server(t, srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// A full send buffer makes the client slow on the next broadcast.
	stuck := make(chan tempstore.Event, 1)
	stuck <- tempstore.Event{Kind: tempstore.EventRegistered}
	srv.clientsMu.Lock()
	srv.clients[conn] = stuck
	srv.clientsMu.Unlock()

	srv.eventsCh <- tempstore.Event{Kind: tempstore.EventDownloaded, FileID: "f1"}

	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.clientsMu.RLock()
		_, present := srv.clients[conn]
		srv.clientsMu.RUnlock()
		if !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("slow client was not evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	<-stuck
	if _, ok := <-stuck; ok {
		t.Fatal("evicted client channel left open")
	}
}

// newIPv4Server ensures tests work in sandboxes without IPv6 listeners.
func newIPv4Server(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: unable to listen on ipv4 loopback (%v)", err)
	}
	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = ln
	srv.Start()
	return srv
}
