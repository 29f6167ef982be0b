package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manastr/validator/pkg/event"
)

// startFakeRelay runs a minimal relay server: on REQ, it replies with one
// EVENT frame carrying a blank event of kind 31000, then idles.
func startFakeRelay(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req []interface{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if len(req) < 2 {
			return
		}
		subID, _ := req[1].(string)

		ev := event.Event{Kind: event.KindMatchChallenge, PubKey: "aa", CreatedAt: 1, Tags: []event.Tag{}, Content: "{}"}
		frame := []interface{}{"EVENT", subID, ev}
		_ = conn.WriteJSON(frame)

		// keep the connection open until the test tears it down
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + srv.URL[len("http"):]
}

func TestSubscribeDeliversEvents(t *testing.T) {
	url := startFakeRelay(t)
	client := NewClient(url)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := client.Subscribe(ctx, []int{int(event.KindMatchChallenge)})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != event.KindMatchChallenge {
			t.Fatalf("expected KindMatchChallenge, got %d", ev.Kind)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestDecodeFrameIgnoresNonEventFrames(t *testing.T) {
	label, subID, ev, err := decodeFrame([]byte(`["EOSE","sub1"]`))
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if label != "EOSE" || subID != "" || ev != nil {
		t.Fatalf("expected EOSE frame to be ignored, got label=%q subID=%q ev=%v", label, subID, ev)
	}
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	if _, _, _, err := decodeFrame([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}
