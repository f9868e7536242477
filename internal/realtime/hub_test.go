package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(logger.Nop(), nil)
	userID := uuid.New()
	channel := UserChannel(userID)

	clientA := hub.NewSSEClient(userID)
	hub.AddChannel(clientA, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventNotification, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventProgress, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventNotification {
		t.Fatalf("first event: got=%s", got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventProgress {
		t.Fatalf("second event: got=%s", got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("client count: want=0 got=%d", hub.ClientCount())
	}

	clientB := hub.NewSSEClient(userID)
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCourseUpdated})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventCourseUpdated {
		t.Fatalf("reconnect event: got=%s", got.Event)
	}
}

func TestSSEHubIsolatesChannels(t *testing.T) {
	hub := NewSSEHub(logger.Nop(), nil)
	a := hub.NewSSEClient(uuid.New())
	b := hub.NewSSEClient(uuid.New())
	hub.AddChannel(a, "user:a")
	hub.AddChannel(b, "user:b")

	hub.Broadcast(SSEMessage{Channel: "user:a", Event: SSEEventNotification})
	recvMessage(t, a.Outbound, time.Second)
	select {
	case m := <-b.Outbound:
		t.Fatalf("client b received %v", m)
	default:
	}

	hub.RemoveChannel(a, "user:a")
	hub.Broadcast(SSEMessage{Channel: "user:a", Event: SSEEventNotification})
	select {
	case m := <-a.Outbound:
		t.Fatalf("unsubscribed client received %v", m)
	default:
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.Nop(), nil)
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, "ch")
	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: "ch", Event: SSEEventProgress})
	}
	if len(c.Outbound) != outboundBuffer {
		t.Fatalf("buffer: want=%d got=%d", outboundBuffer, len(c.Outbound))
	}
}

func TestServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(logger.Nop(), nil)
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, "ch")
	hub.Broadcast(SSEMessage{Channel: "ch", Event: SSEEventNotification, Data: map[string]string{"title": "hi"}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil)
	done := make(chan struct{})
	go func() {
		hub.ServeHTTP(rec, req, c)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	hub.CloseClient(c)
	<-done

	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("content type: %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: notification\n") || !strings.Contains(body, `"title":"hi"`) {
		t.Fatalf("unexpected body: %q", body)
	}
}
