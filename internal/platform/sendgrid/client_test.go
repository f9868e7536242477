package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, url string) *client {
	t.Helper()
	c, err := New(logger.Nop(), Config{
		APIKey:        "SG.test",
		BaseURL:       url,
		FromEmail:     "noreply@trainhub.test",
		FromName:      "TrainHub",
		MaxRetries:    2,
		SubjectPrefix: "[TrainHub] ",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sc := c.(*client)
	sc.backoff = time.Millisecond
	return sc
}

func TestSendBuildsMailV3Payload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != mailSendEndpoint || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer SG.test" {
			t.Errorf("authorization header: %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).Send(context.Background(), Message{
		To:      "trainee@example.com",
		ToName:  "Trainee",
		Subject: "Task due tomorrow",
		Text:    "Reminder",
		HTML:    "<p>Reminder</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || res.MessageID != "msg-1" {
		t.Fatalf("result: %+v", res)
	}
	p := got["personalizations"].([]any)[0].(map[string]any)
	if p["subject"] != "[TrainHub] Task due tomorrow" {
		t.Fatalf("subject: %v", p["subject"])
	}
	content := got["content"].([]any)
	if len(content) != 2 || content[0].(map[string]any)["type"] != "text/plain" {
		t.Fatalf("content: %v", content)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Send(context.Background(), Message{To: "a@b.c", Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid to address"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Send(context.Background(), Message{To: "a@b.c", Subject: "s", Text: "t"})
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest || he.Message != "invalid to address" {
		t.Fatalf("expected parsed 400, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestSendValidatesMessage(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	for _, msg := range []Message{
		{Subject: "s", Text: "t"},
		{To: "a@b.c", Text: "t"},
		{To: "a@b.c", Subject: "s"},
	} {
		if _, err := c.Send(context.Background(), msg); err == nil {
			t.Fatalf("expected validation error for %+v", msg)
		}
	}
}

func TestNewWithoutKeyLogsOnly(t *testing.T) {
	c, err := New(logger.Nop(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.(*logClient); !ok {
		t.Fatalf("expected log client, got %T", c)
	}
	if _, err := c.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("log client Send: %v", err)
	}
}
