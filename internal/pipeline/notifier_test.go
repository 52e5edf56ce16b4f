package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var testSignal = Signal{
	UserID:      "user-1",
	Added:       []string{"NVDA", "AMD"},
	Removed:     []string{"INTC"},
	RequestedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestLogNotifier_WritesSignal(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := n.Notify(context.Background(), testSignal); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log output: %v", err)
	}
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", entry["user_id"])
	}
}

func TestHTTPNotifier_PostsJSON(t *testing.T) {
	var got Signal
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, srv.Client())
	if err := n.Notify(context.Background(), testSignal); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.UserID != "user-1" || len(got.Added) != 2 || got.Removed[0] != "INTC" {
		t.Errorf("body = %+v", got)
	}
	if !got.RequestedAt.Equal(testSignal.RequestedAt) {
		t.Errorf("RequestedAt = %v, want %v", got.RequestedAt, testSignal.RequestedAt)
	}
}

func TestHTTPNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPNotifier(srv.URL, srv.Client()).Notify(context.Background(), testSignal)
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want status 500 error", err)
	}
}

type mockPublisher struct {
	channel string
	message interface{}
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	m.channel = channel
	m.message = message
	return redis.NewIntResult(0, m.err)
}

func TestRedisNotifier_Publishes(t *testing.T) {
	pub := &mockPublisher{}
	n := NewRedisNotifier(pub, "portfolio:interest-registration")

	if err := n.Notify(context.Background(), testSignal); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if pub.channel != "portfolio:interest-registration" {
		t.Errorf("channel = %q", pub.channel)
	}
	body, ok := pub.message.([]byte)
	if !ok {
		t.Fatalf("message type = %T, want []byte", pub.message)
	}
	var got Signal
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("user_id = %q", got.UserID)
	}
}

func TestRedisNotifier_PublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("redis down")}

	err := NewRedisNotifier(pub, "ch").Notify(context.Background(), testSignal)
	if err == nil {
		t.Fatal("expected error")
	}
}
