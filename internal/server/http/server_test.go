package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/sluicelabs/sluice/internal/durablelog"
	"github.com/sluicelabs/sluice/internal/topic"
	"github.com/sluicelabs/sluice/internal/writer"
)

func newTestServer(t *testing.T) (*httptest.Server, *writer.Core) {
	t.Helper()
	dir := t.TempDir()
	store, err := durablelog.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := topic.New()
	w := writer.New(store, reg, writer.Config{MaxBatchSize: 4, MaxBatchLinger: 2 * time.Millisecond, WriteQueueCapacity: 64}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	s := New(w, store, reg, nil, nil)
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return ts, w
}

func TestHandlePublishAndListTopics(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(publishRequest{Topic: "orders", Payload: []byte("hello"), Attributes: map[string]string{"k": "v"}})
	resp, err := http.Post(ts.URL+"/v1/topics/publish", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("publish request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var pr publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		t.Fatalf("decode publish response: %v", err)
	}
	if pr.Sequence != 1 {
		t.Fatalf("expected sequence 1, got %d", pr.Sequence)
	}

	listResp, err := http.Get(ts.URL + "/v1/topics")
	if err != nil {
		t.Fatalf("list topics request: %v", err)
	}
	defer listResp.Body.Close()
	var lr listTopicsResponse
	if err := json.NewDecoder(listResp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(lr.Topics) != 1 || lr.Topics[0].Name != "orders" {
		t.Fatalf("expected one topic named orders, got %+v", lr.Topics)
	}
}

func TestHandlePublishRejectsEmptyTopic(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(publishRequest{Topic: "", Payload: []byte("x")})
	resp, err := http.Post(ts.URL+"/v1/topics/publish", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("publish request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebSocketSubscribeDeliversPublishedMessage(t *testing.T) {
	ts, w := newTestServer(t)

	if _, err := w.EnsureTopic(context.Background(), "orders"); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}
	if _, err := w.Publish(context.Background(), "orders", nil, []byte("first")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/topics/subscribe"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	init := wsFrame{Type: "init", Topic: "orders", Group: "g1", InitialPosition: "earliest"}
	if err := conn.WriteJSON(init); err != nil {
		t.Fatalf("write init: %v", err)
	}
	credit := wsFrame{Type: "credit", N: 1}
	if err := conn.WriteJSON(credit); err != nil {
		t.Fatalf("write credit: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got wsFrame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read delivery: %v", err)
	}
	if got.Type != "message" || got.Sequence != 1 {
		t.Fatalf("expected message seq 1, got %+v", got)
	}
}
