package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/sluicelabs/sluice/internal/subscription"
	"github.com/sluicelabs/sluice/pkg/log"
)

var errInvalidFirstFrame = errors.New("first frame must be type \"init\"")

// upgrader follows the same-origin check sneh-joshi-epochq's websocket
// transport uses: non-browser clients (no Origin header) are always
// allowed, browser clients must match Host.
var upgrader = gorillaws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		return u.Host == r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsFrame is the envelope for every frame in both directions; fields not
// relevant to Type are omitted by the sender and ignored by the receiver.
type wsFrame struct {
	Type string `json:"type"`

	// init
	Topic           string `json:"topic,omitempty"`
	Group           string `json:"group,omitempty"`
	ConsumerID      string `json:"consumer_id,omitempty"`
	InitialPosition string `json:"initial_position,omitempty"` // "earliest" | "latest"

	// credit
	N uint32 `json:"n,omitempty"`

	// ack / message
	MessageID string            `json:"message_id,omitempty"`
	Sequence  uint64            `json:"sequence,omitempty"`
	Timestamp int64             `json:"timestamp_ms,omitempty"`
	Attrs     map[string]string `json:"attributes,omitempty"`
	Payload   []byte            `json:"payload,omitempty"`

	// close
	Status string `json:"status,omitempty"`
}

type wsSink struct {
	conn *gorillaws.Conn
	mu   *sync.Mutex
}

func (s wsSink) Send(m subscription.MessageDelivery) error {
	frame := wsFrame{
		Type:      "message",
		MessageID: m.MessageID.String(),
		Sequence:  m.Sequence,
		Timestamp: m.Timestamp,
		Attrs:     m.Attrs,
		Payload:   m.Payload,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(gorillaws.TextMessage, data)
}

// handleSubscribe upgrades the connection and drives one Subscription
// Engine session end-to-end: a reader goroutine decodes upstream frames
// onto a channel, Session.Run consumes them and pushes deliveries back
// through wsSink, and the terminal Status is sent as a final close frame.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", log.Err(err))
		}
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	sink := wsSink{conn: conn, mu: &writeMu}

	first, err := readInitFrame(conn)
	if err != nil {
		sendClose(conn, &writeMu, "InvalidArgument")
		return
	}

	init := subscription.Init{
		Topic:      first.Topic,
		Group:      first.Group,
		ConsumerID: first.ConsumerID,
	}
	if first.InitialPosition == "earliest" {
		init.InitialPosition = subscription.Earliest
	} else {
		init.InitialPosition = subscription.Latest
	}

	upstream := make(chan subscription.UpstreamFrame, 64)
	readerDone := make(chan struct{})
	go runReader(conn, upstream, readerDone)

	sess, err := subscription.Open(r.Context(), s.store, s.registry, s.writer, s.metrics, init, upstream, sink)
	if err != nil {
		sendClose(conn, &writeMu, "NotFound")
		return
	}

	status := sess.Run(r.Context())
	sendClose(conn, &writeMu, status.String())
	<-readerDone
}

func readInitFrame(conn *gorillaws.Conn) (wsFrame, error) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return wsFrame{}, err
	}
	var f wsFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return wsFrame{}, err
	}
	if f.Type != "init" {
		return wsFrame{}, errInvalidFirstFrame
	}
	return f, nil
}

// runReader decodes every subsequent client frame into an UpstreamFrame and
// forwards it, closing upstream (and therefore ending Session.Run) when the
// connection drops.
func runReader(conn *gorillaws.Conn, upstream chan<- subscription.UpstreamFrame, done chan<- struct{}) {
	defer close(done)
	defer close(upstream)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f wsFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		switch f.Type {
		case "credit":
			upstream <- subscription.CreditGrant{N: f.N}
		case "ack":
			id, _ := uuid.Parse(f.MessageID)
			upstream <- subscription.Ack{MessageID: id, Sequence: f.Sequence}
		}
	}
}

func sendClose(conn *gorillaws.Conn, mu *sync.Mutex, status string) {
	data, _ := json.Marshal(wsFrame{Type: "close", Status: status})
	mu.Lock()
	_ = conn.WriteMessage(gorillaws.TextMessage, data)
	mu.Unlock()
}
