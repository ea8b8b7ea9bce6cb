package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seenimoa/creditpulse/internal/logging"
	"github.com/seenimoa/creditpulse/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware does not cover upgrades
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be below pongWait
	maxControlSize = 4096
	clientQueue    = 64
	publishQueue   = 256
)

// Stream message types.
const (
	MsgAlert      = "alert"
	MsgSubscribe  = "subscribe"
	MsgSubscribed = "subscribed"
	MsgPing       = "ping"
	MsgPong       = "pong"
)

// ============================================================
// Alert stream
// ============================================================

// WSMessage is one frame of the alert stream. Alert decisions are sent as
// {"type":"alert","data":<AlertEvent>}.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Subscription narrows a client's stream to a set of bonds. An empty set
// receives every alert.
type Subscription struct {
	Bonds []string `json:"bonds"`
}

// AlertStream fans alert events out to WebSocket subscribers.
type AlertStream struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*subscriber]struct{}

	events chan models.AlertEvent
	join   chan *subscriber
	leave  chan *subscriber
	done   chan struct{}
}

type subscriber struct {
	out chan []byte

	filterMu sync.RWMutex
	bonds    map[string]bool
}

func newSubscriber() *subscriber {
	return &subscriber{out: make(chan []byte, clientQueue)}
}

func (c *subscriber) wants(bondID string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return len(c.bonds) == 0 || c.bonds[bondID]
}

func (c *subscriber) subscribe(sub Subscription) []string {
	set := make(map[string]bool, len(sub.Bonds))
	out := make([]string, 0, len(sub.Bonds))
	for _, b := range sub.Bonds {
		b = strings.TrimSpace(b)
		if b != "" && !set[b] {
			set[b] = true
			out = append(out, b)
		}
	}
	c.filterMu.Lock()
	c.bonds = set
	c.filterMu.Unlock()
	return out
}

// NewAlertStream creates an idle stream; call Run to start delivery.
func NewAlertStream(log *zap.Logger) *AlertStream {
	return &AlertStream{
		log:     logging.OrNop(log),
		clients: make(map[*subscriber]struct{}),
		events:  make(chan models.AlertEvent, publishQueue),
		join:    make(chan *subscriber),
		leave:   make(chan *subscriber),
		done:    make(chan struct{}),
	}
}

// Run delivers published events until ctx is done, then closes every
// subscriber.
func (s *AlertStream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(s.done)
			s.mu.Lock()
			for c := range s.clients {
				delete(s.clients, c)
				close(c.out)
			}
			s.mu.Unlock()
			return
		case c := <-s.join:
			s.mu.Lock()
			s.clients[c] = struct{}{}
			s.mu.Unlock()
		case c := <-s.leave:
			s.drop(c)
		case ev := <-s.events:
			s.deliver(ev)
		}
	}
}

func (s *AlertStream) deliver(ev models.AlertEvent) {
	frame, err := encodeFrame(MsgAlert, ev)
	if err != nil {
		s.log.Warn("alert frame encode failed", zap.String("bond_id", ev.BondID), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.wants(ev.BondID) {
			continue
		}
		select {
		case c.out <- frame:
		default:
			s.log.Debug("dropping slow alert subscriber")
			delete(s.clients, c)
			close(c.out)
		}
	}
}

func (s *AlertStream) drop(c *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.out)
	}
}

// Publish queues ev for delivery. It never blocks; events are dropped when
// the queue is full.
func (s *AlertStream) Publish(ev models.AlertEvent) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("alert stream queue full, dropping event", zap.String("bond_id", ev.BondID))
	}
}

// Subscribers returns the number of connected clients.
func (s *AlertStream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *AlertStream) add(c *subscriber) {
	select {
	case s.join <- c:
	case <-s.done:
		close(c.out)
	}
}

func (s *AlertStream) remove(c *subscriber) {
	select {
	case s.leave <- c:
	case <-s.done:
	}
}

func encodeFrame(typ string, data any) ([]byte, error) {
	msg := WSMessage{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// ============================================================
// Connections
// ============================================================

// handleWebSocket upgrades the connection and streams alert events to it.
// Clients narrow the stream with {"type":"subscribe","data":{"bonds":[...]}}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newSubscriber()
	if q := r.URL.Query().Get("bonds"); q != "" {
		c.subscribe(Subscription{Bonds: strings.Split(q, ",")})
	}
	s.stream.add(c)

	go writeFrames(conn, c)
	go readControl(conn, c, s.stream, s.log)
}

// readControl answers ping and subscribe frames until the connection drops.
func readControl(conn *websocket.Conn, c *subscriber, stream *AlertStream, log *zap.Logger) {
	defer func() {
		stream.remove(c)
		conn.Close()
	}()

	conn.SetReadLimit(maxControlSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("alert stream read error", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case MsgPing:
			reply(c, MsgPong, nil)
		case MsgSubscribe:
			var sub Subscription
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &sub); err != nil {
					continue
				}
			}
			reply(c, MsgSubscribed, Subscription{Bonds: c.subscribe(sub)})
		}
	}
}

// reply queues a control response without blocking. The stream may have
// closed c.out already, in which case the reply is dropped.
func reply(c *subscriber, typ string, data any) {
	frame, err := encodeFrame(typ, data)
	if err != nil {
		return
	}
	defer func() { _ = recover() }()
	select {
	case c.out <- frame:
	default:
	}
}

// writeFrames copies queued frames to the connection and keeps it alive
// with pings.
func writeFrames(conn *websocket.Conn, c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
