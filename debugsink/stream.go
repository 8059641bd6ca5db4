package debugsink

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
)

// Stream broadcasts frames to websocket viewers. A viewer that falls behind
// loses frames instead of slowing the publisher down.
type Stream struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[uint64]chan []byte
	closed bool

	nextID  atomic.Uint64
	dropped atomic.Uint64
}

func NewStream() *Stream {
	return &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[uint64]chan []byte),
	}
}

// Handler upgrades the request and streams frames until the viewer leaves or
// the stream is closed.
func (s *Stream) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out, ok := s.subscribe()
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"), time.Now().Add(time.Second))
			return
		}
		defer s.unsubscribe(id)

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		}()

		// Viewers don't send anything; reading only notices when they leave.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					s.unsubscribe(id)
					return
				}
			}
		}()

		<-writeDone
	}
}

func (s *Stream) subscribe() (uint64, chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, false
	}
	id := s.nextID.Add(1)
	ch := make(chan []byte, subscriberBuffer)
	s.subs[id] = ch
	return id, ch, true
}

func (s *Stream) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Publish sends f to every viewer without blocking.
func (s *Stream) Publish(f *Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- b:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped is the number of frame deliveries skipped for slow viewers.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// Close disconnects every viewer and refuses new ones.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
