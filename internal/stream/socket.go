package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the wire shape of one marketplace socket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Socket is a websocket connection to a marketplace, decoding incoming
// frames and dispatching them by event name.
type Socket struct {
	*Dispatcher

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a marketplace socket endpoint and starts the read loop.
func Dial(ctx context.Context, url string, header http.Header) (*Socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		Dispatcher: NewDispatcher(),
		conn:       conn,
		done:       make(chan struct{}),
	}

	go s.readLoop(url)

	return s, nil
}

func (s *Socket) readLoop(url string) {
	defer s.Close()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("[stream] Socket %s read error: %v", url, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("[stream] Dropping malformed frame from %s: %v", url, err)
			continue
		}

		s.Dispatch(frame.Event, frame.Data)
	}
}

// Emit sends an event frame to the marketplace.
func (s *Socket) Emit(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(Frame{Event: event, Data: raw})
}

// Close shuts the connection down and ends every subscription so
// watchers blocked on a subscription channel observe the closed stream.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.Dispatcher.Close()
	})
	return err
}
