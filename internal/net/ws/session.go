package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"

	"buckaneers/server/internal/net/proto"
	"buckaneers/server/internal/world"
)

// session is one websocket connection. Reads happen on the handler
// goroutine; every write goes through write so the ping loop and the
// snapshot pump never interleave frames.
type session struct {
	id     world.ClientID
	conn   *websocket.Conn
	codec  proto.Codec
	cfg    HandlerConfig
	mu     deadlock.Mutex
	cancel context.CancelFunc
}

func (s *session) frameType() int {
	if s.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (s *session) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) closeWith(code int, reason string) {
	s.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// abort ends the session from the write side; closing the connection
// unblocks the reader.
func (s *session) abort() {
	s.cancel()
	s.conn.Close()
}

// pump forwards queued frames to the client after every tick and keeps the
// connection alive with pings until ctx ends.
func (s *session) pump(ctx context.Context, hub Transport, ready <-chan struct{}) {
	ping := time.NewTicker(s.cfg.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.abort()
				return
			}
		case <-ready:
			for {
				data, ok := hub.Receive(s.id)
				if !ok {
					break
				}
				if err := s.write(s.frameType(), data); err != nil {
					s.abort()
					return
				}
			}
		}
	}
}
