package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 32
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("session send buffer full")
)

// wsConn is the part of *websocket.Conn a Session uses.
type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Session wraps a websocket connection as a Handle. Send only queues the
// message; a single writer goroutine owns every data write to the socket.
type Session struct {
	id           string
	conn         wsConn
	writeTimeout time.Duration
	send         chan []byte
	closeOnce    sync.Once
	done         chan struct{}
}

func NewSession(conn *websocket.Conn, writeTimeout time.Duration) *Session {
	return newSession(conn, writeTimeout)
}

func newSession(conn wsConn, writeTimeout time.Duration) *Session {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	s := &Session{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Send queues message without blocking. A peer that lets the buffer fill up
// gets ErrSendBufferFull.
func (s *Session) Send(message []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Reject sends a policy-violation close frame and closes the connection.
func (s *Session) Reject(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
	return s.Close()
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// Run keeps the connection alive until the peer goes away or the session is
// closed. Client messages are read and discarded.
func (s *Session) Run() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop drains the send queue and pings the peer. A failed write closes
// the session, which ends Run.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-s.send:
			if err := s.write(msg); err != nil {
				_ = s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				_ = s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) write(msg []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}
