package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	defaultSendBuffer = 256
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrSendBufferFull    = errors.New("send buffer full")
	ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")
)

// WebSocket is a client connection that delivers inbound text frames, one
// at a time and in arrival order, on the channel returned by Frames.
type WebSocket struct {
	log    *log.Logger
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	send   chan []byte
	stop   chan struct{}
	frames chan []byte
	wg     sync.WaitGroup

	sendBuffer int
}

func NewWebSocket(l *log.Logger, sendBuffer int) *WebSocket {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}

	return &WebSocket{
		log:        l,
		dialer:     websocket.DefaultDialer,
		sendBuffer: sendBuffer,
	}
}

// WebSocketURL maps http(s) endpoints onto their websocket schemes.
func WebSocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	return u.String(), nil
}

func (ws *WebSocket) Connect(ctx context.Context, endpoint string) error {
	wsURL, err := WebSocketURL(endpoint)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn != nil {
		return ErrAlreadyConnected
	}

	conn, _, err := ws.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	ws.conn = conn
	ws.send = make(chan []byte, ws.sendBuffer)
	ws.stop = make(chan struct{})
	ws.frames = make(chan []byte, ws.sendBuffer)

	ws.wg.Add(2)
	go ws.read(conn, ws.frames, ws.stop)
	go ws.write(conn, ws.send, ws.stop)

	ws.log.Printf("connected to %s", wsURL)
	return nil
}

// Disconnect closes the connection and waits for both pumps to exit. The
// connection's frames channel is closed once the read pump is done.
func (ws *WebSocket) Disconnect() error {
	ws.mu.Lock()
	conn := ws.conn
	if conn == nil {
		ws.mu.Unlock()
		return ErrNotConnected
	}
	ws.conn = nil
	close(ws.stop)
	ws.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		ws.log.Printf("write close: %v", err)
	}

	conn.Close()
	ws.wg.Wait()
	return nil
}

// Send queues a text frame for the write pump without blocking.
func (ws *WebSocket) Send(msg []byte) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return ErrNotConnected
	}

	select {
	case ws.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Frames returns the inbound channel of the current connection, or nil
// before the first Connect.
func (ws *WebSocket) Frames() <-chan []byte {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.frames
}

func (ws *WebSocket) write(conn *websocket.Conn, send <-chan []byte, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.wg.Done()
		ws.log.Println("write exiting")
	}()

	for {
		select {
		case msg := <-send:
			if !ws.writeMessage(conn, websocket.TextMessage, msg) {
				conn.Close()
				return
			}
		case <-stop:
			return
		case <-ticker.C:
			if !ws.writeMessage(conn, websocket.PingMessage, nil) {
				conn.Close()
				return
			}
		}
	}
}

func (ws *WebSocket) read(conn *websocket.Conn, frames chan<- []byte, stop <-chan struct{}) {
	defer func() {
		conn.Close()
		ws.release(conn)
		close(frames)
		ws.wg.Done()
		ws.log.Println("read exiting")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				ws.log.Printf("ws: read: %v", err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			ws.log.Printf("ignoring non-text frame of type %d", msgType)
			continue
		}

		select {
		case frames <- raw:
		case <-stop:
			return
		}
	}
}

// release marks conn dead when the read pump exits on its own, so that Send
// fails and Connect can dial again. A Disconnect in progress has already
// cleared ws.conn.
func (ws *WebSocket) release(conn *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn != conn {
		return
	}

	ws.log.Println("connection closed by peer")
	ws.conn = nil
	close(ws.stop)
}

func (ws *WebSocket) writeMessage(conn *websocket.Conn, msgType int, msg []byte) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			ws.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}
