package controllers

import (
	"sync"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/dto/responses"

	"github.com/fasthttp/websocket"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// streamClient owns one websocket connection. Frames are queued on send and
// written by a single writer goroutine; a nil payload asks the writer to
// close the connection once everything before it has been written.
type streamClient struct {
	conn         *websocket.Conn
	log          *zap.Logger
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	writeTimeout time.Duration
	readLimit    int64
}

func newStreamClient(conn *websocket.Conn, log *zap.Logger, cfg config.AppStream) *streamClient {
	client := &streamClient{
		conn:         conn,
		log:          log,
		send:         make(chan []byte, max(cfg.SendBufferSize, 1)),
		done:         make(chan struct{}),
		pingInterval: time.Duration(cfg.PingIntervalInSeconds) * time.Second,
		writeTimeout: time.Duration(cfg.WriteTimeoutInSeconds) * time.Second,
		readLimit:    int64(cfg.ReadLimitInBytes),
	}
	if client.pingInterval <= 0 {
		client.pingInterval = 30 * time.Second
	}
	if client.writeTimeout <= 0 {
		client.writeTimeout = 10 * time.Second
	}
	if client.readLimit <= 0 {
		client.readLimit = 8 * 1024
	}
	return client
}

// pongWait is how long the reader waits for any inbound traffic.
func (c *streamClient) pongWait() time.Duration {
	return 2 * c.pingInterval
}

// enqueue never blocks. A client whose buffer is full is disconnected.
func (c *streamClient) enqueue(frame responses.StreamFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("streamClient.enqueue error marshaling frame", zap.Error(err))
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		c.log.Debug("streamClient.enqueue frame queued", zap.String(constvars.LoggingStreamFrameKey, frame.Type))
		return true
	default:
		c.log.Warn("streamClient.enqueue send buffer full; disconnecting",
			zap.String(constvars.LoggingStreamFrameKey, frame.Type),
		)
		c.shutdown()
		return false
	}
}

// finish closes the connection after the frames already queued are written.
func (c *streamClient) finish() {
	select {
	case <-c.done:
	case c.send <- nil:
	default:
		c.shutdown()
	}
}

func (c *streamClient) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.writeClose()
			return
		case payload := <-c.send:
			if payload == nil {
				c.writeClose()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Info("streamClient.writePump write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				c.log.Info("streamClient.writePump ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *streamClient) writeClose() {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.writeTimeout))
}

// readPump delivers inbound text frames to handle until the peer goes away
// or the client is shut down.
func (c *streamClient) readPump(handle func(payload []byte)) {
	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("streamClient.readPump connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
		if messageType != websocket.TextMessage {
			continue
		}
		handle(payload)
	}
}
