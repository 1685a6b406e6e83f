package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"

	"github.com/agentcaptcha/agentcaptcha/pkg/protocol"
)

type recvResult struct {
	frame protocol.ClientFrame
	err   error
}

// wsConn adapts a coder/websocket connection to protocol.Conn. A dedicated
// reader goroutine pumps incoming frames into a channel so a per-stage
// deadline expiring inside Recv does not tear down the underlying socket;
// the verifier still has to send the terminal frame on it.
type wsConn struct {
	conn   *websocket.Conn
	frames chan recvResult
}

// newWSConn starts the reader goroutine. ctx bounds the connection lifetime;
// the goroutine exits when the socket closes or ctx is cancelled.
func newWSConn(ctx context.Context, conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:   conn,
		frames: make(chan recvResult, 1),
	}
	go c.readLoop(ctx)
	return c
}

func (c *wsConn) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			select {
			case c.frames <- recvResult{err: fmt.Errorf("websocket read: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		// A frame that fails to parse is delivered empty: the current stage
		// treats the missing field as invalid input rather than a transport
		// failure.
		var frame protocol.ClientFrame
		_ = json.Unmarshal(data, &frame)

		select {
		case c.frames <- recvResult{frame: frame}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *wsConn) Send(ctx context.Context, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Recv(ctx context.Context) (protocol.ClientFrame, error) {
	select {
	case r := <-c.frames:
		return r.frame, r.err
	case <-ctx.Done():
		return protocol.ClientFrame{}, ctx.Err()
	}
}
