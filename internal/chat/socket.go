package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxDecodeErrorsPerConn = 3

type SocketOptions struct {
	MaxFrameBytes int64
	PongWait      time.Duration
	WriteWait     time.Duration
	CheckOrigin   func(*http.Request) bool
}

func (o SocketOptions) withDefaults() SocketOptions {
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 16 * 1024
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

// socket pumps frames between one WebSocket connection and its session.
type socket struct {
	gw   *Gateway
	conn *websocket.Conn
	sess *Session
	opts SocketOptions
	log  zerolog.Logger
}

// readPump handles inbound frames until the connection fails, then tears the
// session down.
func (c *socket) readPump(ctx context.Context) {
	defer c.gw.Disconnect(c.sess)

	c.conn.SetReadLimit(c.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	decodeErrors := 0
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			decodeErrors++
			c.reply(errorFrame("", fmt.Errorf("%w: malformed frame", ErrValidation)))
			if decodeErrors >= maxDecodeErrorsPerConn {
				c.log.Warn().Str("session_id", c.sess.ID()).Msg("too many malformed frames")
				return
			}
			continue
		}
		c.handle(ctx, f)
	}
}

func (c *socket) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Str("session_id", c.sess.ID()).Int64("limit", c.opts.MaxFrameBytes).Msg("frame too large")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, io.EOF):
		c.log.Debug().Str("session_id", c.sess.ID()).Msg("client closed connection")
	default:
		c.log.Debug().Err(err).Str("session_id", c.sess.ID()).Msg("read failed")
	}
}

func (c *socket) handle(ctx context.Context, f Frame) {
	var (
		typ     string
		payload any
		err     error
	)
	switch f.Type {
	case FrameJoin:
		var in RoomPayload
		if err = decodePayload(f.Payload, &in); err == nil {
			var msgs []Message
			msgs, err = c.gw.Join(ctx, c.sess, in.Room)
			typ, payload = FrameJoined, MessagesPayload{Room: in.Room, Messages: msgs}
		}
	case FrameLeave:
		var in RoomPayload
		if err = decodePayload(f.Payload, &in); err == nil {
			c.gw.Leave(c.sess, in.Room)
			typ, payload = FrameLeft, RoomPayload{Room: in.Room}
		}
	case FrameSend:
		var in SendPayload
		if err = decodePayload(f.Payload, &in); err == nil {
			var msg Message
			msg, err = c.gw.Send(ctx, c.sess, in.Room, in.Text, in.Sender)
			typ, payload = FrameAck, MessagePayload{Message: msg}
		}
	case FrameHistory:
		var in HistoryPayload
		if err = decodePayload(f.Payload, &in); err == nil {
			var page Page
			page, err = c.gw.RideHistory(ctx, in.Room, HistoryQuery{After: in.After, Limit: in.Limit})
			typ, payload = FrameHistory, MessagesPayload{
				Room:      in.Room,
				Messages:  page.Messages,
				NextAfter: page.NextAfter,
				HasMore:   page.HasMore,
			}
		}
	default:
		err = fmt.Errorf("%w: unknown frame type %q", ErrValidation, f.Type)
	}

	if err != nil {
		c.log.Debug().Err(err).Str("session_id", c.sess.ID()).Str("type", f.Type).Msg("frame rejected")
		c.reply(errorFrame(f.RequestID, err))
		return
	}
	out, err := encodeFrame(typ, f.RequestID, payload)
	if err != nil {
		c.log.Error().Err(err).Str("type", typ).Msg("encode reply")
		return
	}
	c.reply(out)
}

func (c *socket) reply(frame []byte) {
	if err := c.sess.Deliver(frame); err != nil && !errors.Is(err, ErrSessionClosed) {
		c.log.Warn().Err(err).Str("session_id", c.sess.ID()).Msg("reply dropped")
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", ErrValidation, err)
	}
	return nil
}

// writePump drains the session's outbound queue and keeps the connection
// alive with pings. It closes the connection when the session ends.
func (c *socket) writePump() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sess.Outbound():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Str("session_id", c.sess.ID()).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
