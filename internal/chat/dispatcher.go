package chat

import (
	"errors"

	"github.com/rs/zerolog"
)

// Sinks resolves a session id to the session that receives its frames.
type Sinks interface {
	Sink(sessionID string) (*Session, bool)
}

// Dispatcher fans a persisted message out to the sessions currently in its
// room. It only reads the hub and never blocks on a recipient.
type Dispatcher struct {
	hub   *Hub
	sinks Sinks
	log   zerolog.Logger
}

func NewDispatcher(hub *Hub, sinks Sinks, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, sinks: sinks, log: log}
}

// Publish delivers msg to every member of msg.Room at call time and returns
// how many sessions accepted it. Per-recipient failures are logged and
// skipped.
func (d *Dispatcher) Publish(msg Message) int {
	frame, err := encodeFrame(FrameMessage, "", MessagePayload{Message: msg})
	if err != nil {
		d.log.Error().Err(err).Int64("message_id", msg.ID).Msg("encode broadcast")
		return 0
	}

	delivered := 0
	for _, id := range d.hub.Members(msg.Room) {
		sess, ok := d.sinks.Sink(id)
		if !ok {
			continue
		}
		if err := sess.Deliver(frame); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				continue
			}
			d.log.Warn().Err(err).
				Str("room", msg.Room).
				Str("session_id", id).
				Int64("message_id", msg.ID).
				Msg("broadcast dropped")
			continue
		}
		delivered++
	}
	return delivered
}
