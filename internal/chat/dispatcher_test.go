package chat

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkMap map[string]*Session

func (m sinkMap) Sink(id string) (*Session, bool) {
	s, ok := m[id]
	return s, ok
}

func TestDispatcherPublish(t *testing.T) {
	hub := NewHub()
	sinks := sinkMap{
		"a":      newSession("a", Sender{Name: "a"}, 4, nil),
		"full":   newSession("full", Sender{Name: "f"}, 1, nil),
		"closed": newSession("closed", Sender{Name: "c"}, 4, nil),
	}
	for id := range sinks {
		hub.Add("ride-1", id)
	}
	hub.Add("ride-1", "vanished")
	hub.Add("ride-2", "a")

	require.NoError(t, sinks["full"].Deliver([]byte("backlog")))
	sinks["closed"].close()

	d := NewDispatcher(hub, sinks, zerolog.Nop())
	n := d.Publish(Message{ID: 7, Seq: 1, Room: "ride-1", Sender: Sender{Name: "a"}, Text: "hi"})
	assert.Equal(t, 1, n)

	var f Frame
	require.NoError(t, json.Unmarshal(<-sinks["a"].Outbound(), &f))
	assert.Equal(t, FrameMessage, f.Type)
	var p MessagePayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	assert.EqualValues(t, 7, p.Message.ID)
	assert.Equal(t, "hi", p.Message.Text)

	assert.Equal(t, 0, d.Publish(Message{ID: 8, Room: "ride-empty"}))
}
