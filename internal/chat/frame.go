package chat

import "encoding/json"

// Frame types exchanged over the socket.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameSend    = "send"
	FrameHistory = "history"

	FrameWelcome = "welcome"
	FrameJoined  = "joined"
	FrameLeft    = "left"
	FrameAck     = "ack"
	FrameMessage = "message"
	FrameError   = "error"
)

type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type SendPayload struct {
	Room   string `json:"room"`
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
}

type HistoryPayload struct {
	Room  string `json:"room"`
	After int64  `json:"after,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type WelcomePayload struct {
	SessionID string `json:"session_id"`
	Sender    Sender `json:"sender"`
}

type MessagesPayload struct {
	Room      string    `json:"room"`
	Messages  []Message `json:"messages"`
	NextAfter int64     `json:"next_after,omitempty"`
	HasMore   bool      `json:"has_more,omitempty"`
}

type MessagePayload struct {
	Message Message `json:"message"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func encodeFrame(typ, requestID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: typ, RequestID: requestID, Payload: raw})
}

func errorFrame(requestID string, err error) []byte {
	b, _ := encodeFrame(FrameError, requestID, ErrorPayload{
		Code:      Code(err),
		Message:   publicMessage(err),
		Retryable: Retryable(err),
	})
	return b
}

// publicMessage hides the details of errors outside the chat taxonomy.
func publicMessage(err error) string {
	if Code(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}
