package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rideshare/internal/web"
)

// Service exposes the gateway over HTTP: the chat socket, history queries and
// HTTP sends.
type Service struct {
	gw       *Gateway
	upgrader websocket.Upgrader
	sockOpts SocketOptions
	log      zerolog.Logger
}

func NewService(gw *Gateway, opts SocketOptions, log zerolog.Logger) *Service {
	opts = opts.withDefaults()
	return &Service{
		gw: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		sockOpts: opts,
		log:      log,
	}
}

func (s *Service) ChatWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.gw.Connect(r.Context(), Credentials{
		Token: web.BearerToken(r),
		Name:  r.URL.Query().Get("name"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		s.gw.Disconnect(sess)
		return
	}

	c := &socket{gw: s.gw, conn: conn, sess: sess, opts: s.sockOpts, log: s.log}
	go c.writePump()
	if welcome, err := encodeFrame(FrameWelcome, "", WelcomePayload{SessionID: sess.ID(), Sender: sess.Sender()}); err == nil {
		c.reply(welcome)
	}
	c.readPump(r.Context())
}

func (s *Service) History(w http.ResponseWriter, r *http.Request) {
	if _, err := s.gw.Identify(r.Context(), Credentials{Token: web.BearerToken(r)}, "guest"); err != nil {
		writeError(w, err)
		return
	}
	after, err := web.QueryInt64(r, "after", 0)
	if err != nil {
		web.Error(w, http.StatusBadRequest, "validation", "bad after")
		return
	}
	q := HistoryQuery{After: after, Limit: web.QueryInt(r, "limit", 0)}
	page, err := s.gw.RideHistory(r.Context(), chi.URLParam(r, "rideID"), q)
	if err != nil {
		writeError(w, err)
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{
		"items":      page.Messages,
		"next_after": page.NextAfter,
		"has_more":   page.HasMore,
	})
}

func (s *Service) PostMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text   string `json:"text"`
		Sender string `json:"sender,omitempty"`
	}
	if err := web.DecodeJSON(r, &in); err != nil {
		web.Error(w, http.StatusBadRequest, "validation", "bad body")
		return
	}
	sender, err := s.gw.Identify(r.Context(), Credentials{Token: web.BearerToken(r), Name: in.Sender}, "guest")
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.gw.Post(r.Context(), chi.URLParam(r, "rideID"), sender, in.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	web.JSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (s *Service) Stats(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, s.gw.Stats())
}

func writeError(w http.ResponseWriter, err error) {
	web.Error(w, HTTPStatus(err), Code(err), publicMessage(err))
}
