package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Options struct {
	AllowAnonymous  bool
	SendTimeout     time.Duration
	MaxMessageRunes int
	OutboundBuffer  int
	HistoryLimit    int
	// RateLimit is the sustained number of sends per second per session;
	// zero disables throttling.
	RateLimit float64
	RateBurst int
}

func (o Options) withDefaults() Options {
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
	if o.MaxMessageRunes <= 0 {
		o.MaxMessageRunes = 2000
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = 256
	}
	if o.RateLimit > 0 && o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	return o
}

// Credentials are what a client presents when connecting. Token wins over
// Name; Name is only used for anonymous sessions.
type Credentials struct {
	Token string
	Name  string
}

// Gateway owns sessions and turns client events into registry, store and
// dispatcher operations.
type Gateway struct {
	opts     Options
	store    Store
	rides    RideRegistry
	dir      Directory
	hub      *Hub
	gates    *gates
	history  *History
	dispatch *Dispatcher
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewGateway(store Store, rides RideRegistry, dir Directory, opts Options, log zerolog.Logger) *Gateway {
	opts = opts.withDefaults()
	g := &Gateway{
		opts:     opts,
		store:    store,
		rides:    rides,
		dir:      dir,
		hub:      NewHub(),
		gates:    newGates(),
		history:  NewHistory(store, opts.HistoryLimit),
		log:      log,
		sessions: make(map[string]*Session),
	}
	g.dispatch = NewDispatcher(g.hub, g, log)
	return g
}

func (g *Gateway) Hub() *Hub { return g.hub }

func (g *Gateway) History() *History { return g.history }

// Sink implements Sinks over the live session table.
func (g *Gateway) Sink(sessionID string) (*Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[sessionID]
	return s, ok
}

// Identify resolves credentials to a sender. Without a token the sender is
// anonymous, named after cred.Name or fallback, if anonymous chat is allowed.
func (g *Gateway) Identify(ctx context.Context, cred Credentials, fallback string) (Sender, error) {
	switch {
	case cred.Token != "":
		if g.dir == nil {
			return Sender{}, fmt.Errorf("%w: token authentication is not configured", ErrUnauthorized)
		}
		s, err := g.dir.Resolve(ctx, cred.Token)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return Sender{}, err
			}
			return Sender{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return s, nil
	case g.opts.AllowAnonymous:
		return Sender{Name: AnonymousName(cred.Name, fallback), Anonymous: true}, nil
	default:
		return Sender{}, fmt.Errorf("%w: token required", ErrUnauthorized)
	}
}

// Connect authenticates a new connection and registers its session.
func (g *Gateway) Connect(ctx context.Context, cred Credentials) (*Session, error) {
	id := uuid.NewString()

	sender, err := g.Identify(ctx, cred, "guest-"+id[:8])
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if g.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.opts.RateLimit), g.opts.RateBurst)
	}
	s := newSession(id, sender, g.opts.OutboundBuffer, limiter)

	g.mu.Lock()
	g.sessions[id] = s
	total := len(g.sessions)
	g.mu.Unlock()

	g.log.Info().
		Str("session_id", id).
		Str("sender", sender.Name).
		Bool("anonymous", sender.Anonymous).
		Int("sessions", total).
		Msg("session connected")
	return s, nil
}

// Join registers s in room and returns the room's whole backlog to the
// caller. Joining a room twice keeps a single membership.
func (g *Gateway) Join(ctx context.Context, s *Session, room string) ([]Message, error) {
	if err := g.checkJoinable(ctx, room); err != nil {
		return nil, err
	}

	var added bool
	if err := s.whileOpen(func() { added = g.hub.Add(room, s.id) }); err != nil {
		return nil, err
	}

	// Registration precedes the snapshot so later messages arrive live.
	msgs, err := g.history.All(ctx, room)
	if err != nil {
		if added {
			g.hub.Remove(room, s.id)
		}
		return nil, err
	}

	if added {
		g.log.Debug().Str("session_id", s.id).Str("room", room).Msg("joined room")
	}
	return msgs, nil
}

// Leave removes s from room. It reports whether s was a member.
func (g *Gateway) Leave(s *Session, room string) bool {
	left := g.hub.Remove(room, s.id)
	if left {
		g.log.Debug().Str("session_id", s.id).Str("room", room).Msg("left room")
	}
	return left
}

// Send validates and persists text from s to room, then broadcasts it. For
// anonymous sessions a non-empty name replaces the display name.
func (g *Gateway) Send(ctx context.Context, s *Session, room, text, name string) (Message, error) {
	if err := ValidateRoom(room); err != nil {
		return Message{}, err
	}
	body, err := normalizeText(text, g.opts.MaxMessageRunes)
	if err != nil {
		return Message{}, err
	}
	if s.Closed() {
		return Message{}, ErrSessionClosed
	}
	if !g.hub.IsMember(room, s.id) {
		return Message{}, fmt.Errorf("%w: %s", ErrNotJoined, room)
	}
	if !s.allow() {
		return Message{}, ErrRateLimited
	}

	sender := s.sender
	if sender.Anonymous && name != "" {
		sender.Name = AnonymousName(name, sender.Name)
	}
	return g.post(ctx, Draft{Room: room, Sender: sender, Text: body})
}

// Post persists and broadcasts a message that did not arrive over a session,
// such as an HTTP send. The sender comes from Identify and the ride must be
// joinable.
func (g *Gateway) Post(ctx context.Context, room string, sender Sender, text string) (Message, error) {
	if err := g.checkJoinable(ctx, room); err != nil {
		return Message{}, err
	}
	body, err := normalizeText(text, g.opts.MaxMessageRunes)
	if err != nil {
		return Message{}, err
	}
	return g.post(ctx, Draft{Room: room, Sender: sender, Text: body})
}

// post is the per-room sequencing point: the store assigns Seq and the
// dispatcher publishes while the room's gate is held, so live order matches
// persisted order. Nothing is published unless Append succeeded.
func (g *Gateway) post(ctx context.Context, d Draft) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.SendTimeout)
	defer cancel()

	leave, err := g.gates.enter(ctx, d.Room)
	if err != nil {
		return Message{}, fmt.Errorf("%w: room %s busy: %w", ErrPersistence, d.Room, err)
	}
	defer leave()

	msg, err := g.store.Append(ctx, d)
	if err != nil {
		g.log.Error().Err(err).Str("room", d.Room).Str("sender", d.Sender.Name).Msg("append message")
		return Message{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	g.dispatch.Publish(msg)
	return msg, nil
}

// Disconnect discards s and removes it from every room it joined. It is safe
// to call more than once and never fails.
func (g *Gateway) Disconnect(s *Session) {
	if !s.close() {
		return
	}
	rooms := g.hub.RemoveFromAll(s.id)

	g.mu.Lock()
	delete(g.sessions, s.id)
	total := len(g.sessions)
	g.mu.Unlock()

	g.log.Info().
		Str("session_id", s.id).
		Strs("rooms", rooms).
		Int("sessions", total).
		Msg("session disconnected")
}

// Close disconnects every live session.
func (g *Gateway) Close() {
	g.mu.RLock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.RUnlock()

	for _, s := range sessions {
		g.Disconnect(s)
	}
}

type Stats struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
}

func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	n := len(g.sessions)
	g.mu.RUnlock()
	return Stats{Sessions: n, Rooms: g.hub.RoomCount()}
}

// RideHistory fetches one page of the backlog of an existing ride,
// joinable or not.
func (g *Gateway) RideHistory(ctx context.Context, room string, q HistoryQuery) (Page, error) {
	if _, err := g.lookupRide(ctx, room); err != nil {
		return Page{}, err
	}
	return g.history.Fetch(ctx, room, q)
}

func (g *Gateway) checkJoinable(ctx context.Context, room string) error {
	ride, err := g.lookupRide(ctx, room)
	if err != nil {
		return err
	}
	if !ride.Status.Joinable() {
		return fmt.Errorf("%w: ride %s is %s", ErrNotFound, room, ride.Status)
	}
	return nil
}

func (g *Gateway) lookupRide(ctx context.Context, room string) (Ride, error) {
	if err := ValidateRoom(room); err != nil {
		return Ride{}, err
	}
	ride, err := g.rides.Lookup(ctx, room)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Ride{}, fmt.Errorf("%w: ride %s", ErrNotFound, room)
		}
		return Ride{}, fmt.Errorf("lookup ride %s: %w", room, err)
	}
	return ride, nil
}
