// Package rediscache puts a Redis cache-aside layer in front of the ride
// registry so joins do not hit the database for every socket.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rideshare/internal/chat"
)

type rideWriter interface {
	PutRide(ctx context.Context, ride chat.Ride) error
}

// Rides caches successful lookups for ttl. Misses and unknown rides go to the
// wrapped registry; Redis failures degrade to uncached lookups.
type Rides struct {
	client *redis.Client
	next   chat.RideRegistry
	prefix string
	ttl    time.Duration
	log    zerolog.Logger

	hits, misses, errs atomic.Uint64
}

type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

func NewRides(client *redis.Client, next chat.RideRegistry, ttl time.Duration, log zerolog.Logger) *Rides {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Rides{client: client, next: next, prefix: "ride:", ttl: ttl, log: log}
}

func (r *Rides) Lookup(ctx context.Context, rideID string) (chat.Ride, error) {
	key := r.prefix + rideID

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ride chat.Ride
		if err := json.Unmarshal(data, &ride); err == nil {
			r.hits.Add(1)
			return ride, nil
		}
		r.errs.Add(1)
	case errors.Is(err, redis.Nil):
		r.misses.Add(1)
	default:
		r.errs.Add(1)
		r.log.Warn().Err(err).Str("ride_id", rideID).Msg("ride cache get")
	}

	ride, err := r.next.Lookup(ctx, rideID)
	if err != nil {
		return chat.Ride{}, err
	}
	if data, err := json.Marshal(ride); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			r.errs.Add(1)
			r.log.Warn().Err(err).Str("ride_id", rideID).Msg("ride cache set")
		}
	}
	return ride, nil
}

// PutRide writes through to the wrapped registry and drops the cached entry.
func (r *Rides) PutRide(ctx context.Context, ride chat.Ride) error {
	w, ok := r.next.(rideWriter)
	if !ok {
		return errors.New("wrapped ride registry is read-only")
	}
	if err := w.PutRide(ctx, ride); err != nil {
		return err
	}
	return r.Invalidate(ctx, ride.ID)
}

func (r *Rides) Invalidate(ctx context.Context, rideID string) error {
	if err := r.client.Del(ctx, r.prefix+rideID).Err(); err != nil {
		r.errs.Add(1)
		return fmt.Errorf("ride cache delete: %w", err)
	}
	return nil
}

func (r *Rides) Stats() Stats {
	return Stats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Errors: r.errs.Load(),
	}
}
