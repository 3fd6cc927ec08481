package db

import (
	"context"
	"fmt"

	"rideshare/internal/chat"
)

// RideWriter is implemented by every storage backend.
type RideWriter interface {
	PutRide(ctx context.Context, ride chat.Ride) error
}

// DemoRides are inserted by RunDevSeed: one open ride and one finished ride
// whose history stays readable but which can no longer be joined.
var DemoRides = []chat.Ride{
	{ID: "ride-1", Status: chat.RideActive},
	{ID: "ride-2", Status: chat.RideCompleted},
}

func RunDevSeed(ctx context.Context, w RideWriter) error {
	for _, ride := range DemoRides {
		if err := w.PutRide(ctx, ride); err != nil {
			return fmt.Errorf("seed ride %s: %w", ride.ID, err)
		}
	}
	return nil
}
