// README: Route estimation between two points. Matching needs distance
// and duration up front to price a ride before any captain is contacted.
package routing

import (
	"context"

	"campusride/internal/types"
)

// Route is the travel estimate between pickup and dropoff.
type Route struct {
	DistanceKm  float64
	DurationMin int
	Polyline    string
}

type Router interface {
	Route(ctx context.Context, from, to types.Point) (Route, error)
}
