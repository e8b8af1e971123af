// README: Google Directions backed router.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"campusride/internal/types"
)

var ErrNoRoute = errors.New("no route found")

type GoogleRouter struct {
	client *maps.Client
}

var _ Router = (*GoogleRouter)(nil)

func NewGoogleRouter(apiKey string) (*GoogleRouter, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &GoogleRouter{client: c}, nil
}

func (g *GoogleRouter) Route(ctx context.Context, from, to types.Point) (Route, error) {
	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return Route{}, fmt.Errorf("directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}

	var meters int
	var duration time.Duration
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		duration += leg.Duration
	}
	minutes := int(duration.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Route{
		DistanceKm:  float64(meters) / 1000,
		DurationMin: minutes,
		Polyline:    routes[0].OverviewPolyline.Points,
	}, nil
}
