// README: Offline route estimator. Straight-line distance at campus
// traffic speed; used when no Maps API key is configured and in tests.
package routing

import (
	"context"
	"math"

	"campusride/internal/geo"
	"campusride/internal/types"
)

// avgSpeedKmh approximates mixed campus traffic.
const avgSpeedKmh = 21.0

type Estimator struct{}

var _ Router = (*Estimator)(nil)

func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) Route(_ context.Context, from, to types.Point) (Route, error) {
	km := geo.HaversineKm(from, to)
	minutes := int(math.Ceil(km / avgSpeedKmh * 60))
	if minutes < 1 {
		minutes = 1
	}
	return Route{DistanceKm: km, DurationMin: minutes}, nil
}
