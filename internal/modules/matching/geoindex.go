// README: Geo index of online captains. Matching queries it for nearby
// candidates; the captain location heartbeat keeps it fresh.
package matching

import (
	"context"
	"time"

	"campusride/internal/types"
)

// Candidate is one captain returned from a radius query, nearest first.
type Candidate struct {
	CaptainID types.ID
	Distance  float64 // meters from the query point
	Position  types.Point
}

type GeoIndex interface {
	// Upsert records a captain's latest position.
	Upsert(ctx context.Context, captainID types.ID, p types.Point, at time.Time) error

	// Remove drops a captain who went offline.
	Remove(ctx context.Context, captainID types.ID) error

	// Nearby returns up to limit captains within radiusM meters of p,
	// ordered by ascending distance.
	Nearby(ctx context.Context, p types.Point, radiusM float64, limit int) ([]Candidate, error)
}
