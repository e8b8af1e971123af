// README: In-memory geo index. Linear scan over online captains, which
// is plenty for a single campus; the Redis index covers multi-node.
package matching

import (
	"context"
	"sync"
	"time"

	"campusride/internal/geo"
	"campusride/internal/types"
)

type memEntry struct {
	pos types.Point
	at  time.Time
}

type MemGeoIndex struct {
	mu      sync.RWMutex
	entries map[types.ID]memEntry
}

var _ GeoIndex = (*MemGeoIndex)(nil)

func NewMemGeoIndex() *MemGeoIndex {
	return &MemGeoIndex{entries: make(map[types.ID]memEntry)}
}

func (x *MemGeoIndex) Upsert(_ context.Context, captainID types.ID, p types.Point, at time.Time) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[captainID] = memEntry{pos: p, at: at}
	return nil
}

func (x *MemGeoIndex) Remove(_ context.Context, captainID types.ID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, captainID)
	return nil
}

func (x *MemGeoIndex) Nearby(_ context.Context, p types.Point, radiusM float64, limit int) ([]Candidate, error) {
	x.mu.RLock()
	candidates := make([]Candidate, 0, len(x.entries))
	for id, e := range x.entries {
		d := geo.HaversineMeters(p, e.pos)
		if d <= radiusM {
			candidates = append(candidates, Candidate{CaptainID: id, Distance: d, Position: e.pos})
		}
	}
	x.mu.RUnlock()

	geo.SortByDistance(candidates, func(c Candidate) float64 { return c.Distance })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
