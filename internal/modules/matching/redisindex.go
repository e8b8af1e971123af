// README: Redis-backed geo index using GEOADD/GEOSEARCH, shared across
// API nodes.
package matching

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"campusride/internal/types"
)

const captainGeoKey = "captains:geo"

type RedisGeoIndex struct {
	rdb *redis.Client
}

var _ GeoIndex = (*RedisGeoIndex)(nil)

func NewRedisGeoIndex(rdb *redis.Client) *RedisGeoIndex {
	return &RedisGeoIndex{rdb: rdb}
}

func (x *RedisGeoIndex) Upsert(ctx context.Context, captainID types.ID, p types.Point, _ time.Time) error {
	return x.rdb.GeoAdd(ctx, captainGeoKey, &redis.GeoLocation{
		Name:      string(captainID),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (x *RedisGeoIndex) Remove(ctx context.Context, captainID types.ID) error {
	return x.rdb.ZRem(ctx, captainGeoKey, string(captainID)).Err()
}

func (x *RedisGeoIndex) Nearby(ctx context.Context, p types.Point, radiusM float64, limit int) ([]Candidate, error) {
	locs, err := x.rdb.GeoSearchLocation(ctx, captainGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Candidate{
			CaptainID: types.ID(loc.Name),
			Distance:  loc.Dist, // meters, per RadiusUnit
			Position:  types.Point{Lng: loc.Longitude, Lat: loc.Latitude},
		})
	}
	return out, nil
}
