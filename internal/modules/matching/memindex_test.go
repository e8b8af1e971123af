package matching

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"campusride/internal/types"
)

var campusCenter = types.Point{Lng: 77.5946, Lat: 12.9716}

func TestMemGeoIndex_NearbyOrdering(t *testing.T) {
	x := NewMemGeoIndex()
	ctx := context.Background()
	now := time.Now()

	// Offsets of ~0.001 deg are roughly 110 m of latitude.
	x.Upsert(ctx, "far", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.03}, now)
	x.Upsert(ctx, "near", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.001}, now)
	x.Upsert(ctx, "mid", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.01}, now)

	got, err := x.Nearby(ctx, campusCenter, 5000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	want := []types.ID{"near", "mid", "far"}
	for i, id := range want {
		if got[i].CaptainID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].CaptainID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("distances not ascending: %f before %f", got[i-1].Distance, got[i].Distance)
		}
	}
}

func TestMemGeoIndex_RadiusAndLimit(t *testing.T) {
	x := NewMemGeoIndex()
	ctx := context.Background()
	now := time.Now()

	x.Upsert(ctx, "inside", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.001}, now)
	x.Upsert(ctx, "outside", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.1}, now) // ~11 km

	got, _ := x.Nearby(ctx, campusCenter, 5000, 10)
	if len(got) != 1 || got[0].CaptainID != "inside" {
		t.Fatalf("radius filter failed: %+v", got)
	}

	for i := 0; i < 5; i++ {
		x.Upsert(ctx, types.ID(fmt.Sprintf("captain-%d", i)), types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.002}, now)
	}
	got, _ = x.Nearby(ctx, campusCenter, 5000, 3)
	if len(got) != 3 {
		t.Errorf("limit not applied: got %d", len(got))
	}
}

func TestMemGeoIndex_UpsertMovesAndRemoveDrops(t *testing.T) {
	x := NewMemGeoIndex()
	ctx := context.Background()
	now := time.Now()

	x.Upsert(ctx, "c1", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.1}, now)
	if got, _ := x.Nearby(ctx, campusCenter, 5000, 10); len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}

	x.Upsert(ctx, "c1", types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + 0.001}, now)
	if got, _ := x.Nearby(ctx, campusCenter, 5000, 10); len(got) != 1 {
		t.Fatalf("upsert did not move captain: %+v", got)
	}

	x.Remove(ctx, "c1")
	if got, _ := x.Nearby(ctx, campusCenter, 5000, 10); len(got) != 0 {
		t.Fatalf("remove did not drop captain: %+v", got)
	}
}

func TestMemGeoIndex_ConcurrentAccess(t *testing.T) {
	x := NewMemGeoIndex()
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			id := types.ID(fmt.Sprintf("captain-%d", n))
			for j := 0; j < 100; j++ {
				x.Upsert(ctx, id, types.Point{Lng: campusCenter.Lng, Lat: campusCenter.Lat + float64(j)*0.0001}, time.Now())
				x.Nearby(ctx, campusCenter, 5000, 10)
			}
			x.Remove(ctx, id)
		}(i)
	}
	close(start)
	wg.Wait()

	if got, _ := x.Nearby(ctx, campusCenter, 5000, 10); len(got) != 0 {
		t.Errorf("index not empty after removals: %+v", got)
	}
}
