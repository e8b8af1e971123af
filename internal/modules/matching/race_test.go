package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campusride/internal/modules/account"
	"campusride/internal/modules/ride"
	"campusride/internal/types"
)

// All notified captains accept at once: exactly one wins the CAS, every
// loser sees a stale request, and only the winner's vehicle is marked
// on_ride.
func TestAcceptRide_ConcurrentCaptains(t *testing.T) {
	f := newFixture(t)
	f.seedRider("rider-1")
	ctx := context.Background()

	const captains = 8
	ids := make([]types.ID, captains)
	for i := range ids {
		ids[i] = types.ID(fmt.Sprintf("cap-%d", i))
		f.seedCaptain(t, ids[i], account.ClassBike, 0.001+float64(i)*0.0001)
	}

	r, err := f.svc.RequestRide(ctx, testCommand("rider-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.NotifiedCaptains) != captains {
		t.Fatalf("notified %d captains, want %d", len(r.NotifiedCaptains), captains)
	}

	start := make(chan struct{})
	type result struct {
		captain types.ID
		err     error
	}
	results := make(chan result, captains)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(captainID types.ID) {
			defer wg.Done()
			<-start
			_, err := f.svc.AcceptRide(ctx, r.ID, captainID)
			results <- result{captainID, err}
		}(id)
	}
	close(start)
	wg.Wait()
	close(results)

	var winner types.ID
	var wins int
	for res := range results {
		if res.err == nil {
			winner = res.captain
			wins++
			continue
		}
		if !errors.Is(res.err, ErrStaleRequest) {
			t.Errorf("loser %s got %v, want ErrStaleRequest", res.captain, res.err)
		}
	}
	if wins != 1 {
		t.Fatalf("got %d winners, want exactly 1", wins)
	}

	got, err := f.rides.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ride.StatusAccepted || got.CaptainID != winner {
		t.Fatalf("final ride: status=%s captain=%s, want accepted by %s", got.Status, got.CaptainID, winner)
	}
	if got.StatusVersion != r.StatusVersion+1 {
		t.Errorf("status version = %d, want %d", got.StatusVersion, r.StatusVersion+1)
	}

	// The notified list survives the race intact.
	if len(got.NotifiedCaptains) != captains {
		t.Errorf("notified list shrank to %d", len(got.NotifiedCaptains))
	}

	for _, id := range ids {
		v, _ := f.accounts.GetVehicleByOwner(ctx, id)
		want := account.VehicleAvailable
		if id == winner {
			want = account.VehicleOnRide
		}
		if v.Status != want {
			t.Errorf("captain %s vehicle = %s, want %s", id, v.Status, want)
		}
	}
}

// Accept racing the expiry sweep: the ride ends either accepted or
// expired, never both and never stuck.
func TestAcceptRide_VersusSweep(t *testing.T) {
	f := newFixture(t)
	f.seedRider("rider-1")
	f.seedCaptain(t, "cap-1", account.ClassBike, 0.001)
	ctx := context.Background()

	f.svc.cfg.OfferWindow = -time.Second // lapsed immediately
	r, err := f.svc.RequestRide(ctx, testCommand("rider-1"))
	if err != nil {
		t.Fatal(err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	var acceptErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, acceptErr = f.svc.AcceptRide(ctx, r.ID, "cap-1")
	}()
	go func() {
		defer wg.Done()
		<-start
		f.svc.SweepExpired(ctx, time.Now())
	}()
	close(start)
	wg.Wait()

	got, err := f.rides.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	switch got.Status {
	case ride.StatusExpired:
		if acceptErr == nil {
			t.Error("accept reported success on an expired ride")
		}
	case ride.StatusAccepted:
		t.Error("lapsed request was accepted")
	default:
		t.Errorf("ride stuck in %s", got.Status)
	}
}
