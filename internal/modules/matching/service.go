// README: Matching engine: takes a ride request, prices it, finds nearby
// eligible captains, and hands the ride to the first captain whose accept
// wins the compare-and-swap. Also runs the offer-window expiry sweep.
package matching

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"campusride/internal/geo"
	"campusride/internal/modules/account"
	"campusride/internal/modules/fare"
	"campusride/internal/modules/ride"
	"campusride/internal/notify"
	"campusride/internal/routing"
	"campusride/internal/types"
)

var (
	ErrActiveRide        = errors.New("rider already has an active ride")
	ErrStaleRequest      = errors.New("ride request no longer open")
	ErrIneligibleCaptain = errors.New("captain not eligible to accept rides")
	ErrDependency        = errors.New("upstream dependency failed")
	ErrBadRequest        = errors.New("bad request")
)

// OTPFunc produces the pickup code handed to the rider on accept.
type OTPFunc func() string

// DefaultOTP returns a 4-digit code in [1000, 9999].
func DefaultOTP() string {
	return strconv.Itoa(1000 + rand.Intn(9000))
}

type Config struct {
	RadiusM       float64
	MaxCandidates int
	OfferWindow   time.Duration
	SweepInterval time.Duration
}

type Service struct {
	rides    ride.Store
	accounts account.Store
	index    GeoIndex
	router   routing.Router
	notifier notify.Notifier
	cfg      Config
	otp      OTPFunc
	log      *zap.Logger
	now      func() time.Time
}

func NewService(rides ride.Store, accounts account.Store, index GeoIndex, router routing.Router, notifier notify.Notifier, cfg Config, log *zap.Logger) *Service {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = 5000
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	if cfg.OfferWindow <= 0 {
		cfg.OfferWindow = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Service{
		rides:    rides,
		accounts: accounts,
		index:    index,
		router:   router,
		notifier: notifier,
		cfg:      cfg,
		otp:      DefaultOTP,
		log:      log,
		now:      time.Now,
	}
}

// SetOTPFunc replaces the OTP source, letting callers inject a
// deterministic sequence.
func (s *Service) SetOTPFunc(fn OTPFunc) {
	if fn != nil {
		s.otp = fn
	}
}

// RequestCommand is a rider's ask for a ride.
type RequestCommand struct {
	RiderID        types.ID
	Pickup         ride.Stop
	Dropoff        ride.Stop
	VehicleClass   account.VehicleClass
	PassengerCount int
	PaymentMethod  ride.PaymentMethod
	Discount       types.Money
}

func (c *RequestCommand) validate() error {
	if c.RiderID == "" {
		return fmt.Errorf("%w: rider id required", ErrBadRequest)
	}
	if !geo.ValidPoint(c.Pickup.Point) || !geo.ValidPoint(c.Dropoff.Point) {
		return fmt.Errorf("%w: invalid coordinates", ErrBadRequest)
	}
	if !c.VehicleClass.Valid() {
		return fmt.Errorf("%w: unknown vehicle class %q", ErrBadRequest, c.VehicleClass)
	}
	if c.PassengerCount < 1 {
		return fmt.Errorf("%w: passenger count must be at least 1", ErrBadRequest)
	}
	if !c.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrBadRequest, c.PaymentMethod)
	}
	return nil
}

// RequestRide prices the trip, creates a requesting ride with an offer
// window, and notifies nearby eligible captains. The candidate fan-out is
// simultaneous: every notified captain may race to accept.
func (s *Service) RequestRide(ctx context.Context, cmd RequestCommand) (*ride.Ride, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	active, err := s.rides.HasActiveByRider(ctx, cmd.RiderID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRide
	}

	route, err := s.router.Route(ctx, cmd.Pickup.Point, cmd.Dropoff.Point)
	if err != nil {
		return nil, fmt.Errorf("%w: routing: %v", ErrDependency, err)
	}

	profile, ok := fare.ProfileFor(cmd.VehicleClass)
	if !ok {
		return nil, fmt.Errorf("%w: no fare profile for %q", ErrBadRequest, cmd.VehicleClass)
	}
	breakdown, err := fare.Compute(route.DistanceKm, profile, cmd.Discount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	now := s.now()
	r := &ride.Ride{
		RiderID:        cmd.RiderID,
		Status:         ride.StatusRequesting,
		Pickup:         cmd.Pickup,
		Dropoff:        cmd.Dropoff,
		VehicleClass:   string(cmd.VehicleClass),
		PassengerCount: cmd.PassengerCount,
		DistanceKm:     route.DistanceKm,
		DurationMin:    route.DurationMin,
		Fare:           breakdown,
		Payment:        ride.Payment{Method: cmd.PaymentMethod, Status: ride.PaymentPending},
		RequestedAt:    now,
		ExpiresAt:      now.Add(s.cfg.OfferWindow),
	}
	if err := s.rides.Create(ctx, r); err != nil {
		return nil, err
	}

	notified := s.fanOut(ctx, r, cmd)
	s.log.Info("ride requested",
		zap.String("ride_id", string(r.ID)),
		zap.String("rider_id", string(cmd.RiderID)),
		zap.Float64("distance_km", route.DistanceKm),
		zap.Int("candidates", notified))

	return s.rides.Get(ctx, r.ID)
}

// fanOut finds candidates, filters them against live eligibility, records
// them on the ride, and pushes the offer. Returns the notified count.
func (s *Service) fanOut(ctx context.Context, r *ride.Ride, cmd RequestCommand) int {
	candidates, err := s.index.Nearby(ctx, cmd.Pickup.Point, s.cfg.RadiusM, s.cfg.MaxCandidates)
	if err != nil {
		s.log.Error("geo query failed", zap.String("ride_id", string(r.ID)), zap.Error(err))
		return 0
	}

	now := s.now()
	notified := 0
	for _, c := range candidates {
		if c.CaptainID == cmd.RiderID {
			continue
		}
		if _, err := s.eligible(ctx, c.CaptainID, cmd.VehicleClass, cmd.PassengerCount, now); err != nil {
			continue
		}
		if err := s.rides.AddNotified(ctx, r.ID, ride.NotifiedCaptain{
			CaptainID:  c.CaptainID,
			NotifiedAt: now,
		}); err != nil {
			s.log.Warn("record notified captain failed",
				zap.String("ride_id", string(r.ID)),
				zap.String("captain_id", string(c.CaptainID)),
				zap.Error(err))
			continue
		}
		notified++
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, c.CaptainID, notify.EventRideOffered, map[string]string{
				"ride_id":        string(r.ID),
				"pickup_address": cmd.Pickup.Address,
				"distance_km":    strconv.FormatFloat(c.Distance/1000, 'f', 2, 64),
				"fare":           strconv.FormatInt(int64(r.Fare.FinalAmount), 10),
			}); err != nil {
				s.log.Warn("offer push failed",
					zap.String("captain_id", string(c.CaptainID)),
					zap.Error(err))
			}
		}
	}
	return notified
}

// eligible re-checks a candidate against the account store. The geo index
// only says who is nearby; verification, bans, vehicle class, capacity,
// and documents are checked here at offer time and again at accept time.
func (s *Service) eligible(ctx context.Context, captainID types.ID, class account.VehicleClass, passengers int, now time.Time) (*account.Vehicle, error) {
	u, err := s.accounts.GetUser(ctx, captainID)
	if err != nil {
		return nil, err
	}
	if !u.EligibleCaptain() {
		return nil, ErrIneligibleCaptain
	}
	v, err := s.accounts.GetVehicleByOwner(ctx, captainID)
	if err != nil {
		return nil, err
	}
	if v.Class != class {
		return nil, fmt.Errorf("%w: vehicle class mismatch", ErrIneligibleCaptain)
	}
	if v.Status != account.VehicleAvailable {
		return nil, fmt.Errorf("%w: vehicle %s", ErrIneligibleCaptain, v.Status)
	}
	if v.Capacity > 0 && passengers > v.Capacity {
		return nil, fmt.Errorf("%w: over capacity", ErrIneligibleCaptain)
	}
	if !v.DocumentsValid(now) {
		return nil, fmt.Errorf("%w: vehicle documents expired", ErrIneligibleCaptain)
	}
	return v, nil
}

// AcceptRide is the race: any notified captain may call it, exactly one
// wins. Losers get ErrStaleRequest whether they lost to another captain,
// a rider cancel, or the offer window.
func (s *Service) AcceptRide(ctx context.Context, rideID, captainID types.ID) (*ride.Ride, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != ride.StatusRequesting {
		return nil, ErrStaleRequest
	}

	now := s.now()
	if now.After(r.ExpiresAt) {
		// Lapsed but not yet swept: expire it on the way out.
		if ok, err := s.rides.UpdateStatus(ctx, rideID, ride.StatusRequesting, ride.StatusExpired, r.StatusVersion, ride.StatusPatch{At: now}); err == nil && ok {
			s.recordEvent(ctx, rideID, ride.StatusRequesting, ride.StatusExpired, "system", "")
		}
		return nil, ErrStaleRequest
	}

	v, err := s.eligible(ctx, captainID, account.VehicleClass(r.VehicleClass), r.PassengerCount, now)
	if err != nil {
		if errors.Is(err, ErrIneligibleCaptain) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIneligibleCaptain, err)
	}

	otp := s.otp()
	ok, err := s.rides.UpdateStatus(ctx, rideID, ride.StatusRequesting, ride.StatusAccepted, r.StatusVersion, ride.StatusPatch{
		CaptainID: captainID,
		VehicleID: v.ID,
		OTP:       &otp,
		At:        now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStaleRequest
	}
	s.recordEvent(ctx, rideID, ride.StatusRequesting, ride.StatusAccepted, "captain", captainID)

	if err := s.accounts.SetVehicleStatus(ctx, v.ID, account.VehicleOnRide); err != nil {
		s.log.Warn("flip vehicle to on_ride failed", zap.String("vehicle_id", string(v.ID)), zap.Error(err))
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, r.RiderID, notify.EventRideAccepted, map[string]string{
			"ride_id":    string(rideID),
			"captain_id": string(captainID),
			"otp":        otp,
		}); err != nil {
			s.log.Warn("accept push failed", zap.String("rider_id", string(r.RiderID)), zap.Error(err))
		}
	}

	return s.rides.Get(ctx, rideID)
}

// MarkViewed flags that a notified captain opened the offer.
func (s *Service) MarkViewed(ctx context.Context, rideID, captainID types.ID) error {
	return s.rides.MarkViewed(ctx, rideID, captainID, s.now())
}

// UpdateCaptainLocation is the heartbeat: persist the position and
// refresh the geo index.
func (s *Service) UpdateCaptainLocation(ctx context.Context, captainID types.ID, p types.Point) error {
	if !geo.ValidPoint(p) {
		return fmt.Errorf("%w: invalid coordinates", ErrBadRequest)
	}
	u, err := s.accounts.GetUser(ctx, captainID)
	if err != nil {
		return err
	}
	if u.Role != account.RoleCaptain {
		return fmt.Errorf("%w: not a captain", ErrBadRequest)
	}

	now := s.now()
	if err := s.accounts.UpdateLocation(ctx, captainID, p, now); err != nil {
		return err
	}
	return s.index.Upsert(ctx, captainID, p, now)
}

// GoOffline removes the captain from matching.
func (s *Service) GoOffline(ctx context.Context, captainID types.ID) error {
	return s.index.Remove(ctx, captainID)
}

// SweepExpired expires every requesting ride whose offer window has
// lapsed. Returns how many rides it transitioned.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) int {
	lapsed, err := s.rides.ListExpiredRequesting(ctx, now, 100)
	if err != nil {
		s.log.Error("expiry sweep query failed", zap.Error(err))
		return 0
	}

	expired := 0
	for _, r := range lapsed {
		ok, err := s.rides.UpdateStatus(ctx, r.ID, ride.StatusRequesting, ride.StatusExpired, r.StatusVersion, ride.StatusPatch{At: now})
		if err != nil {
			s.log.Error("expire ride failed", zap.String("ride_id", string(r.ID)), zap.Error(err))
			continue
		}
		if !ok {
			// A captain accepted between the query and the CAS.
			continue
		}
		expired++
		s.recordEvent(ctx, r.ID, ride.StatusRequesting, ride.StatusExpired, "system", "")
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, r.RiderID, notify.EventRideExpired, map[string]string{"ride_id": string(r.ID)}); err != nil {
				s.log.Warn("expiry push failed", zap.String("rider_id", string(r.RiderID)), zap.Error(err))
			}
		}
	}
	return expired
}

// RunExpirySweep blocks, sweeping on the configured interval until the
// context is cancelled.
func (s *Service) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.SweepExpired(ctx, now); n > 0 {
				s.log.Info("expired lapsed ride requests", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) recordEvent(ctx context.Context, rideID types.ID, from, to ride.Status, actorType string, actorID types.ID) {
	err := s.rides.AppendEvent(ctx, ride.Event{
		RideID:    rideID,
		From:      from,
		To:        to,
		ActorType: actorType,
		ActorID:   actorID,
		At:        s.now(),
	})
	if err != nil {
		s.log.Warn("append ride event failed", zap.String("ride_id", string(rideID)), zap.Error(err))
	}
}
