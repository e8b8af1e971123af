// README: Ride lifecycle orchestration: arrive, start (OTP), complete
// (earnings credit), cancel (refund), rate, lazy expiry. Every transition
// goes through the store's CAS so a lost race never double-applies a
// side effect.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campusride/internal/modules/account"
	"campusride/internal/modules/fare"
	"campusride/internal/notify"
	"campusride/internal/types"
)

type Service struct {
	store    Store
	accounts account.Store
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, accounts account.Store, notifier notify.Notifier, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Store exposes the underlying store for packages that compose on top of
// the lifecycle (matching, payments).
func (s *Service) Store() Store { return s.store }

// Get returns the ride, expiring it first if its offer window lapsed
// while still requesting.
func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusRequesting && s.now().After(r.ExpiresAt) {
		if expired, err := s.expire(ctx, r); err == nil && expired != nil {
			return expired, nil
		}
		// Lost the race to another transition; re-read.
		return s.store.Get(ctx, id)
	}
	return r, nil
}

// ActiveFor returns the user's current non-terminal ride.
func (s *Service) ActiveFor(ctx context.Context, userID types.ID, role account.Role) (*Ride, error) {
	return s.store.ActiveFor(ctx, userID, role == account.RoleCaptain)
}

// Events returns the recorded lifecycle transitions of a ride.
func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

// expire moves a lapsed requesting ride to expired. Returns the updated
// ride, or nil if another writer got there first.
func (s *Service) expire(ctx context.Context, r *Ride) (*Ride, error) {
	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusRequesting, StatusExpired, r.StatusVersion, StatusPatch{At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	s.recordEvent(ctx, r.ID, StatusRequesting, StatusExpired, "system", "")
	s.push(ctx, r.RiderID, notify.EventRideExpired, map[string]string{"ride_id": string(r.ID)})
	return s.store.Get(ctx, r.ID)
}

// Arrive marks the captain at the pickup point.
func (s *Service) Arrive(ctx context.Context, rideID, captainID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.CaptainID != captainID {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusArrived) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusArrived)
	}

	ok, err := s.store.UpdateStatus(ctx, rideID, r.Status, StatusArrived, r.StatusVersion, StatusPatch{At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride moved concurrently", ErrInvalidTransition)
	}
	s.recordEvent(ctx, rideID, r.Status, StatusArrived, "captain", captainID)
	s.push(ctx, r.RiderID, notify.EventCaptainArrived, map[string]string{"ride_id": string(rideID)})
	return s.store.Get(ctx, rideID)
}

// Start verifies the rider's OTP and begins the trip.
func (s *Service) Start(ctx context.Context, rideID, captainID types.ID, otp string) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.CaptainID != captainID {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusStarted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusStarted)
	}

	match, err := s.store.CompareOTP(ctx, rideID, otp)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrOTPMismatch
	}

	ok, err := s.store.UpdateStatus(ctx, rideID, r.Status, StatusStarted, r.StatusVersion, StatusPatch{
		OTPVerified: true,
		At:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride moved concurrently", ErrInvalidTransition)
	}
	s.recordEvent(ctx, rideID, r.Status, StatusStarted, "captain", captainID)
	s.push(ctx, r.RiderID, notify.EventRideStarted, map[string]string{"ride_id": string(rideID)})
	return s.store.Get(ctx, rideID)
}

// Complete finishes the trip, credits the captain's fare share, bumps
// both ride counters, and frees the vehicle.
func (s *Service) Complete(ctx context.Context, rideID, captainID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.CaptainID != captainID {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusCompleted)
	}

	ok, err := s.store.UpdateStatus(ctx, rideID, r.Status, StatusCompleted, r.StatusVersion, StatusPatch{At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride moved concurrently", ErrInvalidTransition)
	}
	s.recordEvent(ctx, rideID, r.Status, StatusCompleted, "captain", captainID)

	// Side effects run once: only the CAS winner reaches here.
	share := fare.CaptainShare(r.Fare)
	if err := s.accounts.CreditEarnings(ctx, captainID, share); err != nil {
		s.log.Error("credit earnings failed",
			zap.String("ride_id", string(rideID)),
			zap.String("captain_id", string(captainID)),
			zap.Error(err))
	}
	if err := s.accounts.IncrementRides(ctx, r.RiderID, account.RoleRider); err != nil {
		s.log.Warn("increment rider counter failed", zap.String("ride_id", string(rideID)), zap.Error(err))
	}
	if err := s.accounts.IncrementRides(ctx, captainID, account.RoleCaptain); err != nil {
		s.log.Warn("increment captain counter failed", zap.String("ride_id", string(rideID)), zap.Error(err))
	}
	s.freeVehicle(ctx, r.VehicleID)

	s.push(ctx, r.RiderID, notify.EventRideCompleted, map[string]string{
		"ride_id": string(rideID),
		"amount":  fmt.Sprintf("%d", r.Fare.FinalAmount),
	})
	return s.store.Get(ctx, rideID)
}

// Cancel ends the ride on behalf of either party. A paid online ride is
// marked refunded inside the same CAS that cancels it.
func (s *Service) Cancel(ctx context.Context, rideID types.ID, actorRole account.Role, actorID types.ID, reason string) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}

	var to Status
	switch actorRole {
	case account.RoleRider:
		if r.RiderID != actorID {
			return nil, ErrForbidden
		}
		to = StatusCancelledRider
	case account.RoleCaptain:
		if r.CaptainID != actorID {
			return nil, ErrForbidden
		}
		to = StatusCancelledCaptain
	default:
		return nil, ErrForbidden
	}

	if !CanTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}

	patch := StatusPatch{CancellationReason: reason, At: s.now()}
	refunding := r.Payment.Method == PaymentOnline && r.Payment.Status == PaymentCompleted
	if refunding {
		st := PaymentRefunded
		patch.PaymentStatus = &st
	}

	ok, err := s.store.UpdateStatus(ctx, rideID, r.Status, to, r.StatusVersion, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride moved concurrently", ErrInvalidTransition)
	}
	s.recordEvent(ctx, rideID, r.Status, to, string(actorRole), actorID)
	s.freeVehicle(ctx, r.VehicleID)

	payload := map[string]string{"ride_id": string(rideID), "by": string(actorRole)}
	if reason != "" {
		payload["reason"] = reason
	}
	counterpart := r.CaptainID
	if actorRole == account.RoleCaptain {
		counterpart = r.RiderID
	}
	if counterpart != "" {
		s.push(ctx, counterpart, notify.EventRideCancelled, payload)
	}
	if refunding {
		s.push(ctx, r.RiderID, notify.EventPaymentRefund, map[string]string{"ride_id": string(rideID)})
	}
	return s.store.Get(ctx, rideID)
}

// Rate records a star rating on a completed ride and folds it into the
// counterpart's running average. Each side may rate once.
func (s *Service) Rate(ctx context.Context, rideID types.ID, raterRole account.Role, raterID types.ID, stars int, review string) (*Ride, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: stars must be 1-5", ErrBadRequest)
	}
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: ride not completed", ErrInvalidTransition)
	}

	byCaptain := raterRole == account.RoleCaptain
	var ratee types.ID
	if byCaptain {
		if r.CaptainID != raterID {
			return nil, ErrForbidden
		}
		ratee = r.RiderID
	} else {
		if r.RiderID != raterID {
			return nil, ErrForbidden
		}
		ratee = r.CaptainID
	}

	ok, err := s.store.SetRating(ctx, rideID, byCaptain, Rating{
		Stars:   stars,
		Review:  review,
		RatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRated
	}
	if err := s.accounts.AddRating(ctx, ratee, stars); err != nil && !errors.Is(err, account.ErrNotFound) {
		s.log.Error("fold rating into aggregate failed",
			zap.String("ride_id", string(rideID)),
			zap.String("user_id", string(ratee)),
			zap.Error(err))
	}
	return s.store.Get(ctx, rideID)
}

func (s *Service) freeVehicle(ctx context.Context, vehicleID types.ID) {
	if vehicleID == "" {
		return
	}
	if err := s.accounts.SetVehicleStatus(ctx, vehicleID, account.VehicleAvailable); err != nil {
		s.log.Warn("free vehicle failed", zap.String("vehicle_id", string(vehicleID)), zap.Error(err))
	}
}

func (s *Service) recordEvent(ctx context.Context, rideID types.ID, from, to Status, actorType string, actorID types.ID) {
	err := s.store.AppendEvent(ctx, Event{
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

// push logs and swallows notification failures; delivery is best-effort.
func (s *Service) push(ctx context.Context, userID types.ID, event string, payload map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, event, payload); err != nil {
		s.log.Warn("notify failed",
			zap.String("user_id", string(userID)),
			zap.String("event", event),
			zap.Error(err))
	}
}
