// README: In-memory ride store. Mirrors the SQL store's CAS semantics
// under a single mutex; used by tests and local development.
package ride

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusride/internal/types"
)

type MemStore struct {
	mu     sync.Mutex
	rides  map[types.ID]*Ride
	events map[types.ID][]Event
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		rides:  make(map[types.ID]*Ride),
		events: make(map[types.ID][]Event),
	}
}

func scrub(r *Ride) *Ride {
	cp := *r
	cp.OTP = ""
	cp.NotifiedCaptains = append([]NotifiedCaptain(nil), r.NotifiedCaptains...)
	return &cp
}

func (s *MemStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = types.ID(uuid.NewString())
	}
	cp := *r
	cp.NotifiedCaptains = append([]NotifiedCaptain(nil), r.NotifiedCaptains...)
	s.rides[r.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return scrub(r), nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int64, patch StatusPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from || r.StatusVersion != version {
		return false, nil
	}

	r.Status = to
	r.StatusVersion++
	if patch.CaptainID != "" {
		r.CaptainID = patch.CaptainID
	}
	if patch.VehicleID != "" {
		r.VehicleID = patch.VehicleID
	}
	if patch.OTP != nil {
		r.OTP = *patch.OTP
	}
	if patch.OTPVerified {
		r.OTPVerified = true
	}
	if patch.CancellationReason != "" {
		r.CancellationReason = patch.CancellationReason
	}
	if patch.PaymentStatus != nil {
		r.Payment.Status = *patch.PaymentStatus
	}

	at := patch.At
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &at
	case StatusArrived:
		r.ArrivedAt = &at
	case StatusStarted:
		r.StartedAt = &at
	case StatusCompleted:
		r.CompletedAt = &at
	case StatusCancelledRider, StatusCancelledCaptain, StatusExpired:
		r.CancelledAt = &at
	}
	return true, nil
}

func (s *MemStore) UpdatePayment(_ context.Context, id types.ID, from, to PaymentStatus, patch PaymentPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Payment.Status != from {
		return false, nil
	}
	r.Payment.Status = to
	if patch.GatewayOrderID != "" {
		r.Payment.GatewayOrderID = patch.GatewayOrderID
	}
	if patch.GatewayPaymentID != "" {
		r.Payment.GatewayPaymentID = patch.GatewayPaymentID
	}
	if patch.Signature != "" {
		r.Payment.Signature = patch.Signature
	}
	if patch.PaidAt != nil {
		r.Payment.PaidAt = patch.PaidAt
	}
	return true, nil
}

func (s *MemStore) CompareOTP(_ context.Context, id types.ID, otp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	return r.OTP != "" && r.OTP == otp, nil
}

func (s *MemStore) HasActiveByRider(_ context.Context, riderID types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rides {
		if r.RiderID == riderID && r.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) ActiveFor(_ context.Context, userID types.ID, asCaptain bool) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rides {
		if !r.Active() {
			continue
		}
		if asCaptain && r.CaptainID == userID {
			return scrub(r), nil
		}
		if !asCaptain && r.RiderID == userID {
			return scrub(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) AddNotified(_ context.Context, rideID types.ID, n NotifiedCaptain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range r.NotifiedCaptains {
		if existing.CaptainID == n.CaptainID {
			return nil
		}
	}
	r.NotifiedCaptains = append(r.NotifiedCaptains, n)
	return nil
}

func (s *MemStore) MarkViewed(_ context.Context, rideID, captainID types.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	for i := range r.NotifiedCaptains {
		if r.NotifiedCaptains[i].CaptainID == captainID {
			if !r.NotifiedCaptains[i].Viewed {
				r.NotifiedCaptains[i].Viewed = true
				r.NotifiedCaptains[i].ViewedAt = &at
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) SetRating(_ context.Context, rideID types.ID, byCaptain bool, rating Rating) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[rideID]
	if !ok {
		return false, ErrNotFound
	}
	if byCaptain {
		if r.RiderRating != nil {
			return false, nil
		}
		r.RiderRating = &rating
	} else {
		if r.CaptainRating != nil {
			return false, nil
		}
		r.CaptainRating = &rating
	}
	return true, nil
}

func (s *MemStore) ListExpiredRequesting(_ context.Context, now time.Time, limit int) ([]*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Ride
	for _, r := range s.rides {
		if r.Status == StatusRequesting && now.After(r.ExpiresAt) {
			out = append(out, scrub(r))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = types.ID(uuid.NewString())
	}
	s.events[e.RideID] = append(s.events[e.RideID], e)
	return nil
}

func (s *MemStore) ListEvents(_ context.Context, rideID types.ID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events[rideID]...), nil
}
