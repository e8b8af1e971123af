// README: In-memory account store for development and tests.
package account

import (
	"context"
	"sync"
	"time"

	"campusride/internal/types"
)

type MemStore struct {
	mu       sync.Mutex
	users    map[types.ID]*User
	vehicles map[types.ID]*Vehicle
	byOwner  map[types.ID]types.ID
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[types.ID]*User),
		vehicles: make(map[types.ID]*Vehicle),
		byOwner:  make(map[types.ID]types.ID),
	}
}

// PutUser inserts or replaces a user record.
func (s *MemStore) PutUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// PutVehicle inserts or replaces a vehicle record.
func (s *MemStore) PutVehicle(v *Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vehicles[v.ID] = &cp
	s.byOwner[v.OwnerID] = v.ID
}

func (s *MemStore) GetUser(_ context.Context, id types.ID) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) GetVehicleByOwner(_ context.Context, ownerID types.ID) (*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vid, ok := s.byOwner[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	v := s.vehicles[vid]
	cp := *v
	return &cp, nil
}

func (s *MemStore) UpdateLocation(_ context.Context, id types.ID, p types.Point, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Location = p
	u.LocationAt = at
	return nil
}

func (s *MemStore) CreditEarnings(_ context.Context, captainID types.ID, amount types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[captainID]
	if !ok {
		return ErrNotFound
	}
	u.Earnings.Total += amount
	u.Earnings.Available += amount
	return nil
}

func (s *MemStore) AddRating(_ context.Context, id types.ID, stars int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	sum := u.Rating.Average*float64(u.Rating.Count) + float64(stars)
	u.Rating.Count++
	u.Rating.Average = sum / float64(u.Rating.Count)
	return nil
}

func (s *MemStore) IncrementRides(_ context.Context, id types.ID, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if role == RoleCaptain {
		u.RidesAsCaptain++
	} else {
		u.RidesAsRider++
	}
	return nil
}

func (s *MemStore) SetVehicleStatus(_ context.Context, vehicleID types.ID, status VehicleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	return nil
}
