// README: Store contract for account reads and the engine's aggregate writes.
package account

import (
	"context"
	"errors"
	"time"

	"campusride/internal/types"
)

var ErrNotFound = errors.New("account not found")

type Store interface {
	GetUser(ctx context.Context, id types.ID) (*User, error)
	GetVehicleByOwner(ctx context.Context, ownerID types.ID) (*Vehicle, error)

	// UpdateLocation overwrites the user's last known position.
	UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error

	// CreditEarnings adds amount to the captain's total and available balances.
	CreditEarnings(ctx context.Context, captainID types.ID, amount types.Money) error

	// AddRating folds one more star rating into the user's running average.
	AddRating(ctx context.Context, id types.ID, stars int) error

	// IncrementRides bumps the per-role completed ride counter.
	IncrementRides(ctx context.Context, id types.ID, role Role) error

	SetVehicleStatus(ctx context.Context, vehicleID types.ID, status VehicleStatus) error
}
