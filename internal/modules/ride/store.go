// README: Ride persistence contract. All status mutations are
// compare-and-swap on (status, status_version) so concurrent writers
// race safely: exactly one wins, the rest observe ok=false.
package ride

import (
	"context"
	"time"

	"campusride/internal/types"
)

// StatusPatch carries the fields written alongside a status transition.
// Nil / zero fields are left untouched. The timestamp column updated is
// chosen by the target status.
type StatusPatch struct {
	CaptainID          types.ID
	VehicleID          types.ID
	OTP                *string
	OTPVerified        bool
	CancellationReason string
	PaymentStatus      *PaymentStatus
	At                 time.Time
}

// PaymentPatch carries the fields written on a payment status change.
type PaymentPatch struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	PaidAt           *time.Time
}

type Store interface {
	Create(ctx context.Context, r *Ride) error

	// Get returns the ride with the OTP scrubbed.
	Get(ctx context.Context, id types.ID) (*Ride, error)

	// UpdateStatus performs the CAS transition from -> to at the given
	// version. Returns (false, nil) when the ride has moved on.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int64, patch StatusPatch) (bool, error)

	// UpdatePayment performs a CAS on the payment sub-record.
	UpdatePayment(ctx context.Context, id types.ID, from, to PaymentStatus, patch PaymentPatch) (bool, error)

	// CompareOTP checks the supplied code against the stored one without
	// revealing it.
	CompareOTP(ctx context.Context, id types.ID, otp string) (bool, error)

	// HasActiveByRider reports whether the rider has any non-terminal ride.
	HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error)

	// ActiveFor returns the user's current non-terminal ride, if any.
	ActiveFor(ctx context.Context, userID types.ID, asCaptain bool) (*Ride, error)

	AddNotified(ctx context.Context, rideID types.ID, n NotifiedCaptain) error
	MarkViewed(ctx context.Context, rideID, captainID types.ID, at time.Time) error

	// SetRating writes a rating once; ok=false if that side already rated.
	SetRating(ctx context.Context, rideID types.ID, byCaptain bool, r Rating) (bool, error)

	// ListExpiredRequesting returns requesting rides whose offer window
	// has passed, for the sweeper.
	ListExpiredRequesting(ctx context.Context, now time.Time, limit int) ([]*Ride, error)

	AppendEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context, rideID types.ID) ([]Event, error)
}
