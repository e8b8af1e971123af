// README: Ride aggregate, lifecycle statuses, and the transition table.
package ride

import (
	"time"

	"campusride/internal/modules/fare"
	"campusride/internal/types"
)

type Status string

const (
	StatusRequesting      Status = "requesting"
	StatusAccepted        Status = "accepted"
	StatusArrived         Status = "arrived"
	StatusStarted         Status = "started"
	StatusCompleted       Status = "completed"
	StatusCancelledRider   Status = "cancelled_rider"
	StatusCancelledCaptain Status = "cancelled_captain"
	StatusExpired         Status = "expired"
)

// AllowedTransitions is the full lifecycle graph. Anything not listed is
// rejected; terminal statuses have no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusRequesting: {StatusAccepted, StatusCancelledRider, StatusExpired},
	StatusAccepted:   {StatusArrived, StatusCancelledRider, StatusCancelledCaptain},
	StatusArrived:    {StatusStarted, StatusCancelledCaptain},
	StatusStarted:    {StatusCompleted, StatusCancelledCaptain},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return len(AllowedTransitions[s]) == 0
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is the payment sub-record embedded in a ride.
type Payment struct {
	Method           PaymentMethod `json:"method"`
	Status           PaymentStatus `json:"status"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	Signature        string        `json:"-"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
}

// Stop is a pickup or dropoff location.
type Stop struct {
	Point   types.Point `json:"point"`
	Address string      `json:"address"`
}

// Rating is a single star rating left on a ride by one party.
type Rating struct {
	Stars   int       `json:"stars"`
	Review  string    `json:"review,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

// NotifiedCaptain records one captain offered the ride during matching.
type NotifiedCaptain struct {
	CaptainID  types.ID   `json:"captain_id"`
	NotifiedAt time.Time  `json:"notified_at"`
	Viewed     bool       `json:"viewed"`
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
}

// Ride is the lifecycle aggregate. StatusVersion increments on every
// status change and guards all compare-and-swap updates.
type Ride struct {
	ID        types.ID `json:"id"`
	RiderID   types.ID `json:"rider_id"`
	CaptainID types.ID `json:"captain_id,omitempty"`
	VehicleID types.ID `json:"vehicle_id,omitempty"`

	Status        Status `json:"status"`
	StatusVersion int64  `json:"status_version"`

	Pickup  Stop `json:"pickup"`
	Dropoff Stop `json:"dropoff"`

	VehicleClass   string  `json:"vehicle_class"`
	PassengerCount int     `json:"passenger_count"`
	DistanceKm     float64 `json:"distance_km"`
	DurationMin    int     `json:"duration_min"`

	Fare    fare.Breakdown `json:"fare"`
	Payment Payment        `json:"payment"`

	// OTP is set on accept and scrubbed from reads; verification goes
	// through the store so the plaintext never leaves it.
	OTP         string `json:"-"`
	OTPVerified bool   `json:"otp_verified"`

	RiderRating   *Rating `json:"rider_rating,omitempty"`
	CaptainRating *Rating `json:"captain_rating,omitempty"`

	NotifiedCaptains []NotifiedCaptain `json:"notified_captains,omitempty"`

	CancellationReason string `json:"cancellation_reason,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Active reports whether the ride occupies its rider and captain.
func (r *Ride) Active() bool {
	return !r.Status.Terminal()
}

// Event is one recorded lifecycle transition.
type Event struct {
	ID        types.ID  `json:"id"`
	RideID    types.ID  `json:"ride_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorType string    `json:"actor_type"`
	ActorID   types.ID  `json:"actor_id"`
	At        time.Time `json:"at"`
}
