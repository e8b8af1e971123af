// README: Outbound user notifications. The engine only depends on the
// Notifier interface; delivery (FCM, AMQP, logs) is chosen at wiring time.
package notify

import (
	"context"

	"campusride/internal/types"
)

// Notifier delivers a named event with a small string payload to one user.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, userID types.ID, event string, payload map[string]string) error
}

// Event names pushed by the engine.
const (
	EventRideOffered    = "ride.offered"
	EventRideAccepted   = "ride.accepted"
	EventCaptainArrived = "ride.arrived"
	EventRideStarted    = "ride.started"
	EventRideCompleted  = "ride.completed"
	EventRideCancelled  = "ride.cancelled"
	EventRideExpired    = "ride.expired"
	EventPaymentDone    = "payment.completed"
	EventPaymentRefund  = "payment.refunded"
)
