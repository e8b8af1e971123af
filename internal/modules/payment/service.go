// README: Payment reconciliation against the gateway callback. Verifies
// the HMAC signature and flips the ride's payment to completed exactly
// once; replays of the same callback are acknowledged idempotently.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campusride/internal/modules/ride"
	"campusride/internal/notify"
	"campusride/internal/types"
)

var (
	ErrSignatureInvalid = errors.New("payment signature invalid")
	ErrNoOrder          = errors.New("ride has no gateway order attached")
)

type Service struct {
	rides    ride.Store
	secret   []byte
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewService(rides ride.Store, secret []byte, notifier notify.Notifier, log *zap.Logger) *Service {
	return &Service{
		rides:    rides,
		secret:   secret,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Sign computes the gateway signature over "orderID|paymentID".
func (s *Service) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// AttachOrder records the gateway order created for an online ride, before
// the rider is sent to checkout.
func (s *Service) AttachOrder(ctx context.Context, rideID types.ID, orderID string) (*ride.Ride, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Payment.Method != ride.PaymentOnline {
		return nil, fmt.Errorf("%w: ride is not paying online", ride.ErrBadRequest)
	}
	if r.Payment.Status == ride.PaymentCompleted || r.Payment.Status == ride.PaymentRefunded {
		return nil, fmt.Errorf("%w: payment already settled", ride.ErrInvalidTransition)
	}

	ok, err := s.rides.UpdatePayment(ctx, rideID, r.Payment.Status, ride.PaymentPending, ride.PaymentPatch{
		GatewayOrderID: orderID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: payment moved concurrently", ride.ErrInvalidTransition)
	}
	return s.rides.Get(ctx, rideID)
}

// ConfirmPayment reconciles the gateway callback. The signature must
// verify against the stored order id; a replay of an already-confirmed
// payment with the same payment id succeeds without side effects.
func (s *Service) ConfirmPayment(ctx context.Context, rideID types.ID, orderID, paymentID, signature string) (*ride.Ride, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Payment.GatewayOrderID == "" {
		return nil, ErrNoOrder
	}
	if r.Payment.GatewayOrderID != orderID {
		return nil, fmt.Errorf("%w: order id mismatch", ErrSignatureInvalid)
	}

	expected := s.Sign(orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrSignatureInvalid
	}

	if r.Payment.Status == ride.PaymentCompleted {
		if r.Payment.GatewayPaymentID == paymentID {
			// Gateway retry; already reconciled.
			return r, nil
		}
		return nil, fmt.Errorf("%w: payment already completed with a different payment id", ride.ErrInvalidTransition)
	}
	if r.Payment.Status == ride.PaymentRefunded {
		return nil, fmt.Errorf("%w: payment was refunded", ride.ErrInvalidTransition)
	}

	paidAt := s.now()
	ok, err := s.rides.UpdatePayment(ctx, rideID, r.Payment.Status, ride.PaymentCompleted, ride.PaymentPatch{
		GatewayPaymentID: paymentID,
		Signature:        signature,
		PaidAt:           &paidAt,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race: re-read and treat a matching completion as a replay.
		latest, err := s.rides.Get(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if latest.Payment.Status == ride.PaymentCompleted && latest.Payment.GatewayPaymentID == paymentID {
			return latest, nil
		}
		return nil, fmt.Errorf("%w: payment moved concurrently", ride.ErrInvalidTransition)
	}

	s.log.Info("payment reconciled",
		zap.String("ride_id", string(rideID)),
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID))
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, r.RiderID, notify.EventPaymentDone, map[string]string{
			"ride_id": string(rideID),
			"amount":  fmt.Sprintf("%d", r.Fare.FinalAmount),
		}); err != nil {
			s.log.Warn("payment push failed", zap.String("rider_id", string(r.RiderID)), zap.Error(err))
		}
	}
	return s.rides.Get(ctx, rideID)
}

// MarkFailed records a failed checkout so the rider can retry.
func (s *Service) MarkFailed(ctx context.Context, rideID types.ID) (*ride.Ride, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Payment.Status != ride.PaymentPending {
		return nil, fmt.Errorf("%w: payment is %s", ride.ErrInvalidTransition, r.Payment.Status)
	}
	ok, err := s.rides.UpdatePayment(ctx, rideID, ride.PaymentPending, ride.PaymentFailed, ride.PaymentPatch{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: payment moved concurrently", ride.ErrInvalidTransition)
	}
	return s.rides.Get(ctx, rideID)
}
