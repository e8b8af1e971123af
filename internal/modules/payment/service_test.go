package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"campusride/internal/modules/fare"
	"campusride/internal/modules/ride"
	"campusride/internal/types"
)

const testSecret = "gateway-test-secret"

func newTestService(t *testing.T) (*Service, *ride.MemStore) {
	t.Helper()
	rides := ride.NewMemStore()
	svc := NewService(rides, []byte(testSecret), nil, zap.NewNop())
	return svc, rides
}

func seedOnlineRide(t *testing.T, rides *ride.MemStore, id types.ID) {
	t.Helper()
	r := &ride.Ride{
		ID:            id,
		RiderID:       "rider-1",
		CaptainID:     "captain-1",
		Status:        ride.StatusAccepted,
		StatusVersion: 1,
		Fare:          fare.Breakdown{BaseFare: 28, PlatformFee: 3, GST: 1, Total: 32, FinalAmount: 32},
		Payment:       ride.Payment{Method: ride.PaymentOnline, Status: ride.PaymentPending},
		ExpiresAt:     time.Now().Add(5 * time.Minute),
	}
	if err := rides.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
}

func TestSign_Deterministic(t *testing.T) {
	svc, _ := newTestService(t)
	a := svc.Sign("order_1", "pay_1")
	b := svc.Sign("order_1", "pay_1")
	if a != b {
		t.Fatal("signature not deterministic")
	}
	if a == svc.Sign("order_1", "pay_2") {
		t.Fatal("different payment ids produced the same signature")
	}
	if len(a) != 64 { // hex sha256
		t.Fatalf("signature length = %d, want 64", len(a))
	}
}

func TestConfirmPayment(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")
	ctx := context.Background()

	if _, err := svc.AttachOrder(ctx, "ride-1", "order_1"); err != nil {
		t.Fatalf("attach order: %v", err)
	}

	sig := svc.Sign("order_1", "pay_1")
	out, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_1", sig)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Payment.Status != ride.PaymentCompleted {
		t.Errorf("status = %s, want completed", out.Payment.Status)
	}
	if out.Payment.GatewayPaymentID != "pay_1" || out.Payment.PaidAt == nil {
		t.Errorf("payment record incomplete: %+v", out.Payment)
	}
}

func TestConfirmPayment_BadSignature(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")
	ctx := context.Background()
	svc.AttachOrder(ctx, "ride-1", "order_1")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
	}{
		{"garbage signature", "order_1", "pay_1", "deadbeef"},
		{"signature for other payment", "order_1", "pay_1", ""},
		{"tampered order id", "order_2", "pay_1", ""},
	}
	tests[1].signature = svc.Sign("order_1", "pay_2")
	tests[2].signature = svc.Sign("order_2", "pay_1")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ConfirmPayment(ctx, "ride-1", tt.orderID, tt.paymentID, tt.signature)
			if !errors.Is(err, ErrSignatureInvalid) {
				t.Fatalf("expected ErrSignatureInvalid, got %v", err)
			}
		})
	}

	got, _ := rides.Get(ctx, "ride-1")
	if got.Payment.Status != ride.PaymentPending {
		t.Errorf("payment moved on invalid signature: %s", got.Payment.Status)
	}
}

func TestConfirmPayment_ReplayIsIdempotent(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")
	ctx := context.Background()
	svc.AttachOrder(ctx, "ride-1", "order_1")

	sig := svc.Sign("order_1", "pay_1")
	if _, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_1", sig); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	first, _ := rides.Get(ctx, "ride-1")

	out, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_1", sig)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if out.Payment.Status != ride.PaymentCompleted {
		t.Errorf("replay changed status: %s", out.Payment.Status)
	}
	if first.Payment.PaidAt == nil || out.Payment.PaidAt == nil || !out.Payment.PaidAt.Equal(*first.Payment.PaidAt) {
		t.Errorf("replay rewrote paidAt: %v vs %v", first.Payment.PaidAt, out.Payment.PaidAt)
	}
}

func TestConfirmPayment_DifferentPaymentIDOnCompleted(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")
	ctx := context.Background()
	svc.AttachOrder(ctx, "ride-1", "order_1")

	if _, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_1", svc.Sign("order_1", "pay_1")); err != nil {
		t.Fatal(err)
	}
	_, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_2", svc.Sign("order_1", "pay_2"))
	if !errors.Is(err, ride.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestConfirmPayment_NoOrderAttached(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")

	_, err := svc.ConfirmPayment(context.Background(), "ride-1", "order_1", "pay_1", svc.Sign("order_1", "pay_1"))
	if !errors.Is(err, ErrNoOrder) {
		t.Fatalf("expected ErrNoOrder, got %v", err)
	}
}

func TestConfirmPayment_ConcurrentCallbacks(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")
	ctx := context.Background()
	svc.AttachOrder(ctx, "ride-1", "order_1")
	sig := svc.Sign("order_1", "pay_1")

	const callers = 8
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_1", sig)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	// Same payment id from every caller: all succeed, one of them having
	// actually written.
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent confirm failed: %v", err)
		}
	}
	got, _ := rides.Get(ctx, "ride-1")
	if got.Payment.Status != ride.PaymentCompleted || got.Payment.GatewayPaymentID != "pay_1" {
		t.Fatalf("final payment: %+v", got.Payment)
	}
}

func TestAttachOrder_CashRideRejected(t *testing.T) {
	svc, rides := newTestService(t)
	r := &ride.Ride{
		ID:      "ride-cash",
		RiderID: "rider-1",
		Status:  ride.StatusAccepted,
		Payment: ride.Payment{Method: ride.PaymentCash, Status: ride.PaymentPending},
	}
	rides.Create(context.Background(), r)

	_, err := svc.AttachOrder(context.Background(), "ride-cash", "order_1")
	if !errors.Is(err, ride.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestMarkFailed(t *testing.T) {
	svc, rides := newTestService(t)
	seedOnlineRide(t, rides, "ride-1")
	ctx := context.Background()
	svc.AttachOrder(ctx, "ride-1", "order_1")

	out, err := svc.MarkFailed(ctx, "ride-1")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if out.Payment.Status != ride.PaymentFailed {
		t.Errorf("status = %s, want failed", out.Payment.Status)
	}

	// A later successful retry can still complete.
	if _, err := svc.ConfirmPayment(ctx, "ride-1", "order_1", "pay_retry", svc.Sign("order_1", "pay_retry")); err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	got, _ := rides.Get(ctx, "ride-1")
	if got.Payment.Status != ride.PaymentCompleted {
		t.Errorf("retry did not complete: %s", got.Payment.Status)
	}
}
