package ride

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"campusride/internal/types"
)

// DB-backed tests run only when CAMPUSRIDE_TEST_DSN points at a scratch
// database; they apply the migration and truncate before each run.

func setupPGStore(t *testing.T) *PGStore {
	t.Helper()

	dsn := os.Getenv("CAMPUSRIDE_TEST_DSN")
	if dsn == "" {
		t.Skip("CAMPUSRIDE_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_events, ride_notified_captains, rides, vehicles, users CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO users (id, role) VALUES ('rider-1', 'rider'), ('captain-1', 'captain')`); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	return NewPGStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func TestPGStore_CreateGetRoundTrip(t *testing.T) {
	s := setupPGStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	r := &Ride{
		RiderID:        "rider-1",
		Status:         StatusRequesting,
		Pickup:         Stop{Point: types.Point{Lng: 77.5946, Lat: 12.9716}, Address: "Main Gate"},
		Dropoff:        Stop{Point: types.Point{Lng: 77.6146, Lat: 12.9716}, Address: "Hostel C"},
		VehicleClass:   "bike",
		PassengerCount: 1,
		DistanceKm:     2.17,
		DurationMin:    7,
		Payment:        Payment{Method: PaymentCash, Status: PaymentPending},
		RequestedAt:    now,
		ExpiresAt:      now.Add(5 * time.Minute),
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RiderID != "rider-1" || got.Status != StatusRequesting || got.Pickup.Address != "Main Gate" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Payment.Method != PaymentCash || got.Payment.Status != PaymentPending {
		t.Errorf("payment mismatch: %+v", got.Payment)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStore_UpdateStatusCAS(t *testing.T) {
	s := setupPGStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	r := &Ride{
		RiderID:     "rider-1",
		Status:      StatusRequesting,
		Payment:     Payment{Method: PaymentCash, Status: PaymentPending},
		RequestedAt: now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}

	otp := "1234"
	ok, err := s.UpdateStatus(ctx, r.ID, StatusRequesting, StatusAccepted, 0, StatusPatch{
		CaptainID: "captain-1",
		OTP:       &otp,
		At:        now,
	})
	if err != nil || !ok {
		t.Fatalf("first CAS: ok=%v err=%v", ok, err)
	}

	// Same precondition again: version has moved, must lose.
	ok, err = s.UpdateStatus(ctx, r.ID, StatusRequesting, StatusAccepted, 0, StatusPatch{At: now})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("stale CAS succeeded")
	}

	got, _ := s.Get(ctx, r.ID)
	if got.Status != StatusAccepted || got.StatusVersion != 1 || got.CaptainID != "captain-1" {
		t.Errorf("after CAS: %+v", got)
	}
	if got.AcceptedAt == nil {
		t.Error("acceptedAt not stamped")
	}
	if match, _ := s.CompareOTP(ctx, r.ID, "1234"); !match {
		t.Error("otp not stored")
	}
}

func TestPGStore_ConcurrentAcceptSingleWinner(t *testing.T) {
	s := setupPGStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	r := &Ride{
		RiderID:     "rider-1",
		Status:      StatusRequesting,
		Payment:     Payment{Method: PaymentCash, Status: PaymentPending},
		RequestedAt: now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	start := make(chan struct{})
	wins := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			otp := fmt.Sprintf("%04d", 1000+n)
			ok, err := s.UpdateStatus(ctx, r.ID, StatusRequesting, StatusAccepted, 0, StatusPatch{
				CaptainID: "captain-1",
				OTP:       &otp,
				At:        time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("CAS error: %v", err)
			}
			wins <- ok
		}(i)
	}
	close(start)
	wg.Wait()
	close(wins)

	var winners int
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("got %d CAS winners, want exactly 1", winners)
	}

	got, _ := s.Get(ctx, r.ID)
	if got.StatusVersion != 1 {
		t.Errorf("status version = %d, want 1", got.StatusVersion)
	}
}

func TestPGStore_NotifiedCaptains(t *testing.T) {
	s := setupPGStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	r := &Ride{
		RiderID:     "rider-1",
		Status:      StatusRequesting,
		Payment:     Payment{Method: PaymentCash, Status: PaymentPending},
		RequestedAt: now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}

	n := NotifiedCaptain{CaptainID: "captain-1", NotifiedAt: now}
	if err := s.AddNotified(ctx, r.ID, n); err != nil {
		t.Fatalf("add notified: %v", err)
	}
	// Duplicate insert is a no-op.
	if err := s.AddNotified(ctx, r.ID, n); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}

	if err := s.MarkViewed(ctx, r.ID, "captain-1", now.Add(time.Second)); err != nil {
		t.Fatalf("mark viewed: %v", err)
	}
	if err := s.MarkViewed(ctx, r.ID, "captain-9", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown captain, got %v", err)
	}

	got, _ := s.Get(ctx, r.ID)
	if len(got.NotifiedCaptains) != 1 {
		t.Fatalf("notified = %+v, want 1 entry", got.NotifiedCaptains)
	}
	if !got.NotifiedCaptains[0].Viewed || got.NotifiedCaptains[0].ViewedAt == nil {
		t.Errorf("viewed flag missing: %+v", got.NotifiedCaptains[0])
	}
}
