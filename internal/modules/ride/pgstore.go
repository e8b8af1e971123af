// README: Ride store backed by PostgreSQL. Status transitions use
// UPDATE ... WHERE id = $ AND status = $ AND status_version = $ so only
// one concurrent writer can win a given transition.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusride/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const rideColumns = `
	id, rider_id, captain_id, vehicle_id, status, status_version,
	pickup_lng, pickup_lat, pickup_address,
	dropoff_lng, dropoff_lat, dropoff_address,
	vehicle_class, passenger_count, distance_km, duration_min,
	fare_base, fare_platform_fee, fare_gst, fare_discount, fare_total, fare_final,
	payment_method, payment_status, gateway_order_id, gateway_payment_id, paid_at,
	otp_verified, cancellation_reason,
	rider_rating_stars, rider_rating_review, rider_rated_at,
	captain_rating_stars, captain_rating_review, captain_rated_at,
	requested_at, expires_at, accepted_at, arrived_at, started_at, completed_at, cancelled_at`

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var captainID, vehicleID, orderID, paymentID, cancelReason sql.NullString
	var paidAt, acceptedAt, arrivedAt, startedAt, completedAt, cancelledAt sql.NullTime
	var riderStars, captainStars sql.NullInt64
	var riderReview, captainReview sql.NullString
	var riderRatedAt, captainRatedAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RiderID, &captainID, &vehicleID, &r.Status, &r.StatusVersion,
		&r.Pickup.Point.Lng, &r.Pickup.Point.Lat, &r.Pickup.Address,
		&r.Dropoff.Point.Lng, &r.Dropoff.Point.Lat, &r.Dropoff.Address,
		&r.VehicleClass, &r.PassengerCount, &r.DistanceKm, &r.DurationMin,
		&r.Fare.BaseFare, &r.Fare.PlatformFee, &r.Fare.GST, &r.Fare.Discount, &r.Fare.Total, &r.Fare.FinalAmount,
		&r.Payment.Method, &r.Payment.Status, &orderID, &paymentID, &paidAt,
		&r.OTPVerified, &cancelReason,
		&riderStars, &riderReview, &riderRatedAt,
		&captainStars, &captainReview, &captainRatedAt,
		&r.RequestedAt, &r.ExpiresAt, &acceptedAt, &arrivedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.CaptainID = types.ID(captainID.String)
	r.VehicleID = types.ID(vehicleID.String)
	r.Payment.GatewayOrderID = orderID.String
	r.Payment.GatewayPaymentID = paymentID.String
	r.CancellationReason = cancelReason.String
	if paidAt.Valid {
		r.Payment.PaidAt = &paidAt.Time
	}
	if acceptedAt.Valid {
		r.AcceptedAt = &acceptedAt.Time
	}
	if arrivedAt.Valid {
		r.ArrivedAt = &arrivedAt.Time
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}
	if riderStars.Valid {
		r.RiderRating = &Rating{Stars: int(riderStars.Int64), Review: riderReview.String, RatedAt: riderRatedAt.Time}
	}
	if captainStars.Valid {
		r.CaptainRating = &Rating{Stars: int(captainStars.Int64), Review: captainReview.String, RatedAt: captainRatedAt.Time}
	}
	return &r, nil
}

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	if r.ID == "" {
		r.ID = types.ID(uuid.NewString())
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, rider_id, status, status_version,
			pickup_lng, pickup_lat, pickup_address,
			dropoff_lng, dropoff_lat, dropoff_address,
			vehicle_class, passenger_count, distance_km, duration_min,
			fare_base, fare_platform_fee, fare_gst, fare_discount, fare_total, fare_final,
			payment_method, payment_status,
			requested_at, expires_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,
			$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
		)`,
		string(r.ID), string(r.RiderID), string(r.Status), r.StatusVersion,
		r.Pickup.Point.Lng, r.Pickup.Point.Lat, r.Pickup.Address,
		r.Dropoff.Point.Lng, r.Dropoff.Point.Lat, r.Dropoff.Address,
		r.VehicleClass, r.PassengerCount, r.DistanceKm, r.DurationMin,
		int64(r.Fare.BaseFare), int64(r.Fare.PlatformFee), int64(r.Fare.GST),
		int64(r.Fare.Discount), int64(r.Fare.Total), int64(r.Fare.FinalAmount),
		string(r.Payment.Method), string(r.Payment.Status),
		r.RequestedAt, r.ExpiresAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id)))
	if err != nil {
		return nil, err
	}
	notified, err := s.listNotified(ctx, id)
	if err != nil {
		return nil, err
	}
	r.NotifiedCaptains = notified
	return r, nil
}

func (s *PGStore) listNotified(ctx context.Context, rideID types.ID) ([]NotifiedCaptain, error) {
	rows, err := s.db.Query(ctx, `
		SELECT captain_id, notified_at, viewed, viewed_at
		FROM ride_notified_captains
		WHERE ride_id = $1
		ORDER BY notified_at`, string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotifiedCaptain
	for rows.Next() {
		var n NotifiedCaptain
		var viewedAt sql.NullTime
		if err := rows.Scan(&n.CaptainID, &n.NotifiedAt, &n.Viewed, &viewedAt); err != nil {
			return nil, err
		}
		if viewedAt.Valid {
			n.ViewedAt = &viewedAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// timestampColumn maps a target status to the column stamped on entry.
func timestampColumn(to Status) string {
	switch to {
	case StatusAccepted:
		return "accepted_at"
	case StatusArrived:
		return "arrived_at"
	case StatusStarted:
		return "started_at"
	case StatusCompleted:
		return "completed_at"
	default:
		return "cancelled_at"
	}
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int64, patch StatusPatch) (bool, error) {
	var captainID, vehicleID, otp, reason, payStatus any
	if patch.CaptainID != "" {
		captainID = string(patch.CaptainID)
	}
	if patch.VehicleID != "" {
		vehicleID = string(patch.VehicleID)
	}
	if patch.OTP != nil {
		otp = *patch.OTP
	}
	if patch.CancellationReason != "" {
		reason = patch.CancellationReason
	}
	if patch.PaymentStatus != nil {
		payStatus = string(*patch.PaymentStatus)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    captain_id = COALESCE($2, captain_id),
		    vehicle_id = COALESCE($3, vehicle_id),
		    otp = COALESCE($4, otp),
		    otp_verified = otp_verified OR $5,
		    cancellation_reason = COALESCE($6, cancellation_reason),
		    payment_status = COALESCE($7, payment_status),
		    `+timestampColumn(to)+` = $8
		WHERE id = $9 AND status = $10 AND status_version = $11`,
		string(to), captainID, vehicleID, otp, patch.OTPVerified, reason, payStatus, patch.At,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) UpdatePayment(ctx context.Context, id types.ID, from, to PaymentStatus, patch PaymentPatch) (bool, error) {
	var orderID, paymentID, signature any
	if patch.GatewayOrderID != "" {
		orderID = patch.GatewayOrderID
	}
	if patch.GatewayPaymentID != "" {
		paymentID = patch.GatewayPaymentID
	}
	if patch.Signature != "" {
		signature = patch.Signature
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET payment_status = $1,
		    gateway_order_id = COALESCE($2, gateway_order_id),
		    gateway_payment_id = COALESCE($3, gateway_payment_id),
		    gateway_signature = COALESCE($4, gateway_signature),
		    paid_at = COALESCE($5, paid_at)
		WHERE id = $6 AND payment_status = $7`,
		string(to), orderID, paymentID, signature, patch.PaidAt,
		string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) CompareOTP(ctx context.Context, id types.ID, otp string) (bool, error) {
	var stored sql.NullString
	err := s.db.QueryRow(ctx, `SELECT otp FROM rides WHERE id = $1`, string(id)).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return stored.Valid && stored.String != "" && stored.String == otp, nil
}

func (s *PGStore) HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE rider_id = $1
			  AND status IN ('requesting', 'accepted', 'arrived', 'started')
		)`, string(riderID),
	).Scan(&exists)
	return exists, err
}

func (s *PGStore) ActiveFor(ctx context.Context, userID types.ID, asCaptain bool) (*Ride, error) {
	column := "rider_id"
	if asCaptain {
		column = "captain_id"
	}
	r, err := scanRide(s.db.QueryRow(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE `+column+` = $1
		  AND status IN ('requesting', 'accepted', 'arrived', 'started')
		ORDER BY requested_at DESC
		LIMIT 1`, string(userID)))
	if err != nil {
		return nil, err
	}
	notified, err := s.listNotified(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.NotifiedCaptains = notified
	return r, nil
}

func (s *PGStore) AddNotified(ctx context.Context, rideID types.ID, n NotifiedCaptain) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_notified_captains (ride_id, captain_id, notified_at, viewed)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (ride_id, captain_id) DO NOTHING`,
		string(rideID), string(n.CaptainID), n.NotifiedAt,
	)
	return err
}

func (s *PGStore) MarkViewed(ctx context.Context, rideID, captainID types.ID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ride_notified_captains
		SET viewed = TRUE, viewed_at = COALESCE(viewed_at, $1)
		WHERE ride_id = $2 AND captain_id = $3`,
		at, string(rideID), string(captainID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetRating(ctx context.Context, rideID types.ID, byCaptain bool, r Rating) (bool, error) {
	prefix := "captain_rating"
	if byCaptain {
		prefix = "rider_rating"
	}
	ratedAt := "captain_rated_at"
	if byCaptain {
		ratedAt = "rider_rated_at"
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET `+prefix+`_stars = $1, `+prefix+`_review = $2, `+ratedAt+` = $3
		WHERE id = $4 AND `+prefix+`_stars IS NULL`,
		r.Stars, r.Review, r.RatedAt, string(rideID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListExpiredRequesting(ctx context.Context, now time.Time, limit int) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE status = 'requesting' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) AppendEvent(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = types.ID(uuid.NewString())
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_events (id, ride_id, from_status, to_status, actor_type, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.ID), string(e.RideID), string(e.From), string(e.To), e.ActorType, string(e.ActorID), e.At,
	)
	return err
}

func (s *PGStore) ListEvents(ctx context.Context, rideID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, from_status, to_status, actor_type, actor_id, at
		FROM ride_events
		WHERE ride_id = $1
		ORDER BY at`, string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RideID, &e.From, &e.To, &e.ActorType, &e.ActorID, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
