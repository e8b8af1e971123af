// README: Account store backed by PostgreSQL.
package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

func (s *PGStore) GetUser(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, role, captain_active, verified, captain_verified, banned,
		       location_lng, location_lat, location_at,
		       rating_average, rating_count,
		       earnings_total, earnings_available, earnings_withdrawn,
		       rides_as_rider, rides_as_captain, device_token
		FROM users
		WHERE id = $1`, string(id),
	)

	var u User
	var locAt sql.NullTime
	var deviceToken sql.NullString
	err := row.Scan(
		&u.ID, &u.Role, &u.CaptainActive, &u.Verified, &u.CaptainVerified, &u.Banned,
		&u.Location.Lng, &u.Location.Lat, &locAt,
		&u.Rating.Average, &u.Rating.Count,
		&u.Earnings.Total, &u.Earnings.Available, &u.Earnings.Withdrawn,
		&u.RidesAsRider, &u.RidesAsCaptain, &deviceToken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if locAt.Valid {
		u.LocationAt = locAt.Time
	}
	if deviceToken.Valid {
		u.DeviceToken = deviceToken.String
	}
	return &u, nil
}

func (s *PGStore) GetVehicleByOwner(ctx context.Context, ownerID types.ID) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, class, capacity, base_fare, per_km_rate,
		       registration_expiry, insurance_expiry, pollution_expiry, status
		FROM vehicles
		WHERE owner_id = $1`, string(ownerID),
	)

	var v Vehicle
	var pollution sql.NullTime
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.Class, &v.Capacity, &v.BaseFare, &v.PerKmRate,
		&v.RegistrationExpiry, &v.InsuranceExpiry, &pollution, &v.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if pollution.Valid {
		t := pollution.Time
		v.PollutionExpiry = &t
	}
	return &v, nil
}

func (s *PGStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET location_lng = $1, location_lat = $2, location_at = $3
		WHERE id = $4`,
		p.Lng, p.Lat, at, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CreditEarnings(ctx context.Context, captainID types.ID, amount types.Money) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET earnings_total = earnings_total + $1,
		    earnings_available = earnings_available + $1
		WHERE id = $2`,
		int64(amount), string(captainID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AddRating(ctx context.Context, id types.ID, stars int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET rating_average = (rating_average * rating_count + $1) / (rating_count + 1),
		    rating_count = rating_count + 1
		WHERE id = $2`,
		stars, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) IncrementRides(ctx context.Context, id types.ID, role Role) error {
	column := "rides_as_rider"
	if role == RoleCaptain {
		column = "rides_as_captain"
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET `+column+` = `+column+` + 1 WHERE id = $1`, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetVehicleStatus(ctx context.Context, vehicleID types.ID, status VehicleStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE vehicles SET status = $1 WHERE id = $2`, string(status), string(vehicleID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
