// README: User and Vehicle read models plus the aggregates the engine mutates.
package account

import (
	"time"

	"campusride/internal/types"
)

type Role string

const (
	RoleRider   Role = "rider"
	RoleCaptain Role = "captain"
)

type VehicleClass string

const (
	ClassBike    VehicleClass = "bike"
	ClassScooter VehicleClass = "scooter"
	ClassAuto    VehicleClass = "auto"
	ClassCar     VehicleClass = "car"
)

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassBike, ClassScooter, ClassAuto, ClassCar:
		return true
	default:
		return false
	}
}

type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleOnRide      VehicleStatus = "on_ride"
	VehicleOffline     VehicleStatus = "offline"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// Rating is a running average over all received ratings.
type Rating struct {
	Average float64
	Count   int
}

// Earnings tracks a captain's credited fare share.
type Earnings struct {
	Total     types.Money
	Available types.Money
	Withdrawn types.Money
}

// User is the account subsystem's record, read-mostly from the engine's
// point of view: only earnings, rating, ride counters, and location are
// written here.
type User struct {
	ID             types.ID
	Role           Role
	CaptainActive  bool
	Verified       bool
	CaptainVerified bool
	Banned         bool
	Location       types.Point
	LocationAt     time.Time
	Rating         Rating
	Earnings       Earnings
	RidesAsRider   int
	RidesAsCaptain int
	DeviceToken    string
}

// EligibleCaptain reports whether the user may be offered or accept rides.
func (u *User) EligibleCaptain() bool {
	return u.Role == RoleCaptain && u.CaptainActive && u.Verified && u.CaptainVerified && !u.Banned
}

// Vehicle is a captain's registered vehicle (at most one per captain).
type Vehicle struct {
	ID              types.ID
	OwnerID         types.ID
	Class           VehicleClass
	Capacity        int
	BaseFare        float64
	PerKmRate       float64
	RegistrationExpiry time.Time
	InsuranceExpiry    time.Time
	PollutionExpiry    *time.Time
	Status          VehicleStatus
}

// DocumentsValid reports whether all mandatory documents are unexpired.
// The pollution certificate is optional; when present it must be unexpired.
func (v *Vehicle) DocumentsValid(now time.Time) bool {
	if !v.RegistrationExpiry.After(now) || !v.InsuranceExpiry.After(now) {
		return false
	}
	if v.PollutionExpiry != nil && !v.PollutionExpiry.After(now) {
		return false
	}
	return true
}
