// README: Vehicle fare profiles and the fare breakdown value object.
package fare

import (
	"campusride/internal/modules/account"
	"campusride/internal/types"
)

// Profile holds the rate card used to price a ride.
type Profile struct {
	Class     account.VehicleClass
	BaseFare  float64
	PerKmRate float64
}

// DefaultProfiles is the campus rate card applied when a request only
// names a vehicle class.
var DefaultProfiles = map[account.VehicleClass]Profile{
	account.ClassBike:    {Class: account.ClassBike, BaseFare: 15, PerKmRate: 3},
	account.ClassScooter: {Class: account.ClassScooter, BaseFare: 20, PerKmRate: 4},
	account.ClassAuto:    {Class: account.ClassAuto, BaseFare: 25, PerKmRate: 6},
	account.ClassCar:     {Class: account.ClassCar, BaseFare: 40, PerKmRate: 8},
}

// ProfileFor returns the default profile for a vehicle class.
func ProfileFor(class account.VehicleClass) (Profile, bool) {
	p, ok := DefaultProfiles[class]
	return p, ok
}

// ProfileFromVehicle builds a profile from a registered vehicle's own rates.
func ProfileFromVehicle(v *account.Vehicle) Profile {
	return Profile{Class: v.Class, BaseFare: v.BaseFare, PerKmRate: v.PerKmRate}
}

// Breakdown is the priced components of a ride. Total is always
// BaseFare+PlatformFee+GST by construction; FinalAmount = Total - Discount.
type Breakdown struct {
	BaseFare    types.Money `json:"base_fare"`
	PlatformFee types.Money `json:"platform_fee"`
	GST         types.Money `json:"gst"`
	Discount    types.Money `json:"discount"`
	Total       types.Money `json:"total"`
	FinalAmount types.Money `json:"final_amount"`
}
