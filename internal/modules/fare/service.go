// README: Pure fare computation. No I/O, deterministic for a given input.
package fare

import (
	"errors"
	"math"

	"campusride/internal/types"
)

var ErrBadDistance = errors.New("distance must be non-negative")

const (
	platformFeeRate = 0.10
	gstRate         = 0.18
)

// Compute prices a ride of distanceKm under the given profile.
// Each component is rounded to the nearest whole currency unit; the
// discount is clamped so the final amount never goes negative.
func Compute(distanceKm float64, p Profile, discount types.Money) (Breakdown, error) {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		return Breakdown{}, ErrBadDistance
	}

	base := types.Money(math.Round(p.BaseFare + distanceKm*p.PerKmRate))
	platformFee := types.Money(math.Round(float64(base) * platformFeeRate))
	gst := types.Money(math.Round(float64(platformFee) * gstRate))
	total := base + platformFee + gst

	if discount < 0 {
		discount = 0
	}
	if discount > total {
		discount = total
	}

	return Breakdown{
		BaseFare:    base,
		PlatformFee: platformFee,
		GST:         gst,
		Discount:    discount,
		Total:       total,
		FinalAmount: total - discount,
	}, nil
}

// CaptainShare is the portion of a fare credited to the captain on
// completion: 90% of the base fare. Platform fee and GST stay with the
// platform.
func CaptainShare(b Breakdown) types.Money {
	return types.Money(math.Round(float64(b.BaseFare) * 0.90))
}
