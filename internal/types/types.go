// README: Shared value objects used across modules.
package types

// ID is an opaque entity identifier.
type ID string

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Money is an amount in whole currency units (INR).
type Money int64
