// README: Ride endpoints: request, accept, lifecycle actions, rating.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusride/internal/modules/account"
	"campusride/internal/modules/matching"
	"campusride/internal/modules/ride"
	"campusride/internal/types"
)

type RideHandler struct {
	matcher *matching.Service
	rides   *ride.Service
}

func NewRideHandler(matcher *matching.Service, rides *ride.Service) *RideHandler {
	return &RideHandler{matcher: matcher, rides: rides}
}

type stopPayload struct {
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
	Address string  `json:"address"`
}

func (p stopPayload) toStop() ride.Stop {
	return ride.Stop{Point: types.Point{Lng: p.Lng, Lat: p.Lat}, Address: p.Address}
}

type requestRidePayload struct {
	Pickup         stopPayload `json:"pickup"`
	Dropoff        stopPayload `json:"dropoff"`
	VehicleClass   string      `json:"vehicle_class"`
	PassengerCount int         `json:"passenger_count"`
	PaymentMethod  string      `json:"payment_method"`
	Discount       int64       `json:"discount"`
}

func (h *RideHandler) Request(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var body requestRidePayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	if body.PassengerCount == 0 {
		body.PassengerCount = 1
	}

	r, err := h.matcher.RequestRide(c.Request.Context(), matching.RequestCommand{
		RiderID:        p.UserID,
		Pickup:         body.Pickup.toStop(),
		Dropoff:        body.Dropoff.toStop(),
		VehicleClass:   account.VehicleClass(body.VehicleClass),
		PassengerCount: body.PassengerCount,
		PaymentMethod:  ride.PaymentMethod(body.PaymentMethod),
		Discount:       types.Money(body.Discount),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ride": r})
}

func (h *RideHandler) Accept(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	r, err := h.matcher.AcceptRide(c.Request.Context(), types.ID(c.Param("id")), p.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) View(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.matcher.MarkViewed(c.Request.Context(), types.ID(c.Param("id")), p.UserID); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RideHandler) Arrive(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	r, err := h.rides.Arrive(c.Request.Context(), types.ID(c.Param("id")), p.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) Start(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var body struct {
		OTP string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	r, err := h.rides.Start(c.Request.Context(), types.ID(c.Param("id")), p.UserID, body.OTP)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) Complete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), types.ID(c.Param("id")), p.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) Cancel(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&body) // reason is optional

	r, err := h.rides.Cancel(c.Request.Context(), types.ID(c.Param("id")), p.Role, p.UserID, body.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) Rate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var body struct {
		Stars  int    `json:"stars"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	r, err := h.rides.Rate(c.Request.Context(), types.ID(c.Param("id")), p.Role, p.UserID, body.Stars, body.Review)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) Active(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	r, err := h.rides.ActiveFor(c.Request.Context(), p.UserID, p.Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *RideHandler) Get(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}
