// README: Captain presence endpoints: location heartbeat, go offline.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusride/internal/modules/matching"
	"campusride/internal/types"
)

type CaptainHandler struct {
	matcher *matching.Service
}

func NewCaptainHandler(matcher *matching.Service) *CaptainHandler {
	return &CaptainHandler{matcher: matcher}
}

func (h *CaptainHandler) UpdateLocation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var body struct {
		Lng float64 `json:"lng"`
		Lat float64 `json:"lat"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	err := h.matcher.UpdateCaptainLocation(c.Request.Context(), p.UserID, types.Point{Lng: body.Lng, Lat: body.Lat})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CaptainHandler) GoOffline(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.matcher.GoOffline(c.Request.Context(), p.UserID); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
