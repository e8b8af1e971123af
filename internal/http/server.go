// README: HTTP surface. Thin gin adapter over the engine services;
// routes map one-to-one onto service operations.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusride/internal/http/handlers"
	"campusride/internal/http/middleware"
	"campusride/internal/identity"
	"campusride/internal/modules/matching"
	"campusride/internal/modules/payment"
	"campusride/internal/modules/ride"
)

type Server struct {
	srv *http.Server
	log *zap.Logger
}

type Deps struct {
	Verifier identity.Verifier
	Matcher  *matching.Service
	Rides    *ride.Service
	Payments *payment.Service
	Log      *zap.Logger
}

func NewServer(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rideH := handlers.NewRideHandler(deps.Matcher, deps.Rides)
	payH := handlers.NewPaymentHandler(deps.Payments)
	capH := handlers.NewCaptainHandler(deps.Matcher)

	api := router.Group("/api", middleware.Auth(deps.Verifier))
	{
		rides := api.Group("/rides")
		rides.POST("/request", rideH.Request)
		rides.GET("/active", rideH.Active)
		rides.GET("/:id", rideH.Get)
		rides.POST("/:id/accept", rideH.Accept)
		rides.POST("/:id/view", rideH.View)
		rides.POST("/:id/arrive", rideH.Arrive)
		rides.POST("/:id/start", rideH.Start)
		rides.POST("/:id/complete", rideH.Complete)
		rides.POST("/:id/cancel", rideH.Cancel)
		rides.POST("/:id/rate", rideH.Rate)

		payments := api.Group("/payments")
		payments.POST("/order", payH.AttachOrder)
		payments.POST("/verify", payH.Verify)

		captains := api.Group("/captains")
		captains.PUT("/location", capH.UpdateLocation)
		captains.POST("/offline", capH.GoOffline)
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: deps.Log,
	}
}

func (s *Server) Run() error {
	s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
