package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"travelbook/internal/availability"
	"travelbook/internal/config"
	"travelbook/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Deps struct {
	Auth     *service.AuthService
	Bookings *service.BookingService
	Search   *availability.Engine
	// Metrics mounts /metrics on the API router.
	Metrics bool
	// Ready, when set, backs /readyz.
	Ready func(ctx context.Context) error
}

// Server is the HTTP booking surface.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	limiter *rateLimiter
	logger  *zerolog.Logger
}

func NewServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:  gin.New(),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	s.engine.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(logger),
		cors.New(corsCfg),
		s.limiter.middleware(),
	)
	s.routes(deps)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return s
}

func (s *Server) routes(deps Deps) {
	h := &handlers{auth: deps.Auth, bookings: deps.Bookings, search: deps.Search}

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/readyz", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(c.Request.Context()); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := s.engine.Group("/api/v1")
	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	v1.GET("/cities", h.cities)
	v1.GET("/airports", h.airports)
	v1.GET("/search/flights", h.searchFlights)
	v1.GET("/search/rooms", h.searchRooms)
	v1.GET("/search/cars", h.searchCars)

	protected := v1.Group("")
	protected.Use(bearerAuth(deps.Auth))
	protected.POST("/bookings", h.createBooking)
	protected.POST("/bookings/flight", h.bookFlight)
	protected.POST("/bookings/hotel", h.bookHotel)
	protected.POST("/bookings/car", h.bookCar)
	protected.GET("/bookings", h.listBookings)
	protected.GET("/bookings/:id", h.getBooking)
	protected.POST("/bookings/:id/pay", h.pay)
	protected.POST("/bookings/:id/cancel", h.cancel)
	protected.PATCH("/passengers/:id", h.updatePassenger)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown and evicts idle rate limiters in the background.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.sweep()
			}
		}
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
