// Package server assembles the echo application that serves the agenda API.
package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/domain/patient"
	"github.com/prenatal/agenda/internal/platform/middleware"
)

const Version = "0.1.0"

type Options struct {
	Logger       zerolog.Logger
	Appointments appointment.Repository
	Patients     patient.Repository
	// Auth authenticates /api requests. Required.
	Auth           echo.MiddlewareFunc
	CORSOrigins    []string
	RateLimit      middleware.RateLimitConfig
	BodyLimit      string
	RequestTimeout time.Duration
	// DBHealth serves /health/db when set.
	DBHealth echo.HandlerFunc
}

func New(o Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(o.Logger)

	e.Use(middleware.Recovery(o.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(o.Logger))
	e.Use(middleware.SecurityHeaders())
	if len(o.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: o.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"status":  "ok",
			"version": Version,
		})
	})
	if o.DBHealth != nil {
		e.GET("/health/db", o.DBHealth)
	}

	api := e.Group("/api")
	api.Use(middleware.BodyLimit(o.BodyLimit))
	api.Use(middleware.RequestTimeout(o.RequestTimeout))
	if o.RateLimit.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimit(o.RateLimit))
	}
	api.Use(o.Auth)

	appointment.NewHandler(appointment.NewService(o.Appointments)).RegisterRoutes(api)
	patient.NewHandler(patient.NewService(o.Patients)).RegisterRoutes(api)

	return e
}

// NewInMemory wires the API to fresh in-memory repositories.
func NewInMemory(logger zerolog.Logger, auth echo.MiddlewareFunc) (*echo.Echo, *appointment.MemoryRepo, *patient.MemoryRepo) {
	patients := patient.NewMemoryRepo()
	appointments := appointment.NewMemoryRepo(patients.Names)
	e := New(Options{
		Logger:       logger,
		Appointments: appointments,
		Patients:     patients,
		Auth:         auth,
	})
	return e, appointments, patients
}
