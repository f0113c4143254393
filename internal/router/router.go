// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/config"
	"github.com/iliyamo/trip-reservation/internal/handler"
	"github.com/iliyamo/trip-reservation/internal/middleware"
	"github.com/iliyamo/trip-reservation/internal/model"
)

// Deps is everything the routes need. Redis is optional: without it the
// response cache and the rate limiter are skipped.
type Deps struct {
	Log            *zap.Logger
	JWTSecret      string
	RequestTimeout time.Duration
	Redis          *redis.Client
	Cache          config.CacheConfig
	RateLimit      config.RateLimitConfig

	DB           handler.Pinger
	Auth         *handler.AuthHandler
	Trips        *handler.TripHandler
	Clients      *handler.ClientHandler
	Reservations *handler.ReservationHandler
	Logs         *handler.AuditLogHandler
	Backup       *handler.BackupHandler
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	if d.RequestTimeout > 0 {
		e.Use(echomw.ContextTimeout(d.RequestTimeout))
	}

	e.GET("/healthz", handler.Health(d.DB))

	registerAuth(e, d)
	registerAPI(e, d)
	return e
}

// redisDeps returns the client as interfaces, keeping them nil (not a typed
// nil pointer) when Redis is off.
func redisDeps(rdb *redis.Client) (redis.Cmdable, redis.Scripter) {
	if rdb == nil {
		return nil, nil
	}
	return rdb, rdb
}

func registerAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth")
	g.POST("/register", d.Auth.Register)
	g.GET("/activate/:code", d.Auth.Activate)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	// logout accepts an expired access token, so it sits outside JWTAuth
	g.POST("/logout", d.Auth.Logout)
}

func registerAPI(e *echo.Echo, d Deps) {
	cmd, scripter := redisDeps(d.Redis)

	v1 := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleOperator),
	)
	v1.GET("/me", d.Auth.Me)
	v1.GET("/users", d.Auth.Users)
	v1.GET("/logs", d.Logs.List)

	trips := v1.Group("/trips",
		middleware.NewRedisCache(d.Cache, cmd, middleware.ScopeTrips, d.Log),
		middleware.EvictOnWrite(d.Cache, cmd, d.Log, middleware.ScopeTrips),
	)
	trips.GET("", d.Trips.List)
	trips.GET("/:id", d.Trips.Get)
	trips.POST("", d.Trips.Create)
	trips.PUT("/:id", d.Trips.Update)
	trips.DELETE("/:id", d.Trips.Delete)

	clients := v1.Group("/clients",
		middleware.NewRedisCache(d.Cache, cmd, middleware.ScopeClients, d.Log),
		middleware.EvictOnWrite(d.Cache, cmd, d.Log, middleware.ScopeClients),
	)
	clients.GET("", d.Clients.List)
	clients.GET("/:id", d.Clients.Get)
	clients.POST("", d.Clients.Create)
	clients.PUT("/:id", d.Clients.Update)
	clients.DELETE("/:id", d.Clients.Delete)

	// bookings move seats_available, so they invalidate the trip listing
	res := v1.Group("/reservations",
		middleware.NewTokenBucket(d.RateLimit, scripter, d.Log),
		middleware.EvictOnWrite(d.Cache, cmd, d.Log, middleware.ScopeTrips),
	)
	res.GET("", d.Reservations.List)
	res.GET("/:id", d.Reservations.Get)
	res.POST("", d.Reservations.Create)
	res.PUT("/:id", d.Reservations.Update)
	res.DELETE("/:id", d.Reservations.Delete)
	res.POST("/email/:clientId", d.Reservations.SendItinerary)

	sys := v1.Group("/system", middleware.RequireRole(model.RoleAdmin))
	sys.GET("/backup", d.Backup.Backup)
	sys.POST("/restore", d.Backup.Restore,
		middleware.EvictOnWrite(d.Cache, cmd, d.Log, middleware.ScopeTrips, middleware.ScopeClients))
}
