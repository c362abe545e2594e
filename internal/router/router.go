package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/medisuite/portal-api/internal/middleware"
)

// Handlers collects every resource handler the router mounts.
type Handlers struct {
	Health       HealthHandler
	Auth         GroupHandler
	Doctor       AuthedGroupHandler
	Appointment  AuthedGroupHandler
	Leave        AuthedGroupHandler
	LabTest      AuthedGroupHandler
	Prescription AuthedGroupHandler
	Record       AuthedGroupHandler
	Ticket       AuthedGroupHandler
}

type HealthHandler interface {
	RegisterRoutes(gin.IRouter)
}

type GroupHandler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type AuthedGroupHandler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func New(auth *middleware.AuthMiddleware, handlers Handlers, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics: &routerMetrics{
			requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			}, []string{"method", "path", "status"}),
			requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"method", "path", "status"}),
		},
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.CORS(config.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Auth.RegisterRoutes(api.Group("/auth"))

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.handlers.Doctor.RegisterRoutes(protected.Group("/doctors"), r.auth)
	r.handlers.Appointment.RegisterRoutes(protected.Group("/appointments"), r.auth)
	r.handlers.Leave.RegisterRoutes(protected.Group("/leaves"), r.auth)
	r.handlers.LabTest.RegisterRoutes(protected.Group("/lab-tests"), r.auth)
	r.handlers.Prescription.RegisterRoutes(protected.Group("/prescriptions"), r.auth)
	r.handlers.Record.RegisterRoutes(protected.Group("/records"), r.auth)
	r.handlers.Ticket.RegisterRoutes(protected.Group("/tickets"), r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
