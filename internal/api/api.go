// Package api serves the storefront webhook, the read API, activity intake
// and the live feed over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/analytics"
	"github.com/bedwards/imaginary-crime-lab/internal/engine"
	"github.com/bedwards/imaginary-crime-lab/internal/feed"
	"github.com/bedwards/imaginary-crime-lab/internal/store"
	"github.com/bedwards/imaginary-crime-lab/internal/telemetry"
)

// Handler holds the components the routes talk to.
type Handler struct {
	Store     *store.Store
	Committer *engine.Committer
	Recorder  *activity.Recorder
	Analytics *analytics.Aggregator
	Feed      *feed.Broadcaster
	Logger    *slog.Logger

	// WebhookSecret enables signature checks on the order webhook when set.
	WebhookSecret string

	limiter *clientLimiter
}

// Options controls which routes are registered and how intake is limited.
type Options struct {
	EnableReset   bool
	ActivityRate  float64
	ActivityBurst int
}

// NewRouter builds the gin engine for h.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	h.limiter = newClientLimiter(opts.ActivityRate, opts.ActivityBurst)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(telemetry.ServiceName))
	r.Use(h.logRequests)

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/webhooks/orders", h.OrderWebhook)

	api := r.Group("/api")
	{
		api.GET("/cases", h.ListCases)
		api.GET("/cases/:id", h.GetCase)
		api.GET("/evidence", h.ListEvidence)
		api.GET("/evidence/purchased", h.ListPurchased)
		api.GET("/purchases", h.ListPurchases)
		api.POST("/activity", h.limiter.middleware(), h.RecordActivity)
		api.GET("/analytics", h.Summary)
		api.GET("/feed", h.StreamFeed)
		api.GET("/feed/ws", h.FeedSocket)
		if opts.EnableReset {
			api.POST("/reset", h.Reset)
		}
	}
	return r
}

// Health reports liveness. The database must answer a ping.
func (h *Handler) Health(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Reset returns every case to unsolved.
func (h *Handler) Reset(c *gin.Context) {
	if err := h.Committer.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) logRequests(c *gin.Context) {
	c.Next()
	h.Logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
	)
}
