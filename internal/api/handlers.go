package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"medbot/internal/metrics"
	"medbot/internal/models"
	"medbot/internal/ratelimit"
	"medbot/internal/service/assistant"
)

const (
	defaultMaxDuration = 30 * time.Second
	readinessTimeout   = 2 * time.Second

	errInvalidBody  = "invalid request body"
	errUnavailable  = "the assistant is unavailable, please retry"
	errInterrupted  = "the response was interrupted, please retry"
	errRateLimited  = "too many requests, please retry later"
	formatPlainText = "text"
)

// Handler wires HTTP routes to the assistant.
type Handler struct {
	assistant   *assistant.Assistant
	limiter     ratelimit.Limiter
	metrics     *metrics.Metrics
	logger      *zap.Logger
	maxDuration time.Duration
	checks      []readinessCheck
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

// NewHandler constructs a Handler instance. A nil limiter disables rate limiting
// and a nil metrics bundle gets a private registry.
func NewHandler(asst *assistant.Assistant, limiter ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger, maxDuration time.Duration) *Handler {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}
	return &Handler{
		assistant:   asst,
		limiter:     limiter,
		metrics:     m,
		logger:      logger,
		maxDuration: maxDuration,
	}
}

// AddReadinessCheck makes /healthz report unavailable while check fails.
func (h *Handler) AddReadinessCheck(name string, check func(context.Context) error) {
	h.checks = append(h.checks, readinessCheck{name: name, check: check})
}

// NewRouter returns a gin engine with the middleware chain and all routes.
// X-Forwarded-For is honored only from trustedProxies (IPs or CIDRs); with
// none, the client IP is the connection's remote address.
func NewRouter(h *Handler, trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestID(), AccessLog(h.logger), CORS())
	h.RegisterRoutes(router)
	return router, nil
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/quick-prompts", h.quickPrompts)
	api.POST("/chat", RateLimit(h.limiter, h.metrics, h.logger), h.chat)
}

func (h *Handler) healthz(c *gin.Context) {
	failed := gin.H{}
	for _, rc := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := rc.check(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", rc.name), zap.Error(err))
			failed[rc.name] = "unavailable"
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) quickPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"quick_prompts": models.QuickPrompts()})
}

type chatRequest struct {
	Messages []models.Message `json:"messages" binding:"required,dive"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ObserveOutcome(metrics.OutcomeBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}
	log := h.logger.With(zap.String("request_id", RequestIDFrom(c)), zap.Int("messages", len(req.Messages)))

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.maxDuration)
	defer cancel()

	started := time.Now()
	stream, err := h.assistant.Stream(ctx, req.Messages)
	if err != nil {
		log.Warn("open assistant stream failed", zap.Error(err))
		h.metrics.ObserveOutcome(h.failureOutcome(ctx, metrics.OutcomeUpstreamError))
		c.JSON(http.StatusBadGateway, gin.H{"error": errUnavailable})
		return
	}
	defer stream.Close()

	prompt := stream.Prompt()
	h.metrics.ObserveMatches(len(prompt.Matches.Symptoms), len(prompt.Matches.Drugs), len(prompt.Matches.Tips) > 0)
	log = log.With(
		zap.Int("symptoms", len(prompt.Matches.Symptoms)),
		zap.Int("drugs", len(prompt.Matches.Drugs)),
		zap.Bool("tips", len(prompt.Matches.Tips) > 0),
	)

	// Hold the response until the first fragment so an upstream failure can
	// still be reported as a plain status code.
	first, err := firstFragment(stream)
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn("assistant stream failed before first fragment", zap.Error(err))
		h.metrics.ObserveOutcome(h.failureOutcome(ctx, metrics.OutcomeUpstreamError))
		c.JSON(http.StatusBadGateway, gin.H{"error": errUnavailable})
		return
	}
	finished := errors.Is(err, io.EOF)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	out := &responseWriter{c: c, flusher: flusher, text: c.Query("format") == formatPlainText}
	out.open()

	var (
		full      strings.Builder
		fragments int
	)
	relay := func(fragment string) error {
		if fragment == "" {
			return nil
		}
		fragments++
		full.WriteString(fragment)
		return out.fragment(fragment)
	}

	var streamErr error
	if !finished {
		streamErr = relay(first)
		for streamErr == nil {
			var fragment string
			fragment, streamErr = stream.Recv()
			if streamErr == nil {
				streamErr = relay(fragment)
			}
		}
		if errors.Is(streamErr, io.EOF) {
			streamErr = nil
		}
	}

	h.metrics.StreamDuration.Observe(time.Since(started).Seconds())
	h.metrics.Fragments.Add(float64(fragments))
	log = log.With(zap.Int("fragments", fragments), zap.Duration("duration", time.Since(started)))

	if streamErr != nil {
		log.Warn("assistant stream interrupted", zap.Error(streamErr))
		h.metrics.ObserveOutcome(h.failureOutcome(ctx, metrics.OutcomeStreamError))
		_ = out.fail(errInterrupted)
		return
	}
	if err := out.done(full.String()); err != nil {
		log.Debug("write done event failed", zap.Error(err))
	}
	h.metrics.ObserveOutcome(metrics.OutcomeOK)
	log.Info("chat completed")
}

// failureOutcome reports a canceled request separately from provider failures.
// A deadline hit is still the provider's fault.
func (h *Handler) failureOutcome(ctx context.Context, fallback string) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return metrics.OutcomeCanceled
	}
	return fallback
}

// firstFragment skips empty fragments and returns the first non-empty one.
func firstFragment(stream *assistant.Stream) (string, error) {
	for {
		fragment, err := stream.Recv()
		if err != nil || fragment != "" {
			return fragment, err
		}
	}
}

// responseWriter writes fragments either as SSE events or as raw text.
type responseWriter struct {
	c       *gin.Context
	flusher http.Flusher
	text    bool
}

func (w *responseWriter) open() {
	header := w.c.Writer.Header()
	if w.text {
		header.Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		header.Set("Content-Type", "text/event-stream")
		header.Set("Connection", "keep-alive")
	}
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	w.c.Status(http.StatusOK)
	w.c.Writer.WriteHeaderNow()
	w.flusher.Flush()
}

func (w *responseWriter) fragment(fragment string) error {
	if w.text {
		if _, err := io.WriteString(w.c.Writer, fragment); err != nil {
			return err
		}
		w.flusher.Flush()
		return nil
	}
	return w.event("stream", gin.H{"content": fragment})
}

func (w *responseWriter) done(full string) error {
	if w.text {
		return nil
	}
	return w.event("done", gin.H{"content": full})
}

// fail ends the response. Plain text has no error channel, so the body just stops.
func (w *responseWriter) fail(message string) error {
	if w.text {
		return nil
	}
	return w.event("error", gin.H{"message": message})
}

func (w *responseWriter) event(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Writer, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
