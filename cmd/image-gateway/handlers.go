package main

import (
	"context"
	_ "embed"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/imagegate/internal/analytics"
	"github.com/lgulliver/imagegate/internal/images"
	"github.com/lgulliver/imagegate/internal/storage"
	"github.com/lgulliver/imagegate/pkg/types"
)

//go:embed static/index.html
var landingPage []byte

const (
	routeImages = "images"
	routeDef    = "def"

	imageSourceHeader = "X-Image-Source"
)

// StatsProvider answers the aggregate queries behind /stats
type StatsProvider interface {
	GetStats(ctx context.Context, since time.Time, limit int) (*analytics.Stats, error)
}

// Gateway bundles what the image handlers need
type Gateway struct {
	Resolver    *images.Resolver
	Store       storage.BlobStorage
	Recorder    analytics.Recorder
	Stats       StatsProvider // nil when analytics is disabled
	CacheMaxAge time.Duration
}

func (g *Gateway) cacheControl() string {
	return "public, max-age=" + strconv.FormatInt(int64(g.CacheMaxAge/time.Second), 10)
}

func handleLanding() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=UTF-8", landingPage)
	}
}

func handleInvalidRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusBadRequest, "Invalid request")
	}
}

// handleImage serves /images/*path with no fallback
func handleImage(g *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("path"), "/")

		var res images.Result
		if key == "" {
			res = images.Result{Status: images.NotFound, Step: images.StepExact}
		} else {
			res = g.Resolver.ResolveDirect(c.Request.Context(), key)
		}

		switch res.Status {
		case images.Found:
			g.writeImage(c, res)
		case images.StoreError:
			c.String(http.StatusInternalServerError, "Error fetching image")
		default:
			c.String(http.StatusNotFound, "Image not found")
		}

		g.record(c, routeImages, key, "", res)
	}
}

// handleImageWithDefault serves /def/:default/*path through the fallback chain
func handleImageWithDefault(g *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		defaultName := c.Param("default")
		key := strings.TrimPrefix(c.Param("path"), "/")

		res := g.Resolver.ResolveWithDefault(c.Request.Context(), key, defaultName)
		if res.Status == images.Found {
			c.Header(imageSourceHeader, string(res.Step))
			g.writeImage(c, res)
		} else {
			c.String(http.StatusNotFound, "Default image not found")
		}

		g.record(c, routeDef, key, defaultName, res)
	}
}

func (g *Gateway) writeImage(c *gin.Context, res images.Result) {
	defer res.Body.Close()

	c.Header("Cache-Control", g.cacheControl())

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", res.ContentType)
		if res.Size >= 0 {
			c.Header("Content-Length", strconv.FormatInt(res.Size, 10))
		}
		c.Status(http.StatusOK)
		return
	}

	c.DataFromReader(http.StatusOK, res.Size, res.ContentType, res.Body, nil)
}

// record hands the outcome to the recorder; failures never reach the client
func (g *Gateway) record(c *gin.Context, route, requested, defaultName string, res images.Result) {
	event := &analytics.FetchEvent{
		Route:         route,
		RequestedPath: requested,
		DefaultName:   defaultName,
		Step:          string(res.Step),
		StatusCode:    c.Writer.Status(),
		ClientIP:      c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	}
	if res.Status == images.Found {
		event.ServedKey = res.Key
	}

	if err := g.Recorder.Record(c.Request.Context(), event); err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Str("path", requested).Msg("failed to record fetch event")
	}
}

// HealthCheck godoc
//
//	@Summary		Gateway health
//	@Description	Probe the blob store by checking for the global default image
//	@Tags			Operations
//	@Produce		json
//	@Success		200	{object}	types.HealthResponse	"Store reachable (storage is ok or missing_global_default)"
//	@Failure		503	{object}	types.HealthResponse	"Store probe failed"
//	@Router			/health [get]
func handleHealth(g *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := types.HealthResponse{
			Status:    types.StatusHealthy,
			Service:   "image-gateway",
			Storage:   "ok",
			Analytics: g.Stats != nil,
			Time:      time.Now().UTC(),
		}

		code := http.StatusOK
		exists, err := g.Store.Exists(ctx, g.Resolver.GlobalDefaultKey())
		switch {
		case err != nil:
			log.Ctx(ctx).Error().Err(err).Msg("storage health probe failed")
			resp.Status = types.StatusUnhealthy
			resp.Storage = "error"
			code = http.StatusServiceUnavailable
		case !exists:
			resp.Storage = "missing_global_default"
		}

		c.JSON(code, resp)
	}
}

// FetchStats godoc
//
//	@Summary		Fallback statistics
//	@Description	Count recorded fetches per fallback step and list the paths that most often missed the exact lookup
//	@Tags			Operations
//	@Produce		json
//	@Param			window	query		string											false	"Look-back window as a Go duration"	default(24h)
//	@Param			limit	query		int												false	"Maximum missed paths returned (1-100)"	default(10)
//	@Success		200		{object}	types.APIResponse{data=analytics.Stats}	"Statistics for the window"
//	@Failure		400		{object}	types.APIResponse							"Invalid window or limit"
//	@Failure		404		{object}	types.APIResponse							"Analytics is disabled"
//	@Failure		500		{object}	types.APIResponse							"Failed to load stats"
//	@Router			/stats [get]
func handleStats(g *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.Stats == nil {
			c.JSON(http.StatusNotFound, types.APIResponse{
				Success: false,
				Error:   "Analytics is disabled",
			})
			return
		}

		window := 24 * time.Hour
		if raw := c.Query("window"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, types.APIResponse{
					Success: false,
					Error:   "Invalid window parameter",
				})
				return
			}
			window = parsed
		}

		limit := 10
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 100 {
				c.JSON(http.StatusBadRequest, types.APIResponse{
					Success: false,
					Error:   "Invalid limit parameter",
				})
				return
			}
			limit = parsed
		}

		stats, err := g.Stats.GetStats(c.Request.Context(), time.Now().UTC().Add(-window), limit)
		if err != nil {
			log.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to load stats")
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   "Failed to load stats",
			})
			return
		}

		c.JSON(http.StatusOK, types.APIResponse{
			Success: true,
			Data:    stats,
		})
	}
}
