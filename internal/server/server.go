package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/app"
	"github.com/Adda-Baaj/logo-fetcher/internal/domain"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/internal/logos"

	"github.com/gin-gonic/gin"
)

// LogoFinder is the lookup surface the API exposes. Lookup records history
// and publishes an event; Resolve only aggregates.
type LogoFinder interface {
	Lookup(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error)
	Resolve(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error)
	History(ctx context.Context, limit int) ([]domain.LookupRecord, error)
}

// Options configures the HTTP router builder.
type Options struct {
	Finder          LogoFinder
	Logger          logger.Logger
	DefaultScraping bool
	Debug           bool
}

// ImageView is the JSON form of one raster result.
type ImageView struct {
	Label     string `json:"label"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format,omitempty"`
	OriginURL string `json:"origin_url,omitempty"`
	PNGBase64 string `json:"png_base64"`
}

// LookupResponse is returned by GET /v1/logos.
type LookupResponse struct {
	Domain  string                   `json:"domain"`
	Images  []ImageView              `json:"images"`
	Vectors []domain.VectorReference `json:"vectors"`
}

type handler struct {
	finder          LogoFinder
	defaultScraping bool
	log             logger.Logger
}

// NewRouter builds the gin engine serving the logo API.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Finder == nil {
		return nil, fmt.Errorf("http router requires a finder")
	}
	log := logger.Ensure(opts.Logger)

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(log))

	h := &handler{finder: opts.Finder, defaultScraping: opts.DefaultScraping, log: log}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	v1.GET("/logos", h.lookup)
	v1.GET("/logos/download", h.download)
	v1.GET("/history", h.history)

	return engine, nil
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.InfoObj("http request served", "http_request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

type lookupParams struct {
	domain string
	max    int
	scrape bool
}

func (h *handler) parseLookup(c *gin.Context) (lookupParams, error) {
	p := lookupParams{domain: strings.TrimSpace(c.Query("domain")), scrape: h.defaultScraping}
	if p.domain == "" {
		return p, errors.New("domain is required")
	}
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("max must be an integer")
		}
		p.max = n
	}
	if raw := c.Query("scrape"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("scrape must be a boolean")
		}
		p.scrape = b
	}
	return p, nil
}

type lookupFunc func(ctx context.Context, raw string, maxAlternatives int, includeScraping bool) (logos.Result, error)

func (h *handler) runLookup(c *gin.Context, run lookupFunc) (logos.Result, bool) {
	p, err := h.parseLookup(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return logos.Result{}, false
	}
	res, err := run(c.Request.Context(), p.domain, p.max, p.scrape)
	if err != nil {
		if errors.Is(err, app.ErrInvalidDomain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		}
		return logos.Result{}, false
	}
	return res, true
}

func (h *handler) lookup(c *gin.Context) {
	res, ok := h.runLookup(c, h.finder.Lookup)
	if !ok {
		return
	}

	out := LookupResponse{
		Domain:  res.Domain,
		Images:  make([]ImageView, 0, res.Images.Len()),
		Vectors: res.Vectors,
	}
	if out.Vectors == nil {
		out.Vectors = []domain.VectorReference{}
	}
	for _, img := range res.Images.Entries() {
		data, err := app.EncodePNG(img)
		if err != nil {
			h.log.WarnObj("png encoding failed", "encode_error", map[string]any{
				"label": img.SourceLabel,
				"error": err.Error(),
			})
			continue
		}
		out.Images = append(out.Images, ImageView{
			Label:     img.SourceLabel,
			Width:     img.Width(),
			Height:    img.Height(),
			Format:    img.Format,
			OriginURL: img.OriginURL,
			PNGBase64: base64.StdEncoding.EncodeToString(data),
		})
	}
	c.JSON(http.StatusOK, out)
}

// download is stateless: it aggregates again without recording and serves the
// entry under label. Upstreams may have changed since /v1/logos listed it, in
// which case the 404 body carries the labels available now.
func (h *handler) download(c *gin.Context) {
	label := strings.TrimSpace(c.Query("label"))
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}
	res, ok := h.runLookup(c, h.finder.Resolve)
	if !ok {
		return
	}

	img, found := res.Images.Get(label)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     fmt.Sprintf("no image labeled %q", label),
			"available": res.Images.Labels(),
		})
		return
	}
	data, err := app.EncodePNG(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "png encoding failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", app.FileName(res.Domain, label)))
	c.Data(http.StatusOK, "image/png", data)
}

func (h *handler) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	records, err := h.finder.History(c.Request.Context(), limit)
	if err != nil {
		h.log.ErrorObj("history query failed", "storage_error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if records == nil {
		records = []domain.LookupRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"lookups": records})
}

// Serve runs engine on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, engine http.Handler, log logger.Logger) error {
	log = logger.Ensure(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("http server listening", "http_addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.InfoObj("http server shutting down", "reason", ctx.Err().Error())
	return srv.Shutdown(shutdownCtx)
}
