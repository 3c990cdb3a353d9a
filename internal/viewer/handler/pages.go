package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SupplyChainLedger/internal/catalog"
	"github.com/jmerrifield20/SupplyChainLedger/internal/provenance"
)

const (
	msgGarmentNotFound = "Garment not found"
	msgLedgerFailure   = "Error: Could not load blockchain data."
)

// Aggregator is the provenance lookup the handlers depend on.
type Aggregator interface {
	Aggregate(ctx context.Context, productID string) (*provenance.AggregatedResult, error)
	SourceID() string
}

// PageOptions holds the display settings shared by the HTML pages.
type PageOptions struct {
	DefaultProduct string
	ExplorerURL    string
	CallTimeout    time.Duration // 0 = request context only
}

// PageHandler serves the customer-facing garment pages.
type PageHandler struct {
	garments catalog.Store
	agg      Aggregator
	opts     PageOptions
	logger   *zap.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(garments catalog.Store, agg Aggregator, opts PageOptions, logger *zap.Logger) *PageHandler {
	return &PageHandler{garments: garments, agg: agg, opts: opts, logger: logger}
}

// Register mounts the page routes on the given router group.
func (h *PageHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/", h.Home)
	rg.GET("/version-a/:garment_id", h.VersionA)
	rg.GET("/version-b/:garment_id", h.VersionB)
}

type versionAView struct {
	GarmentID string
	Garment   *catalog.Garment
}

type versionBView struct {
	GarmentID    string
	Garment      *catalog.Garment
	Provenance   *provenance.AggregatedResult
	ExplorerLink string
}

// Home handles GET / and redirects to the verified page of the default product.
func (h *PageHandler) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, "/version-b/"+h.opts.DefaultProduct)
}

// VersionA handles GET /version-a/:garment_id, the catalog-only page.
func (h *PageHandler) VersionA(c *gin.Context) {
	id := c.Param("garment_id")
	g, ok := h.garment(c, id)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "version_a.html", versionAView{GarmentID: id, Garment: g})
}

// VersionB handles GET /version-b/:garment_id, the catalog page with the
// ledger timeline.
func (h *PageHandler) VersionB(c *gin.Context) {
	id := c.Param("garment_id")
	g, ok := h.garment(c, id)
	if !ok {
		return
	}

	ctx, cancel := h.callContext(c.Request.Context())
	defer cancel()

	result, err := h.agg.Aggregate(ctx, id)
	RecordAggregation(err)
	if err != nil {
		logFailure(h.logger, c, id, err)
		c.String(http.StatusInternalServerError, msgLedgerFailure)
		return
	}

	c.HTML(http.StatusOK, "version_b.html", versionBView{
		GarmentID:    id,
		Garment:      g,
		Provenance:   result,
		ExplorerLink: provenance.ExplorerURL(h.opts.ExplorerURL, h.agg.SourceID()),
	})
}

// garment looks up id and writes the error response when it cannot.
func (h *PageHandler) garment(c *gin.Context, id string) (*catalog.Garment, bool) {
	g, err := h.garments.Get(c.Request.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.String(http.StatusNotFound, msgGarmentNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("catalog lookup", zap.String("garment_id", id), zap.Error(err))
		c.String(http.StatusInternalServerError, "Error: Could not load garment.")
		return nil, false
	}
	return g, true
}

func (h *PageHandler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, h.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// logFailure logs an aggregation failure once, with the failed step.
func logFailure(logger *zap.Logger, c *gin.Context, productID string, err error) {
	fields := []zap.Field{
		zap.String("product_id", productID),
		zap.String("request_id", requestIDFrom(c)),
		zap.Error(err),
	}
	if f, ok := provenance.AsFailure(err); ok {
		fields = append(fields, zap.String("step", string(f.Step)))
		if f.Step == provenance.StepStage {
			fields = append(fields, zap.Int64("index", f.Index))
		}
	}
	if hint := provenance.Hints(err); hint != "" {
		fields = append(fields, zap.String("hint", hint))
	}
	logger.Error("could not load ledger data", fields...)
}
