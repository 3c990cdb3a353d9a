package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SupplyChainLedger/internal/catalog"
	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
	"github.com/jmerrifield20/SupplyChainLedger/internal/provenance"
)

// APIHandler exposes the provenance lookup, the hash deriver and the
// garment catalog as JSON.
type APIHandler struct {
	agg         Aggregator
	garments    catalog.Store
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewAPIHandler creates a new APIHandler. callTimeout bounds each
// aggregation; 0 leaves only the request context.
func NewAPIHandler(agg Aggregator, garments catalog.Store, callTimeout time.Duration, logger *zap.Logger) *APIHandler {
	return &APIHandler{agg: agg, garments: garments, callTimeout: callTimeout, logger: logger}
}

// Register mounts the API routes on the given router group.
func (h *APIHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/products/:product_id/provenance", h.Provenance)
	rg.POST("/stages/hash", h.HashStage)

	cat := rg.Group("/catalog")
	{
		cat.GET("", h.ListGarments)
		cat.GET("/:garment_id", h.GetGarment)
	}
}

// Provenance handles GET /products/:product_id/provenance.
func (h *APIHandler) Provenance(c *gin.Context) {
	productID := c.Param("product_id")

	ctx := c.Request.Context()
	if h.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.callTimeout)
		defer cancel()
	}

	result, err := h.agg.Aggregate(ctx, productID)
	RecordAggregation(err)
	if err != nil {
		logFailure(h.logger, c, productID, err)
		body := gin.H{"error": failureMessage(err), "product_id": productID}
		if f, ok := provenance.AsFailure(err); ok {
			body["step"] = f.Step
			if f.Step == provenance.StepStage {
				body["index"] = f.Index
			}
		}
		c.JSON(failureStatus(err), body)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StageRequest is the raw stage tuple accepted by POST /stages/hash.
type StageRequest struct {
	Stage           string `json:"stage" binding:"required"`
	Location        string `json:"location"`
	Verification    string `json:"verification"`
	CarbonFootprint string `json:"carbon_footprint"`
	AdditionalInfo  string `json:"additional_info"`
}

type hashResponse struct {
	Hash            string  `json:"hash"`
	RenewableEnergy *string `json:"renewable_energy,omitempty"`
}

// HashStage handles POST /stages/hash. It derives the content hash a
// verified page would show for the given stage.
func (h *APIHandler) HashStage(c *gin.Context) {
	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry := provenance.NewStageEntry(ledger.StageRecord{
		Stage:           req.Stage,
		Location:        req.Location,
		Verification:    req.Verification,
		CarbonFootprint: req.CarbonFootprint,
		AdditionalInfo:  req.AdditionalInfo,
	})
	c.JSON(http.StatusOK, hashResponse{Hash: entry.ContentHash, RenewableEnergy: entry.RenewableEnergyNote})
}

// ListGarments handles GET /catalog.
func (h *APIHandler) ListGarments(c *gin.Context) {
	garments, err := h.garments.List(c.Request.Context())
	if err != nil {
		h.logger.Error("catalog list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list garments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"garments": garments, "count": len(garments)})
}

// GetGarment handles GET /catalog/:garment_id.
func (h *APIHandler) GetGarment(c *gin.Context) {
	id := c.Param("garment_id")
	g, err := h.garments.Get(c.Request.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "garment not found"})
		return
	}
	if err != nil {
		h.logger.Error("catalog lookup", zap.String("garment_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load garment"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// failureStatus maps an aggregation error onto an HTTP status.
func failureStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return "product not found on ledger"
	case errors.Is(err, ledger.ErrInvalidResponse):
		return "ledger returned an invalid response"
	case errors.Is(err, ledger.ErrConnection):
		return "ledger unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "ledger timed out"
	default:
		return "could not load ledger data"
	}
}
