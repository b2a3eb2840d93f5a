package controllers

import (
	"net/http"

	"price-sync-service/models"
	"price-sync-service/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PriceTableController handles HTTP requests for the surcharge table the
// dashboard edits.
type PriceTableController struct {
	prices    repository.PriceTableRepository
	validator *RequestValidator
	logger    *zap.Logger
}

// NewPriceTableController creates a new PriceTableController.
func NewPriceTableController(prices repository.PriceTableRepository, logger *zap.Logger) *PriceTableController {
	return &PriceTableController{
		prices:    prices,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

// GetPriceTable handles GET /api/prices. The document is loaded fresh on
// every request so edits made outside the service show up immediately.
func (pc *PriceTableController) GetPriceTable(ctx *gin.Context) {
	table, err := pc.prices.Load(ctx.Request.Context())
	if err != nil {
		pc.logger.Error("Failed to load price table", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load price table"})
		return
	}
	ctx.JSON(http.StatusOK, table)
}

// UpdatePriceTable handles PUT /api/prices. The body is a partial table
// {category: {variant title: surcharge}}; only the submitted entries are
// rewritten onto the freshly loaded document.
func (pc *PriceTableController) UpdatePriceTable(ctx *gin.Context) {
	var updates models.PriceTable
	if err := ctx.ShouldBindJSON(&updates); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	table, err := pc.prices.Load(ctx.Request.Context())
	if err != nil {
		pc.logger.Error("Failed to load price table", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load price table"})
		return
	}

	if err := pc.validator.ValidateTableUpdate(updates, table); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pc.saveTable(ctx, table, updates)
}

// SubmitPriceForm handles POST /prices, the HTML-form flavor of the same
// update: fields are keyed "{category}_{variant title}" and only fields
// present in the form are applied.
func (pc *PriceTableController) SubmitPriceForm(ctx *gin.Context) {
	table, err := pc.prices.Load(ctx.Request.Context())
	if err != nil {
		pc.logger.Error("Failed to load price table", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load price table"})
		return
	}

	updates, err := pc.validator.ParsePriceForm(ctx, table)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pc.saveTable(ctx, table, updates)
}

// saveTable applies validated updates onto the loaded table, persists the
// whole document and returns it.
func (pc *PriceTableController) saveTable(ctx *gin.Context, table, updates models.PriceTable) {
	for category, entries := range updates {
		for title, value := range entries {
			table[category][title] = value
		}
	}

	if err := pc.prices.Save(ctx.Request.Context(), table); err != nil {
		pc.logger.Error("Failed to save price table", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save price table"})
		return
	}

	pc.logger.Info("Price table updated", zap.Int("categories", len(updates)))
	ctx.JSON(http.StatusOK, table)
}
