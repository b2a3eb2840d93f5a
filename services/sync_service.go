package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"price-sync-service/models"
	"price-sync-service/progress"
	"price-sync-service/providers"
	"price-sync-service/repository"
)

// DefaultPollInterval is how often the bulk operation status is re-checked.
const DefaultPollInterval = 4 * time.Second

// bulkVariantUpdateMutation is the per-line mutation the platform applies to
// every JSONL input object of the staged payload.
const bulkVariantUpdateMutation = `mutation call($input: ProductVariantInput!) { productVariantUpdate(input: $input) { userErrors { field message } } }`

// SyncOptions carries the domain knobs for a run.
type SyncOptions struct {
	// UpdateTag selects the products to synchronize.
	UpdateTag string
	// CategoryPrecedence is the ordered list of category tags; the first one
	// present on a product decides which surcharge column applies.
	CategoryPrecedence []string
	// MetafieldNamespace/MetafieldKey locate the base-price metafield.
	MetafieldNamespace string
	MetafieldKey       string
	// PollInterval between bulk status checks. Zero means DefaultPollInterval.
	PollInterval time.Duration
}

// SyncService runs one end-to-end price synchronization: fetch the tagged
// catalog, compute target prices from the surcharge table, stage the bulk
// payload and poll the bulk operation to a terminal status.
type SyncService interface {
	// Run blocks until the run reaches a terminal outcome or ctx expires.
	// A non-nil error is a crash: the caller reports it, nothing was
	// reported to the progress hub for it yet. Terminal outcomes that the
	// run itself reported (completed, failed upstream, nothing to update)
	// come back as an outcome with a nil error.
	Run(ctx context.Context) (*models.SyncOutcome, error)
}

type syncServiceImpl struct {
	catalog providers.CatalogClient
	prices  repository.PriceTableRepository
	hub     *progress.Hub
	opts    SyncOptions
	logger  *zap.Logger
}

// NewSyncService creates a SyncService.
func NewSyncService(
	catalog providers.CatalogClient,
	prices repository.PriceTableRepository,
	hub *progress.Hub,
	opts SyncOptions,
	logger *zap.Logger,
) SyncService {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &syncServiceImpl{
		catalog: catalog,
		prices:  prices,
		hub:     hub,
		opts:    opts,
		logger:  logger,
	}
}

func (s *syncServiceImpl) Run(ctx context.Context) (*models.SyncOutcome, error) {
	s.hub.Publish("Price sync started.")

	table, err := s.prices.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load price table: %w", err)
	}

	s.hub.Publishf("Fetching products tagged %s...", s.opts.UpdateTag)
	products, err := s.catalog.FetchTaggedProducts(ctx, s.opts.UpdateTag)
	if err != nil {
		return nil, fmt.Errorf("fetch tagged products: %w", err)
	}
	s.hub.Publishf("Fetched %d products.", len(products))

	for _, p := range products {
		if p.VariantsTruncated {
			s.hub.Publishf("Warning: product %s has more variants than the listing returned; the extra ones keep their old price.", p.ID)
			s.logger.Warn("variant list truncated", zap.String("product_id", p.ID))
		}
		if p.MetafieldsTruncated {
			s.hub.Publishf("Warning: product %s has more metafields than the listing returned; its base price may not have been seen.", p.ID)
			s.logger.Warn("metafield list truncated", zap.String("product_id", p.ID))
		}
	}

	updates := ComputeVariantPrices(products, table, s.opts)
	if len(updates) == 0 {
		s.hub.Publish("Nothing to update.")
		return &models.SyncOutcome{Status: models.SyncRunStatusNoop}, nil
	}
	s.hub.Publishf("Prepared %d variant price updates.", len(updates))

	payload := EncodeBulkPayload(updates)
	filename := fmt.Sprintf("price-sync-%s.jsonl", uuid.New().String())

	s.hub.Publish("Uploading bulk payload...")
	resourceURL, err := s.catalog.StagePayload(ctx, payload, filename)
	if err != nil {
		return nil, fmt.Errorf("stage bulk payload: %w", err)
	}

	s.hub.Publish("Payload staged, launching bulk mutation...")
	opID, err := s.catalog.RunBulkMutation(ctx, bulkVariantUpdateMutation, resourceURL)
	if err != nil {
		return nil, fmt.Errorf("run bulk mutation: %w", err)
	}
	s.hub.Publishf("Bulk operation %s submitted.", opID)
	s.logger.Info("bulk operation submitted",
		zap.String("operation_id", opID),
		zap.Int("variants", len(updates)),
	)

	op, err := s.awaitBulkCompletion(ctx, opID)
	if err != nil {
		return nil, err
	}

	outcome := &models.SyncOutcome{VariantCount: len(updates), Bulk: op}
	if op.Succeeded() {
		s.hub.Publishf("Done: %d variants processed.", op.ObjectCount)
		outcome.Status = models.SyncRunStatusCompleted
		return outcome, nil
	}

	statusPayload, _ := json.Marshal(op)
	s.hub.Publishf("Bulk operation failed: %s", string(statusPayload))
	outcome.Status = models.SyncRunStatusFailed
	return outcome, nil
}

// awaitBulkCompletion re-checks the bulk operation until it reaches a
// terminal status, emitting one progress event per check. A ctx expiry is a
// crash: the operation never finished as far as this run is concerned.
func (s *syncServiceImpl) awaitBulkCompletion(ctx context.Context, opID string) (models.BulkOperation, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.BulkOperation{}, fmt.Errorf("bulk operation %s did not reach a terminal status: %w", opID, ctx.Err())
		case <-ticker.C:
		}

		op, err := s.catalog.PollBulkStatus(ctx)
		if err != nil {
			return models.BulkOperation{}, fmt.Errorf("poll bulk status: %w", err)
		}
		if op.Status == "" {
			// The platform has not made the operation visible yet.
			continue
		}

		s.hub.Publishf("Bulk operation %s: %s (%d objects processed)", opID, op.Status, op.ObjectCount)
		if op.Terminal() {
			return op, nil
		}
	}
}

// VariantPriceUpdate is one line of the bulk payload: a variant and the
// price it should move to.
type VariantPriceUpdate struct {
	VariantID string
	Price     float64
}

// ComputeVariantPrices builds the target-price set for the fetched products.
// For each product the first precedence category present among its tags
// decides the surcharge column; products without a category or without a
// parsable base-price metafield contribute nothing. Each variant's target is
// base price plus its title's surcharge (0 when absent), rounded to cents.
// A variant seen twice keeps its first position and the last computed price.
func ComputeVariantPrices(products []models.Product, table models.PriceTable, opts SyncOptions) []VariantPriceUpdate {
	index := make(map[string]int)
	updates := make([]VariantPriceUpdate, 0)

	for _, product := range products {
		category, ok := categoryFor(product, opts.CategoryPrecedence)
		if !ok {
			continue
		}
		base, ok := product.BasePrice(opts.MetafieldNamespace, opts.MetafieldKey)
		if !ok {
			continue
		}
		for _, variant := range product.Variants {
			target := roundToCents(base + table.SurchargeFor(category, variant.Title))
			if i, seen := index[variant.ID]; seen {
				updates[i].Price = target
				continue
			}
			index[variant.ID] = len(updates)
			updates = append(updates, VariantPriceUpdate{VariantID: variant.ID, Price: target})
		}
	}
	return updates
}

// EncodeBulkPayload renders the updates as JSONL, one mutation input per
// line, in update order.
func EncodeBulkPayload(updates []VariantPriceUpdate) []byte {
	type lineInput struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	}
	type line struct {
		Input lineInput `json:"input"`
	}

	var buf bytes.Buffer
	for _, u := range updates {
		b, _ := json.Marshal(line{Input: lineInput{ID: u.VariantID, Price: formatPrice(u.Price)}})
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func categoryFor(product models.Product, precedence []string) (string, bool) {
	for _, category := range precedence {
		if product.HasTag(category) {
			return category, true
		}
	}
	return "", false
}

func roundToCents(price float64) float64 {
	return math.Round(price*100) / 100
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
