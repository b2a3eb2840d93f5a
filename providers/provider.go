package providers

import (
	"context"

	"price-sync-service/models"
)

// CatalogClient defines the catalog platform operations the sync engine
// depends on. The engine never speaks GraphQL itself; everything protocol
// shaped lives behind this interface.
type CatalogClient interface {
	// FetchTaggedProducts lists every product carrying the given tag,
	// complete across result pages, in page order.
	FetchTaggedProducts(ctx context.Context, tag string) ([]models.Product, error)

	// StagePayload requests a signed upload target, uploads data to it and
	// returns the resource URL to hand to the bulk mutation.
	StagePayload(ctx context.Context, data []byte, filename string) (string, error)

	// RunBulkMutation submits the bulk mutation over the staged payload and
	// returns the platform-side operation ID.
	RunBulkMutation(ctx context.Context, mutation, stagedUploadPath string) (string, error)

	// PollBulkStatus reports the current state of the shop's bulk operation.
	PollBulkStatus(ctx context.Context) (models.BulkOperation, error)
}
