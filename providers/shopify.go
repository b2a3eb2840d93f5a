package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"price-sync-service/models"
)

// Per-product nested caps. A product exceeding them gets its truncation
// flags set so the caller can report it instead of silently updating a
// partial variant set.
const (
	productsPageSize   = 250
	variantsPageSize   = 100
	metafieldsPageSize = 10
)

// Per-call deadlines, applied on top of the caller's context.
const (
	queryTimeout       = 60 * time.Second
	uploadTimeout      = 120 * time.Second
	listingPageTimeout = 45 * time.Second
)

// ShopifyClient implements CatalogClient over the GraphQL admin API.
type ShopifyClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewShopifyClient creates a client for one shop. Calls are paced through a
// shared limiter so a large catalog walk stays under the platform throttle.
func NewShopifyClient(shopDomain, apiVersion, token string) *ShopifyClient {
	return &ShopifyClient{
		endpoint:   fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shopDomain, apiVersion),
		token:      token,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
	}
}

// ---- GraphQL wire structs ----

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type productNode struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Metafields struct {
		Nodes    []models.Metafield `json:"nodes"`
		PageInfo pageInfo           `json:"pageInfo"`
	} `json:"metafields"`
	Variants struct {
		Nodes    []models.Variant `json:"nodes"`
		PageInfo pageInfo         `json:"pageInfo"`
	} `json:"variants"`
}

type productsPageData struct {
	Products struct {
		Nodes    []productNode `json:"nodes"`
		PageInfo pageInfo      `json:"pageInfo"`
	} `json:"products"`
}

type stagedTarget struct {
	URL         string `json:"url"`
	ResourceURL string `json:"resourceUrl"`
	Parameters  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"parameters"`
}

type stagedUploadsCreateData struct {
	StagedUploadsCreate struct {
		StagedTargets []stagedTarget `json:"stagedTargets"`
		UserErrors    []UserError    `json:"userErrors"`
	} `json:"stagedUploadsCreate"`
}

// objectCount is an UnsignedInt64 on the wire, serialized as a string.
type bulkOperationNode struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	ObjectCount string `json:"objectCount"`
}

type bulkRunMutationData struct {
	BulkOperationRunMutation struct {
		BulkOperation *bulkOperationNode `json:"bulkOperation"`
		UserErrors    []UserError        `json:"userErrors"`
	} `json:"bulkOperationRunMutation"`
}

type currentBulkOperationData struct {
	CurrentBulkOperation *bulkOperationNode `json:"currentBulkOperation"`
}

// ---- CatalogClient implementation ----

// FetchTaggedProducts walks the paginated product listing for the tag and
// returns every product in page order.
func (c *ShopifyClient) FetchTaggedProducts(ctx context.Context, tag string) ([]models.Product, error) {
	query := fmt.Sprintf(`
	query taggedProducts($first: Int!, $after: String, $query: String!) {
		products(first: $first, after: $after, query: $query) {
			nodes {
				id
				title
				tags
				metafields(first: %d) {
					nodes { namespace key value }
					pageInfo { hasNextPage }
				}
				variants(first: %d) {
					nodes { id title }
					pageInfo { hasNextPage }
				}
			}
			pageInfo { hasNextPage endCursor }
		}
	}`, metafieldsPageSize, variantsPageSize)

	var products []models.Product
	after := ""
	for {
		variables := map[string]interface{}{
			"first": productsPageSize,
			"query": fmt.Sprintf("tag:%s", tag),
		}
		if after != "" {
			variables["after"] = after
		}

		var data productsPageData
		pageCtx, cancel := context.WithTimeout(ctx, listingPageTimeout)
		err := c.execute(pageCtx, query, variables, &data)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("list tagged products: %w", err)
		}

		for _, node := range data.Products.Nodes {
			products = append(products, node.toProduct())
		}
		if !data.Products.PageInfo.HasNextPage {
			break
		}
		after = data.Products.PageInfo.EndCursor
		if strings.TrimSpace(after) == "" {
			break
		}
	}
	return products, nil
}

// StagePayload signs a staged upload target for the payload, PUTs the bytes
// to it with the signed parameters passed through untouched, and returns the
// resource URL for the bulk mutation.
func (c *ShopifyClient) StagePayload(ctx context.Context, data []byte, filename string) (string, error) {
	const mutation = `
	mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
		stagedUploadsCreate(input: $input) {
			stagedTargets {
				url
				resourceUrl
				parameters { name value }
			}
			userErrors { field message }
		}
	}`

	variables := map[string]interface{}{
		"input": []map[string]interface{}{{
			"resource":   "BULK_MUTATION_VARIABLES",
			"filename":   filename,
			"mimeType":   "text/jsonl",
			"httpMethod": "PUT",
		}},
	}

	var out stagedUploadsCreateData
	signCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	err := c.execute(signCtx, mutation, variables, &out)
	cancel()
	if err != nil {
		return "", fmt.Errorf("stagedUploadsCreate: %w", err)
	}
	if len(out.StagedUploadsCreate.UserErrors) > 0 {
		return "", &StagingError{UserErrors: out.StagedUploadsCreate.UserErrors}
	}
	if len(out.StagedUploadsCreate.StagedTargets) == 0 {
		return "", &ProtocolError{Op: "stagedUploadsCreate", Errors: []GraphQLError{{Message: "no staged target returned"}}}
	}
	target := out.StagedUploadsCreate.StagedTargets[0]

	if err := c.uploadPayload(ctx, target, data); err != nil {
		return "", err
	}
	return target.ResourceURL, nil
}

func (c *ShopifyClient) uploadPayload(ctx context.Context, target stagedTarget, data []byte) error {
	uploadURL, err := url.Parse(target.URL)
	if err != nil {
		return fmt.Errorf("parse staged upload url: %w", err)
	}
	q := uploadURL.Query()
	for _, p := range target.Parameters {
		q.Set(p.Name, p.Value)
	}
	uploadURL.RawQuery = q.Encode()

	putCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(putCtx, http.MethodPut, uploadURL.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/jsonl")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("upload staged payload: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("upload staged payload: %s", string(body))}
	}
	return nil
}

// RunBulkMutation submits the bulk mutation over the staged file.
func (c *ShopifyClient) RunBulkMutation(ctx context.Context, mutation, stagedUploadPath string) (string, error) {
	const query = `
	mutation bulkRun($mutation: String!, $stagedUploadPath: String!) {
		bulkOperationRunMutation(mutation: $mutation, stagedUploadPath: $stagedUploadPath) {
			bulkOperation { id status }
			userErrors { field message }
		}
	}`

	var data bulkRunMutationData
	callCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := c.execute(callCtx, query, map[string]interface{}{
		"mutation":         mutation,
		"stagedUploadPath": stagedUploadPath,
	}, &data); err != nil {
		return "", fmt.Errorf("bulkOperationRunMutation: %w", err)
	}

	result := data.BulkOperationRunMutation
	if len(result.UserErrors) > 0 {
		return "", &ProtocolError{Op: "bulkOperationRunMutation", UserErrors: result.UserErrors}
	}
	if result.BulkOperation == nil || strings.TrimSpace(result.BulkOperation.ID) == "" {
		return "", &ProtocolError{Op: "bulkOperationRunMutation", Errors: []GraphQLError{{Message: "no bulk operation returned"}}}
	}
	return result.BulkOperation.ID, nil
}

// PollBulkStatus returns the shop's current bulk operation. A zero-value
// operation with no error means the platform has not made one visible yet.
func (c *ShopifyClient) PollBulkStatus(ctx context.Context) (models.BulkOperation, error) {
	const query = `{ currentBulkOperation { id status errorCode objectCount } }`

	var data currentBulkOperationData
	callCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := c.execute(callCtx, query, nil, &data); err != nil {
		return models.BulkOperation{}, fmt.Errorf("currentBulkOperation: %w", err)
	}
	if data.CurrentBulkOperation == nil {
		return models.BulkOperation{}, nil
	}
	return data.CurrentBulkOperation.toBulkOperation(), nil
}

// ---- HTTP helper ----

func (c *ShopifyClient) execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("graphql endpoint: %s", string(respBytes))}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &ProtocolError{Op: "graphql", Errors: envelope.Errors}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// ---- Conversion helpers ----

func (n productNode) toProduct() models.Product {
	return models.Product{
		ID:                  n.ID,
		Title:               n.Title,
		Tags:                n.Tags,
		Metafields:          n.Metafields.Nodes,
		Variants:            n.Variants.Nodes,
		VariantsTruncated:   n.Variants.PageInfo.HasNextPage,
		MetafieldsTruncated: n.Metafields.PageInfo.HasNextPage,
	}
}

func (n bulkOperationNode) toBulkOperation() models.BulkOperation {
	count, _ := strconv.ParseInt(n.ObjectCount, 10, 64)
	return models.BulkOperation{
		ID:          n.ID,
		Status:      n.Status,
		ErrorCode:   n.ErrorCode,
		ObjectCount: count,
	}
}
