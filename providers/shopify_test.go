package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestClient(server *httptest.Server) *ShopifyClient {
	return &ShopifyClient{
		endpoint:   server.URL + "/admin/api/2024-04/graphql.json",
		token:      "test-token",
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
}

func decodeGraphQLRequest(t *testing.T, r *http.Request) graphQLRequest {
	t.Helper()
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode graphql request: %v", err)
	}
	return req
}

func productsPage(nodes string, hasNext bool, cursor string) string {
	return fmt.Sprintf(`{"data":{"products":{"nodes":[%s],"pageInfo":{"hasNextPage":%t,"endCursor":%q}}}}`,
		nodes, hasNext, cursor)
}

func productJSON(id, title string, tags []string, variantsTruncated bool) string {
	tagList, _ := json.Marshal(tags)
	return fmt.Sprintf(`{
		"id": %q,
		"title": %q,
		"tags": %s,
		"metafields": {
			"nodes": [{"namespace":"custom","key":"base_price","value":"10"}],
			"pageInfo": {"hasNextPage": false}
		},
		"variants": {
			"nodes": [{"id":"%s-v1","title":"Small"}],
			"pageInfo": {"hasNextPage": %t}
		}
	}`, id, title, tagList, id, variantsTruncated)
}

func TestFetchTaggedProducts_PaginatesInOrder(t *testing.T) {
	var calls []graphQLRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Shopify-Access-Token"))

		req := decodeGraphQLRequest(t, r)
		calls = append(calls, req)

		switch len(calls) {
		case 1:
			fmt.Fprint(w, productsPage(
				productJSON("gid://shopify/Product/1", "Collier A", []string{"CHAINE_UPDATE", "collier"}, false)+","+
					productJSON("gid://shopify/Product/2", "Collier B", []string{"CHAINE_UPDATE", "collier"}, false),
				true, "cursor-1"))
		case 2:
			fmt.Fprint(w, productsPage(
				productJSON("gid://shopify/Product/3", "Bracelet C", []string{"CHAINE_UPDATE", "bracelet"}, false),
				false, ""))
		default:
			t.Errorf("unexpected extra listing call %d", len(calls))
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	products, err := client.FetchTaggedProducts(context.Background(), "CHAINE_UPDATE")

	assert.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, "gid://shopify/Product/1", products[0].ID)
	assert.Equal(t, "gid://shopify/Product/2", products[1].ID)
	assert.Equal(t, "gid://shopify/Product/3", products[2].ID)

	assert.Len(t, calls, 2)
	assert.Equal(t, "tag:CHAINE_UPDATE", calls[0].Variables["query"])
	assert.Nil(t, calls[0].Variables["after"])
	assert.Equal(t, "cursor-1", calls[1].Variables["after"])
}

func TestFetchTaggedProducts_FlagsTruncatedVariants(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsPage(
			productJSON("gid://shopify/Product/9", "Big", []string{"collier"}, true),
			false, ""))
	}))
	defer server.Close()

	client := newTestClient(server)
	products, err := client.FetchTaggedProducts(context.Background(), "CHAINE_UPDATE")

	assert.NoError(t, err)
	assert.Len(t, products, 1)
	assert.True(t, products[0].VariantsTruncated)
	assert.False(t, products[0].MetafieldsTruncated)
}

func TestFetchTaggedProducts_GraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"Throttled"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.FetchTaggedProducts(context.Background(), "CHAINE_UPDATE")

	var protoErr *ProtocolError
	if assert.ErrorAs(t, err, &protoErr) {
		assert.Contains(t, protoErr.Error(), "Throttled")
	}
}

func TestFetchTaggedProducts_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.FetchTaggedProducts(context.Background(), "CHAINE_UPDATE")

	var transportErr *TransportError
	if assert.ErrorAs(t, err, &transportErr) {
		assert.Equal(t, http.StatusBadGateway, transportErr.Status)
	}
}

func TestStagePayload_UploadsToSignedTarget(t *testing.T) {
	payload := []byte(`{"input":{"id":"gid://shopify/ProductVariant/1","price":"12.5"}}` + "\n")
	uploads := 0

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			uploads++
			assert.Equal(t, "/upload", r.URL.Path)
			assert.Equal(t, "signed-key", r.URL.Query().Get("key"))
			assert.Equal(t, "private", r.URL.Query().Get("acl"))
			assert.Equal(t, "text/jsonl", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, payload, body)
			w.WriteHeader(http.StatusCreated)
			return
		}

		req := decodeGraphQLRequest(t, r)
		assert.Contains(t, req.Query, "stagedUploadsCreate")
		fmt.Fprintf(w, `{"data":{"stagedUploadsCreate":{
			"stagedTargets":[{
				"url": %q,
				"resourceUrl": %q,
				"parameters": [
					{"name":"key","value":"signed-key"},
					{"name":"acl","value":"private"}
				]
			}],
			"userErrors":[]
		}}}`, server.URL+"/upload", server.URL+"/resource/tmp.jsonl")
	}))
	defer server.Close()

	client := newTestClient(server)
	resourceURL, err := client.StagePayload(context.Background(), payload, "run.jsonl")

	assert.NoError(t, err)
	assert.Equal(t, server.URL+"/resource/tmp.jsonl", resourceURL)
	assert.Equal(t, 1, uploads)
}

func TestStagePayload_SigningRejected(t *testing.T) {
	uploads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			uploads++
			return
		}
		fmt.Fprint(w, `{"data":{"stagedUploadsCreate":{
			"stagedTargets":[],
			"userErrors":[{"field":["input"],"message":"filename is invalid"}]
		}}}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.StagePayload(context.Background(), []byte("{}\n"), "run.jsonl")

	var stagingErr *StagingError
	if assert.ErrorAs(t, err, &stagingErr) {
		assert.Contains(t, stagingErr.Error(), "filename is invalid")
	}
	assert.Equal(t, 0, uploads, "no bytes may be uploaded after a signing rejection")
}

func TestRunBulkMutation_ReturnsOperationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		assert.Contains(t, req.Query, "bulkOperationRunMutation")
		assert.Equal(t, "staged/path.jsonl", req.Variables["stagedUploadPath"])
		assert.Contains(t, req.Variables["mutation"], "productVariantUpdate")

		fmt.Fprint(w, `{"data":{"bulkOperationRunMutation":{
			"bulkOperation":{"id":"gid://shopify/BulkOperation/42","status":"CREATED"},
			"userErrors":[]
		}}}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	opID, err := client.RunBulkMutation(context.Background(),
		`mutation call($input: ProductVariantInput!) { productVariantUpdate(input: $input) { userErrors { field message } } }`,
		"staged/path.jsonl")

	assert.NoError(t, err)
	assert.Equal(t, "gid://shopify/BulkOperation/42", opID)
}

func TestRunBulkMutation_UserErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"bulkOperationRunMutation":{
			"bulkOperation":null,
			"userErrors":[{"field":["stagedUploadPath"],"message":"file not found"}]
		}}}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.RunBulkMutation(context.Background(), "mutation {}", "missing.jsonl")

	var protoErr *ProtocolError
	if assert.ErrorAs(t, err, &protoErr) {
		assert.Contains(t, protoErr.Error(), "file not found")
	}
}

func TestPollBulkStatus_ParsesWireFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		assert.Contains(t, req.Query, "currentBulkOperation")
		fmt.Fprint(w, `{"data":{"currentBulkOperation":{
			"id":"gid://shopify/BulkOperation/42",
			"status":"COMPLETED",
			"errorCode":null,
			"objectCount":"3"
		}}}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	op, err := client.PollBulkStatus(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "gid://shopify/BulkOperation/42", op.ID)
	assert.Equal(t, "COMPLETED", op.Status)
	assert.Equal(t, int64(3), op.ObjectCount)
	assert.True(t, op.Terminal())
	assert.True(t, op.Succeeded())
}

func TestPollBulkStatus_NoVisibleOperation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"currentBulkOperation":null}}`)
	}))
	defer server.Close()

	client := newTestClient(server)
	op, err := client.PollBulkStatus(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, op.ID)
	assert.False(t, op.Terminal())
}

func TestExecute_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server)
	_, err := client.PollBulkStatus(context.Background())

	var transportErr *TransportError
	if assert.ErrorAs(t, err, &transportErr) {
		assert.Equal(t, 0, transportErr.Status)
		assert.True(t, strings.Contains(err.Error(), "transport"), "got: %v", err)
	}
}

func TestNewShopifyClient_BuildsAdminEndpoint(t *testing.T) {
	client := NewShopifyClient("demo.myshopify.com", "2024-04", "tok")
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2024-04/graphql.json", client.endpoint)
}
