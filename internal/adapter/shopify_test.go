package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

const shopifyOrderNode = `{
  "legacyResourceId": "1001",
  "name": "#1001",
  "email": "ada@example.com",
  "createdAt": "2024-03-01T10:00:00Z",
  "updatedAt": "2024-03-02T10:00:00Z",
  "cancelledAt": null,
  "displayFulfillmentStatus": "FULFILLED",
  "displayFinancialStatus": "PAID",
  "currencyCode": "USD",
  "subtotalPriceSet": {"shopMoney": {"amount": "59.98"}},
  "totalTaxSet": {"shopMoney": {"amount": "5.25"}},
  "totalShippingPriceSet": {"shopMoney": {"amount": "0.00"}},
  "totalPriceSet": {"shopMoney": {"amount": "65.23"}},
  "customer": {"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
  "shippingAddress": {"address1": "1 Main St", "city": "Austin", "province": "TX", "zip": "78701", "countryCodeV2": "US"},
  "lineItems": {"edges": [{"node": {"title": "Premium Widget", "quantity": 2, "sku": "WIDGET-001", "variantTitle": "Blue", "originalUnitPriceSet": {"shopMoney": {"amount": "29.99"}}}}]},
  "fulfillments": [{"displayStatus": "IN_TRANSIT", "trackingInfo": [{"number": "1Z999AA10000001", "company": "UPS"}]}]
}`

func shopifyCred() Credential {
	return Credential{Platform: domain.PlatformShopify, Values: map[string]string{"shop_domain": "demo.myshopify.com", "access_token": "shpat_x"}}
}

func TestShopifyFetcher_Fetch(t *testing.T) {
	var gotVars map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_x", r.Header.Get("X-Shopify-Access-Token"))
		var req struct {
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotVars = req.Variables
		w.Write([]byte(`{"data":{"orders":{"pageInfo":{"hasNextPage":true,"endCursor":"abc"},"edges":[{"node":` + shopifyOrderNode + `}]}}}`))
	}))
	defer server.Close()

	f := NewShopifyFetcher(config.ShopifyConfig{Endpoint: server.URL}, zaptest.NewLogger(t))
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	result, err := f.Fetch(context.Background(), shopifyCred(), EncodeCursor(Cursor{Since: since}), 25)
	require.NoError(t, err)

	assert.Equal(t, float64(25), gotVars["first"])
	assert.Equal(t, "updated_at:>='2024-03-01T00:00:00Z'", gotVars["query"])
	assert.NotContains(t, gotVars, "after")

	require.Len(t, result.Records, 1)
	assert.Equal(t, "1001", result.Records[0].ExternalID)
	assert.True(t, result.HasMore)

	next, err := DecodeCursor(result.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "abc", next.Token)
	assert.True(t, next.HighWater.Equal(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)))
}

func TestShopifyFetcher_TranslatesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errors":"Invalid API key"}`, ErrAuth},
		{"rate limited", http.StatusTooManyRequests, ``, ErrRateLimited},
		{"server error", http.StatusServiceUnavailable, ``, ErrTransient},
		{"throttled", http.StatusOK, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			f := NewShopifyFetcher(config.ShopifyConfig{Endpoint: server.URL}, zaptest.NewLogger(t))
			_, err := f.Fetch(context.Background(), shopifyCred(), "", 10)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestShopifyFetcher_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	f := NewShopifyFetcher(config.ShopifyConfig{Endpoint: endpoint}, zaptest.NewLogger(t))
	_, err := f.Fetch(context.Background(), shopifyCred(), "", 10)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestMapShopifyOrder(t *testing.T) {
	order, err := MapShopifyOrder(RawOrder{ExternalID: "1001", Payload: json.RawMessage(shopifyOrderNode)})
	require.NoError(t, err)

	assert.Equal(t, "1001", order.ExternalOrderID)
	assert.Equal(t, "#1001", order.OrderNumber)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, "Ada Lovelace", order.CustomerName)
	assert.Equal(t, "ada@example.com", *order.CustomerEmail)
	assert.Equal(t, "65.23", order.Total.StringFixed(2))
	assert.Equal(t, "USD", order.Currency)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "TX", order.ShippingAddress.State)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "WIDGET-001", order.Items[0].SKU)
	assert.Equal(t, "59.98", order.Items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "Blue", *order.Items[0].VariantTitle)

	assert.Equal(t, "1Z999AA10000001", *order.TrackingNumber)
	assert.Equal(t, "UPS", *order.Carrier)

	order.CheckConsistency()
	assert.False(t, order.Inconsistent)
}

func TestShopifyStatus(t *testing.T) {
	cancelled := time.Now()
	tests := []struct {
		name  string
		order shopifyOrder
		want  domain.OrderStatus
	}{
		{"cancelled", shopifyOrder{CancelledAt: &cancelled, DisplayFulfillmentStatus: "FULFILLED"}, domain.OrderStatusCancelled},
		{"refunded", shopifyOrder{DisplayFinancialStatus: "REFUNDED"}, domain.OrderStatusRefunded},
		{"fulfilled", shopifyOrder{DisplayFulfillmentStatus: "FULFILLED"}, domain.OrderStatusShipped},
		{"in progress", shopifyOrder{DisplayFulfillmentStatus: "IN_PROGRESS"}, domain.OrderStatusProcessing},
		{"paid unfulfilled", shopifyOrder{DisplayFulfillmentStatus: "UNFULFILLED", DisplayFinancialStatus: "PAID"}, domain.OrderStatusProcessing},
		{"unpaid", shopifyOrder{DisplayFulfillmentStatus: "UNFULFILLED", DisplayFinancialStatus: "PENDING"}, domain.OrderStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shopifyStatus(tt.order))
		})
	}

	var delivered shopifyOrder
	require.NoError(t, json.Unmarshal([]byte(`{"displayFulfillmentStatus":"FULFILLED","fulfillments":[{"displayStatus":"DELIVERED"}]}`), &delivered))
	assert.Equal(t, domain.OrderStatusDelivered, shopifyStatus(delivered))
}

func TestMapShopifyOrder_BadAmount(t *testing.T) {
	_, err := MapShopifyOrder(RawOrder{Payload: json.RawMessage(`{"legacyResourceId":"1","createdAt":"2024-03-01T10:00:00Z","totalPriceSet":{"shopMoney":{"amount":"abc"}}}`)})
	assert.ErrorContains(t, err, "total")
}
