package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

const ebayOrderJSON = `{
  "orderId": "12-34567-89012",
  "legacyOrderId": "110000000001-2000000000001",
  "creationDate": "2024-05-01T09:00:00.000Z",
  "lastModifiedDate": "2024-05-03T09:00:00.000Z",
  "orderFulfillmentStatus": "FULFILLED",
  "orderPaymentStatus": "PAID",
  "cancelStatus": {"cancelState": "NONE_REQUESTED"},
  "buyer": {"username": "collector99", "buyerRegistrationAddress": {"fullName": "Alan Turing", "email": "alan@example.com"}},
  "pricingSummary": {
    "priceSubtotal": {"value": "90.00", "currency": "USD"},
    "deliveryCost": {"value": "5.00", "currency": "USD"},
    "tax": {"value": "7.20", "currency": "USD"},
    "total": {"value": "102.20", "currency": "USD"}
  },
  "lineItems": [{"sku": "EBAY-VINTAGE-01", "title": "Vintage Collectible Item", "quantity": 2, "lineItemCost": {"value": "90.00", "currency": "USD"}}],
  "fulfillmentStartInstructions": [{"shippingStep": {"shippingCarrierCode": "USPS", "shipTo": {"fullName": "Alan Turing", "contactAddress": {"addressLine1": "3 Bletchley Rd", "city": "Boston", "stateOrProvince": "MA", "postalCode": "02110", "countryCode": "US"}}}}]
}`

func TestEbayFetcher_OffsetPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sell/fulfillment/v1/order", r.URL.Path)
		assert.Equal(t, "Bearer v^1.1#token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "lastmodifieddate:[2024-05-01T00:00:00.000Z..]", q.Get("filter"))
		assert.Equal(t, "1", q.Get("limit"))
		switch q.Get("offset") {
		case "0":
			w.Write([]byte(`{"total":2,"orders":[` + ebayOrderJSON + `]}`))
		default:
			w.Write([]byte(`{"total":2,"orders":[]}`))
		}
	}))
	defer server.Close()

	f := NewEbayFetcher(config.EbayConfig{Endpoint: server.URL}, server.Client())
	cred := Credential{Values: map[string]string{"user_token": "v^1.1#token"}}
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	result, err := f.Fetch(context.Background(), cred, EncodeCursor(Cursor{Since: since}), 1)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "12-34567-89012", result.Records[0].ExternalID)
	assert.True(t, result.HasMore)

	next, err := DecodeCursor(result.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Offset)

	result, err = f.Fetch(context.Background(), cred, result.NextCursor, 1)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.False(t, result.HasMore)

	final, err := DecodeCursor(result.NextCursor)
	require.NoError(t, err)
	assert.True(t, final.Since.Equal(time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)))
	assert.Zero(t, final.Offset)
}

func TestMapEbayOrder(t *testing.T) {
	order, err := MapEbayOrder(RawOrder{Payload: []byte(ebayOrderJSON)})
	require.NoError(t, err)

	assert.Equal(t, "12-34567-89012", order.ExternalOrderID)
	assert.Equal(t, "110000000001-2000000000001", order.OrderNumber)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, "Alan Turing", order.CustomerName)
	assert.Equal(t, "USPS", *order.Carrier)
	assert.Equal(t, "45.00", order.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "102.20", order.Total.StringFixed(2))

	order.CheckConsistency()
	assert.False(t, order.Inconsistent)
}

func TestEbayStatus(t *testing.T) {
	tests := []struct {
		fulfillment, payment, cancel string
		want                         domain.OrderStatus
	}{
		{"NOT_STARTED", "PAID", "NONE_REQUESTED", domain.OrderStatusPending},
		{"IN_PROGRESS", "PAID", "", domain.OrderStatusProcessing},
		{"FULFILLED", "PAID", "", domain.OrderStatusShipped},
		{"NOT_STARTED", "FULLY_REFUNDED", "", domain.OrderStatusRefunded},
		{"NOT_STARTED", "PAID", "CANCELED", domain.OrderStatusCancelled},
	}
	for _, tt := range tests {
		var o ebayOrder
		o.OrderFulfillmentStatus = tt.fulfillment
		o.OrderPaymentStatus = tt.payment
		o.CancelStatus.CancelState = tt.cancel
		got, err := ebayStatus(o)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
