package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

// EtsyFetcher pages shop receipts in ascending update order
type EtsyFetcher struct {
	cfg  config.EtsyConfig
	rest *restClient
}

func NewEtsyFetcher(cfg config.EtsyConfig, httpClient *http.Client) *EtsyFetcher {
	return &EtsyFetcher{cfg: cfg, rest: newRESTClient(httpClient)}
}

// etsyMoney is an integer amount scaled by divisor
type etsyMoney struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

func (m etsyMoney) Decimal() decimal.Decimal {
	if m.Divisor == 0 {
		return decimal.NewFromInt(m.Amount)
	}
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(m.Divisor))
}

type etsyReceipt struct {
	ReceiptID         int64     `json:"receipt_id"`
	Name              string    `json:"name"`
	BuyerEmail        string    `json:"buyer_email"`
	Status            string    `json:"status"`
	IsShipped         bool      `json:"is_shipped"`
	CreateTimestamp   int64     `json:"create_timestamp"`
	UpdatedTimestamp  int64     `json:"updated_timestamp"`
	FirstLine         string    `json:"first_line"`
	SecondLine        string    `json:"second_line"`
	City              string    `json:"city"`
	State             string    `json:"state"`
	Zip               string    `json:"zip"`
	CountryISO        string    `json:"country_iso"`
	Subtotal          etsyMoney `json:"subtotal"`
	TotalTaxCost      etsyMoney `json:"total_tax_cost"`
	TotalShippingCost etsyMoney `json:"total_shipping_cost"`
	Grandtotal        etsyMoney `json:"grandtotal"`
	Transactions      []struct {
		Title      string    `json:"title"`
		Quantity   int       `json:"quantity"`
		SKU        string    `json:"sku"`
		Price      etsyMoney `json:"price"`
		Variations []struct {
			FormattedValue string `json:"formatted_value"`
		} `json:"variations"`
	} `json:"transactions"`
	Shipments []struct {
		CarrierName  string `json:"carrier_name"`
		TrackingCode string `json:"tracking_code"`
	} `json:"shipments"`
}

func (f *EtsyFetcher) Fetch(ctx context.Context, cred Credential, cursor string, pageSize int) (*FetchResult, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	shopID := cred.Get("shop_id")
	if shopID == "" {
		return nil, &AuthError{Message: "etsy shop id missing from credential"}
	}

	q := url.Values{}
	if !cur.Since.IsZero() {
		q.Set("min_last_modified", strconv.FormatInt(cur.Since.Unix(), 10))
	}
	q.Set("sort_on", "updated")
	q.Set("sort_order", "asc")
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(cur.Offset))

	var resp struct {
		Count   int               `json:"count"`
		Results []json.RawMessage `json:"results"`
	}
	u := fmt.Sprintf("%s/v3/application/shops/%s/receipts?%s",
		strings.TrimSuffix(f.cfg.Endpoint, "/"), url.PathEscape(shopID), q.Encode())
	headers := map[string]string{
		"x-api-key":     cred.Get("api_key"),
		"Authorization": "Bearer " + cred.Get("access_token"),
	}
	if err := f.rest.getJSON(ctx, u, headers, &resp); err != nil {
		return nil, err
	}

	records := make([]RawOrder, 0, len(resp.Results))
	for _, rawReceipt := range resp.Results {
		var header struct {
			ReceiptID        int64 `json:"receipt_id"`
			UpdatedTimestamp int64 `json:"updated_timestamp"`
		}
		_ = json.Unmarshal(rawReceipt, &header)
		if header.UpdatedTimestamp > 0 {
			cur.Observe(time.Unix(header.UpdatedTimestamp, 0).UTC())
		}
		id := ""
		if header.ReceiptID != 0 {
			id = strconv.FormatInt(header.ReceiptID, 10)
		}
		records = append(records, RawOrder{ExternalID: id, Payload: rawReceipt})
	}

	nextOffset := cur.Offset + len(resp.Results)
	hasMore := len(resp.Results) > 0 && nextOffset < resp.Count
	next := cur.Advance(hasMore, "", nextOffset)
	return &FetchResult{Records: records, NextCursor: EncodeCursor(next), HasMore: hasMore}, nil
}

// MapEtsyReceipt converts a shop receipt
func MapEtsyReceipt(raw RawOrder) (*domain.Order, error) {
	var r etsyReceipt
	if err := json.Unmarshal(raw.Payload, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	if r.ReceiptID == 0 {
		return nil, fmt.Errorf("receipt id missing")
	}

	id := strconv.FormatInt(r.ReceiptID, 10)
	order := &domain.Order{
		ExternalOrderID: id,
		OrderNumber:     id,
		Status:          etsyStatus(r),
		OrderDate:       time.Unix(r.CreateTimestamp, 0).UTC(),
		CustomerName:    customerName(r.Name, "", r.BuyerEmail),
		CustomerEmail:   optionalString(r.BuyerEmail),
		Subtotal:        r.Subtotal.Decimal(),
		Tax:             r.TotalTaxCost.Decimal(),
		ShippingCost:    r.TotalShippingCost.Decimal(),
		Total:           r.Grandtotal.Decimal(),
		Currency:        r.Grandtotal.CurrencyCode,
		ShippingAddress: addressOrNil(domain.Address{
			Line1:      r.FirstLine,
			Line2:      r.SecondLine,
			City:       r.City,
			State:      r.State,
			PostalCode: r.Zip,
			Country:    r.CountryISO,
		}),
	}
	if r.CreateTimestamp == 0 {
		order.OrderDate = time.Time{}
	}

	for _, tx := range r.Transactions {
		var variants []string
		for _, v := range tx.Variations {
			variants = append(variants, v.FormattedValue)
		}
		order.Items = append(order.Items, newItem(tx.SKU, tx.Title, strings.Join(variants, " / "), tx.Quantity, tx.Price.Decimal()))
	}

	if n := len(r.Shipments); n > 0 {
		order.TrackingNumber = optionalString(r.Shipments[n-1].TrackingCode)
		order.Carrier = optionalString(r.Shipments[n-1].CarrierName)
	}

	return order, nil
}

func etsyStatus(r etsyReceipt) domain.OrderStatus {
	switch strings.ToLower(r.Status) {
	case "canceled":
		return domain.OrderStatusCancelled
	case "fully refunded":
		return domain.OrderStatusRefunded
	}
	if r.IsShipped || strings.EqualFold(r.Status, "completed") {
		return domain.OrderStatusShipped
	}
	if strings.EqualFold(r.Status, "paid") {
		return domain.OrderStatusProcessing
	}
	return domain.OrderStatusPending
}
