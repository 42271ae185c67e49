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

// amazonEpoch bounds the first pass; the Orders API requires a lower bound
var amazonEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// AmazonFetcher pages the Selling Partner Orders API by LastUpdatedAfter
type AmazonFetcher struct {
	cfg  config.AmazonConfig
	rest *restClient
}

func NewAmazonFetcher(cfg config.AmazonConfig, httpClient *http.Client) *AmazonFetcher {
	return &AmazonFetcher{cfg: cfg, rest: newRESTClient(httpClient)}
}

type amazonMoney struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

type amazonOrder struct {
	AmazonOrderID  string       `json:"AmazonOrderId"`
	PurchaseDate   time.Time    `json:"PurchaseDate"`
	LastUpdateDate time.Time    `json:"LastUpdateDate"`
	OrderStatus    string       `json:"OrderStatus"`
	OrderTotal     *amazonMoney `json:"OrderTotal"`
	BuyerInfo      struct {
		BuyerEmail string `json:"BuyerEmail"`
		BuyerName  string `json:"BuyerName"`
	} `json:"BuyerInfo"`
	ShippingAddress *struct {
		Name          string `json:"Name"`
		AddressLine1  string `json:"AddressLine1"`
		AddressLine2  string `json:"AddressLine2"`
		City          string `json:"City"`
		StateOrRegion string `json:"StateOrRegion"`
		PostalCode    string `json:"PostalCode"`
		CountryCode   string `json:"CountryCode"`
	} `json:"ShippingAddress"`
}

type amazonOrderItem struct {
	SellerSKU       string       `json:"SellerSKU"`
	Title           string       `json:"Title"`
	QuantityOrdered int          `json:"QuantityOrdered"`
	ItemPrice       *amazonMoney `json:"ItemPrice"`
	ItemTax         *amazonMoney `json:"ItemTax"`
	ShippingPrice   *amazonMoney `json:"ShippingPrice"`
}

// amazonRecord joins an order with its separately fetched items
type amazonRecord struct {
	Order json.RawMessage   `json:"order"`
	Items []amazonOrderItem `json:"items"`
}

func (f *AmazonFetcher) headers(cred Credential) map[string]string {
	return map[string]string{"x-amz-access-token": cred.Get("access_token")}
}

func (f *AmazonFetcher) Fetch(ctx context.Context, cred Credential, cursor string, pageSize int) (*FetchResult, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if cur.Token != "" {
		q.Set("NextToken", cur.Token)
	} else {
		since := cur.Since
		if since.IsZero() {
			since = amazonEpoch
		}
		q.Set("LastUpdatedAfter", since.UTC().Format(time.RFC3339))
	}
	marketplace := cred.Get("marketplace_id")
	if marketplace == "" {
		marketplace = f.cfg.MarketplaceID
	}
	q.Set("MarketplaceIds", marketplace)
	q.Set("MaxResultsPerPage", strconv.Itoa(pageSize))

	var resp struct {
		Payload struct {
			Orders    []json.RawMessage `json:"Orders"`
			NextToken string            `json:"NextToken"`
		} `json:"payload"`
	}
	endpoint := strings.TrimSuffix(f.cfg.Endpoint, "/")
	if err := f.rest.getJSON(ctx, endpoint+"/orders/v0/orders?"+q.Encode(), f.headers(cred), &resp); err != nil {
		return nil, err
	}

	records := make([]RawOrder, 0, len(resp.Payload.Orders))
	for _, rawOrder := range resp.Payload.Orders {
		var header struct {
			AmazonOrderID  string    `json:"AmazonOrderId"`
			LastUpdateDate time.Time `json:"LastUpdateDate"`
		}
		_ = json.Unmarshal(rawOrder, &header)
		cur.Observe(header.LastUpdateDate)

		rec := amazonRecord{Order: rawOrder}
		if header.AmazonOrderID != "" {
			items, err := f.fetchItems(ctx, cred, endpoint, header.AmazonOrderID)
			if err != nil {
				return nil, err
			}
			rec.Items = items
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
		records = append(records, RawOrder{ExternalID: header.AmazonOrderID, Payload: payload})
	}

	hasMore := resp.Payload.NextToken != ""
	next := cur.Advance(hasMore, resp.Payload.NextToken, 0)
	return &FetchResult{Records: records, NextCursor: EncodeCursor(next), HasMore: hasMore}, nil
}

func (f *AmazonFetcher) fetchItems(ctx context.Context, cred Credential, endpoint, orderID string) ([]amazonOrderItem, error) {
	var items []amazonOrderItem
	token := ""
	for {
		u := fmt.Sprintf("%s/orders/v0/orders/%s/orderItems", endpoint, url.PathEscape(orderID))
		if token != "" {
			u += "?NextToken=" + url.QueryEscape(token)
		}
		var resp struct {
			Payload struct {
				OrderItems []amazonOrderItem `json:"OrderItems"`
				NextToken  string            `json:"NextToken"`
			} `json:"payload"`
		}
		if err := f.rest.getJSON(ctx, u, f.headers(cred), &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Payload.OrderItems...)
		if resp.Payload.NextToken == "" {
			return items, nil
		}
		token = resp.Payload.NextToken
	}
}

func amazonAmount(field string, m *amazonMoney) (decimal.Decimal, error) {
	if m == nil {
		return decimal.Zero, nil
	}
	return parseMoney(field, m.Amount)
}

// MapAmazonOrder converts an order joined with its items
func MapAmazonOrder(raw RawOrder) (*domain.Order, error) {
	var rec amazonRecord
	if err := json.Unmarshal(raw.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	var o amazonOrder
	if err := json.Unmarshal(rec.Order, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}

	status, err := amazonStatus(o.OrderStatus)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ExternalOrderID: o.AmazonOrderID,
		OrderNumber:     o.AmazonOrderID,
		Status:          status,
		OrderDate:       o.PurchaseDate,
		CustomerEmail:   optionalString(o.BuyerInfo.BuyerEmail),
	}

	shipName := ""
	if a := o.ShippingAddress; a != nil {
		shipName = a.Name
		order.ShippingAddress = addressOrNil(domain.Address{
			Line1:      a.AddressLine1,
			Line2:      a.AddressLine2,
			City:       a.City,
			State:      a.StateOrRegion,
			PostalCode: a.PostalCode,
			Country:    a.CountryCode,
		})
	}
	order.CustomerName = customerName(o.BuyerInfo.BuyerName, "", shipName)

	for _, it := range rec.Items {
		if it.QuantityOrdered <= 0 {
			continue
		}
		lineTotal, err := amazonAmount("item_price", it.ItemPrice)
		if err != nil {
			return nil, err
		}
		tax, err := amazonAmount("item_tax", it.ItemTax)
		if err != nil {
			return nil, err
		}
		shipping, err := amazonAmount("shipping_price", it.ShippingPrice)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(int64(it.QuantityOrdered))
		order.Items = append(order.Items, domain.OrderItem{
			SKU:       it.SellerSKU,
			Name:      it.Title,
			Quantity:  it.QuantityOrdered,
			UnitPrice: lineTotal.Div(qty).Round(4),
			LineTotal: lineTotal,
		})
		order.Tax = order.Tax.Add(tax)
		order.ShippingCost = order.ShippingCost.Add(shipping)
		if order.Currency == "" && it.ItemPrice != nil {
			order.Currency = it.ItemPrice.CurrencyCode
		}
	}
	order.Subtotal = sumLines(order.Items)

	if o.OrderTotal != nil {
		if order.Total, err = parseMoney("order_total", o.OrderTotal.Amount); err != nil {
			return nil, err
		}
		order.Currency = o.OrderTotal.CurrencyCode
	} else {
		// Pending orders carry no OrderTotal yet
		order.Total = order.Subtotal.Add(order.Tax).Add(order.ShippingCost)
	}

	return order, nil
}

func amazonStatus(s string) (domain.OrderStatus, error) {
	switch s {
	case "Pending", "PendingAvailability":
		return domain.OrderStatusPending, nil
	case "Unshipped", "PartiallyShipped":
		return domain.OrderStatusProcessing, nil
	case "Shipped", "InvoiceUnconfirmed":
		return domain.OrderStatusShipped, nil
	case "Canceled", "Unfulfillable":
		return domain.OrderStatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}
