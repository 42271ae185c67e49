package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/shopify"
)

// ShopifyFetcher pages the Admin GraphQL orders connection sorted by update time
type ShopifyFetcher struct {
	cfg    config.ShopifyConfig
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*shopify.Client
}

func NewShopifyFetcher(cfg config.ShopifyConfig, logger *zap.Logger) *ShopifyFetcher {
	return &ShopifyFetcher{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*shopify.Client),
	}
}

func (f *ShopifyFetcher) client(cred Credential) *shopify.Client {
	key := cred.Get("shop_domain") + "|" + cred.Get("access_token")

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c
	}
	cfg := f.cfg
	cfg.ShopDomain = cred.Get("shop_domain")
	cfg.AccessToken = cred.Get("access_token")
	c := shopify.NewClient(cfg, f.logger)
	f.clients[key] = c
	return c
}

type shopifyOrdersData struct {
	Orders struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Edges []struct {
			Node json.RawMessage `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

func (f *ShopifyFetcher) Fetch(ctx context.Context, cred Credential, cursor string, pageSize int) (*FetchResult, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	variables := map[string]interface{}{
		"first": pageSize,
	}
	if cur.Token != "" {
		variables["after"] = cur.Token
	}
	if !cur.Since.IsZero() {
		variables["query"] = fmt.Sprintf("updated_at:>='%s'", cur.Since.UTC().Format(time.RFC3339))
	}

	resp, err := f.client(cred).Execute(ctx, shopify.OrdersQuery, variables)
	if err != nil {
		return nil, translateShopifyError(err)
	}

	var data shopifyOrdersData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to decode orders: %w", err)}
	}

	records := make([]RawOrder, 0, len(data.Orders.Edges))
	for _, edge := range data.Orders.Edges {
		var header struct {
			LegacyResourceID string    `json:"legacyResourceId"`
			UpdatedAt        time.Time `json:"updatedAt"`
		}
		// An undecodable header still goes to the mapper, which reports it as a data error.
		_ = json.Unmarshal(edge.Node, &header)
		cur.Observe(header.UpdatedAt)
		records = append(records, RawOrder{ExternalID: header.LegacyResourceID, Payload: edge.Node})
	}

	pageInfo := data.Orders.PageInfo
	next := cur.Advance(pageInfo.HasNextPage, pageInfo.EndCursor, 0)
	return &FetchResult{
		Records:    records,
		NextCursor: EncodeCursor(next),
		HasMore:    pageInfo.HasNextPage,
	}, nil
}

func translateShopifyError(err error) error {
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return &AuthError{StatusCode: apiErr.StatusCode, Message: apiErr.Body}
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &RateLimitedError{RetryAfter: apiErr.RetryAfter}
		case apiErr.StatusCode >= 500:
			return &TransientError{Err: err}
		}
		return err
	}

	var throttled *shopify.ThrottledError
	if errors.As(err, &throttled) {
		return &RateLimitedError{RetryAfter: throttled.RetryAfter, Message: "query cost throttled"}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return &TransientError{Err: err}
	}
	return err
}

type shopifyMoney struct {
	ShopMoney struct {
		Amount string `json:"amount"`
	} `json:"shopMoney"`
}

type shopifyOrder struct {
	LegacyResourceID         string       `json:"legacyResourceId"`
	Name                     string       `json:"name"`
	Email                    string       `json:"email"`
	CreatedAt                time.Time    `json:"createdAt"`
	CancelledAt              *time.Time   `json:"cancelledAt"`
	DisplayFulfillmentStatus string       `json:"displayFulfillmentStatus"`
	DisplayFinancialStatus   string       `json:"displayFinancialStatus"`
	CurrencyCode             string       `json:"currencyCode"`
	SubtotalPriceSet         shopifyMoney `json:"subtotalPriceSet"`
	TotalTaxSet              shopifyMoney `json:"totalTaxSet"`
	TotalShippingPriceSet    shopifyMoney `json:"totalShippingPriceSet"`
	TotalPriceSet            shopifyMoney `json:"totalPriceSet"`
	Customer                 *struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	} `json:"customer"`
	ShippingAddress *struct {
		Address1      string `json:"address1"`
		Address2      string `json:"address2"`
		City          string `json:"city"`
		Province      string `json:"province"`
		Zip           string `json:"zip"`
		CountryCodeV2 string `json:"countryCodeV2"`
	} `json:"shippingAddress"`
	LineItems struct {
		Edges []struct {
			Node struct {
				Title                string       `json:"title"`
				Quantity             int          `json:"quantity"`
				SKU                  string       `json:"sku"`
				VariantTitle         string       `json:"variantTitle"`
				OriginalUnitPriceSet shopifyMoney `json:"originalUnitPriceSet"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
	Fulfillments []struct {
		DisplayStatus string `json:"displayStatus"`
		TrackingInfo  []struct {
			Number  string `json:"number"`
			Company string `json:"company"`
		} `json:"trackingInfo"`
	} `json:"fulfillments"`
}

// MapShopifyOrder converts an Admin GraphQL order node
func MapShopifyOrder(raw RawOrder) (*domain.Order, error) {
	var n shopifyOrder
	if err := json.Unmarshal(raw.Payload, &n); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}

	order := &domain.Order{
		ExternalOrderID: n.LegacyResourceID,
		OrderNumber:     n.Name,
		Status:          shopifyStatus(n),
		OrderDate:       n.CreatedAt,
		Currency:        n.CurrencyCode,
		CustomerEmail:   optionalString(n.Email),
	}

	var err error
	if order.Subtotal, err = parseMoney("subtotal", n.SubtotalPriceSet.ShopMoney.Amount); err != nil {
		return nil, err
	}
	if order.Tax, err = parseMoney("tax", n.TotalTaxSet.ShopMoney.Amount); err != nil {
		return nil, err
	}
	if order.ShippingCost, err = parseMoney("shipping", n.TotalShippingPriceSet.ShopMoney.Amount); err != nil {
		return nil, err
	}
	if order.Total, err = parseMoney("total", n.TotalPriceSet.ShopMoney.Amount); err != nil {
		return nil, err
	}

	if n.Customer != nil {
		order.CustomerName = customerName(n.Customer.FirstName, n.Customer.LastName, n.Email)
		if order.CustomerEmail == nil {
			order.CustomerEmail = optionalString(n.Customer.Email)
		}
	} else {
		order.CustomerName = customerName("", "", n.Email)
	}

	if a := n.ShippingAddress; a != nil {
		order.ShippingAddress = addressOrNil(domain.Address{
			Line1:      a.Address1,
			Line2:      a.Address2,
			City:       a.City,
			State:      a.Province,
			PostalCode: a.Zip,
			Country:    a.CountryCodeV2,
		})
	}

	for _, edge := range n.LineItems.Edges {
		unit, err := parseMoney("unit_price", edge.Node.OriginalUnitPriceSet.ShopMoney.Amount)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, newItem(edge.Node.SKU, edge.Node.Title, edge.Node.VariantTitle, edge.Node.Quantity, unit))
	}

	for i := len(n.Fulfillments) - 1; i >= 0; i-- {
		if info := n.Fulfillments[i].TrackingInfo; len(info) > 0 {
			order.TrackingNumber = optionalString(info[0].Number)
			order.Carrier = optionalString(info[0].Company)
			break
		}
	}

	return order, nil
}

func shopifyStatus(n shopifyOrder) domain.OrderStatus {
	if n.CancelledAt != nil {
		return domain.OrderStatusCancelled
	}
	if n.DisplayFinancialStatus == "REFUNDED" {
		return domain.OrderStatusRefunded
	}
	for _, f := range n.Fulfillments {
		if f.DisplayStatus == "DELIVERED" {
			return domain.OrderStatusDelivered
		}
	}
	switch n.DisplayFulfillmentStatus {
	case "FULFILLED":
		return domain.OrderStatusShipped
	case "IN_PROGRESS", "PARTIALLY_FULFILLED":
		return domain.OrderStatusProcessing
	}
	if n.DisplayFinancialStatus == "PAID" {
		return domain.OrderStatusProcessing
	}
	return domain.OrderStatusPending
}
