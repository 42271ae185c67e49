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

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

// EbayFetcher pages the Fulfillment API filtered by last modified date
type EbayFetcher struct {
	cfg  config.EbayConfig
	rest *restClient
}

func NewEbayFetcher(cfg config.EbayConfig, httpClient *http.Client) *EbayFetcher {
	return &EbayFetcher{cfg: cfg, rest: newRESTClient(httpClient)}
}

type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayOrder struct {
	OrderID                string    `json:"orderId"`
	LegacyOrderID          string    `json:"legacyOrderId"`
	CreationDate           time.Time `json:"creationDate"`
	LastModifiedDate       time.Time `json:"lastModifiedDate"`
	OrderFulfillmentStatus string    `json:"orderFulfillmentStatus"`
	OrderPaymentStatus     string    `json:"orderPaymentStatus"`
	CancelStatus           struct {
		CancelState string `json:"cancelState"`
	} `json:"cancelStatus"`
	Buyer struct {
		Username                 string `json:"username"`
		BuyerRegistrationAddress struct {
			FullName string `json:"fullName"`
			Email    string `json:"email"`
		} `json:"buyerRegistrationAddress"`
	} `json:"buyer"`
	PricingSummary struct {
		PriceSubtotal ebayAmount `json:"priceSubtotal"`
		DeliveryCost  ebayAmount `json:"deliveryCost"`
		Tax           ebayAmount `json:"tax"`
		Total         ebayAmount `json:"total"`
	} `json:"pricingSummary"`
	LineItems []struct {
		SKU          string     `json:"sku"`
		Title        string     `json:"title"`
		Quantity     int        `json:"quantity"`
		LineItemCost ebayAmount `json:"lineItemCost"`
		Variation    []struct {
			Value string `json:"value"`
		} `json:"variationAspects"`
	} `json:"lineItems"`
	FulfillmentStartInstructions []struct {
		ShippingStep struct {
			ShippingCarrierCode string `json:"shippingCarrierCode"`
			ShipTo              struct {
				FullName       string `json:"fullName"`
				Email          string `json:"email"`
				ContactAddress struct {
					AddressLine1    string `json:"addressLine1"`
					AddressLine2    string `json:"addressLine2"`
					City            string `json:"city"`
					StateOrProvince string `json:"stateOrProvince"`
					PostalCode      string `json:"postalCode"`
					CountryCode     string `json:"countryCode"`
				} `json:"contactAddress"`
			} `json:"shipTo"`
		} `json:"shippingStep"`
	} `json:"fulfillmentStartInstructions"`
}

func (f *EbayFetcher) Fetch(ctx context.Context, cred Credential, cursor string, pageSize int) (*FetchResult, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if !cur.Since.IsZero() {
		q.Set("filter", fmt.Sprintf("lastmodifieddate:[%s..]", cur.Since.UTC().Format("2006-01-02T15:04:05.000Z")))
	}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(cur.Offset))

	var resp struct {
		Orders []json.RawMessage `json:"orders"`
		Total  int               `json:"total"`
	}
	endpoint := strings.TrimSuffix(f.cfg.Endpoint, "/") + "/sell/fulfillment/v1/order?" + q.Encode()
	headers := map[string]string{"Authorization": "Bearer " + cred.Get("user_token")}
	if err := f.rest.getJSON(ctx, endpoint, headers, &resp); err != nil {
		return nil, err
	}

	records := make([]RawOrder, 0, len(resp.Orders))
	for _, rawOrder := range resp.Orders {
		var header struct {
			OrderID          string    `json:"orderId"`
			LastModifiedDate time.Time `json:"lastModifiedDate"`
		}
		_ = json.Unmarshal(rawOrder, &header)
		cur.Observe(header.LastModifiedDate)
		records = append(records, RawOrder{ExternalID: header.OrderID, Payload: rawOrder})
	}

	nextOffset := cur.Offset + len(resp.Orders)
	hasMore := len(resp.Orders) > 0 && nextOffset < resp.Total
	next := cur.Advance(hasMore, "", nextOffset)
	return &FetchResult{Records: records, NextCursor: EncodeCursor(next), HasMore: hasMore}, nil
}

// MapEbayOrder converts a Fulfillment API order
func MapEbayOrder(raw RawOrder) (*domain.Order, error) {
	var o ebayOrder
	if err := json.Unmarshal(raw.Payload, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}

	status, err := ebayStatus(o)
	if err != nil {
		return nil, err
	}

	orderNumber := o.LegacyOrderID
	if orderNumber == "" {
		orderNumber = o.OrderID
	}
	order := &domain.Order{
		ExternalOrderID: o.OrderID,
		OrderNumber:     orderNumber,
		Status:          status,
		OrderDate:       o.CreationDate,
		Currency:        o.PricingSummary.Total.Currency,
	}

	ps := o.PricingSummary
	if order.Subtotal, err = parseMoney("price_subtotal", ps.PriceSubtotal.Value); err != nil {
		return nil, err
	}
	if order.ShippingCost, err = parseMoney("delivery_cost", ps.DeliveryCost.Value); err != nil {
		return nil, err
	}
	if order.Tax, err = parseMoney("tax", ps.Tax.Value); err != nil {
		return nil, err
	}
	if order.Total, err = parseMoney("total", ps.Total.Value); err != nil {
		return nil, err
	}

	email := o.Buyer.BuyerRegistrationAddress.Email
	fullName := o.Buyer.BuyerRegistrationAddress.FullName
	if len(o.FulfillmentStartInstructions) > 0 {
		step := o.FulfillmentStartInstructions[0].ShippingStep
		addr := step.ShipTo.ContactAddress
		order.ShippingAddress = addressOrNil(domain.Address{
			Line1:      addr.AddressLine1,
			Line2:      addr.AddressLine2,
			City:       addr.City,
			State:      addr.StateOrProvince,
			PostalCode: addr.PostalCode,
			Country:    addr.CountryCode,
		})
		if fullName == "" {
			fullName = step.ShipTo.FullName
		}
		if email == "" {
			email = step.ShipTo.Email
		}
		if status.HasShipped() {
			order.Carrier = optionalString(step.ShippingCarrierCode)
		}
	}
	order.CustomerName = customerName(fullName, "", o.Buyer.Username)
	order.CustomerEmail = optionalString(email)

	for _, li := range o.LineItems {
		lineTotal, err := parseMoney("line_item_cost", li.LineItemCost.Value)
		if err != nil {
			return nil, err
		}
		if li.Quantity <= 0 {
			return nil, fmt.Errorf("line item %q: quantity %d", li.SKU, li.Quantity)
		}
		var variants []string
		for _, v := range li.Variation {
			variants = append(variants, v.Value)
		}
		item := newItem(li.SKU, li.Title, strings.Join(variants, " / "), li.Quantity, lineTotal.Div(decimalInt(li.Quantity)).Round(4))
		item.LineTotal = lineTotal
		order.Items = append(order.Items, item)
	}

	return order, nil
}

func ebayStatus(o ebayOrder) (domain.OrderStatus, error) {
	if o.CancelStatus.CancelState == "CANCELED" {
		return domain.OrderStatusCancelled, nil
	}
	if o.OrderPaymentStatus == "FULLY_REFUNDED" {
		return domain.OrderStatusRefunded, nil
	}
	switch o.OrderFulfillmentStatus {
	case "FULFILLED":
		return domain.OrderStatusShipped, nil
	case "IN_PROGRESS":
		return domain.OrderStatusProcessing, nil
	case "NOT_STARTED":
		return domain.OrderStatusPending, nil
	default:
		return "", fmt.Errorf("unknown fulfillment status %q", o.OrderFulfillmentStatus)
	}
}
