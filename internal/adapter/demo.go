package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orderhub/orderhub/internal/domain"
)

const demoOrdersPerPlatform = 20

type demoProduct struct {
	sku   string
	name  string
	price string
}

type demoProfile struct {
	idFormat     func(i int, r *rand.Rand) string
	numberFormat func(i int) string
	customer     func(i int) (name, email string)
	cities       []string
	carrier      string
	tracking     func(i int, r *rand.Rand) string
	products     []demoProduct
}

var demoProfiles = map[domain.Platform]demoProfile{
	domain.PlatformShopify: {
		idFormat:     func(i int, _ *rand.Rand) string { return fmt.Sprintf("SHOP%d", 1000+i) },
		numberFormat: func(i int) string { return fmt.Sprintf("#%d", 1000+i) },
		customer: func(i int) (string, string) {
			return fmt.Sprintf("Customer %d", i+1), fmt.Sprintf("customer%d@example.com", i+1)
		},
		cities:   []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix"},
		carrier:  "UPS",
		tracking: func(i int, _ *rand.Rand) string { return fmt.Sprintf("1Z999AA1%08d", i) },
		products: []demoProduct{
			{"WIDGET-001", "Premium Widget", "29.99"},
			{"GADGET-042", "Smart Gadget Pro", "149.99"},
			{"TOOL-123", "Professional Tool Set", "89.99"},
			{"ACC-999", "Deluxe Accessory Kit", "39.99"},
		},
	},
	domain.PlatformAmazon: {
		idFormat:     func(i int, r *rand.Rand) string { return fmt.Sprintf("AMZ%d-%d", 2000+i, 1000000+r.IntN(9000000)) },
		numberFormat: func(i int) string { return fmt.Sprintf("AMZ-%d", 2000+i) },
		customer: func(i int) (string, string) {
			return fmt.Sprintf("Amazon Customer %d", i+1), ""
		},
		cities:   []string{"Seattle", "Dallas", "Miami", "Denver", "Boston"},
		carrier:  "Amazon Logistics",
		tracking: func(_ int, r *rand.Rand) string { return fmt.Sprintf("TBA%d", 100000000+r.IntN(900000000)) },
		products: []demoProduct{
			{"AMZ-BOOK-001", "Bestselling Novel", "19.99"},
			{"AMZ-ELECT-123", "Wireless Earbuds", "79.99"},
			{"AMZ-HOME-456", "Kitchen Appliance", "129.99"},
			{"AMZ-TOY-789", "Educational Toy Set", "34.99"},
		},
	},
	domain.PlatformEbay: {
		idFormat:     func(i int, r *rand.Rand) string { return fmt.Sprintf("EBAY%d-%d", 3000+i, 10000+r.IntN(90000)) },
		numberFormat: func(i int) string { return fmt.Sprintf("EBAY-%d", 3000+i) },
		customer: func(i int) (string, string) {
			return fmt.Sprintf("eBay Buyer %d", i+1), fmt.Sprintf("ebaybuyer%d@example.com", i+1)
		},
		cities:   []string{"San Jose", "Austin", "Portland", "Atlanta", "Detroit"},
		carrier:  "USPS",
		tracking: func(_ int, r *rand.Rand) string { return fmt.Sprintf("9400%d", 1000000000+r.Int64N(9000000000)) },
		products: []demoProduct{
			{"EBAY-VINTAGE-01", "Vintage Collectible Item", "45.00"},
			{"EBAY-PARTS-123", "Automotive Parts Set", "89.50"},
			{"EBAY-WATCH-999", "Designer Watch", "299.99"},
			{"EBAY-GAME-456", "Retro Video Game", "59.99"},
		},
	},
	domain.PlatformEtsy: {
		idFormat:     func(i int, _ *rand.Rand) string { return fmt.Sprintf("ETSY%d", 4000+i) },
		numberFormat: func(i int) string { return fmt.Sprintf("ETSY-%d", 4000+i) },
		customer: func(i int) (string, string) {
			return fmt.Sprintf("Etsy Shopper %d", i+1), fmt.Sprintf("etsyshopper%d@example.com", i+1)
		},
		cities:   []string{"Brooklyn", "Nashville", "Asheville", "Santa Fe", "Madison"},
		carrier:  "USPS First Class",
		tracking: func(_ int, r *rand.Rand) string { return fmt.Sprintf("9205%d", 5000000000+r.Int64N(1000000000)) },
		products: []demoProduct{
			{"ETSY-CRAFT-001", "Handmade Ceramic Mug", "24.99"},
			{"ETSY-ART-234", "Custom Portrait Print", "49.99"},
			{"ETSY-JEWELRY-567", "Sterling Silver Necklace", "89.99"},
			{"ETSY-DECOR-890", "Rustic Wall Hanging", "39.99"},
		},
	},
}

var (
	demoTaxRate           = decimal.RequireFromString("0.0875")
	demoFreeShippingAbove = decimal.NewFromInt(50)
	demoShippingCost      = decimal.RequireFromString("5.99")
)

var demoProgression = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

// DemoFetcher generates a fixed set of orders per platform. Each completed
// pass advances the cursor generation and moves statuses forward, so repeated
// syncs exercise updates without ever regressing.
type DemoFetcher struct {
	platform domain.Platform
	anchor   time.Time
}

func NewDemoFetcher(platform domain.Platform, anchor time.Time) *DemoFetcher {
	return &DemoFetcher{platform: platform, anchor: anchor.UTC()}
}

type demoItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type demoRecord struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Status         string          `json:"status"`
	OrderDate      time.Time       `json:"order_date"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email,omitempty"`
	Address        domain.Address  `json:"shipping_address"`
	Items          []demoItem      `json:"items"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Total          decimal.Decimal `json:"total"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Carrier        string          `json:"carrier,omitempty"`
}

func (f *DemoFetcher) Fetch(ctx context.Context, _ Credential, cursor string, pageSize int) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	profile, ok := demoProfiles[f.platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, f.platform)
	}

	start := min(cur.Offset, demoOrdersPerPlatform)
	end := min(start+pageSize, demoOrdersPerPlatform)

	records := make([]RawOrder, 0, end-start)
	for i := start; i < end; i++ {
		rec := f.record(profile, i, cur.Generation)
		cur.Observe(rec.UpdatedAt)
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode demo order: %w", err)
		}
		records = append(records, RawOrder{ExternalID: rec.ID, Payload: payload})
	}

	hasMore := end < demoOrdersPerPlatform
	next := cur.Advance(hasMore, "", end)
	return &FetchResult{Records: records, NextCursor: EncodeCursor(next), HasMore: hasMore}, nil
}

func (f *DemoFetcher) seed(i int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(f.platform))
	return h.Sum64() + uint64(i)
}

func (f *DemoFetcher) record(profile demoProfile, i, gen int) demoRecord {
	r := rand.New(rand.NewPCG(f.seed(i), uint64(i)))

	name, email := profile.customer(i)
	rec := demoRecord{
		ID:            profile.idFormat(i, r),
		OrderNumber:   profile.numberFormat(i),
		Status:        string(demoStatus(i, gen)),
		OrderDate:     f.anchor.Add(-time.Duration(i*7) * time.Hour),
		UpdatedAt:     f.anchor.Add(time.Duration(gen) * time.Minute),
		CustomerName:  name,
		CustomerEmail: email,
		Address: domain.Address{
			Line1:      fmt.Sprintf("%d Market Street", 100+i),
			City:       profile.cities[r.IntN(len(profile.cities))],
			PostalCode: fmt.Sprintf("%05d", 10000+i*37),
			Country:    "US",
		},
	}

	subtotal := decimal.Zero
	for n := 1 + r.IntN(3); n > 0; n-- {
		p := profile.products[r.IntN(len(profile.products))]
		item := demoItem{SKU: p.sku, Name: p.name, Quantity: 1 + r.IntN(2), UnitPrice: decimal.RequireFromString(p.price)}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimalInt(item.Quantity)))
		rec.Items = append(rec.Items, item)
	}
	rec.Tax = subtotal.Mul(demoTaxRate).Round(2)
	rec.ShippingCost = decimal.Zero
	if subtotal.LessThan(demoFreeShippingAbove) {
		rec.ShippingCost = demoShippingCost
	}
	rec.Total = subtotal.Add(rec.Tax).Add(rec.ShippingCost)

	tracking := profile.tracking(i, r)
	if domain.OrderStatus(rec.Status).HasShipped() {
		rec.TrackingNumber = tracking
		rec.Carrier = profile.carrier
	}
	return rec
}

// demoStatus is monotone in gen. One order in five is cancelled from the
// second pass on, provided it had not been delivered by then.
func demoStatus(i, gen int) domain.OrderStatus {
	stage := func(g int) int { return min(i%len(demoProgression)+g, len(demoProgression)-1) }
	if i%5 == 4 && gen >= 1 && stage(1) < len(demoProgression)-1 {
		return domain.OrderStatusCancelled
	}
	return demoProgression[stage(gen)]
}

// MapDemoOrder converts a generated demo record
func MapDemoOrder(raw RawOrder) (*domain.Order, error) {
	var rec demoRecord
	if err := json.Unmarshal(raw.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decode demo order: %w", err)
	}
	addr := rec.Address
	order := &domain.Order{
		ExternalOrderID: rec.ID,
		OrderNumber:     rec.OrderNumber,
		Status:          domain.OrderStatus(rec.Status),
		OrderDate:       rec.OrderDate,
		CustomerName:    rec.CustomerName,
		CustomerEmail:   optionalString(rec.CustomerEmail),
		ShippingAddress: addressOrNil(addr),
		Tax:             rec.Tax,
		ShippingCost:    rec.ShippingCost,
		Total:           rec.Total,
		Currency:        "USD",
		TrackingNumber:  optionalString(rec.TrackingNumber),
		Carrier:         optionalString(rec.Carrier),
	}
	for _, it := range rec.Items {
		order.Items = append(order.Items, newItem(it.SKU, it.Name, "", it.Quantity, it.UnitPrice))
	}
	order.Subtotal = sumLines(order.Items)
	return order, nil
}
