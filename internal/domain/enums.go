package domain

// Platform identifies an external marketplace
type Platform string

const (
	PlatformShopify Platform = "shopify"
	PlatformAmazon  Platform = "amazon"
	PlatformEbay    Platform = "ebay"
	PlatformEtsy    Platform = "etsy"
)

// AllPlatforms returns the supported platforms in display order
func AllPlatforms() []Platform {
	return []Platform{PlatformShopify, PlatformAmazon, PlatformEbay, PlatformEtsy}
}

// IsValid checks if the platform is supported
func (p Platform) IsValid() bool {
	switch p {
	case PlatformShopify, PlatformAmazon, PlatformEbay, PlatformEtsy:
		return true
	default:
		return false
	}
}

// DisplayName returns the name shown on the dashboard
func (p Platform) DisplayName() string {
	switch p {
	case PlatformShopify:
		return "Shopify"
	case PlatformAmazon:
		return "Amazon"
	case PlatformEbay:
		return "eBay"
	case PlatformEtsy:
		return "Etsy"
	default:
		return string(p)
	}
}

func (p Platform) String() string {
	return string(p)
}

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// HasShipped reports whether tracking information may be attached
func (s OrderStatus) HasShipped() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered
}

// rank is the position in pending -> processing -> shipped -> delivered.
// cancelled and refunded sit outside the progression.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusProcessing:
		return 1
	case OrderStatusShipped:
		return 2
	case OrderStatusDelivered:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo checks if newStatus is equal to or forward of s
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	if !newStatus.IsValid() {
		return false
	}
	if s == newStatus {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	switch newStatus {
	case OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return newStatus.rank() > s.rank()
	}
}

func (s OrderStatus) String() string {
	return string(s)
}

// ErrorKind classifies the last failure recorded on a connection
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindTransient   ErrorKind = "transient"
	ErrorKindInternal    ErrorKind = "internal"
)

// SyncStatus is the outcome of the most recent sync pass
type SyncStatus string

const (
	SyncStatusNever       SyncStatus = "never"
	SyncStatusRunning     SyncStatus = "running"
	SyncStatusSucceeded   SyncStatus = "succeeded"
	SyncStatusPartial     SyncStatus = "partial"
	SyncStatusFailed      SyncStatus = "failed"
	SyncStatusInterrupted SyncStatus = "interrupted"
)

// UpsertOutcome is the effect of applying one incoming order
type UpsertOutcome string

const (
	UpsertInserted           UpsertOutcome = "inserted"
	UpsertUpdated            UpsertOutcome = "updated"
	UpsertRejectedRegression UpsertOutcome = "rejected_regression"
)

// AnomalyKind classifies recorded sync anomalies
type AnomalyKind string

const (
	AnomalyStatusRegression AnomalyKind = "status_regression"
)
