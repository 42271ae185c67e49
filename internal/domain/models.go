package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the canonical record of a single purchase on a platform
type Order struct {
	ID                  uuid.UUID
	Platform            Platform
	ExternalOrderID     string
	OrderNumber         string
	Status              OrderStatus
	OrderDate           time.Time
	CustomerName        string
	CustomerEmail       *string
	ShippingAddress     *Address
	Items               []OrderItem
	Subtotal            decimal.Decimal
	Tax                 decimal.Decimal
	ShippingCost        decimal.Decimal
	Total               decimal.Decimal
	Currency            string
	TrackingNumber      *string
	Carrier             *string
	Inconsistent        bool
	InconsistencyReason *string
	LastSyncedAt        time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Key returns the natural key of the order
func (o *Order) Key() OrderKey {
	return OrderKey{Platform: o.Platform, ExternalOrderID: o.ExternalOrderID}
}

// Clone returns a deep copy so stored snapshots are never shared
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.CustomerEmail = cloneString(o.CustomerEmail)
	c.TrackingNumber = cloneString(o.TrackingNumber)
	c.Carrier = cloneString(o.Carrier)
	c.InconsistencyReason = cloneString(o.InconsistencyReason)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		c.ShippingAddress = &addr
	}
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			item.VariantTitle = cloneString(item.VariantTitle)
			c.Items[i] = item
		}
	}
	return &c
}

// OrderKey is the (platform, externalOrderId) idempotency key
type OrderKey struct {
	Platform        Platform
	ExternalOrderID string
}

func (k OrderKey) String() string {
	return string(k.Platform) + ":" + k.ExternalOrderID
}

// OrderItem is one line of an order
type OrderItem struct {
	SKU          string
	Name         string
	VariantTitle *string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
}

// Address is a shipping destination
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// PlatformConnection is one linked marketplace account
type PlatformConnection struct {
	Platform       Platform
	CredentialRef  string
	Connected      bool
	LastSyncAt     *time.Time
	LastSyncCursor string
	LastSyncStatus SyncStatus
	LastError      *string
	LastErrorKind  ErrorKind
	OrdersSynced   int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy of the connection
func (c *PlatformConnection) Clone() *PlatformConnection {
	if c == nil {
		return nil
	}
	cp := *c
	cp.LastError = cloneString(c.LastError)
	if c.LastSyncAt != nil {
		t := *c.LastSyncAt
		cp.LastSyncAt = &t
	}
	return &cp
}

// RequiresReconnect reports whether the credential was rejected
func (c *PlatformConnection) RequiresReconnect() bool {
	return !c.Connected && c.LastErrorKind == ErrorKindAuth
}

// SyncError is the failure a pass records on its connection
type SyncError struct {
	Message string
	Kind    ErrorKind
}

// SyncStateUpdate changes the sync-owned fields of a connection and leaves
// CredentialRef alone. Nil fields keep their stored value.
type SyncStateUpdate struct {
	Status     SyncStatus
	Cursor     *string
	AddOrders  int64
	LastSyncAt *time.Time
	Connected  *bool
	Error      *SyncError
	ClearError bool
}

// Apply writes the update onto conn
func (u SyncStateUpdate) Apply(conn *PlatformConnection) {
	if u.Status != "" {
		conn.LastSyncStatus = u.Status
	}
	if u.Cursor != nil {
		conn.LastSyncCursor = *u.Cursor
	}
	conn.OrdersSynced += u.AddOrders
	if u.LastSyncAt != nil {
		t := *u.LastSyncAt
		conn.LastSyncAt = &t
	}
	if u.Connected != nil {
		conn.Connected = *u.Connected
	}
	switch {
	case u.Error != nil:
		msg := u.Error.Message
		conn.LastError = &msg
		conn.LastErrorKind = u.Error.Kind
	case u.ClearError:
		conn.LastError = nil
		conn.LastErrorKind = ErrorKindNone
	}
}

// Anomaly records a non-fatal inconsistency observed during sync
type Anomaly struct {
	ID              uuid.UUID
	Kind            AnomalyKind
	Platform        Platform
	ExternalOrderID string
	OrderID         uuid.UUID
	StoredStatus    OrderStatus
	IncomingStatus  OrderStatus
	DetectedAt      time.Time
}

// UpsertResult describes what the store did with an incoming order
type UpsertResult struct {
	Outcome        UpsertOutcome
	Order          *Order
	PreviousStatus OrderStatus
	Anomaly        *Anomaly
}

// StatusChanged reports whether the stored status moved
func (r *UpsertResult) StatusChanged() bool {
	return r.Outcome == UpsertUpdated && r.PreviousStatus != r.Order.Status
}

// OrderFilter selects orders for listing
type OrderFilter struct {
	Platform *Platform
	Status   *OrderStatus
	Limit    int
	Offset   int
}

// Matches reports whether o satisfies the platform and status filters
func (f OrderFilter) Matches(o *Order) bool {
	if f.Platform != nil && o.Platform != *f.Platform {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	return true
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
