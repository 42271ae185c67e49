package service

import (
	"time"

	"github.com/orderhub/orderhub/internal/domain"
)

// SyncReport summarizes one reconciliation pass
type SyncReport struct {
	Platform   domain.Platform   `json:"platform"`
	Status     domain.SyncStatus `json:"status"`
	Pages      int               `json:"pages"`
	Inserted   int               `json:"inserted"`
	Updated    int               `json:"updated"`
	Rejected   int               `json:"rejected"`
	Skipped    int               `json:"skipped"`
	Cursor     string            `json:"-"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// TriggerResult lists which platforms a TriggerAll call started
type TriggerResult struct {
	Accepted       []domain.Platform `json:"accepted"`
	AlreadyRunning []domain.Platform `json:"already_running"`
}

// PlatformStatus is one row of the dashboard platform summary
type PlatformStatus struct {
	Name        string          `json:"name"`
	Type        domain.Platform `json:"type"`
	Connected   bool            `json:"connected"`
	OrdersCount int             `json:"orders_count"`
	LastSyncAt  *time.Time      `json:"last_sync_at"`
	LastError   *string         `json:"last_error"`
}

type PlatformSummary struct {
	Platforms   []PlatformStatus `json:"platforms"`
	TotalOrders int              `json:"total_orders"`
}

// PlatformHealth is the connection state of a single platform
type PlatformHealth struct {
	Platform       domain.Platform   `json:"platform"`
	Connected      bool              `json:"connected"`
	LastSyncAt     *time.Time        `json:"last_sync_at"`
	LastSyncStatus domain.SyncStatus `json:"last_sync_status"`
	LastError      *string           `json:"last_error"`
	LastErrorKind  domain.ErrorKind  `json:"last_error_kind,omitempty"`
	OrdersSynced   int64             `json:"orders_synced"`
}

func healthFrom(platform domain.Platform, conn *domain.PlatformConnection) *PlatformHealth {
	if conn == nil {
		return &PlatformHealth{Platform: platform, LastSyncStatus: domain.SyncStatusNever}
	}
	return &PlatformHealth{
		Platform:       platform,
		Connected:      conn.Connected,
		LastSyncAt:     conn.LastSyncAt,
		LastSyncStatus: conn.LastSyncStatus,
		LastError:      conn.LastError,
		LastErrorKind:  conn.LastErrorKind,
		OrdersSynced:   conn.OrdersSynced,
	}
}

// HealthFromConnection renders a connection as a health body
func HealthFromConnection(conn *domain.PlatformConnection) *PlatformHealth {
	return healthFrom(conn.Platform, conn)
}
