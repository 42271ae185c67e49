package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
)

type anomalyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnomalyRepository creates a new anomaly repository
func NewAnomalyRepository(db *sql.DB, logger *zap.Logger) *anomalyRepository {
	return &anomalyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *anomalyRepository) Record(ctx context.Context, anomaly *domain.Anomaly) error {
	query := `
		INSERT INTO sync_anomalies (id, kind, platform, external_order_id, order_id, stored_status, incoming_status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		anomaly.ID,
		anomaly.Kind,
		anomaly.Platform,
		anomaly.ExternalOrderID,
		anomaly.OrderID,
		anomaly.StoredStatus,
		anomaly.IncomingStatus,
		anomaly.DetectedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record anomaly", zap.Error(err))
		return err
	}
	return nil
}

func (r *anomalyRepository) List(ctx context.Context, platform *domain.Platform, limit int) ([]*domain.Anomaly, error) {
	query := `
		SELECT id, kind, platform, external_order_id, order_id, stored_status, incoming_status, detected_at
		FROM sync_anomalies
		WHERE ($1 = '' OR platform = $1)
		ORDER BY detected_at DESC
		LIMIT $2
	`

	filter := ""
	if platform != nil {
		filter = string(*platform)
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query, filter, limit)
	if err != nil {
		r.logger.Error("Failed to list anomalies", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	anomalies := []*domain.Anomaly{}
	for rows.Next() {
		var a domain.Anomaly
		if err := rows.Scan(&a.ID, &a.Kind, &a.Platform, &a.ExternalOrderID, &a.OrderID, &a.StoredStatus, &a.IncomingStatus, &a.DetectedAt); err != nil {
			return nil, err
		}
		anomalies = append(anomalies, &a)
	}
	return anomalies, rows.Err()
}
