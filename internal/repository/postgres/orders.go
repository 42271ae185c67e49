package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

const orderColumns = `id, platform, external_order_id, order_number, status, order_date,
	customer_name, customer_email, shipping_address, subtotal, tax, shipping_cost, total,
	currency, tracking_number, carrier, inconsistent, inconsistency_reason,
	last_synced_at, created_at, updated_at`

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
	txOpts TxOptions
	now    func() time.Time
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
		txOpts: DefaultTxOptions(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var customerEmail, trackingNumber, carrier, reason sql.NullString
	var address []byte

	err := row.Scan(
		&order.ID,
		&order.Platform,
		&order.ExternalOrderID,
		&order.OrderNumber,
		&order.Status,
		&order.OrderDate,
		&order.CustomerName,
		&customerEmail,
		&address,
		&order.Subtotal,
		&order.Tax,
		&order.ShippingCost,
		&order.Total,
		&order.Currency,
		&trackingNumber,
		&carrier,
		&order.Inconsistent,
		&reason,
		&order.LastSyncedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if customerEmail.Valid {
		order.CustomerEmail = &customerEmail.String
	}
	if trackingNumber.Valid {
		order.TrackingNumber = &trackingNumber.String
	}
	if carrier.Valid {
		order.Carrier = &carrier.String
	}
	if reason.Valid {
		order.InconsistencyReason = &reason.String
	}
	if len(address) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(address, &addr); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
		order.ShippingAddress = &addr
	}

	return &order, nil
}

func (r *orderRepository) Upsert(ctx context.Context, order *domain.Order) (*domain.UpsertResult, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	var result *domain.UpsertResult
	err := WithRetry(ctx, r.db, r.txOpts, func(tx *sql.Tx) error {
		existing, err := r.lockByKey(ctx, tx, order.Platform, order.ExternalOrderID)
		if err != nil && !errors.IsNotFound(err) {
			return err
		}

		result = domain.Reconcile(existing, order, r.now())
		if existing == nil {
			if err := r.insert(ctx, tx, result.Order); err != nil {
				return err
			}
		} else if err := r.update(ctx, tx, result.Order); err != nil {
			return err
		}

		if existing == nil || len(order.Items) > 0 {
			return r.replaceItems(ctx, tx, result.Order)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to upsert order",
			zap.String("platform", string(order.Platform)),
			zap.String("external_order_id", order.ExternalOrderID),
			zap.Error(err),
		)
		return nil, err
	}

	return result, nil
}

// lockByKey loads the order for the key and holds its row lock until the transaction ends
func (r *orderRepository) lockByKey(ctx context.Context, tx *sql.Tx, platform domain.Platform, externalOrderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE platform = $1 AND external_order_id = $2
		FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, platform, externalOrderID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: string(platform) + ":" + externalOrderID}
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, tx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) insert(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (platform, external_order_id) DO NOTHING
	`

	address, err := encodeAddress(order.ShippingAddress)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, query,
		order.ID,
		order.Platform,
		order.ExternalOrderID,
		order.OrderNumber,
		order.Status,
		order.OrderDate,
		order.CustomerName,
		order.CustomerEmail,
		address,
		order.Subtotal,
		order.Tax,
		order.ShippingCost,
		order.Total,
		order.Currency,
		order.TrackingNumber,
		order.Carrier,
		order.Inconsistent,
		order.InconsistencyReason,
		order.LastSyncedAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errConcurrentInsert
	}
	return nil
}

func (r *orderRepository) update(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	query := `
		UPDATE orders
		SET order_number = $2, status = $3, customer_name = $4, customer_email = $5,
			shipping_address = $6, subtotal = $7, tax = $8, shipping_cost = $9, total = $10,
			currency = $11, tracking_number = $12, carrier = $13, inconsistent = $14,
			inconsistency_reason = $15, last_synced_at = $16, updated_at = $17
		WHERE id = $1
	`

	address, err := encodeAddress(order.ShippingAddress)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.Status,
		order.CustomerName,
		order.CustomerEmail,
		address,
		order.Subtotal,
		order.Tax,
		order.ShippingCost,
		order.Total,
		order.Currency,
		order.TrackingNumber,
		order.Carrier,
		order.Inconsistent,
		order.InconsistencyReason,
		order.LastSyncedAt,
		order.UpdatedAt,
	)
	return err
}

func (r *orderRepository) replaceItems(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return err
	}
	if len(order.Items) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_items (order_id, position, sku, name, variant_title, quantity, unit_price, line_total) VALUES `)
	args := make([]any, 0, len(order.Items)*8)
	for i, item := range order.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
		args = append(args, order.ID, i, item.SKU, item.Name, item.VariantTitle, item.Quantity, item.UnitPrice, item.LineTotal)
	}

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// attachItems loads line items for orders in one query
func (r *orderRepository) attachItems(ctx context.Context, q queryer, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID.String()
		o.Items = []domain.OrderItem{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, sku, name, variant_title, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item domain.OrderItem
		var variant sql.NullString
		if err := rows.Scan(&orderID, &item.SKU, &item.Name, &variant, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return err
		}
		if variant.Valid {
			item.VariantTitle = &variant.String
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, err
	}

	if err := r.attachItems(ctx, r.db, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByExternalID(ctx context.Context, platform domain.Platform, externalOrderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE platform = $1 AND external_order_id = $2`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, platform, externalOrderID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: string(platform) + ":" + externalOrderID}
	}
	if err != nil {
		r.logger.Error("Failed to get order by external ID", zap.Error(err))
		return nil, err
	}

	if err := r.attachItems(ctx, r.db, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func filterClause(filter domain.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Platform != nil {
		args = append(args, *filter.Platform)
		conds = append(conds, fmt.Sprintf("platform = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY order_date DESC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, r.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context, filter domain.OrderFilter) (int, error) {
	where, args := filterClause(filter)

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count orders", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *orderRepository) SummarizeByPlatform(ctx context.Context) (map[domain.Platform]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT platform, COUNT(*) FROM orders GROUP BY platform`)
	if err != nil {
		r.logger.Error("Failed to summarize orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Platform]int)
	for rows.Next() {
		var platform domain.Platform
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, err
		}
		counts[platform] = count
	}
	return counts, rows.Err()
}

func encodeAddress(addr *domain.Address) ([]byte, error) {
	if addr == nil {
		return nil, nil
	}
	b, err := json.Marshal(addr)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	return b, nil
}
