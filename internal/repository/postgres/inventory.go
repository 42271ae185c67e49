package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

const productColumns = `sku, name, description, quantity_available, quantity_reserved,
	reorder_point, reorder_quantity, price, cost, created_at, updated_at`

const inventoryLogColumns = `id, sku, change_type, quantity_before, quantity_after, quantity_change,
	platform, order_id, reason, created_at`

type inventoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
	txOpts TxOptions
	now    func() time.Time
}

// NewInventoryRepository creates a new product and reservation repository
func NewInventoryRepository(db *sql.DB, logger *zap.Logger) *inventoryRepository {
	return &inventoryRepository{
		db:     db,
		logger: logger,
		txOpts: DefaultTxOptions(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var description sql.NullString
	var price, cost decimal.NullDecimal

	err := row.Scan(
		&p.SKU,
		&p.Name,
		&description,
		&p.QuantityAvailable,
		&p.QuantityReserved,
		&p.ReorderPoint,
		&p.ReorderQuantity,
		&price,
		&cost,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		p.Description = &description.String
	}
	if price.Valid {
		p.Price = &price.Decimal
	}
	if cost.Valid {
		p.Cost = &cost.Decimal
	}
	return &p, nil
}

func (r *inventoryRepository) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			reorder_point = EXCLUDED.reorder_point,
			reorder_quantity = EXCLUDED.reorder_quantity,
			price = EXCLUDED.price,
			cost = EXCLUDED.cost,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + productColumns

	saved, err := scanProduct(r.db.QueryRowContext(ctx, query,
		product.SKU,
		product.Name,
		product.Description,
		product.QuantityAvailable,
		product.ReorderPoint,
		product.ReorderQuantity,
		nullDecimal(product.Price),
		nullDecimal(product.Cost),
		r.now(),
	))
	if err != nil {
		r.logger.Error("Failed to save product", zap.String("sku", product.SKU), zap.Error(err))
		return nil, err
	}
	return saved, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (r *inventoryRepository) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, sku))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: sku}
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.String("sku", sku), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *inventoryRepository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if filter.LowStock {
		query += ` WHERE quantity_available <= reorder_point`
	}
	query += ` ORDER BY sku`

	var args []any
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
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *inventoryRepository) SetAvailable(ctx context.Context, sku string, quantity int, reason string) (*domain.Product, error) {
	var product *domain.Product
	err := WithRetry(ctx, r.db, r.txOpts, func(tx *sql.Tx) error {
		p, err := lockProduct(ctx, tx, sku)
		if err != nil {
			return err
		}
		log, err := p.SetAvailable(quantity, reason, r.now())
		if err != nil {
			return err
		}
		if err := writeStock(ctx, tx, p); err != nil {
			return err
		}
		product = p
		return insertLog(ctx, tx, log)
	})
	if err != nil {
		if !errors.IsNotFound(err) && !errors.IsValidation(err) {
			r.logger.Error("Failed to adjust stock", zap.String("sku", sku), zap.Error(err))
		}
		return nil, err
	}
	return product, nil
}

// ReserveOrder locks products in SKU order so concurrent reservations
// touching the same products cannot deadlock.
func (r *inventoryRepository) ReserveOrder(ctx context.Context, order *domain.Order) ([]domain.Reservation, error) {
	skus, quantities := order.ItemQuantities()
	lockOrder := append([]string(nil), skus...)
	sort.Strings(lockOrder)

	var outcomes map[string]domain.ReservationOutcome
	err := WithRetry(ctx, r.db, r.txOpts, func(tx *sql.Tx) error {
		outcomes = make(map[string]domain.ReservationOutcome, len(skus))
		now := r.now()
		for _, sku := range lockOrder {
			p, err := lockProduct(ctx, tx, sku)
			if errors.IsNotFound(err) {
				outcomes[sku] = domain.ReservationUnknownSKU
				continue
			}
			if err != nil {
				return err
			}

			var held bool
			err = tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM inventory_reservations WHERE order_id = $1 AND sku = $2)`,
				order.ID, sku,
			).Scan(&held)
			if err != nil {
				return err
			}
			if held {
				outcomes[sku] = domain.ReservationAlreadyHeld
				continue
			}

			log, ok := p.Reserve(quantities[sku], now)
			if !ok {
				outcomes[sku] = domain.ReservationInsufficient
				continue
			}
			if err := writeStock(ctx, tx, p); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO inventory_reservations (order_id, sku, quantity, reserved_at) VALUES ($1, $2, $3, $4)`,
				order.ID, sku, quantities[sku], now,
			)
			if err != nil {
				return err
			}
			if err := insertLog(ctx, tx, withOrder(log, order, "Order placed")); err != nil {
				return err
			}
			outcomes[sku] = domain.ReservationReserved
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to reserve stock", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}

	result := make([]domain.Reservation, len(skus))
	for i, sku := range skus {
		result[i] = domain.Reservation{SKU: sku, Quantity: quantities[sku], Outcome: outcomes[sku]}
	}
	return result, nil
}

func (r *inventoryRepository) ReleaseOrder(ctx context.Context, order *domain.Order, reason string) ([]domain.Reservation, error) {
	var result []domain.Reservation
	err := WithRetry(ctx, r.db, r.txOpts, func(tx *sql.Tx) error {
		held, err := openReservations(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		result = make([]domain.Reservation, 0, len(held))
		now := r.now()
		for _, h := range held {
			h.Outcome = domain.ReservationReleased
			p, err := lockProduct(ctx, tx, h.SKU)
			switch {
			case errors.IsNotFound(err):
				h.Outcome = domain.ReservationUnknownSKU
			case err != nil:
				return err
			default:
				log := p.Release(h.Quantity, now)
				if err := writeStock(ctx, tx, p); err != nil {
					return err
				}
				if err := insertLog(ctx, tx, withOrder(log, order, reason)); err != nil {
					return err
				}
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE inventory_reservations SET released_at = $3 WHERE order_id = $1 AND sku = $2`,
				order.ID, h.SKU, now,
			)
			if err != nil {
				return err
			}
			result = append(result, h)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to release stock", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// openReservations reads every unreleased reservation of the order, locked, in SKU order
func openReservations(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) ([]domain.Reservation, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT sku, quantity FROM inventory_reservations
		WHERE order_id = $1 AND released_at IS NULL
		ORDER BY sku
		FOR UPDATE
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var held []domain.Reservation
	for rows.Next() {
		var h domain.Reservation
		if err := rows.Scan(&h.SKU, &h.Quantity); err != nil {
			return nil, err
		}
		held = append(held, h)
	}
	return held, rows.Err()
}

func lockProduct(ctx context.Context, tx *sql.Tx, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1 FOR UPDATE`

	p, err := scanProduct(tx.QueryRowContext(ctx, query, sku))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: sku}
	}
	return p, err
}

func writeStock(ctx context.Context, tx *sql.Tx, p *domain.Product) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET quantity_available = $2, quantity_reserved = $3, updated_at = $4 WHERE sku = $1`,
		p.SKU, p.QuantityAvailable, p.QuantityReserved, p.UpdatedAt,
	)
	return err
}

func insertLog(ctx context.Context, tx *sql.Tx, log *domain.InventoryLog) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_logs (`+inventoryLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		log.ID,
		log.SKU,
		log.ChangeType,
		log.QuantityBefore,
		log.QuantityAfter,
		log.QuantityChange,
		log.Platform,
		log.OrderID,
		log.Reason,
		log.CreatedAt,
	)
	return err
}

func withOrder(log *domain.InventoryLog, order *domain.Order, reason string) *domain.InventoryLog {
	platform := order.Platform
	id := order.ID
	log.Platform = &platform
	log.OrderID = &id
	log.Reason = reason
	return log
}

// Logs returns the newest changes for sku first
func (r *inventoryRepository) Logs(ctx context.Context, sku string, limit int) ([]*domain.InventoryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + inventoryLogColumns + ` FROM inventory_logs WHERE sku = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, sku, limit)
	if err != nil {
		r.logger.Error("Failed to list inventory logs", zap.String("sku", sku), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	logs := []*domain.InventoryLog{}
	for rows.Next() {
		var l domain.InventoryLog
		var platform sql.NullString
		var orderID uuid.NullUUID
		err := rows.Scan(&l.ID, &l.SKU, &l.ChangeType, &l.QuantityBefore, &l.QuantityAfter, &l.QuantityChange,
			&platform, &orderID, &l.Reason, &l.CreatedAt)
		if err != nil {
			return nil, err
		}
		if platform.Valid {
			p := domain.Platform(platform.String)
			l.Platform = &p
		}
		if orderID.Valid {
			l.OrderID = &orderID.UUID
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
