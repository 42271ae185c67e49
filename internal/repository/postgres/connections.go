package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/pkg/errors"
)

const connectionColumns = `platform, credential_ref, connected, last_sync_at, last_sync_cursor,
	last_sync_status, last_error, last_error_kind, orders_synced, created_at, updated_at`

type connectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConnectionRepository creates a new platform connection repository
func NewConnectionRepository(db *sql.DB, logger *zap.Logger) *connectionRepository {
	return &connectionRepository{
		db:     db,
		logger: logger,
	}
}

func scanConnection(row rowScanner) (*domain.PlatformConnection, error) {
	var conn domain.PlatformConnection
	var lastSyncAt sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&conn.Platform,
		&conn.CredentialRef,
		&conn.Connected,
		&lastSyncAt,
		&conn.LastSyncCursor,
		&conn.LastSyncStatus,
		&lastError,
		&conn.LastErrorKind,
		&conn.OrdersSynced,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncAt.Valid {
		conn.LastSyncAt = &lastSyncAt.Time
	}
	if lastError.Valid {
		conn.LastError = &lastError.String
	}
	return &conn, nil
}

func (r *connectionRepository) Get(ctx context.Context, platform domain.Platform) (*domain.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE platform = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, platform))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "platform connection", ID: string(platform)}
	}
	if err != nil {
		r.logger.Error("Failed to get platform connection", zap.Error(err))
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) List(ctx context.Context) ([]*domain.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections ORDER BY platform`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list platform connections", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	conns := []*domain.PlatformConnection{}
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func (r *connectionRepository) Save(ctx context.Context, conn *domain.PlatformConnection) error {
	query := `
		INSERT INTO platform_connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (platform) DO UPDATE SET
			credential_ref = EXCLUDED.credential_ref,
			connected = EXCLUDED.connected,
			last_sync_at = EXCLUDED.last_sync_at,
			last_sync_cursor = EXCLUDED.last_sync_cursor,
			last_sync_status = EXCLUDED.last_sync_status,
			last_error = EXCLUDED.last_error,
			last_error_kind = EXCLUDED.last_error_kind,
			orders_synced = EXCLUDED.orders_synced,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	now := time.Now().UTC()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	if conn.LastSyncStatus == "" {
		conn.LastSyncStatus = domain.SyncStatusNever
	}

	err := r.db.QueryRowContext(ctx, query,
		conn.Platform,
		conn.CredentialRef,
		conn.Connected,
		conn.LastSyncAt,
		conn.LastSyncCursor,
		conn.LastSyncStatus,
		conn.LastError,
		conn.LastErrorKind,
		conn.OrdersSynced,
		conn.CreatedAt,
		conn.UpdatedAt,
	).Scan(&conn.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to save platform connection", zap.Error(err))
		return err
	}
	return nil
}

func (r *connectionRepository) UpdateSyncState(ctx context.Context, platform domain.Platform, update domain.SyncStateUpdate) (*domain.PlatformConnection, error) {
	query := `
		UPDATE platform_connections SET
			last_sync_status = COALESCE(NULLIF($2, ''), last_sync_status),
			last_sync_cursor = COALESCE($3, last_sync_cursor),
			orders_synced = orders_synced + $4,
			last_sync_at = COALESCE($5, last_sync_at),
			connected = COALESCE($6, connected),
			last_error = CASE WHEN $7 THEN $8 ELSE last_error END,
			last_error_kind = CASE WHEN $7 THEN $9 ELSE last_error_kind END,
			updated_at = $10
		WHERE platform = $1
		RETURNING ` + connectionColumns

	var (
		writeError bool
		message    *string
		kind       = domain.ErrorKindNone
	)
	switch {
	case update.Error != nil:
		writeError = true
		msg := update.Error.Message
		message = &msg
		kind = update.Error.Kind
	case update.ClearError:
		writeError = true
	}

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query,
		platform,
		string(update.Status),
		update.Cursor,
		update.AddOrders,
		update.LastSyncAt,
		update.Connected,
		writeError,
		message,
		kind,
		time.Now().UTC(),
	))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "platform connection", ID: string(platform)}
	}
	if err != nil {
		r.logger.Error("Failed to update sync state", zap.String("platform", string(platform)), zap.Error(err))
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) Link(ctx context.Context, platform domain.Platform, credentialRef string) (*domain.PlatformConnection, error) {
	query := `
		INSERT INTO platform_connections (platform, credential_ref, connected, last_sync_status, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $4, $4)
		ON CONFLICT (platform) DO UPDATE SET
			credential_ref = EXCLUDED.credential_ref,
			connected = TRUE,
			last_error = NULL,
			last_error_kind = '',
			updated_at = EXCLUDED.updated_at
		RETURNING ` + connectionColumns

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, platform, credentialRef, domain.SyncStatusNever, time.Now().UTC()))
	if err != nil {
		r.logger.Error("Failed to link platform", zap.String("platform", string(platform)), zap.Error(err))
		return nil, err
	}
	return conn, nil
}
