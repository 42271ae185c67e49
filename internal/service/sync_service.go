package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/adapter"
	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/events"
	"github.com/orderhub/orderhub/internal/lock"
	"github.com/orderhub/orderhub/internal/repository"
	"github.com/orderhub/orderhub/internal/telemetry"
	"github.com/orderhub/orderhub/pkg/errors"
)

var (
	ErrSyncAlreadyInProgress = errors.New("sync already in progress")
	ErrReconnectRequired     = errors.New("platform credential rejected, reconnect required")
	ErrUnknownPlatform       = errors.New("unknown platform")
	ErrShuttingDown          = errors.New("sync service is shutting down")
)

// SyncOptions bounds a single reconciliation pass
type SyncOptions struct {
	MaxPagesPerPass     int
	CallTimeout         time.Duration
	MaxTransientRetries int
	MaxRateLimitRetries int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	LockTTL             time.Duration
}

func SyncOptionsFromConfig(cfg config.SyncConfig) SyncOptions {
	return SyncOptions{
		MaxPagesPerPass:     cfg.MaxPagesPerPass,
		CallTimeout:         cfg.CallTimeout,
		MaxTransientRetries: cfg.MaxTransientRetries,
		MaxRateLimitRetries: cfg.MaxRateLimitRetries,
		RetryBaseDelay:      cfg.RetryBaseDelay,
		RetryMaxDelay:       cfg.RetryMaxDelay,
		LockTTL:             cfg.LockTTL,
	}
}

type syncService struct {
	repos     *repository.Repositories
	registry  *adapter.Registry
	creds     adapter.CredentialProvider
	locker    lock.Locker
	publisher events.Publisher
	metrics   *telemetry.SyncMetrics
	opts      SyncOptions
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSyncService creates the sync coordinator. Passes started by the
// Trigger methods run on an internal context that Shutdown cancels.
func NewSyncService(
	repos *repository.Repositories,
	registry *adapter.Registry,
	creds adapter.CredentialProvider,
	locker lock.Locker,
	publisher events.Publisher,
	metrics *telemetry.SyncMetrics,
	opts SyncOptions,
	logger *zap.Logger,
) *syncService {
	if metrics == nil {
		metrics = telemetry.NopSyncMetrics()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &syncService{
		repos:     repos,
		registry:  registry,
		creds:     creds,
		locker:    locker,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		logger:    logger.Named("sync"),
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepCtx,
		baseCtx:   baseCtx,
		cancel:    cancel,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func lockKey(platform domain.Platform) string {
	return "sync:" + string(platform)
}

// Platforms returns the platforms with a registered adapter
func (s *syncService) Platforms() []domain.Platform {
	return s.registry.Platforms()
}

// SyncPlatform runs one pass for platform and blocks until it ends
func (s *syncService) SyncPlatform(ctx context.Context, platform domain.Platform) (*SyncReport, error) {
	if _, err := s.adapterFor(platform); err != nil {
		return nil, err
	}
	unlock, err := s.acquire(ctx, platform)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.runPass(ctx, platform)
}

// TriggerPlatform starts a pass in the background and returns once the
// platform lock is held
func (s *syncService) TriggerPlatform(ctx context.Context, platform domain.Platform) error {
	if s.baseCtx.Err() != nil {
		return ErrShuttingDown
	}
	if _, err := s.adapterFor(platform); err != nil {
		return err
	}
	conn, err := s.repos.Connections.Get(ctx, platform)
	if err != nil {
		return err
	}
	if conn.RequiresReconnect() {
		return ErrReconnectRequired
	}

	unlock, err := s.acquire(ctx, platform)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unlock()
		if _, err := s.runPass(s.baseCtx, platform); err != nil {
			s.logger.Warn("Background sync failed", zap.String("platform", string(platform)), zap.Error(err))
		}
	}()
	return nil
}

// TriggerAll starts a pass for every linked platform that is not already syncing
func (s *syncService) TriggerAll(ctx context.Context) (*TriggerResult, error) {
	if s.baseCtx.Err() != nil {
		return nil, ErrShuttingDown
	}
	result := &TriggerResult{
		Accepted:       []domain.Platform{},
		AlreadyRunning: []domain.Platform{},
	}
	for _, platform := range s.registry.Platforms() {
		err := s.TriggerPlatform(ctx, platform)
		switch {
		case err == nil:
			result.Accepted = append(result.Accepted, platform)
		case errors.Is(err, ErrSyncAlreadyInProgress):
			result.AlreadyRunning = append(result.AlreadyRunning, platform)
		case errors.Is(err, ErrShuttingDown):
			return result, err
		default:
			s.logger.Info("Skipping platform", zap.String("platform", string(platform)), zap.Error(err))
		}
	}
	return result, nil
}

// Shutdown cancels background passes and waits for them to checkpoint
func (s *syncService) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sync passes: %w", ctx.Err())
	}
}

// Reconnect marks the connection usable again after its credential was fixed
func (s *syncService) Reconnect(ctx context.Context, platform domain.Platform) (*domain.PlatformConnection, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	connected := true
	conn, err := s.repos.Connections.UpdateSyncState(ctx, platform, domain.SyncStateUpdate{
		Connected:  &connected,
		ClearError: true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Platform reconnected", zap.String("platform", string(platform)))
	return conn, nil
}

// LinkPlatform creates the connection or points an existing one at a new
// credential. The sync cursor is kept.
func (s *syncService) LinkPlatform(ctx context.Context, platform domain.Platform, credentialRef string) (*domain.PlatformConnection, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return s.repos.Connections.Link(ctx, platform, credentialRef)
}

// EnsureConnection links platform only if it has no connection yet
func (s *syncService) EnsureConnection(ctx context.Context, platform domain.Platform, credentialRef string) (*domain.PlatformConnection, error) {
	conn, err := s.repos.Connections.Get(ctx, platform)
	if err == nil {
		return conn, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return s.LinkPlatform(ctx, platform, credentialRef)
}

func (s *syncService) adapterFor(platform domain.Platform) (adapter.Adapter, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	a, err := s.registry.Get(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPlatform, err)
	}
	return a, nil
}

func (s *syncService) acquire(ctx context.Context, platform domain.Platform) (func(), error) {
	unlock, ok, err := s.locker.TryLock(ctx, lockKey(platform), s.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncAlreadyInProgress
	}
	return unlock, nil
}

// runPass must be called with the platform lock held
func (s *syncService) runPass(ctx context.Context, platform domain.Platform) (*SyncReport, error) {
	a, err := s.adapterFor(platform)
	if err != nil {
		return nil, err
	}

	// Bookkeeping writes must land even when ctx is cancelled mid-pass.
	persistCtx := context.WithoutCancel(ctx)

	conn, err := s.repos.Connections.Get(persistCtx, platform)
	if err != nil {
		return nil, err
	}
	if conn.RequiresReconnect() {
		return nil, ErrReconnectRequired
	}

	logger := s.logger.With(zap.String("platform", string(platform)))
	report := &SyncReport{
		Platform:  platform,
		Status:    domain.SyncStatusRunning,
		StartedAt: s.now(),
	}

	if _, err := s.repos.Connections.UpdateSyncState(persistCtx, platform, domain.SyncStateUpdate{Status: domain.SyncStatusRunning}); err != nil {
		return nil, err
	}

	cursor := conn.LastSyncCursor
	cred, err := s.creds.Resolve(ctx, conn.CredentialRef)
	if err != nil {
		return s.finish(persistCtx, platform, cursor, report, err)
	}

	logger.Info("Sync pass started", zap.Bool("resuming", cursor != ""))
	for report.Pages < s.opts.MaxPagesPerPass {
		if ctx.Err() != nil {
			report.Status = domain.SyncStatusInterrupted
			break
		}

		start := time.Now()
		page, err := s.fetchPage(ctx, a, cred, cursor)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				report.Status = domain.SyncStatusInterrupted
				break
			}
			return s.finish(persistCtx, platform, cursor, report, err)
		}

		if err := s.applyPage(persistCtx, platform, page, report); err != nil {
			return s.finish(persistCtx, platform, cursor, report, err)
		}
		s.metrics.ObservePage(persistCtx, platform, time.Since(start))

		cursor = page.NextCursor
		report.Pages++
		checkpoint := cursor
		_, err = s.repos.Connections.UpdateSyncState(persistCtx, platform, domain.SyncStateUpdate{
			Status:    domain.SyncStatusRunning,
			Cursor:    &checkpoint,
			AddOrders: int64(len(page.Orders)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to checkpoint cursor: %w", err)
		}
		logger.Debug("Page applied", zap.Int("page", report.Pages), zap.Int("orders", len(page.Orders)), zap.Bool("has_more", page.HasMore))

		if !page.HasMore {
			break
		}
	}
	return s.finish(persistCtx, platform, cursor, report, nil)
}

// disconnects reports whether a failure of kind marks the platform disconnected
func disconnects(kind domain.ErrorKind) bool {
	switch kind {
	case domain.ErrorKindAuth, domain.ErrorKindTransient, domain.ErrorKindRateLimited:
		return true
	}
	return false
}

// fetchPage calls the adapter under the per-call timeout and the retry budget
func (s *syncService) fetchPage(ctx context.Context, a adapter.Adapter, cred adapter.Credential, cursor string) (*adapter.Page, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.RetryBaseDelay
	bo.MaxInterval = s.opts.RetryMaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	transient, limited := 0, 0
	for {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		page, err := a.FetchOrdersSince(callCtx, cred, cursor)
		cancel()
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, adapter.ErrTransient) {
			err = &adapter.TransientError{Err: err}
		}

		wait := bo.NextBackOff()
		kind := adapter.Classify(err)
		if kind == domain.ErrorKindRateLimited {
			if limited < s.opts.MaxRateLimitRetries {
				limited++
				if hint, _ := adapter.RetryAfter(err); hint > wait {
					wait = hint
				}
				if err := s.retryAfter(ctx, a.Platform(), kind, wait, err); err != nil {
					return nil, err
				}
				continue
			}
			kind = domain.ErrorKindTransient
		}
		if kind == domain.ErrorKindTransient && transient < s.opts.MaxTransientRetries {
			transient++
			if err := s.retryAfter(ctx, a.Platform(), kind, wait, err); err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
}

func (s *syncService) retryAfter(ctx context.Context, platform domain.Platform, kind domain.ErrorKind, wait time.Duration, cause error) error {
	s.metrics.RecordRetry(ctx, platform, kind)
	s.logger.Warn("Retrying page fetch",
		zap.String("platform", string(platform)),
		zap.String("kind", string(kind)),
		zap.Duration("wait", wait),
		zap.Error(cause),
	)
	return s.sleep(ctx, wait)
}

// applyPage upserts every order in received order. A store failure stops
// the page before its cursor is checkpointed.
func (s *syncService) applyPage(ctx context.Context, platform domain.Platform, page *adapter.Page, report *SyncReport) error {
	report.Skipped += len(page.Skipped)
	s.metrics.RecordSkipped(ctx, platform, len(page.Skipped))

	var pending []events.Event
	for _, order := range page.Orders {
		result, err := s.repos.Orders.Upsert(ctx, order)
		if err != nil {
			return fmt.Errorf("failed to upsert order %s: %w", order.Key(), err)
		}
		s.metrics.RecordUpsert(ctx, platform, result.Outcome)
		s.adjustStock(ctx, result)

		switch result.Outcome {
		case domain.UpsertInserted:
			report.Inserted++
		case domain.UpsertUpdated:
			report.Updated++
		case domain.UpsertRejectedRegression:
			report.Rejected++
			s.logger.Warn("Rejected status regression",
				zap.String("platform", string(platform)),
				zap.String("external_order_id", order.ExternalOrderID),
				zap.String("stored_status", string(result.PreviousStatus)),
				zap.String("incoming_status", string(order.Status)),
			)
			if result.Anomaly != nil {
				if err := s.repos.Anomalies.Record(ctx, result.Anomaly); err != nil {
					s.logger.Error("Failed to record anomaly", zap.String("external_order_id", order.ExternalOrderID), zap.Error(err))
				}
			}
		}
		pending = append(pending, events.FromUpsert(result, s.now())...)
	}

	if len(pending) > 0 {
		if err := s.publisher.Publish(ctx, pending...); err != nil {
			s.logger.Error("Failed to publish order events", zap.Int("count", len(pending)), zap.Error(err))
		}
	}
	return nil
}

// adjustStock reserves stock for a newly seen order and releases it once the
// order is cancelled or refunded. Inventory failures are logged and never
// fail the pass.
func (s *syncService) adjustStock(ctx context.Context, result *domain.UpsertResult) {
	order := result.Order
	var (
		reservations []domain.Reservation
		err          error
	)
	switch {
	case result.Outcome == domain.UpsertInserted && order.Status.HoldsStock():
		reservations, err = s.repos.Inventory.ReserveOrder(ctx, order)
	case result.StatusChanged() && !order.Status.HoldsStock():
		reservations, err = s.repos.Inventory.ReleaseOrder(ctx, order, "Order "+string(order.Status))
	default:
		return
	}

	logger := s.logger.With(
		zap.String("platform", string(order.Platform)),
		zap.String("external_order_id", order.ExternalOrderID),
	)
	if err != nil {
		logger.Error("Failed to update stock for order", zap.Error(err))
		return
	}
	for _, r := range reservations {
		s.metrics.RecordStock(ctx, order.Platform, r.Outcome)
		switch r.Outcome {
		case domain.ReservationInsufficient:
			logger.Warn("Insufficient stock to reserve", zap.String("sku", r.SKU), zap.Int("quantity", r.Quantity))
		case domain.ReservationUnknownSKU:
			logger.Debug("SKU not stock-tracked", zap.String("sku", r.SKU))
		}
	}
}

// finish records the pass outcome on the connection. Only sync-owned
// fields are written, so a credential relinked during the pass is kept.
func (s *syncService) finish(ctx context.Context, platform domain.Platform, cursor string, report *SyncReport, passErr error) (*SyncReport, error) {
	report.FinishedAt = s.now()
	report.Cursor = cursor
	logger := s.logger.With(zap.String("platform", string(platform)))

	update := domain.SyncStateUpdate{}
	switch {
	case passErr != nil:
		kind := adapter.Classify(passErr)
		report.Status = domain.SyncStatusFailed
		report.Error = passErr.Error()
		update.Error = &domain.SyncError{Message: report.Error, Kind: kind}
		if disconnects(kind) {
			connected := false
			update.Connected = &connected
		}
		logger.Error("Sync pass failed", zap.String("kind", string(kind)), zap.Error(passErr))
	case report.Status == domain.SyncStatusInterrupted:
		logger.Info("Sync pass interrupted", zap.Int("pages", report.Pages))
	default:
		report.Status = domain.SyncStatusSucceeded
		if report.Skipped > 0 {
			report.Status = domain.SyncStatusPartial
		}
		finished := report.FinishedAt
		connected := true
		update.LastSyncAt = &finished
		update.Connected = &connected
		update.ClearError = true
		logger.Info("Sync pass completed",
			zap.String("status", string(report.Status)),
			zap.Int("pages", report.Pages),
			zap.Int("inserted", report.Inserted),
			zap.Int("updated", report.Updated),
			zap.Int("rejected", report.Rejected),
			zap.Int("skipped", report.Skipped),
		)
	}
	update.Status = report.Status
	s.metrics.RecordPass(ctx, platform, report.Status)

	if _, err := s.repos.Connections.UpdateSyncState(ctx, platform, update); err != nil {
		return report, fmt.Errorf("failed to save connection: %w", err)
	}
	if passErr != nil {
		return report, passErr
	}
	return report, nil
}
