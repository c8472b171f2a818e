package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
)

// ErrSyncInFlight means a cycle for this wallet is already running;
// the caller's trigger is dropped, not queued.
var ErrSyncInFlight = errors.New("sync cycle already in flight")

// ErrOffline means the device is marked offline and the cycle was
// skipped entirely.
var ErrOffline = errors.New("device is offline")

type SyncState string

const (
	SyncIdle  SyncState = "idle"
	SyncOK    SyncState = "ok"
	SyncError SyncState = "error"
)

// SyncStatus is the last cycle's outcome, for UI display. A failed
// cycle never blocks local reads or writes.
type SyncStatus struct {
	State   SyncState
	LastRun time.Time
	Err     error
}

// Syncer runs the reconciliation loop for one wallet: push every
// pending queue entry, then pull from the local cursor and fold the
// result into the mirror. At most one cycle runs at a time; push
// failures leave entries PENDING so the next cycle retries the same
// batch, which is safe because the server deduplicates by event id.
type Syncer struct {
	store    *Store
	api      SyncAPI
	walletID uuid.UUID
	interval time.Duration
	logger   *slog.Logger

	online  atomic.Bool
	mu      sync.Mutex // in-flight guard
	trigger chan struct{}

	statusMu sync.Mutex
	status   SyncStatus
}

func NewSyncer(store *Store, api SyncAPI, walletID uuid.UUID, interval time.Duration, logger *slog.Logger) *Syncer {
	s := &Syncer{
		store:    store,
		api:      api,
		walletID: walletID,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		status:   SyncStatus{State: SyncIdle},
	}
	s.online.Store(true)
	return s
}

// SetOnline flips the device's connectivity state. Going online
// triggers an immediate cycle to drain the queue.
func (s *Syncer) SetOnline(online bool) {
	was := s.online.Swap(online)
	if online && !was {
		s.TriggerSync()
	}
}

// TriggerSync requests an on-demand cycle. Non-blocking; coalesces
// with an already-queued trigger.
func (s *Syncer) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Status returns the last cycle's outcome.
func (s *Syncer) Status() SyncStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// Run drives periodic and on-demand cycles until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
		}

		if err := s.SyncNow(ctx); err != nil {
			if errors.Is(err, ErrOffline) || errors.Is(err, ErrSyncInFlight) {
				continue
			}
			s.logger.Warn("sync cycle failed", "wallet_id", s.walletID, "error", err)
		}
	}
}

// SyncNow runs one reconciliation cycle: push pending, ack, pull,
// apply, advance cursor. Safe to call from any goroutine; a cycle
// already in flight makes it return ErrSyncInFlight.
func (s *Syncer) SyncNow(ctx context.Context) error {
	if !s.online.Load() {
		return ErrOffline
	}
	if !s.mu.TryLock() {
		return ErrSyncInFlight
	}
	defer s.mu.Unlock()

	err := s.runCycle(ctx)

	s.statusMu.Lock()
	if err != nil {
		s.status = SyncStatus{State: SyncError, LastRun: time.Now(), Err: err}
	} else {
		s.status = SyncStatus{State: SyncOK, LastRun: time.Now()}
	}
	s.statusMu.Unlock()
	return err
}

func (s *Syncer) runCycle(ctx context.Context) error {
	// Push phase: submit the full pending batch in creation order.
	pending, err := s.store.PendingEntries(ctx, s.walletID)
	if err != nil {
		return fmt.Errorf("read pending entries: %w", err)
	}
	if len(pending) > 0 {
		events := make([]*models.Event, len(pending))
		ids := make([]uuid.UUID, len(pending))
		for i, entry := range pending {
			events[i] = entry.Event()
			ids[i] = entry.EventID
		}

		if _, err := s.api.Push(ctx, s.walletID, pending[0].DeviceID, events); err != nil {
			// Entries stay PENDING; the identical batch is retried next
			// cycle and the server skips whatever it already admitted.
			return fmt.Errorf("push: %w", err)
		}

		// Newly applied and recognized duplicates are both acks.
		if err := s.store.MarkAcked(ctx, ids); err != nil {
			return fmt.Errorf("ack entries: %w", err)
		}
		s.logger.Debug("pushed pending events", "wallet_id", s.walletID, "count", len(pending))
	}

	// Pull phase: catch up from the durable cursor.
	cursor, err := s.store.Cursor(ctx, s.walletID)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	result, err := s.api.Pull(ctx, s.walletID, cursor)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	// Mirror updates and the cursor advance in one local transaction:
	// a crash here re-pulls from the old cursor instead of skipping.
	if err := s.store.ApplyRemote(ctx, s.walletID, result.Events, result.NextSeq); err != nil {
		return fmt.Errorf("apply remote events: %w", err)
	}

	if len(result.Events) > 0 {
		s.logger.Debug("applied remote events", "wallet_id", s.walletID, "count", len(result.Events), "cursor", result.NextSeq)
	}
	return nil
}
