package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/repositories"
)

// ErrDeviceMismatch rejects a push whose events disagree with the
// batch-level device id. Wallet disagreements reuse ErrWalletMismatch.
var ErrDeviceMismatch = errors.New("event device does not match batch device")

// SyncService orchestrates push and pull. A push admits a batch of
// client events into the wallet's ledger as one atomic transaction:
// every event either already exists (skipped, idempotent), or gets the
// wallet's next sequence number, a ledger row, and its fold into the
// materialized state. Any validation failure aborts the whole batch.
type SyncService struct {
	ledger repositories.LedgerStore
	dir    repositories.WalletDirectory
	logger *slog.Logger
	now    func() time.Time
}

func NewSyncService(ledger repositories.LedgerStore, dir repositories.WalletDirectory, logger *slog.Logger) *SyncService {
	return &SyncService{
		ledger: ledger,
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

type PushRequest struct {
	WalletID uuid.UUID
	DeviceID string
	UserID   uuid.UUID
	Events   []*models.Event
}

type PushResult struct {
	AppliedCount int   `json:"appliedCount"`
	LastSeq      int64 `json:"lastSeq"`
}

type PullResult struct {
	WalletID uuid.UUID       `json:"walletId"`
	NextSeq  int64           `json:"nextSeq"`
	Events   []*models.Event `json:"events"`
}

func (s *SyncService) Push(ctx context.Context, req PushRequest) (*PushResult, error) {
	// Batch-level mismatches fail fast, before anything is admitted.
	for _, event := range req.Events {
		if event.WalletID != req.WalletID {
			return nil, fmt.Errorf("%w: event %s", ErrWalletMismatch, event.EventID)
		}
		if event.DeviceID != req.DeviceID {
			return nil, fmt.Errorf("%w: event %s", ErrDeviceMismatch, event.EventID)
		}
	}

	result := &PushResult{}
	err := s.ledger.WithWalletTx(ctx, req.WalletID, func(tx repositories.LedgerTx) error {
		for _, event := range req.Events {
			seen, err := tx.HasEvent(ctx, event.EventID)
			if err != nil {
				return err
			}
			if seen {
				// Replay of an admitted event: no re-apply, no new
				// sequence number, not counted.
				continue
			}

			receivedAt := s.now().UTC()
			txn, err := parseEvent(ctx, s.dir, req.WalletID, event.EventType, event.Payload, receivedAt)
			if err != nil {
				return err
			}

			seq, err := tx.NextSeq(ctx)
			if err != nil {
				return err
			}

			admitted := *event
			admitted.UserID = req.UserID
			admitted.ServerSeq = seq
			admitted.ReceivedAt = receivedAt
			if err := tx.AppendEvent(ctx, &admitted); err != nil {
				return err
			}

			if event.EventType == models.EventTransactionDeleted {
				err = tx.SoftDeleteTransaction(ctx, req.WalletID, txn.ID, *txn.DeletedAt)
			} else {
				err = tx.UpsertTransaction(ctx, txn)
			}
			if err != nil {
				return err
			}
			result.AppliedCount++
		}

		lastSeq, err := tx.CurrentSeq(ctx)
		if err != nil {
			return err
		}
		result.LastSeq = lastSeq
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("push admitted",
		"wallet_id", req.WalletID,
		"device_id", req.DeviceID,
		"batch_size", len(req.Events),
		"applied", result.AppliedCount,
		"last_seq", result.LastSeq,
	)
	return result, nil
}

// Pull returns the wallet's events after sinceSeq in ascending
// server_seq order: the authoritative replay order for every device.
// NextSeq is the wallet's counter at read time and is a lower bound
// for the caller's next sinceSeq, not an exact count.
func (s *SyncService) Pull(ctx context.Context, walletID uuid.UUID, sinceSeq int64) (*PullResult, error) {
	events, nextSeq, err := s.ledger.EventsSince(ctx, walletID, sinceSeq)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.Event{}
	}
	return &PullResult{
		WalletID: walletID,
		NextSeq:  nextSeq,
		Events:   events,
	}, nil
}
