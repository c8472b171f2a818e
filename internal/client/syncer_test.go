package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/services"
)

// fakeSyncAPI scripts the server side of a cycle. It records pushed
// batches and serves a canned pull result, and can be told to fail
// either phase.
type fakeSyncAPI struct {
	mu sync.Mutex

	pushed  [][]*models.Event
	pushErr error

	pullResult *services.PullResult
	pullErr    error
	pullCalls  int
	pullSince  []int64
}

func (f *fakeSyncAPI) Push(ctx context.Context, walletID uuid.UUID, deviceID string, events []*models.Event) (*services.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushed = append(f.pushed, events)
	return &services.PushResult{AppliedCount: len(events), LastSeq: int64(len(events))}, nil
}

func (f *fakeSyncAPI) Pull(ctx context.Context, walletID uuid.UUID, sinceSeq int64) (*services.PullResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullCalls++
	f.pullSince = append(f.pullSince, sinceSeq)
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResult != nil {
		return f.pullResult, nil
	}
	return &services.PullResult{WalletID: walletID, NextSeq: sinceSeq, Events: []*models.Event{}}, nil
}

func newTestSyncer(t *testing.T, api SyncAPI) (*Syncer, *Store, uuid.UUID) {
	t.Helper()
	store, _ := openTestStore(t)
	walletID := uuid.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSyncer(store, api, walletID, time.Minute, logger), store, walletID
}

// A clean cycle pushes the pending batch, acks every entry, and
// advances the cursor to the pull's nextSeq.
func TestSyncNow_DrainsQueue(t *testing.T) {
	api := &fakeSyncAPI{}
	syncer, store, walletID := newTestSyncer(t, api)
	ctx := context.Background()

	_, err := store.CreateTransaction(ctx, localTransaction(walletID))
	require.NoError(t, err)
	_, err = store.CreateTransaction(ctx, localTransaction(walletID))
	require.NoError(t, err)

	api.pullResult = &services.PullResult{WalletID: walletID, NextSeq: 2, Events: []*models.Event{}}

	require.NoError(t, syncer.SyncNow(ctx))

	require.Len(t, api.pushed, 1)
	assert.Len(t, api.pushed[0], 2)

	pending, err := store.PendingEntries(ctx, walletID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cursor, err := store.Cursor(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor)

	status := syncer.Status()
	assert.Equal(t, SyncOK, status.State)
	assert.NoError(t, status.Err)
}

// A failed push leaves every entry PENDING and never reaches the pull
// phase, so the next cycle retries the identical batch.
func TestSyncNow_PushFailureLeavesPending(t *testing.T) {
	api := &fakeSyncAPI{pushErr: &APIError{StatusCode: 422, Code: "INVALID_AMOUNT", Message: "amountCents must be positive"}}
	syncer, store, walletID := newTestSyncer(t, api)
	ctx := context.Background()

	_, err := store.CreateTransaction(ctx, localTransaction(walletID))
	require.NoError(t, err)

	err = syncer.SyncNow(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "push")
	assert.Equal(t, 0, api.pullCalls)

	pending, err := store.PendingEntries(ctx, walletID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	cursor, err := store.Cursor(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)

	assert.Equal(t, SyncError, syncer.Status().State)

	// The server accepts the retry; the queue drains.
	api.mu.Lock()
	api.pushErr = nil
	api.mu.Unlock()
	require.NoError(t, syncer.SyncNow(ctx))

	pending, err = store.PendingEntries(ctx, walletID)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, SyncOK, syncer.Status().State)
}

// A failed pull leaves the cursor where it was; the already-pushed
// entries stay acked.
func TestSyncNow_PullFailureKeepsCursor(t *testing.T) {
	api := &fakeSyncAPI{pullErr: &APIError{StatusCode: 500, Message: "internal error"}}
	syncer, store, walletID := newTestSyncer(t, api)
	ctx := context.Background()

	_, err := store.CreateTransaction(ctx, localTransaction(walletID))
	require.NoError(t, err)

	err = syncer.SyncNow(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pull")

	pending, err := store.PendingEntries(ctx, walletID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cursor, err := store.Cursor(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)
}

// An empty queue still pulls, so the device catches up on other
// devices' events without having anything of its own to push.
func TestSyncNow_PullOnlyCycle(t *testing.T) {
	api := &fakeSyncAPI{}
	syncer, store, walletID := newTestSyncer(t, api)
	ctx := context.Background()

	remote := localTransaction(walletID)
	payload := mustPayloadJSON(t, remote)
	api.pullResult = &services.PullResult{
		WalletID: walletID,
		NextSeq:  3,
		Events: []*models.Event{{
			EventID:    uuid.New(),
			WalletID:   walletID,
			UserID:     uuid.New(),
			DeviceID:   "other-device",
			EventType:  models.EventTransactionCreated,
			Payload:    payload,
			ServerSeq:  3,
			ReceivedAt: time.Now().UTC(),
		}},
	}

	require.NoError(t, syncer.SyncNow(ctx))
	assert.Empty(t, api.pushed)

	txns, err := store.Transactions(ctx, walletID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, remote.ID, txns[0].ID)

	cursor, err := store.Cursor(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cursor)
}

func TestSyncNow_PullUsesCursor(t *testing.T) {
	api := &fakeSyncAPI{}
	syncer, store, walletID := newTestSyncer(t, api)
	ctx := context.Background()

	require.NoError(t, store.ApplyRemote(ctx, walletID, nil, 7))

	require.NoError(t, syncer.SyncNow(ctx))
	require.Len(t, api.pullSince, 1)
	assert.Equal(t, int64(7), api.pullSince[0])
}

func TestSyncNow_Offline(t *testing.T) {
	api := &fakeSyncAPI{}
	syncer, store, walletID := newTestSyncer(t, api)
	ctx := context.Background()

	_, err := store.CreateTransaction(ctx, localTransaction(walletID))
	require.NoError(t, err)

	syncer.SetOnline(false)
	err = syncer.SyncNow(ctx)
	assert.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, api.pushed)
	assert.Equal(t, 0, api.pullCalls)

	// Local writes keep working while offline.
	_, err = store.CreateTransaction(ctx, localTransaction(walletID))
	require.NoError(t, err)

	syncer.SetOnline(true)
	require.NoError(t, syncer.SyncNow(ctx))
	require.Len(t, api.pushed, 1)
	assert.Len(t, api.pushed[0], 2)
}

// blockingSyncAPI parks Pull until released, to hold a cycle in flight.
type blockingSyncAPI struct {
	fakeSyncAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSyncAPI) Pull(ctx context.Context, walletID uuid.UUID, sinceSeq int64) (*services.PullResult, error) {
	close(b.entered)
	<-b.release
	return b.fakeSyncAPI.Pull(ctx, walletID, sinceSeq)
}

func TestSyncNow_InFlightGuard(t *testing.T) {
	api := &blockingSyncAPI{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	syncer, _, _ := newTestSyncer(t, api)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- syncer.SyncNow(ctx) }()

	<-api.entered
	assert.ErrorIs(t, syncer.SyncNow(ctx), ErrSyncInFlight)

	close(api.release)
	require.NoError(t, <-done)
}

func TestTriggerSync_Coalesces(t *testing.T) {
	api := &fakeSyncAPI{}
	syncer, _, _ := newTestSyncer(t, api)

	// Repeated triggers collapse into one buffered signal.
	syncer.TriggerSync()
	syncer.TriggerSync()
	syncer.TriggerSync()

	ctx, cancel := context.WithCancel(context.Background())
	go syncer.Run(ctx)

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.pullCalls >= 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	api.mu.Lock()
	calls := api.pullCalls
	api.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func mustPayloadJSON(t *testing.T, txn *models.Transaction) []byte {
	t.Helper()
	raw, err := json.Marshal(payloadFromTransaction(txn))
	require.NoError(t, err)
	return raw
}
