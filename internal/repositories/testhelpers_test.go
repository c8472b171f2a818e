package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/anayak07/walletsync/internal/models"
)

// getTestPool connects to the database named by TEST_DATABASE_URL.
// Integration tests are skipped when the variable is unset.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(context.Background()))
	t.Cleanup(pool.Close)
	return pool
}

// setupTestWallet creates a wallet with one account and one category
// and returns their ids.
func setupTestWallet(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (walletID, accountID, categoryID uuid.UUID) {
	t.Helper()
	walletRepo := NewPostgresWalletRepository(pool)

	wallet := &models.Wallet{Name: "test-wallet"}
	require.NoError(t, walletRepo.Create(ctx, wallet))

	account := &models.Account{WalletID: wallet.ID, Name: "checking"}
	require.NoError(t, walletRepo.CreateAccount(ctx, account))

	category := &models.Category{WalletID: wallet.ID, Name: "food"}
	require.NoError(t, walletRepo.CreateCategory(ctx, category))

	t.Cleanup(func() {
		cleanupTestWallet(t, pool, wallet.ID)
	})
	return wallet.ID, account.ID, category.ID
}

func cleanupTestWallet(t *testing.T, pool *pgxpool.Pool, walletID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for _, query := range []string{
		`DELETE FROM sync_events WHERE wallet_id = $1`,
		`DELETE FROM transactions WHERE wallet_id = $1`,
		`DELETE FROM accounts WHERE wallet_id = $1`,
		`DELETE FROM categories WHERE wallet_id = $1`,
		`DELETE FROM wallet_members WHERE wallet_id = $1`,
		`DELETE FROM wallets WHERE id = $1`,
	} {
		if _, err := pool.Exec(ctx, query, walletID); err != nil {
			t.Logf("cleanup failed: %v", err)
		}
	}
}
