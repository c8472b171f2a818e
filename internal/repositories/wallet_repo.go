package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/anayak07/walletsync/internal/models"
)

type PostgresWalletRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresWalletRepository(pool *pgxpool.Pool) *PostgresWalletRepository {
	return &PostgresWalletRepository{pool: pool}
}

func (r *PostgresWalletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	query := `INSERT INTO wallets (name)
	          VALUES ($1)
	          RETURNING id, last_seq, created_at`

	err := r.pool.QueryRow(ctx, query, wallet.Name).
		Scan(&wallet.ID, &wallet.LastSeq, &wallet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *PostgresWalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	query := `SELECT id, name, last_seq, created_at FROM wallets WHERE id = $1`

	var wallet models.Wallet
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&wallet.ID, &wallet.Name, &wallet.LastSeq, &wallet.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *PostgresWalletRepository) AddMember(ctx context.Context, walletID, userID uuid.UUID, role models.WalletRole) error {
	query := `INSERT INTO wallet_members (wallet_id, user_id, role)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (wallet_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := r.pool.Exec(ctx, query, walletID, userID, string(role)); err != nil {
		return fmt.Errorf("failed to add wallet member: %w", err)
	}
	return nil
}

func (r *PostgresWalletRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (wallet_id, name)
	          VALUES ($1, $2)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, account.WalletID, account.Name).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresWalletRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `INSERT INTO categories (wallet_id, name)
	          VALUES ($1, $2)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, category.WalletID, category.Name).
		Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *PostgresWalletRepository) WalletExists(ctx context.Context, walletID uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID)
}

func (r *PostgresWalletRepository) AccountExists(ctx context.Context, walletID, accountID uuid.UUID) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $2 AND wallet_id = $1)`,
		walletID, accountID)
}

func (r *PostgresWalletRepository) CategoryExists(ctx context.Context, walletID, categoryID uuid.UUID) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $2 AND wallet_id = $1)`,
		walletID, categoryID)
}

func (r *PostgresWalletRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresWalletRepository) MemberRole(ctx context.Context, walletID, userID uuid.UUID) (models.WalletRole, error) {
	query := `SELECT role FROM wallet_members WHERE wallet_id = $1 AND user_id = $2`

	var role string
	err := r.pool.QueryRow(ctx, query, walletID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	return models.WalletRole(role), nil
}
