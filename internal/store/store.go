package store

import (
	"context"
	"errors"
	"time"

	"gestorpro/backend/internal/domain"
)

var (
	// ErrValidation rejects an operation before any mutation is applied.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	// ErrMissingClient rejects a consignment sale with no client name. The
	// check happens before any stock, movement or debt mutation.
	ErrMissingClient = errors.New("client name required")
)

// Repository is the entity store: four collections plus one configuration
// record. Every method is a single atomic transaction; read-modify-write
// sequences never observe another operation's intermediate state.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, opening *domain.StockMovement) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListMovements(ctx context.Context, productID string) ([]domain.StockMovement, error)
	// AppendMovements applies every movement's quantity delta and, when debt
	// is non-nil, records the debt and registers its debtor as a client, all
	// in one transaction. Returned products reflect the post-apply quantities
	// in movement order.
	AppendMovements(ctx context.Context, movements []domain.StockMovement, debt *domain.Debt) ([]domain.Product, error)
	// ReverseMovement deletes the movement row and applies the inverse of its
	// delta to the product. This is the ledger's only correction mechanism.
	ReverseMovement(ctx context.Context, movementID string) (*domain.Product, *domain.StockMovement, error)

	ListDebts(ctx context.Context) ([]domain.Debt, error)
	GetDebt(ctx context.Context, id string) (*domain.Debt, error)
	CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error)
	UpdateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error)
	DeleteDebt(ctx context.Context, id string) error
	// SettleClientPayment walks the client's unpaid debts oldest-due-first
	// (insertion order on equal due dates) until the payment is exhausted.
	// Leftover payment is discarded. Returns the client's debts after the
	// batch plus the cents actually applied; the batch is applied atomically
	// or not at all.
	SettleClientPayment(ctx context.Context, clientName string, amountCents int64) ([]domain.Debt, int64, error)
	SettleClientAll(ctx context.Context, clientName string) (int, error)

	ListClients(ctx context.Context) ([]string, error)
	// DeleteClient removes the client and cascade-deletes its debts.
	DeleteClient(ctx context.Context, name string) error

	GetConfig(ctx context.Context) (domain.SystemConfig, error)
	PatchConfig(ctx context.Context, patch domain.ConfigPatch) (domain.SystemConfig, error)
	// MarkSynced stamps last-sync and caches the remote object id after a
	// successful push.
	MarkSynced(ctx context.Context, objectID string, at time.Time) error

	// Snapshot captures every collection plus configuration under one read
	// transaction.
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	// Restore replaces every collection wholesale. The local remote client id
	// survives; everything else is replace-wholesale.
	Restore(ctx context.Context, snap domain.Snapshot) error
}
