package storage

import (
	"context"
	"errors"

	"github.com/t2tlabs/t2t-backend/internal/models"
)

// ErrNotFound is returned for absent rows and for rows owned by a different
// account. Callers cannot tell the two apart.
var ErrNotFound = errors.New("not found")

type Storage interface {
	AccountStorage
	ThreadStorage
	EntitlementStorage
	Close() error
}

type AccountStorage interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByCustomerID(ctx context.Context, customerID string) (*models.Account, error)
	// DeleteAccount cascades to the account's threads and their messages.
	DeleteAccount(ctx context.Context, id string) error
}

type ThreadStorage interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, accountID, threadID string) (*models.Thread, error)
	// ListThreads returns the account's threads ordered by last activity,
	// most recent first.
	ListThreads(ctx context.Context, accountID string) ([]*models.Thread, error)
	RenameThread(ctx context.Context, accountID, threadID, title string) error
	DeleteThread(ctx context.Context, accountID, threadID string) error
	// AppendMessage stores the message and advances the owning thread's
	// updated_at in a single atomic write.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// RecentMessages returns the most recent limit messages of a thread,
	// oldest first. limit <= 0 returns the full history.
	RecentMessages(ctx context.Context, threadID string, limit int) ([]*models.Message, error)
	CountUserMessages(ctx context.Context, threadID string) (int, error)
}

type EntitlementStorage interface {
	GetTier(ctx context.Context, accountID string) (models.Tier, error)
	SetTier(ctx context.Context, accountID string, tier models.Tier) error
	LinkPaymentCustomer(ctx context.Context, accountID, customerID string) error
}
