package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/t2tlabs/t2t-backend/internal/models"
)

// MemoryStorage is a mutex-guarded map implementation used for local
// development and tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	threads  map[string]*models.Thread
	messages map[string][]*models.Message
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[string]*models.Account),
		threads:  make(map[string]*models.Thread),
		messages: make(map[string][]*models.Message),
	}
}

func (s *MemoryStorage) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Tier == "" {
		account.Tier = models.TierNone
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *MemoryStorage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) {
			cp := *account
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetAccountByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if customerID == "" {
		return nil, ErrNotFound
	}
	for _, account := range s.accounts {
		if account.PaymentCustomerID == customerID {
			cp := *account
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; !exists {
		return ErrNotFound
	}
	delete(s.accounts, id)
	for threadID, thread := range s.threads {
		if thread.AccountID == id {
			delete(s.threads, threadID)
			delete(s.messages, threadID)
		}
	}
	return nil
}

func (s *MemoryStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread.ID == "" {
		thread.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = now
	}
	if thread.UpdatedAt.IsZero() {
		thread.UpdatedAt = thread.CreatedAt
	}
	cp := *thread
	s.threads[thread.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetThread(ctx context.Context, accountID, threadID string) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, exists := s.threads[threadID]
	if !exists || thread.AccountID != accountID {
		return nil, ErrNotFound
	}
	cp := *thread
	return &cp, nil
}

func (s *MemoryStorage) ListThreads(ctx context.Context, accountID string) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]*models.Thread, 0)
	for _, thread := range s.threads {
		if thread.AccountID == accountID {
			cp := *thread
			threads = append(threads, &cp)
		}
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

func (s *MemoryStorage) RenameThread(ctx context.Context, accountID, threadID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists || thread.AccountID != accountID {
		return ErrNotFound
	}
	thread.Title = title
	thread.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStorage) DeleteThread(ctx context.Context, accountID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists || thread.AccountID != accountID {
		return ErrNotFound
	}
	delete(s.threads, threadID)
	delete(s.messages, threadID)
	return nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[msg.ThreadID]
	if !exists {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	s.messages[msg.ThreadID] = append(s.messages[msg.ThreadID], &cp)
	thread.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *MemoryStorage) RecentMessages(ctx context.Context, threadID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[threadID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStorage) CountUserMessages(ctx context.Context, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages[threadID] {
		if m.Role == models.RoleUser {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) GetTier(ctx context.Context, accountID string) (models.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return "", ErrNotFound
	}
	return account.Tier, nil
}

func (s *MemoryStorage) SetTier(ctx context.Context, accountID string, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return ErrNotFound
	}
	account.Tier = tier
	return nil
}

func (s *MemoryStorage) LinkPaymentCustomer(ctx context.Context, accountID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return ErrNotFound
	}
	account.PaymentCustomerID = customerID
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
