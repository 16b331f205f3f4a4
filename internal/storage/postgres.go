package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/t2tlabs/t2t-backend/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Tier == "" {
		account.Tier = models.TierNone
	}

	query := `
		INSERT INTO accounts (id, email, name, phone, tier, payment_customer_id, crm_contact_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.Phone,
		string(account.Tier), account.PaymentCustomerID, account.CRMContactID, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating account: %w", err)
	}
	return nil
}

const accountColumns = `id, email, name, phone, tier, payment_customer_id, crm_contact_id, created_at`

func (s *PostgresStorage) scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	var tier string
	err := row.Scan(
		&account.ID, &account.Email, &account.Name, &account.Phone,
		&tier, &account.PaymentCustomerID, &account.CRMContactID, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning account: %w", err)
	}
	account.Tier = models.Tier(tier)
	return account, nil
}

func (s *PostgresStorage) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStorage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, email))
}

func (s *PostgresStorage) GetAccountByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE payment_customer_id = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, customerID))
}

func (s *PostgresStorage) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
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

	query := `
		INSERT INTO threads (id, account_id, title, mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		thread.ID, thread.AccountID, thread.Title, string(thread.Mode),
		thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating thread: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetThread(ctx context.Context, accountID, threadID string) (*models.Thread, error) {
	query := `
		SELECT id, account_id, title, mode, created_at, updated_at
		FROM threads
		WHERE id = $1 AND account_id = $2`

	thread := &models.Thread{}
	var mode string
	err := s.db.QueryRowContext(ctx, query, threadID, accountID).Scan(
		&thread.ID, &thread.AccountID, &thread.Title, &mode,
		&thread.CreatedAt, &thread.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying thread: %w", err)
	}
	thread.Mode = models.Mode(mode)
	return thread, nil
}

func (s *PostgresStorage) ListThreads(ctx context.Context, accountID string) ([]*models.Thread, error) {
	query := `
		SELECT id, account_id, title, mode, created_at, updated_at
		FROM threads
		WHERE account_id = $1
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("error querying threads: %w", err)
	}
	defer rows.Close()

	threads := make([]*models.Thread, 0)
	for rows.Next() {
		thread := &models.Thread{}
		var mode string
		err := rows.Scan(
			&thread.ID, &thread.AccountID, &thread.Title, &mode,
			&thread.CreatedAt, &thread.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning thread: %w", err)
		}
		thread.Mode = models.Mode(mode)
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func (s *PostgresStorage) RenameThread(ctx context.Context, accountID, threadID, title string) error {
	query := `
		UPDATE threads
		SET title = $1, updated_at = $2
		WHERE id = $3 AND account_id = $4`

	result, err := s.db.ExecContext(ctx, query, title, time.Now().UTC(), threadID, accountID)
	if err != nil {
		return fmt.Errorf("error renaming thread: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) DeleteThread(ctx context.Context, accountID, threadID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM threads WHERE id = $1 AND account_id = $2`, threadID, accountID)
	if err != nil {
		return fmt.Errorf("error deleting thread: %w", err)
	}
	return requireRow(result)
}

// AppendMessage inserts the message and bumps the thread's updated_at inside
// one transaction so a crash cannot separate the two.
func (s *PostgresStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ThreadID, string(msg.Role), msg.Content, string(msg.Mode), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = $1 WHERE id = $2`, msg.CreatedAt, msg.ThreadID)
	if err != nil {
		return fmt.Errorf("error updating thread activity: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentMessages(ctx context.Context, threadID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, thread_id, role, content, mode, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at DESC, seq DESC`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*models.Message, 0)
	for rows.Next() {
		msg := &models.Message{}
		var role, mode string
		err := rows.Scan(&msg.ID, &msg.ThreadID, &role, &msg.Content, &mode, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.Mode = models.Mode(mode)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *PostgresStorage) CountUserMessages(ctx context.Context, threadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE thread_id = $1 AND role = 'user'`, threadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting user messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) GetTier(ctx context.Context, accountID string) (models.Tier, error) {
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT tier FROM accounts WHERE id = $1`, accountID).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error querying tier: %w", err)
	}
	return models.Tier(tier), nil
}

func (s *PostgresStorage) SetTier(ctx context.Context, accountID string, tier models.Tier) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET tier = $1 WHERE id = $2`, string(tier), accountID)
	if err != nil {
		return fmt.Errorf("error updating tier: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) LinkPaymentCustomer(ctx context.Context, accountID, customerID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET payment_customer_id = $1 WHERE id = $2`, customerID, accountID)
	if err != nil {
		return fmt.Errorf("error linking payment customer: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
