package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/paybridge/paybridge/provider"
)

const maxBusyRetries = 4

// SQLiteStore persists transactions in SQLite. The connection string
// enables WAL and immediate transactions so UpdateLocked takes a write
// lock for the whole read-then-update, which is what makes concurrent
// webhook and verification updates safe across processes sharing the
// file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the transaction database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			reference  TEXT NOT NULL UNIQUE,
			provider   TEXT NOT NULL,
			status     TEXT NOT NULL,
			amount     REAL NOT NULL,
			currency   TEXT NOT NULL,
			email      TEXT,
			channel    TEXT,
			metadata   TEXT,
			customer   TEXT,
			paid_at    TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_provider ON transactions(provider);
		CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	`)
	return err
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryBusy re-runs an operation when SQLite reports the database locked
func retryBusy(operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxBusyRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") && !strings.Contains(err.Error(), "SQLITE_BUSY") {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(10*(1<<attempt)) * time.Millisecond)
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxBusyRetries+1, lastErr)
}

// FindByReference loads one transaction by its unique reference
func (s *SQLiteStore) FindByReference(ctx context.Context, reference string) (*provider.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reference, provider, status, amount, currency, email, channel, metadata, customer, paid_at, created_at, updated_at
		FROM transactions WHERE reference = ?`, reference)
	return scanTransaction(row)
}

// CreateOrUpdate upserts a transaction keyed by reference
func (s *SQLiteStore) CreateOrUpdate(ctx context.Context, tx *provider.Transaction) error {
	metadata, customer, err := encodeJSONFields(tx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	return retryBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO transactions (reference, provider, status, amount, currency, email, channel, metadata, customer, paid_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(reference) DO UPDATE SET
				provider = excluded.provider,
				status = excluded.status,
				amount = excluded.amount,
				currency = excluded.currency,
				email = excluded.email,
				channel = excluded.channel,
				metadata = excluded.metadata,
				customer = excluded.customer,
				paid_at = excluded.paid_at,
				updated_at = excluded.updated_at`,
			tx.Reference, tx.Provider, tx.Status, tx.Amount, tx.Currency, tx.Email,
			tx.Channel, metadata, customer, tx.PaidAt, tx.CreatedAt, tx.UpdatedAt)
		return err
	})
}

// UpdateLocked applies fn to the transaction inside an immediate
// transaction, the SQLite equivalent of SELECT ... FOR UPDATE: the write
// lock is held from the read through the commit.
func (s *SQLiteStore) UpdateLocked(ctx context.Context, reference string, fn func(tx *provider.Transaction) (bool, error)) error {
	return retryBusy(func() error {
		dbTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer dbTx.Rollback()

		row := dbTx.QueryRowContext(ctx, `
			SELECT id, reference, provider, status, amount, currency, email, channel, metadata, customer, paid_at, created_at, updated_at
			FROM transactions WHERE reference = ?`, reference)
		record, err := scanTransaction(row)
		if err != nil {
			return err
		}

		changed, err := fn(record)
		if err != nil {
			return err
		}
		if !changed {
			return dbTx.Commit()
		}

		metadata, customer, err := encodeJSONFields(record)
		if err != nil {
			return err
		}
		record.UpdatedAt = time.Now().UTC()

		if _, err := dbTx.ExecContext(ctx, `
			UPDATE transactions
			SET status = ?, channel = ?, metadata = ?, customer = ?, paid_at = ?, updated_at = ?
			WHERE reference = ?`,
			record.Status, record.Channel, metadata, customer, record.PaidAt, record.UpdatedAt, reference); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		return dbTx.Commit()
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*provider.Transaction, error) {
	var (
		tx                       provider.Transaction
		email, channel           sql.NullString
		metadataRaw, customerRaw sql.NullString
		paidAt                   sql.NullTime
	)
	err := row.Scan(&tx.ID, &tx.Reference, &tx.Provider, &tx.Status, &tx.Amount, &tx.Currency,
		&email, &channel, &metadataRaw, &customerRaw, &paidAt, &tx.CreatedAt, &tx.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, provider.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Email = email.String
	tx.Channel = channel.String
	if paidAt.Valid {
		t := paidAt.Time
		tx.PaidAt = &t
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		if err := json.Unmarshal([]byte(metadataRaw.String), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if customerRaw.Valid && customerRaw.String != "" {
		tx.Customer = &provider.Customer{}
		if err := json.Unmarshal([]byte(customerRaw.String), tx.Customer); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
	}
	return &tx, nil
}

func encodeJSONFields(tx *provider.Transaction) (metadata, customer sql.NullString, err error) {
	if len(tx.Metadata) > 0 {
		raw, err := json.Marshal(tx.Metadata)
		if err != nil {
			return metadata, customer, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}
	if tx.Customer != nil {
		raw, err := json.Marshal(tx.Customer)
		if err != nil {
			return metadata, customer, fmt.Errorf("failed to encode customer: %w", err)
		}
		customer = sql.NullString{String: string(raw), Valid: true}
	}
	return metadata, customer, nil
}
