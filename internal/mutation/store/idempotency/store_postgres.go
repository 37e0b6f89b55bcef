package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fiat/internal/mutation/models"
	"fiat/pkg/platform/sentinel"
	txcontext "fiat/pkg/platform/tx"
)

// PostgresStore persists receipts in the idempotency_keys table. Put runs in
// the commit transaction, so the replay record appears atomically with the
// entity write it witnesses.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL idempotency store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (*models.OK, error) {
	query := `
		SELECT receipt
		FROM idempotency_keys
		WHERE org_id = $1 AND action = $2 AND idem_key = $3
	`
	var raw []byte
	err := txcontext.For(ctx, s.db).
		QueryRowContext(ctx, query, key.OrgID.String(), key.Action, key.Key).
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	var receipt models.OK
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode idempotency receipt: %w", err)
	}
	return &receipt, nil
}

func (s *PostgresStore) Put(ctx context.Context, key Key, receipt models.OK) error {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode idempotency receipt: %w", err)
	}
	// First writer wins. A concurrent duplicate blocks on the winner's
	// uncommitted index entry and conflicts once it commits; reporting the
	// conflict aborts the loser's transaction so it cannot commit a second
	// entity under the same key.
	query := `
		INSERT INTO idempotency_keys (org_id, action, idem_key, receipt, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (org_id, action, idem_key) DO NOTHING
	`
	res, err := txcontext.For(ctx, s.db).ExecContext(ctx, query, key.OrgID.String(), key.Action, key.Key, raw)
	if err != nil {
		return fmt.Errorf("put idempotency key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put idempotency key: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("idempotency key %q: %w", key.Key, sentinel.ErrConflict)
	}
	return nil
}
