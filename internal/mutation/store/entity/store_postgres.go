package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"fiat/internal/lifecycle"
	"fiat/internal/mutation/models"
	domain "fiat/pkg/domain"
	"fiat/pkg/platform/sentinel"
	txcontext "fiat/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore persists entity snapshots in the entities table. Writes
// honor the transaction bound to ctx so the entity row co-commits with the
// audit entry and outbox intents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL entity store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, ref domain.EntityRef) (*models.EntityState, error) {
	query := `
		SELECT version, lifecycle_state, fields
		FROM entities
		WHERE org_id = $1 AND entity_type = $2 AND id = $3
	`
	var (
		version   int64
		stateRaw  string
		fieldsRaw []byte
	)
	err := txcontext.For(ctx, s.db).
		QueryRowContext(ctx, query, ref.OrgID.String(), string(ref.Type), ref.ID.String()).
		Scan(&version, &stateRaw, &fieldsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}

	state, err := lifecycle.ParseState(stateRaw)
	if err != nil {
		return nil, fmt.Errorf("get entity lifecycle: %w", err)
	}
	var fields map[string]any
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &fields); err != nil {
			return nil, fmt.Errorf("decode entity fields: %w", err)
		}
	}
	return &models.EntityState{Ref: ref, Version: version, Lifecycle: state, Fields: fields}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, state models.EntityState) error {
	fieldsRaw, err := json.Marshal(state.Fields)
	if err != nil {
		return fmt.Errorf("encode entity fields: %w", err)
	}
	query := `
		INSERT INTO entities (org_id, entity_type, id, version, lifecycle_state, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err = txcontext.For(ctx, s.db).ExecContext(ctx, query,
		state.Ref.OrgID.String(),
		string(state.Ref.Type),
		state.Ref.ID.String(),
		state.Version,
		state.Lifecycle.String(),
		fieldsRaw,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, ref domain.EntityRef, expectedVersion int64, fields map[string]any, state lifecycle.State) error {
	fieldsRaw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode entity fields: %w", err)
	}
	// Compare-and-swap on the version counter: a concurrent writer that
	// committed first leaves this update matching zero rows.
	query := `
		UPDATE entities
		SET fields = fields || $1::jsonb,
		    version = version + 1,
		    lifecycle_state = $2,
		    updated_at = NOW()
		WHERE org_id = $3 AND entity_type = $4 AND id = $5 AND version = $6
	`
	result, err := txcontext.For(ctx, s.db).ExecContext(ctx, query,
		fieldsRaw,
		state.String(),
		ref.OrgID.String(),
		string(ref.Type),
		ref.ID.String(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrVersionConflict
	}
	return nil
}
