package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"fiat/internal/outbox"
	domain "fiat/pkg/domain"
	txcontext "fiat/pkg/platform/tx"
)

// Store persists outbox rows in PostgreSQL. Enqueue writes into the
// transaction bound to ctx so intents co-commit with the entity and audit
// writes; the dispatcher-facing methods run outside any transaction.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL outbox store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Enqueue(ctx context.Context, rows []outbox.Row) error {
	query := `
		INSERT INTO outbox_intents (id, mutation_id, kind, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	execer := txcontext.For(ctx, s.db)
	for _, row := range rows {
		_, err := execer.ExecContext(ctx, query,
			row.ID,
			row.MutationID.String(),
			string(row.Kind),
			string(row.EntityType),
			row.EntityID.String(),
			row.Payload,
			row.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox intent: %w", err)
		}
	}
	return nil
}

func (s *Store) ListUndelivered(ctx context.Context, limit int) ([]outbox.Row, error) {
	query := `
		SELECT id, mutation_id, kind, entity_type, entity_id, payload, created_at
		FROM outbox_intents
		WHERE delivered_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox intents: %w", err)
	}
	defer rows.Close()

	var out []outbox.Row
	for rows.Next() {
		var (
			row        outbox.Row
			mutationID string
			entityID   string
		)
		if err := rows.Scan(&row.ID, &mutationID, &row.Kind, &row.EntityType, &entityID, &row.Payload, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox intent: %w", err)
		}
		if row.MutationID, err = domain.ParseMutationID(mutationID); err != nil {
			return nil, fmt.Errorf("scan outbox mutation id: %w", err)
		}
		if row.EntityID, err = domain.ParseEntityID(entityID); err != nil {
			return nil, fmt.Errorf("scan outbox entity id: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox intents: %w", err)
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, rows []outbox.Row) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.String())
	}
	query := `
		UPDATE outbox_intents
		SET delivered_at = NOW()
		WHERE id = ANY($1) AND delivered_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox intents delivered: %w", err)
	}
	return nil
}
