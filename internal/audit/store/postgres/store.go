package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fiat/internal/audit"
	domain "fiat/pkg/domain"
	txcontext "fiat/pkg/platform/tx"
)

// Store persists ledger entries in PostgreSQL. The package exposes INSERT
// and SELECT only; the audit table carries no UPDATE or DELETE path.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_log (
			id, org_id, actor_id, request_id, mutation_id, batch_id,
			action, action_kind, action_family, entity_type, entity_id,
			version_before, version_after,
			channel, client_ip, user_agent,
			before, after, diff, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	var batchID *string
	if entry.BatchID != nil {
		b := entry.BatchID.String()
		batchID = &b
	}
	_, err := txcontext.For(ctx, s.db).ExecContext(ctx, query,
		entry.ID,
		entry.OrgID.String(),
		entry.ActorID.String(),
		entry.RequestID,
		entry.MutationID.String(),
		batchID,
		string(entry.Action),
		string(entry.ActionKind),
		string(entry.Family),
		string(entry.EntityType),
		entry.EntityID.String(),
		entry.VersionBefore,
		entry.VersionAfter,
		entry.Channel,
		entry.ClientIP,
		entry.UserAgent,
		nullableJSON(entry.Before),
		nullableJSON(entry.After),
		nullableJSON(entry.Diff),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID domain.EntityID) ([]audit.Entry, error) {
	query := `
		SELECT id, org_id, actor_id, request_id, mutation_id, batch_id,
		       action, action_kind, action_family, entity_type, entity_id,
		       version_before, version_after,
		       channel, client_ip, user_agent,
		       before, after, diff, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, version_after
	`
	rows, err := s.db.QueryContext(ctx, query, string(entityType), entityID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (audit.Entry, error) {
	var (
		entry      audit.Entry
		orgID      string
		actorID    string
		mutationID string
		batchID    *string
		entityID   string
	)
	err := rows.Scan(
		&entry.ID,
		&orgID,
		&actorID,
		&entry.RequestID,
		&mutationID,
		&batchID,
		&entry.Action,
		&entry.ActionKind,
		&entry.Family,
		&entry.EntityType,
		&entityID,
		&entry.VersionBefore,
		&entry.VersionAfter,
		&entry.Channel,
		&entry.ClientIP,
		&entry.UserAgent,
		&entry.Before,
		&entry.After,
		&entry.Diff,
		&entry.CreatedAt,
	)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	if entry.OrgID, err = domain.ParseOrgID(orgID); err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit org id: %w", err)
	}
	if entry.ActorID, err = domain.ParseActorID(actorID); err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit actor id: %w", err)
	}
	if entry.MutationID, err = domain.ParseMutationID(mutationID); err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit mutation id: %w", err)
	}
	if entry.EntityID, err = domain.ParseEntityID(entityID); err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit entity id: %w", err)
	}
	if batchID != nil {
		parsed, err := domain.ParseBatchID(*batchID)
		if err != nil {
			return audit.Entry{}, fmt.Errorf("scan audit batch id: %w", err)
		}
		entry.BatchID = &parsed
	}
	return entry, nil
}

// nullableJSON maps empty payloads to SQL NULL so jsonb columns stay clean.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
