// Package outbox models the side-effect intents persisted atomically with a
// mutation. A separate dispatcher drains the rows; the kernel's only contract
// is "intent persisted iff triggering mutation committed".
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	domain "fiat/pkg/domain"
	dErrors "fiat/pkg/domain-errors"
)

// IntentKind discriminates the closed set of intent variants.
type IntentKind string

const (
	KindWorkflow    IntentKind = "workflow"
	KindSearch      IntentKind = "search"
	KindWebhook     IntentKind = "webhook"
	KindIntegration IntentKind = "integration"
)

// Intent is the closed sum of side-effect requests. One variant per kind;
// the unexported marker keeps the set sealed so a new variant forces a
// review of every switch over intents.
type Intent interface {
	Kind() IntentKind
	Ref() (domain.EntityType, domain.EntityID)
	isIntent()
}

// WorkflowIntent triggers a named workflow with the mutation's diff as input.
type WorkflowIntent struct {
	EntityType domain.EntityType `json:"entityType"`
	EntityID   domain.EntityID   `json:"entityId"`
	Trigger    string            `json:"trigger"`
	Input      map[string]any    `json:"input,omitempty"`
}

func (i WorkflowIntent) Kind() IntentKind { return KindWorkflow }
func (i WorkflowIntent) Ref() (domain.EntityType, domain.EntityID) {
	return i.EntityType, i.EntityID
}
func (WorkflowIntent) isIntent() {}

// SearchIntent asks the indexer to upsert or drop a document.
type SearchIntent struct {
	EntityType domain.EntityType `json:"entityType"`
	EntityID   domain.EntityID   `json:"entityId"`
	Op         string            `json:"op"` // index | delete
	Document   map[string]any    `json:"document,omitempty"`
}

func (i SearchIntent) Kind() IntentKind { return KindSearch }
func (i SearchIntent) Ref() (domain.EntityType, domain.EntityID) {
	return i.EntityType, i.EntityID
}
func (SearchIntent) isIntent() {}

// WebhookIntent fans the event out to registered subscriber endpoints.
type WebhookIntent struct {
	EntityType domain.EntityType `json:"entityType"`
	EntityID   domain.EntityID   `json:"entityId"`
	Event      string            `json:"event"`
	Payload    map[string]any    `json:"payload,omitempty"`
}

func (i WebhookIntent) Kind() IntentKind { return KindWebhook }
func (i WebhookIntent) Ref() (domain.EntityType, domain.EntityID) {
	return i.EntityType, i.EntityID
}
func (WebhookIntent) isIntent() {}

// IntegrationIntent syncs the change into an external system.
type IntegrationIntent struct {
	EntityType domain.EntityType `json:"entityType"`
	EntityID   domain.EntityID   `json:"entityId"`
	Event      string            `json:"event"`
	Payload    map[string]any    `json:"payload,omitempty"`
}

func (i IntegrationIntent) Kind() IntentKind { return KindIntegration }
func (i IntegrationIntent) Ref() (domain.EntityType, domain.EntityID) {
	return i.EntityType, i.EntityID
}
func (IntegrationIntent) isIntent() {}

// Row is the persisted form of an intent, drained by the dispatcher.
type Row struct {
	ID          uuid.UUID
	MutationID  domain.MutationID
	Kind        IntentKind
	EntityType  domain.EntityType
	EntityID    domain.EntityID
	Payload     json.RawMessage
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// Encode serializes an intent into its persisted row form.
func Encode(mutationID domain.MutationID, intent Intent, now time.Time) (Row, error) {
	payload, err := json.Marshal(intent)
	if err != nil {
		return Row{}, dErrors.Wrap(err, dErrors.CodeInternal, "marshal outbox intent")
	}
	entityType, entityID := intent.Ref()
	return Row{
		ID:         uuid.New(),
		MutationID: mutationID,
		Kind:       intent.Kind(),
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		CreatedAt:  now,
	}, nil
}
