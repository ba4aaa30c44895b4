package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	jsonpatch "github.com/evanphx/json-patch/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/datatypes"
)

// AuditChange describes one mutation to be recorded
type AuditChange struct {
	Action     string
	EntityType string
	EntityID   string
	Before     any
	After      any
}

// AuditPublisher fans committed audit entries out to other systems
type AuditPublisher interface {
	Publish(ctx context.Context, entry *models.AuditEntry) error
}

// AuditTrail records every mutation as an append-only entry with a JSON merge patch diff
type AuditTrail interface {
	// Record appends an entry. Inside Atomically the entry is published only after commit.
	Record(ctx context.Context, actor models.Actor, change AuditChange) (*models.AuditEntry, error)
	// Query returns the entries of one entity, newest first
	Query(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
	// Atomically runs fn in one transaction. Nested calls join the outer unit.
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}

type pendingAuditKey struct{}

// AuditTrailImpl implements the audit trail
type AuditTrailImpl struct {
	auditRepo repository.AuditEntryRepository
	tx        repository.Transactor
	publisher AuditPublisher
	logger    *log.Logger
}

// NewAuditTrail creates a new audit trail. publisher may be nil.
func NewAuditTrail(auditRepo repository.AuditEntryRepository, tx repository.Transactor, publisher AuditPublisher, logger *log.Logger) AuditTrail {
	if logger == nil {
		logger = log.Default()
	}
	return &AuditTrailImpl{
		auditRepo: auditRepo,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
	}
}

func (a *AuditTrailImpl) Record(ctx context.Context, actor models.Actor, change AuditChange) (*models.AuditEntry, error) {
	before, err := marshalSnapshot(change.Before)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit before-snapshot: %w", err)
	}
	after, err := marshalSnapshot(change.After)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit after-snapshot: %w", err)
	}

	eventID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audit event id: %w", err)
	}

	entry := &models.AuditEntry{
		EventID:    eventID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     change.Action,
		EntityType: change.EntityType,
		EntityID:   change.EntityID,
		Before:     before,
		After:      after,
		Diff:       mergeDiff(before, after),
	}
	if err := a.auditRepo.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record %s audit: %w", change.Action, err)
	}

	if pending, ok := ctx.Value(pendingAuditKey{}).(*[]*models.AuditEntry); ok {
		*pending = append(*pending, entry)
	} else {
		a.publish(ctx, entry)
	}
	return entry, nil
}

func (a *AuditTrailImpl) Query(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	entries, err := a.auditRepo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, classify("Failed to query audit trail", err)
	}
	return entries, nil
}

func (a *AuditTrailImpl) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pendingAuditKey{}).(*[]*models.AuditEntry); ok {
		return fn(ctx)
	}

	var pending []*models.AuditEntry
	txCtx := context.WithValue(ctx, pendingAuditKey{}, &pending)
	if err := a.tx.WithTransaction(txCtx, fn); err != nil {
		return err
	}

	for _, entry := range pending {
		a.publish(ctx, entry)
	}
	return nil
}

func (a *AuditTrailImpl) publish(ctx context.Context, entry *models.AuditEntry) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, entry); err != nil {
		a.logger.Printf("failed to publish audit event %s (%s %s/%s): %v", entry.EventID, entry.Action, entry.EntityType, entry.EntityID, err)
	}
}

func marshalSnapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return datatypes.JSON(b), nil
}

// mergeDiff returns the RFC 7386 merge patch turning before into after. A
// missing side counts as an empty object. Non-object snapshots have no diff.
func mergeDiff(before, after datatypes.JSON) datatypes.JSON {
	if before == nil && after == nil {
		return nil
	}
	b, aft := []byte(before), []byte(after)
	if b == nil {
		b = []byte("{}")
	}
	if aft == nil {
		aft = []byte("{}")
	}
	patch, err := jsonpatch.CreateMergePatch(b, aft)
	if err != nil {
		return nil
	}
	return datatypes.JSON(patch)
}
