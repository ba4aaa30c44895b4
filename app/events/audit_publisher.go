// Package events fans committed audit entries out over NATS
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/nba-decision-core/models"
	"github.com/nats-io/nats.go"
)

// AuditEvent is the wire form of one committed audit entry
type AuditEvent struct {
	EventID    string          `json:"eventId"`
	ActorID    string          `json:"actorId"`
	ActorRole  models.Role     `json:"actorRole"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Diff       json.RawMessage `json:"diff,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func newAuditEvent(e *models.AuditEntry) AuditEvent {
	ev := AuditEvent{
		EventID:    e.EventID,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		CreatedAt:  e.CreatedAt,
	}
	if len(e.Diff) > 0 {
		ev.Diff = json.RawMessage(e.Diff)
	}
	return ev
}

// Subject is where an entry lands: <base>.<entity type>.<action>
func Subject(base string, e *models.AuditEntry) string {
	return fmt.Sprintf("%s.%s.%s", base, e.EntityType, e.Action)
}

// NATSAuditPublisher publishes audit entries as JSON. The event id doubles as
// the message id so JetStream consumers can deduplicate.
type NATSAuditPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSAuditPublisher(url, subject, name string) (*NATSAuditPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSAuditPublisher{conn: nc, subject: subject}, nil
}

func (p *NATSAuditPublisher) Publish(ctx context.Context, entry *models.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(newAuditEvent(entry))
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	msg := nats.NewMsg(Subject(p.subject, entry))
	msg.Header.Set(nats.MsgIdHdr, entry.EventID)
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing audit event %s: %w", entry.EventID, err)
	}
	return nil
}

func (p *NATSAuditPublisher) Close() error {
	return p.conn.Drain()
}
