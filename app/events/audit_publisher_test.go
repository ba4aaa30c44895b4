package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/amirphl/nba-decision-core/models"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv.ClientURL()
}

func TestSubject(t *testing.T) {
	e := &models.AuditEntry{EntityType: "NBA", Action: "STATUS_TRANSITION"}
	assert.Equal(t, "nba.audit.NBA.STATUS_TRANSITION", Subject("nba.audit", e))
}

func TestNATSAuditPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSAuditPublisher(url, "nba.audit", "test")
	require.NoError(t, err)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("nba.audit.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	entry := &models.AuditEntry{
		EventID:    "evt-1",
		ActorID:    "u-1",
		ActorRole:  models.RoleMarketer,
		Action:     "CREATE_NBA",
		EntityType: "NBA",
		EntityID:   "12",
		Diff:       datatypes.JSON(`{"name":"Spring"}`),
		CreatedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), entry))

	select {
	case msg := <-ch:
		assert.Equal(t, "nba.audit.NBA.CREATE_NBA", msg.Subject)
		assert.Equal(t, "evt-1", msg.Header.Get(nats.MsgIdHdr))

		var got AuditEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "12", got.EntityID)
		assert.JSONEq(t, `{"name":"Spring"}`, string(got.Diff))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for audit event")
	}
}

func TestNATSAuditPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSAuditPublisher(url, "nba.audit", "test")
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, &models.AuditEntry{EventID: "x"}), context.Canceled)
}
