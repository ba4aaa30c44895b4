package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignCanTransitionTo(t *testing.T) {
	tests := []struct {
		from CampaignStatus
		to   CampaignStatus
		want bool
	}{
		{CampaignStatusDraft, CampaignStatusSubmitted, true},
		{CampaignStatusDraft, CampaignStatusPublished, false},
		{CampaignStatusSubmitted, CampaignStatusInLegalReview, true},
		{CampaignStatusInLegalReview, CampaignStatusApproved, true},
		{CampaignStatusInLegalReview, CampaignStatusDraft, false},
		{CampaignStatusRejected, CampaignStatusDraft, true},
		{CampaignStatusApproved, CampaignStatusScheduled, true},
		{CampaignStatusInTesting, CampaignStatusApproved, true},
		{CampaignStatusScheduled, CampaignStatusPublishing, true},
		{CampaignStatusPublishing, CampaignStatusPublished, true},
		{CampaignStatusPublished, CampaignStatusExpired, true},
		{CampaignStatusPublished, CampaignStatusDraft, false},
		{CampaignStatusExpired, CampaignStatusCompleted, true},
		{CampaignStatusCompleted, CampaignStatusArchived, true},
		{CampaignStatusArchived, CampaignStatusDraft, false},
		{CampaignStatusCancelled, CampaignStatusArchived, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			c := &Campaign{Status: tt.from}
			assert.Equal(t, tt.want, c.CanTransitionTo(tt.to))
		})
	}
}

func TestEveryStatusHasATableEntry(t *testing.T) {
	for _, s := range AllCampaignStatuses() {
		assert.True(t, s.Valid(), s)
		for _, next := range s.AllowedTransitions() {
			assert.True(t, next.Valid(), "%s -> %s", s, next)
		}
	}
	assert.Empty(t, CampaignStatusArchived.AllowedTransitions())
	assert.False(t, CampaignStatus("Live").Valid())
}

func TestAllowedTransitionsReturnsACopy(t *testing.T) {
	next := CampaignStatusDraft.AllowedTransitions()
	next[0] = CampaignStatusPublished
	assert.Equal(t, CampaignStatusSubmitted, CampaignStatusDraft.AllowedTransitions()[0])
}

func TestParseCampaignStatus(t *testing.T) {
	for in, want := range map[string]CampaignStatus{
		"In Legal Review": CampaignStatusInLegalReview,
		"InLegalReview":   CampaignStatusInLegalReview,
		"intesting":       CampaignStatusInTesting,
		" Published ":     CampaignStatusPublished,
	} {
		got, ok := ParseCampaignStatus(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseCampaignStatus("Live")
	assert.False(t, ok)
}

func TestCampaignIsStale(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		status CampaignStatus
		end    time.Time
		want   bool
	}{
		{"published past end", CampaignStatusPublished, past, true},
		{"approved past end", CampaignStatusApproved, past, true},
		{"published before end", CampaignStatusPublished, future, false},
		{"draft past end", CampaignStatusDraft, past, false},
		{"already expired", CampaignStatusExpired, past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Campaign{Status: tt.status, EndDate: tt.end}
			assert.Equal(t, tt.want, c.IsStale(now))
		})
	}
}

func TestCampaignIsMaterialEdit(t *testing.T) {
	draft := &Campaign{Status: CampaignStatusDraft}
	published := &Campaign{Status: CampaignStatusPublished}

	for _, kind := range SubConfigKinds() {
		assert.False(t, draft.IsMaterialEdit(kind), kind)
		assert.True(t, published.IsMaterialEdit(kind), kind)
	}
	assert.False(t, published.IsMaterialEdit(EditKindGeneral))
}

func TestEnumValue(t *testing.T) {
	_, err := CampaignStatus("Live").Value()
	assert.Error(t, err)

	v, err := LegalStatusInReview.Value()
	require.NoError(t, err)
	assert.Equal(t, "In Review", v)

	var ch Channel
	require.NoError(t, ch.Scan([]byte("Email")))
	assert.Equal(t, ChannelEmail, ch)
	assert.Error(t, ch.Scan(42))
}
