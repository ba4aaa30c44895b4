package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMultiplicative(t *testing.T) {
	m := NewMultiplicative(DefaultMultiplicativeProfile())

	tests := []struct {
		name     string
		priority int
		weight   float64
		wantBase float64
	}{
		{"priority 1 gets the largest base", 1, 1, 100},
		{"priority 3", 3, 1, 80},
		{"priority 10", 10, 1, 10},
		{"priority below range clamps to 1", -4, 1, 100},
		{"priority above range clamps to 10", 40, 1, 10},
		{"weight scales the base", 1, 2.5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Score(Input{CampaignKey: "c-1", Priority: tt.priority, Weight: tt.weight})
			jitter := Jitter("c-1", m.Profile.JitterScale)
			assert.InDelta(t, tt.wantBase*tt.weight+jitter, res.Score, 1e-9)
			assert.Equal(t, tt.wantBase, res.Factors["base"])
			assert.Equal(t, []string{ReasonAudienceMatch, ReasonPriorityWeighted}, res.Reasons)
		})
	}
}

func TestJitterIsDeterministicAndSmall(t *testing.T) {
	for _, key := range []string{"a", "b", "5f0c6a9e-0000-4000-8000-000000000001", ""} {
		j1 := Jitter(key, 0.07)
		j2 := Jitter(key, 0.07)
		assert.Equal(t, j1, j2)
		assert.GreaterOrEqual(t, j1, 0.0)
		assert.Less(t, j1, 0.07)
	}
}

func TestRankIsOrderIndependent(t *testing.T) {
	m := NewMultiplicative(DefaultMultiplicativeProfile())
	build := func(keys ...string) []Scored[string] {
		out := make([]Scored[string], 0, len(keys))
		for _, k := range keys {
			priority := 3
			if k == "high" {
				priority = 1
			}
			out = append(out, Scored[string]{Item: k, Key: k, Result: m.Score(Input{CampaignKey: k, Priority: priority, Weight: 1})})
		}
		return out
	}

	forward := Rank(build("low", "high", "other"))
	backward := Rank(build("other", "high", "low"))

	require.Len(t, forward, 3)
	assert.Equal(t, "high", forward[0].Item)
	for i := range forward {
		assert.Equal(t, forward[i].Key, backward[i].Key)
	}
}

func TestRankBreaksExactTiesDeterministically(t *testing.T) {
	same := Result{Score: 1}
	a := []Scored[int]{{Item: 1, Key: "x", Result: same}, {Item: 2, Key: "y", Result: same}}
	b := []Scored[int]{{Item: 2, Key: "y", Result: same}, {Item: 1, Key: "x", Result: same}}
	assert.Equal(t, Rank(a)[0].Key, Rank(b)[0].Key)
}

func TestAdditive(t *testing.T) {
	a := NewAdditive(DefaultAdditiveProfile())
	in10 := now.AddDate(0, 0, 10)
	in30 := now.AddDate(0, 0, 30)
	in90 := now.AddDate(0, 0, 90)
	two := 2

	tests := []struct {
		name        string
		in          Input
		wantScore   float64
		wantReasons []string
	}{
		{
			name:        "urgent expiry with consent",
			in:          Input{Priority: 3, Weight: 1, CardExpiresAt: &in10, ConsentSMS: true, Now: now},
			wantScore:   0.01 + 0.15 + 0.2 + 0.05 - 0.03,
			wantReasons: []string{ReasonArbitrationWeight, ReasonPriority, ReasonUrgentExpiry, ReasonConsentAvailable, ReasonFatiguePenalty},
		},
		{
			name:        "expiry soon without consent",
			in:          Input{Priority: 1, Weight: 2, CardExpiresAt: &in30, Now: now},
			wantScore:   0.02 + 0.25 + 0.1 - 0.03,
			wantReasons: []string{ReasonArbitrationWeight, ReasonPriority, ReasonExpirySoon, ReasonFatiguePenalty},
		},
		{
			name:        "far expiry and action priority override",
			in:          Input{Priority: 5, ActionPriority: &two, Weight: 1, CardExpiresAt: &in90, ConsentEmail: true, Now: now},
			wantScore:   0.01 + 0.2 + 0.05 - 0.03,
			wantReasons: []string{ReasonArbitrationWeight, ReasonPriority, ReasonConsentAvailable, ReasonFatiguePenalty},
		},
		{
			name:        "priority clamps at five",
			in:          Input{Priority: 9, Weight: 1, Now: now},
			wantScore:   0.01 + 0.05 - 0.03,
			wantReasons: []string{ReasonArbitrationWeight, ReasonPriority, ReasonFatiguePenalty},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Score(tt.in)
			assert.InDelta(t, tt.wantScore, res.Score, 1e-9)
			assert.Equal(t, tt.wantReasons, res.Reasons)
		})
	}
}

func TestStrategiesAreDistinct(t *testing.T) {
	var strategies []Strategy = []Strategy{NewMultiplicative(DefaultMultiplicativeProfile()), NewAdditive(DefaultAdditiveProfile())}
	in := Input{CampaignKey: "c", Priority: 1, Weight: 1, Now: now}
	assert.Equal(t, "multiplicative", strategies[0].Name())
	assert.Equal(t, "additive", strategies[1].Name())
	assert.False(t, math.Abs(strategies[0].Score(in).Score-strategies[1].Score(in).Score) < 1e-9)
}

func TestLoadProfile(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		p, err := LoadProfile("")
		require.NoError(t, err)
		assert.Equal(t, DefaultProfile(), p)
	})

	t.Run("file overrides only what it names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.toml")
		require.NoError(t, os.WriteFile(path, []byte("[additive]\nurgent_days = 7\nurgent_bonus = 0.3\n"), 0o600))

		p, err := LoadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, 7, p.Additive.UrgentDays)
		assert.Equal(t, 0.3, p.Additive.UrgentBonus)
		assert.Equal(t, 45, p.Additive.SoonDays)
		assert.Equal(t, DefaultMultiplicativeProfile(), p.Multiplicative)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		_, err := DecodeProfile("[multiplicative]\npriority_step = 0.0\n[additive]\nurgent_days = 90\n")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiplicative.priority_step must be positive")
		assert.Contains(t, err.Error(), "additive.urgent_days must not exceed additive.soon_days")
	})
}
