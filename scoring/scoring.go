// Package scoring ranks eligible campaigns for a customer. Two strategies are
// supported: a multiplicative priority-times-weight score used by arbitration,
// and an additive signal score used by the per-customer eligibility view.
package scoring

import (
	"cmp"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Reason codes emitted by the strategies.
const (
	ReasonAudienceMatch     = "AUDIENCE_MATCH"
	ReasonPriorityWeighted  = "PRIORITY_WEIGHTED"
	ReasonArbitrationWeight = "ARBITRATION_WEIGHT"
	ReasonPriority          = "PRIORITY"
	ReasonUrgentExpiry      = "URGENT_EXPIRY"
	ReasonExpirySoon        = "EXPIRY_SOON"
	ReasonConsentAvailable  = "CONSENT_AVAILABLE"
	ReasonFatiguePenalty    = "FATIGUE_PENALTY_STUB"
)

// Input is everything a strategy may read about one candidate.
type Input struct {
	CampaignKey    string
	Priority       int
	ActionPriority *int
	Weight         float64
	CardExpiresAt  *time.Time
	ConsentSMS     bool
	ConsentEmail   bool
	Now            time.Time
}

// Result is a candidate's score with the codes and factors that produced it.
type Result struct {
	Score   float64        `json:"score"`
	Reasons []string       `json:"reasonCodes"`
	Factors map[string]any `json:"factors"`
}

// Strategy scores a single candidate. Implementations must be pure.
type Strategy interface {
	Name() string
	Score(in Input) Result
}

// Jitter derives a small deterministic tie-breaker in [0, scale) from the
// campaign key.
func Jitter(key string, scale float64) float64 {
	return float64(xxhash.Sum64String(key)%1000) / 1000 * scale
}

// Scored pairs a candidate with its result.
type Scored[T any] struct {
	Item   T
	Key    string
	Result Result
}

// Rank orders candidates by descending score. Equal scores fall back to the
// key hash and then the key itself, never to input order.
func Rank[T any](items []Scored[T]) []Scored[T] {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Scored[T]) int {
		if c := cmp.Compare(b.Result.Score, a.Result.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(xxhash.Sum64String(b.Key), xxhash.Sum64String(a.Key)); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
