package scoring

import (
	"math"
)

// MultiplicativeProfile tunes the arbitration score
// (scale - clamp(priority)) * step * weight + jitter.
type MultiplicativeProfile struct {
	MaxPriority  int     `toml:"max_priority"`
	PriorityStep float64 `toml:"priority_step"`
	JitterScale  float64 `toml:"jitter_scale"`
}

// DefaultMultiplicativeProfile gives priority 1 a base of 100 and priority 10 a base of 10.
func DefaultMultiplicativeProfile() MultiplicativeProfile {
	return MultiplicativeProfile{MaxPriority: 10, PriorityStep: 10, JitterScale: 0.07}
}

// Multiplicative is the arbitration strategy.
type Multiplicative struct {
	Profile MultiplicativeProfile
}

func NewMultiplicative(p MultiplicativeProfile) *Multiplicative {
	return &Multiplicative{Profile: p}
}

func (m *Multiplicative) Name() string { return "multiplicative" }

func (m *Multiplicative) Score(in Input) Result {
	p := clamp(in.Priority, 1, m.Profile.MaxPriority)
	base := float64(m.Profile.MaxPriority+1-p) * m.Profile.PriorityStep
	jitter := Jitter(in.CampaignKey, m.Profile.JitterScale)
	return Result{
		Score:   base*in.Weight + jitter,
		Reasons: []string{ReasonAudienceMatch, ReasonPriorityWeighted},
		Factors: map[string]any{
			"base":              base,
			"priority":          in.Priority,
			"arbitrationWeight": in.Weight,
			"jitter":            jitter,
			"tieBreaker":        "jitter(id)",
		},
	}
}

// AdditiveProfile tunes the eligibility score.
type AdditiveProfile struct {
	WeightDivisor  float64 `toml:"weight_divisor"`
	MaxPriority    int     `toml:"max_priority"`
	PriorityStep   float64 `toml:"priority_step"`
	UrgentDays     int     `toml:"urgent_days"`
	UrgentBonus    float64 `toml:"urgent_bonus"`
	SoonDays       int     `toml:"soon_days"`
	SoonBonus      float64 `toml:"soon_bonus"`
	ConsentBonus   float64 `toml:"consent_bonus"`
	FatiguePenalty float64 `toml:"fatigue_penalty"`
}

func DefaultAdditiveProfile() AdditiveProfile {
	return AdditiveProfile{
		WeightDivisor:  100,
		MaxPriority:    5,
		PriorityStep:   0.05,
		UrgentDays:     15,
		UrgentBonus:    0.2,
		SoonDays:       45,
		SoonBonus:      0.1,
		ConsentBonus:   0.05,
		FatiguePenalty: 0.03,
	}
}

// Additive sums weight, priority, card-expiry urgency and consent signals and
// subtracts a flat fatigue penalty.
type Additive struct {
	Profile AdditiveProfile
}

func NewAdditive(p AdditiveProfile) *Additive {
	return &Additive{Profile: p}
}

func (a *Additive) Name() string { return "additive" }

func (a *Additive) Score(in Input) Result {
	p := a.Profile
	reasons := make([]string, 0, 5)
	factors := map[string]any{}

	weightPart := in.Weight / p.WeightDivisor
	score := weightPart
	reasons = append(reasons, ReasonArbitrationWeight)
	factors["weight"] = weightPart

	priority := in.Priority
	if in.ActionPriority != nil {
		priority = *in.ActionPriority
	}
	priorityPart := float64(p.MaxPriority+1-clamp(priority, 1, p.MaxPriority)) * p.PriorityStep
	score += priorityPart
	reasons = append(reasons, ReasonPriority)
	factors["priority"] = priorityPart

	if in.CardExpiresAt != nil {
		days := int(math.Round(in.CardExpiresAt.Sub(in.Now).Hours() / 24))
		factors["daysToExpiry"] = days
		switch {
		case days <= p.UrgentDays:
			score += p.UrgentBonus
			reasons = append(reasons, ReasonUrgentExpiry)
		case days <= p.SoonDays:
			score += p.SoonBonus
			reasons = append(reasons, ReasonExpirySoon)
		}
	}

	if in.ConsentSMS || in.ConsentEmail {
		score += p.ConsentBonus
		reasons = append(reasons, ReasonConsentAvailable)
	}

	score -= p.FatiguePenalty
	reasons = append(reasons, ReasonFatiguePenalty)
	factors["fatiguePenalty"] = p.FatiguePenalty

	return Result{Score: score, Reasons: reasons, Factors: factors}
}
