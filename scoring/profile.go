package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile bundles the tunables of both strategies. It is read from a TOML file:
//
//	[multiplicative]
//	max_priority = 10
//	priority_step = 10.0
//
//	[additive]
//	urgent_days = 15
//	urgent_bonus = 0.2
type Profile struct {
	Multiplicative MultiplicativeProfile `toml:"multiplicative"`
	Additive       AdditiveProfile       `toml:"additive"`
}

func DefaultProfile() Profile {
	return Profile{
		Multiplicative: DefaultMultiplicativeProfile(),
		Additive:       DefaultAdditiveProfile(),
	}
}

// LoadProfile reads a profile file on top of the defaults. An empty path
// returns the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode scoring profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// DecodeProfile parses profile TOML from a string on top of the defaults.
func DecodeProfile(data string) (Profile, error) {
	p := DefaultProfile()
	if _, err := toml.Decode(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode scoring profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) Validate() error {
	var problems []string
	if p.Multiplicative.MaxPriority < 1 {
		problems = append(problems, "multiplicative.max_priority must be at least 1")
	}
	if p.Multiplicative.PriorityStep <= 0 {
		problems = append(problems, "multiplicative.priority_step must be positive")
	}
	if p.Multiplicative.JitterScale < 0 || p.Multiplicative.JitterScale >= 1 {
		problems = append(problems, "multiplicative.jitter_scale must be in [0, 1)")
	}
	if p.Additive.WeightDivisor <= 0 {
		problems = append(problems, "additive.weight_divisor must be positive")
	}
	if p.Additive.MaxPriority < 1 {
		problems = append(problems, "additive.max_priority must be at least 1")
	}
	if p.Additive.UrgentDays > p.Additive.SoonDays {
		problems = append(problems, "additive.urgent_days must not exceed additive.soon_days")
	}
	if len(problems) > 0 {
		return errors.New("invalid scoring profile: " + strings.Join(problems, "; "))
	}
	return nil
}
