package cooldown

import "time"

// Policy is a configured cooldown: one duration for every platform, or
// per-platform durations. Platforms absent from the map have no cooldown.
type Policy struct {
	Uniform   time.Duration
	Platforms map[string]time.Duration
}

// Every returns a policy applying d on every platform.
func Every(d time.Duration) Policy {
	return Policy{Uniform: d}
}

// For returns the cooldown that applies on platform.
func (p Policy) For(platform string) time.Duration {
	if p.Platforms != nil {
		return p.Platforms[platform]
	}
	return p.Uniform
}

// Max returns the longest duration of the policy.
func (p Policy) Max() time.Duration {
	longest := p.Uniform
	for _, d := range p.Platforms {
		longest = max(longest, d)
	}
	return longest
}
