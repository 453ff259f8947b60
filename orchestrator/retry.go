package orchestrator

import (
	"math/rand/v2"
	"time"

	"newsdesk/config"
	"newsdesk/types"
)

// RetryPolicy bounds how often a stage is attempted and how long to wait in between
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Jitter draws each delay uniformly from [0, computed delay]
	Jitter bool
}

// DefaultPolicies returns the built-in per-stage policies
func DefaultPolicies() map[types.Stage]RetryPolicy {
	return map[types.Stage]RetryPolicy{
		types.StageFetch:   {MaxAttempts: config.FetchMaxAttempts, BackoffBase: config.BackoffBase, BackoffCap: config.FetchBackoffCap, Jitter: true},
		types.StageEnrich:  {MaxAttempts: config.EnrichMaxAttempts, BackoffBase: config.BackoffBase, BackoffCap: config.EnrichBackoffCap, Jitter: true},
		types.StageDeliver: {MaxAttempts: config.DeliverMaxAttempts, BackoffBase: config.BackoffBase, BackoffCap: config.DeliverBackoffCap, Jitter: true},
	}
}

// PoliciesFromConfig applies configured overrides on top of the defaults
func PoliciesFromConfig(overrides map[string]config.Retry) map[types.Stage]RetryPolicy {
	policies := DefaultPolicies()
	for name, o := range overrides {
		stage := types.Stage(name)
		p, ok := policies[stage]
		if !ok {
			continue
		}
		if o.MaxAttempts > 0 {
			p.MaxAttempts = o.MaxAttempts
		}
		if o.BackoffBase > 0 {
			p.BackoffBase = o.BackoffBase
		}
		if o.BackoffCap > 0 {
			p.BackoffCap = o.BackoffCap
		}
		policies[stage] = p
	}
	return policies
}

// Delay returns the ceiling of the wait before attempt+1, given that attempt
// (1-based) just failed: min(cap, base * 2^(attempt-1)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.BackoffCap > 0 && d >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if p.BackoffCap > 0 && d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// Backoff is Delay with jitter applied when the policy asks for it
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.Delay(attempt)
	if !p.Jitter || d <= 0 {
		return d
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}
