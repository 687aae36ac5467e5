package guidance

import "math"

// #region bucket
// TokenBucket is the per-session interruption allowance. Tokens stay within [0, MaxTokens].
type TokenBucket struct {
	Tokens             float64 `json:"tokens"`
	MaxTokens          float64 `json:"max_tokens"`
	LastRefillMs       float64 `json:"last_refill_ms"`
	LastInterventionMs float64 `json:"last_intervention_ms"`
	HasIntervened      bool    `json:"has_intervened"`
}

func newTokenBucket(nowMs, maxTokens float64) TokenBucket {
	return TokenBucket{Tokens: maxTokens, MaxTokens: maxTokens, LastRefillMs: nowMs}
}

// refill accrues tokens continuously at perMin. Time running backwards accrues nothing.
func (b *TokenBucket) refill(nowMs, perMin float64) {
	if nowMs <= b.LastRefillMs {
		return
	}
	if perMin > 0 {
		b.Tokens = math.Min(b.MaxTokens, b.Tokens+(nowMs-b.LastRefillMs)*perMin/60000)
	}
	b.LastRefillMs = nowMs
}

// admit decides whether a spend would be allowed without committing it. fractional is set
// when a partial balance won a stochastic draw and must be zeroed instead of decremented.
func (b *TokenBucket) admit(nowMs float64, cfg BucketConfig, r RandSource) (fractional bool, denied Reason) {
	if b.HasIntervened && nowMs-b.LastInterventionMs < cfg.CooldownMs {
		return false, ReasonCooldown
	}
	if b.Tokens >= 1 {
		return false, ""
	}
	if cfg.StochasticRounding && b.Tokens > 0 && r.Float64() < b.Tokens {
		return true, ""
	}
	return false, ReasonRateLimited
}

func (b *TokenBucket) spend(nowMs float64, fractional bool) {
	if fractional {
		b.Tokens = 0
	} else {
		b.Tokens = math.Max(0, b.Tokens-1)
	}
	b.LastInterventionMs = nowMs
	b.HasIntervened = true
}

// #endregion bucket
