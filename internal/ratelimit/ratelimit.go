// Package ratelimit implements the Rate Limiter (C3): a per-provider
// minimum inter-request spacing, enforced immediately before every
// adapter call.
//
// Grounded on the teacher's pkg/geocode/client.go WithRateLimit option,
// which wraps golang.org/x/time/rate.Limiter around Census API calls;
// generalized here to one limiter per provider, with a mandatory 1 rps
// floor for OSM/Nominatim per spec §4.3.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// OSMFloorRPS is the Nominatim usage-policy ceiling: at most one
// request per second, enforced regardless of configuration (spec §4.3).
const OSMFloorRPS = 1.0

// Limits maps a provider to its requests-per-second ceiling. A
// provider absent from the map is unlimited.
type Limits map[model.ProviderName]float64

// Limiter enforces per-provider rate limits. Safe for concurrent use;
// Wait may block the calling goroutine and aborts promptly on context
// cancellation (spec §5 "rate-limiter waits wake promptly").
type Limiter struct {
	limiters map[model.ProviderName]*rate.Limiter
}

// New builds a Limiter from limits. OSM always runs at exactly
// OSMFloorRPS: a configured OSM entry, higher or lower, is replaced by
// it, and a missing OSM entry still gets it, since the policy is
// mandatory, not configurable away.
func New(limits Limits) *Limiter {
	l := &Limiter{limiters: make(map[model.ProviderName]*rate.Limiter)}
	for provider, rps := range limits {
		if provider == model.ProviderOSM {
			rps = OSMFloorRPS
		}
		if rps > 0 {
			l.limiters[provider] = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	if _, ok := l.limiters[model.ProviderOSM]; !ok {
		l.limiters[model.ProviderOSM] = rate.NewLimiter(rate.Limit(OSMFloorRPS), 1)
	}
	return l
}

// Wait blocks until a request to provider is permitted, or ctx is
// cancelled. A provider with no configured limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, provider model.ProviderName) error {
	limiter, ok := l.limiters[provider]
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
