// Package resilience classifies geocoding outcomes and tracks
// per-provider quota suppression within a single job.
//
// Grounded on the teacher's internal/resilience package: Classify
// plays the role of errors.go's IsTransient/IsTransientHTTPStatus
// (deciding what's retryable), and Suppressor is a one-way,
// job-scoped specialization of circuit.go's CircuitBreaker — once
// OVER_QUERY_LIMIT is observed for a provider, that provider trips and
// never resets within the job (spec §4.1, §7: "suppress further calls
// to this provider"), unlike the teacher's breaker, which probes again
// after a reset timeout.
package resilience

import (
	"sync"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// Classification buckets a Result for the Fallback Engine's decision
// tree (spec §7).
type Classification int

const (
	// ClassifyOK: the provider produced a usable result.
	ClassifyOK Classification = iota
	// ClassifyFallback: try the next variant/provider (ZERO_RESULTS,
	// transport ERROR, parse ERROR).
	ClassifyFallback
	// ClassifyQuotaExhausted: OVER_QUERY_LIMIT — fall back to other
	// providers, but never call this one again this job.
	ClassifyQuotaExhausted
	// ClassifyCancelled: the surrounding context was cancelled; do not
	// fall back further (spec §7).
	ClassifyCancelled
)

// Classify maps a Result's status to the action the Fallback Engine
// should take next.
func Classify(r model.Result) Classification {
	switch r.Status {
	case model.StatusOK:
		return ClassifyOK
	case model.StatusOverQueryLimit:
		return ClassifyQuotaExhausted
	default:
		if r.ErrorMessage == "cancelled" {
			return ClassifyCancelled
		}
		return ClassifyFallback
	}
}

// Suppressor tracks providers that have exhausted their quota within
// one job. Safe for concurrent use.
type Suppressor struct {
	mu         sync.RWMutex
	suppressed map[model.ProviderName]bool
}

// NewSuppressor returns an empty, job-scoped Suppressor.
func NewSuppressor() *Suppressor {
	return &Suppressor{suppressed: make(map[model.ProviderName]bool)}
}

// Trip permanently suppresses provider for the remainder of the job.
func (s *Suppressor) Trip(provider model.ProviderName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed[provider] = true
}

// Suppressed reports whether provider has been tripped this job.
func (s *Suppressor) Suppressed(provider model.ProviderName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suppressed[provider]
}

// Observe inspects a Result and trips its provider if the result
// indicates quota exhaustion. Convenience wrapper combining Classify
// and Trip for call sites that just want to record an outcome.
func (s *Suppressor) Observe(r model.Result) Classification {
	class := Classify(r)
	if class == ClassifyQuotaExhausted {
		s.Trip(r.APIUsed)
	}
	return class
}
