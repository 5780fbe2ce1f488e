// Package fallback implements the Fallback Engine (C6): for one row,
// walk the provider/variant decision tree, stop early once the target
// precision is reached, and track the best result seen.
//
// Grounded on internal/waterfall/executor.go's Run/best-so-far
// cascade, generalized from waterfall's field-confidence scoring to
// the Precision Comparator's (C5) result ranking, and on
// original_source/src/geocoding.py's geocode_row for the provider/
// variant nesting order and retry-mode semantics (spec §4.6, §9 Open
// Question: geocode_row, not the UI-coupled geocode_dataframe, is the
// canonical lineage).
package fallback

import (
	"context"
	"time"

	"github.com/sells-group/geo-orchestrator/internal/cache"
	"github.com/sells-group/geo-orchestrator/internal/model"
	"github.com/sells-group/geo-orchestrator/internal/obs"
	"github.com/sells-group/geo-orchestrator/internal/precision"
	"github.com/sells-group/geo-orchestrator/internal/provider"
	"github.com/sells-group/geo-orchestrator/internal/ratelimit"
	"github.com/sells-group/geo-orchestrator/internal/resilience"
	"github.com/sells-group/geo-orchestrator/internal/rewrite"
)

// Mode selects the provider order a run restricts itself to (spec
// §4.6 "run-modes").
type Mode string

const (
	ModeHEREOnly   Mode = "here_only"
	ModeGoogleOnly Mode = "google_only"
	ModeOSMOnly    Mode = "osm_only"
	ModeMulti      Mode = "multi"
)

// orderFor resolves a Mode against the full provider preference order,
// reducing to a singleton for single-provider modes.
func orderFor(mode Mode, fullOrder []model.ProviderName) []model.ProviderName {
	var want model.ProviderName
	switch mode {
	case ModeHEREOnly:
		want = model.ProviderHERE
	case ModeGoogleOnly:
		want = model.ProviderGoogle
	case ModeOSMOnly:
		want = model.ProviderOSM
	default:
		return fullOrder
	}
	for _, p := range fullOrder {
		if p == want {
			return []model.ProviderName{p}
		}
	}
	return []model.ProviderName{want}
}

// Engine runs the Fallback Engine's decision tree for individual rows.
// One Engine, one Cache, and one Limiter are shared by every worker in
// a job (spec §3 "Lifecycles": cache/limiter are created per job).
type Engine struct {
	registry    *provider.Registry
	cache       *cache.Cache
	limiter     *ratelimit.Limiter
	suppressor  *resilience.Suppressor
	sink        obs.Sink
	order       []model.ProviderName
	countryBias string
}

// New constructs a Fallback Engine. order is the default
// (multi-mode) provider preference order; pass
// model.DefaultProviderOrder for the reference HERE, Google, OSM order.
// countryBias is the country name the Address Rewriter's "original"
// variant appends when absent from the address text, mirroring
// clean_address ("" disables the append).
func New(registry *provider.Registry, c *cache.Cache, limiter *ratelimit.Limiter, sink obs.Sink, order []model.ProviderName, countryBias string) *Engine {
	return &Engine{
		registry:    registry,
		cache:       c,
		limiter:     limiter,
		suppressor:  resilience.NewSuppressor(),
		sink:        sink,
		order:       order,
		countryBias: countryBias,
	}
}

// Run executes the decision tree of spec §4.6 for one row, in the
// given mode, returning exactly one Result tagged with rowIndex.
func (e *Engine) Run(ctx context.Context, rowIndex int, addr model.Address, mode Mode) model.Result {
	variants := rewrite.Generate(addr, e.countryBias)
	providers := e.registry.Ordered(orderFor(mode, e.order))

	var best model.Result
	haveBest := false

	for _, p := range providers {
		if haveBest && precision.RooftopReached(best) {
			break
		}
		if e.suppressor.Suppressed(p.Name()) {
			continue
		}

		candidateVariants := rewrite.ForCapabilities(variants, p.Capabilities())
		for _, variant := range candidateVariants {
			select {
			case <-ctx.Done():
				return cancelledResult(rowIndex)
			default:
			}

			r := e.attempt(ctx, p, variant, rowIndex)
			if precision.BetterWithTieBreak(r, best, e.order) {
				best = r
				haveBest = true
			}
			if haveBest && precision.RooftopReached(best) {
				break
			}
			if e.suppressor.Suppressed(p.Name()) {
				break
			}
		}
	}

	if !haveBest {
		return model.Result{
			Status:       model.StatusError,
			ErrorMessage: "no provider produced a result",
			RowIndex:     rowIndex,
			Timestamp:    time.Now().UTC(),
		}
	}
	best.RowIndex = rowIndex
	return best
}

// RetryInput carries the prior outcome for a row being re-driven
// through the engine's retry mode (spec §4.6 "Retry mode").
type RetryInput struct {
	PreviousProvider  model.ProviderName
	PreviousPrecision model.PrecisionLevel
	PreviousStatus    model.Status
}

// Retry re-geocodes a row that was previously attempted, trying every
// variant including place_lookup and structured, ordering providers so
// the previously-tried one is attempted last, and marking Improved.
func (e *Engine) Retry(ctx context.Context, rowIndex int, addr model.Address, prior RetryInput) model.Result {
	order := reorderLastTried(e.order, prior.PreviousProvider)
	variants := rewrite.Generate(addr, e.countryBias)
	providers := e.registry.Ordered(order)

	var best model.Result
	haveBest := false

	for _, p := range providers {
		if haveBest && precision.RooftopReached(best) {
			break
		}
		if e.suppressor.Suppressed(p.Name()) {
			continue
		}

		for _, variant := range rewrite.ForCapabilities(variants, p.Capabilities()) {
			select {
			case <-ctx.Done():
				return cancelledResult(rowIndex)
			default:
			}

			r := e.attempt(ctx, p, variant, rowIndex)
			if precision.BetterWithTieBreak(r, best, order) {
				best = r
				haveBest = true
			}
			if haveBest && precision.RooftopReached(best) {
				break
			}
			if e.suppressor.Suppressed(p.Name()) {
				break
			}
		}
	}

	var result model.Result
	if haveBest {
		result = best
	} else {
		result = model.Result{
			Status:       model.StatusError,
			ErrorMessage: "no provider produced a result",
			Timestamp:    time.Now().UTC(),
		}
	}
	result.RowIndex = rowIndex
	result.Improved = prior.PreviousStatus != model.StatusOK ||
		(result.Status == model.StatusOK && precision.Rank(result) < rankOf(prior.PreviousPrecision))
	return result
}

func rankOf(level model.PrecisionLevel) int {
	return precision.Rank(model.Result{Status: model.StatusOK, PrecisionLevel: level, PrecisionLevelSet: true})
}

// reorderLastTried moves previouslyTried to the end of order, leaving
// the relative order of the others unchanged.
func reorderLastTried(order []model.ProviderName, previouslyTried model.ProviderName) []model.ProviderName {
	reordered := make([]model.ProviderName, 0, len(order))
	for _, p := range order {
		if p != previouslyTried {
			reordered = append(reordered, p)
		}
	}
	for _, p := range order {
		if p == previouslyTried {
			reordered = append(reordered, p)
			break
		}
	}
	return reordered
}

// attempt geocodes one (provider, variant) pair via the rate limiter
// and cache, recording a call log entry and tripping the quota
// suppressor on OVER_QUERY_LIMIT.
func (e *Engine) attempt(ctx context.Context, p provider.Provider, variant model.Variant, rowIndex int) model.Result {
	key := cache.Key(p.Name(), variant)

	result, err := e.cache.GetOrFetch(ctx, key, func(ctx context.Context) (model.Result, error) {
		if err := e.limiter.Wait(ctx, p.Name()); err != nil {
			return model.Result{
				Status:       model.StatusError,
				ErrorMessage: "cancelled",
				APIUsed:      p.Name(),
				VariantKind:  variant.Kind,
				Timestamp:    time.Now().UTC(),
			}, nil
		}

		start := time.Now()
		r, geocodeErr := p.Geocode(ctx, variant)
		duration := time.Since(start)
		if geocodeErr != nil {
			r = model.Result{
				Status:       model.StatusError,
				ErrorMessage: geocodeErr.Error(),
				APIUsed:      p.Name(),
				VariantKind:  variant.Kind,
				Timestamp:    time.Now().UTC(),
			}
		}

		if e.sink != nil {
			e.sink.Record(obs.CallRecord{
				Timestamp:       r.Timestamp,
				Provider:        p.Name(),
				URL:             r.RequestURL,
				Status:          r.Status,
				DurationMS:      duration.Milliseconds(),
				Error:           r.ErrorMessage,
				ResponseSummary: r.FormattedAddress,
			})
		}
		return r, nil
	})
	if err != nil {
		result = model.Result{Status: model.StatusError, ErrorMessage: err.Error(), APIUsed: p.Name(), VariantKind: variant.Kind}
	}

	result.RowIndex = rowIndex
	e.suppressor.Observe(result)
	return result
}

func cancelledResult(rowIndex int) model.Result {
	return model.Result{
		Status:       model.StatusError,
		ErrorMessage: "cancelled",
		RowIndex:     rowIndex,
		Timestamp:    time.Now().UTC(),
	}
}
