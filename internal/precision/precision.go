// Package precision implements the total order over precision tags (C5)
// used to rank geocoding results against each other.
//
// Grounded on original_source/src/geocoding.py's is_better(), which
// looked up two precision strings in a fixed-order list and compared
// indices; here the lookup is a map-based rank table so unranked
// (UNKNOWN/absent) values sort last without a panic-prone list.index().
package precision

import "github.com/sells-group/geo-orchestrator/internal/model"

// rank gives each precision level a position in the total order
// ROOFTOP > RANGE_INTERPOLATED > GEOMETRIC_CENTER > APPROXIMATE > UNKNOWN
// > absent. Lower rank is better.
var rank = map[model.PrecisionLevel]int{
	model.PrecisionRooftop:           0,
	model.PrecisionRangeInterpolated: 1,
	model.PrecisionGeometricCenter:   2,
	model.PrecisionApproximate:       3,
	model.PrecisionUnknown:           4,
}

const absentRank = 5

// Rank returns the ordinal position of a precision result: lower is
// better. A result with no precision set (e.g. a non-OK result) ranks
// last.
func Rank(r model.Result) int {
	if !r.PrecisionLevelSet {
		return absentRank
	}
	if rk, ok := rank[r.PrecisionLevel]; ok {
		return rk
	}
	return absentRank
}

// Better reports whether candidate is strictly better than current under
// spec §4.5: candidate must be OK, and either current is not OK or
// candidate's precision strictly outranks current's.
func Better(candidate, current model.Result) bool {
	if candidate.Status != model.StatusOK {
		return false
	}
	if current.Status != model.StatusOK {
		return true
	}
	return Rank(candidate) < Rank(current)
}

// ProviderPreference returns the tie-break rank of a provider within
// order; providers absent from order sort last. Used when two OK results
// carry the same precision rank.
func ProviderPreference(order []model.ProviderName, provider model.ProviderName) int {
	for i, p := range order {
		if p == provider {
			return i
		}
	}
	return len(order)
}

// BetterWithTieBreak is Better, but when two OK results carry the same
// precision, the one from the provider listed earlier in order wins.
func BetterWithTieBreak(candidate, current model.Result, order []model.ProviderName) bool {
	if candidate.Status != model.StatusOK {
		return false
	}
	if current.Status != model.StatusOK {
		return true
	}
	cr, kr := Rank(candidate), Rank(current)
	if cr != kr {
		return cr < kr
	}
	return ProviderPreference(order, candidate.APIUsed) < ProviderPreference(order, current.APIUsed)
}

// RooftopReached reports whether a result is already at the best
// possible precision, letting the Fallback Engine stop early (spec §4.6).
func RooftopReached(r model.Result) bool {
	return r.Status == model.StatusOK && r.PrecisionLevelSet && r.PrecisionLevel == model.PrecisionRooftop
}
