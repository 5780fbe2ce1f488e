package model

// ProviderName identifies one of the reference geocoding backends.
type ProviderName string

const (
	ProviderHERE   ProviderName = "here"
	ProviderGoogle ProviderName = "google"
	ProviderOSM    ProviderName = "osm"
)

// Capabilities describes what query shapes a provider accepts.
type Capabilities struct {
	FreeText     bool
	Structured   bool
	PlaceLookup  bool
}

// DefaultProviderOrder is the tie-breaking provider preference order used
// by the Precision Comparator and the default Fallback Engine order.
var DefaultProviderOrder = []ProviderName{ProviderHERE, ProviderGoogle, ProviderOSM}
