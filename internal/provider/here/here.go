// Package here adapts the HERE Geocode v1 API to the common Provider
// interface (C1).
//
// Grounded on the teacher's pkg/geocode/google.go for the HTTP-GET-and-
// unmarshal shape (stdlib net/http + eris wrapping), and on
// original_source/src/geocoding.py's geocode_with_here/map_here_precision
// for the precision mapping and request parameters.
package here

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

const geocodeURL = "https://geocode.search.hereapi.com/v1/geocode"

// Adapter calls the HERE Geocode v1 endpoint. It has no in-provider
// retry: a single request per Geocode call, per spec §4.1.
type Adapter struct {
	apiKey      string
	countryCode string // ISO3 bias, e.g. "TUN"; "" disables the `in=` filter
	httpClient  *http.Client
	timeout     time.Duration
	baseURL     string // overridable in tests; defaults to geocodeURL
}

// Option configures an Adapter at construction.
type Option func(*Adapter)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// WithCountryBias sets the ISO3 country code passed as `in=countryCode:<c>`.
func WithCountryBias(iso3 string) Option {
	return func(a *Adapter) { a.countryCode = iso3 }
}

// WithTimeout overrides the per-request timeout (default 10s per spec §6).
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// New constructs a HERE adapter. apiKey == "" is permitted at
// construction time; Geocode then always returns the "no credentials"
// ERROR result, per spec §7.
func New(apiKey string, opts ...Option) *Adapter {
	a := &Adapter{
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
		baseURL:    geocodeURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() model.ProviderName { return model.ProviderHERE }

func (a *Adapter) Capabilities() model.Capabilities {
	return model.Capabilities{FreeText: true}
}

type response struct {
	Items []struct {
		Position struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"position"`
		Address struct {
			Label string `json:"label"`
		} `json:"address"`
		ResultType string `json:"resultType"`
	} `json:"items"`
}

func (a *Adapter) Geocode(ctx context.Context, variant model.Variant) (model.Result, error) {
	base := model.Result{
		APIUsed:     model.ProviderHERE,
		VariantKind: variant.Kind,
		Timestamp:   time.Now().UTC(),
	}

	if a.apiKey == "" {
		base.Status = model.StatusError
		base.ErrorMessage = "no credentials"
		return base, nil
	}
	if variant.Query == "" {
		base.Status = model.StatusError
		base.ErrorMessage = "here: empty query for free-text variant"
		return base, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := url.Values{
		"q":      {variant.Query},
		"apiKey": {a.apiKey},
	}
	if a.countryCode != "" {
		params.Set("in", "countryCode:"+a.countryCode)
	}

	redacted := url.Values{"q": params["q"]}
	if a.countryCode != "" {
		redacted.Set("in", "countryCode:"+a.countryCode)
	}
	base.RequestURL = a.baseURL + "?" + redacted.Encode()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errored(base, eris.Wrap(err, "here: build request")), nil
	}

	resp, err := a.httpClient.Do(req)
	base.Duration = time.Since(start)
	if err != nil {
		return errored(base, eris.Wrap(err, "here: request failed")), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		base.Status = model.StatusOverQueryLimit
		base.ErrorMessage = "here: over query limit"
		return base, nil
	}
	if resp.StatusCode >= 500 {
		base.Status = model.StatusError
		base.ErrorMessage = eris.Errorf("here: server error %d", resp.StatusCode).Error()
		return base, nil
	}
	if resp.StatusCode != http.StatusOK {
		base.Status = model.StatusError
		base.ErrorMessage = eris.Errorf("here: unexpected status %d", resp.StatusCode).Error()
		return base, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errored(base, eris.Wrap(err, "here: read body")), nil
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errored(base, eris.Wrap(err, "here: parse response")), nil
	}

	if len(parsed.Items) == 0 {
		base.Status = model.StatusZeroResults
		return base, nil
	}

	item := parsed.Items[0]
	base.Status = model.StatusOK
	base.Latitude, base.LatitudeValid = item.Position.Lat, true
	base.Longitude, base.LongitudeValid = item.Position.Lng, true
	base.FormattedAddress = item.Address.Label
	base.PrecisionLevelRaw = item.ResultType
	base.PrecisionLevel, base.PrecisionLevelSet = mapPrecision(item.ResultType), true
	return base, nil
}

func errored(base model.Result, err error) model.Result {
	base.Status = model.StatusError
	base.ErrorMessage = err.Error()
	return base
}

// mapPrecision implements the HERE resultType column of the normative
// precision table (spec §4.1). It is a pure function: same raw tag
// always yields the same common tag.
func mapPrecision(resultType string) model.PrecisionLevel {
	switch resultType {
	case "houseNumber":
		return model.PrecisionRooftop
	case "intersection", "street":
		return model.PrecisionRangeInterpolated
	case "postalCode":
		return model.PrecisionGeometricCenter
	case "city", "locality", "district", "county", "state", "place", "country", "administrativeArea":
		return model.PrecisionApproximate
	default:
		return model.PrecisionUnknown
	}
}
