// Package google adapts the Google Geocoding and Places
// findplacefromtext APIs to the common Provider interface (C1).
//
// Grounded on the teacher's pkg/geocode/google.go (HTTP shape, status
// handling, googleLocationTypeToQuality) generalized to the full
// {free_text, structured-via-components, place_lookup} capability set
// described in original_source/src/geocoding.py's geocode_with_google
// and get_place_id_with_google.
package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

const (
	geocodeURL     = "https://maps.googleapis.com/maps/api/geocode/json"
	findPlaceURL   = "https://maps.googleapis.com/maps/api/place/findplacefromtext/json"
)

// Adapter calls the Google Geocoding API, using the Places
// findplacefromtext endpoint first when given a place_lookup variant.
type Adapter struct {
	apiKey        string
	countryBias   string // two-letter ccTLD-style component bias, e.g. "tn"
	httpClient    *http.Client
	timeout       time.Duration
	geocodeURL    string // overridable in tests
	findPlaceURL  string // overridable in tests
}

type Option func(*Adapter)

func WithHTTPClient(c *http.Client) Option { return func(a *Adapter) { a.httpClient = c } }

// WithCountryBias sets the `components=country:<cc>` bias applied to
// free-text and structured queries.
func WithCountryBias(cc string) Option { return func(a *Adapter) { a.countryBias = cc } }

func WithTimeout(d time.Duration) Option { return func(a *Adapter) { a.timeout = d } }

func New(apiKey string, opts ...Option) *Adapter {
	a := &Adapter{
		apiKey:       apiKey,
		httpClient:   &http.Client{},
		timeout:      10 * time.Second,
		geocodeURL:   geocodeURL,
		findPlaceURL: findPlaceURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() model.ProviderName { return model.ProviderGoogle }

func (a *Adapter) Capabilities() model.Capabilities {
	return model.Capabilities{FreeText: true, Structured: true, PlaceLookup: true}
}

type geocodeResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []geocodeEntry `json:"results"`
}

type geocodeEntry struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

type findPlaceResponse struct {
	Status      string `json:"status"`
	Candidates  []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
}

func (a *Adapter) Geocode(ctx context.Context, variant model.Variant) (model.Result, error) {
	base := model.Result{
		APIUsed:     model.ProviderGoogle,
		VariantKind: variant.Kind,
		Timestamp:   time.Now().UTC(),
	}

	if a.apiKey == "" {
		base.Status = model.StatusError
		base.ErrorMessage = "no credentials"
		return base, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	var result model.Result
	var err error
	switch variant.Kind {
	case model.VariantPlaceLookup:
		result, err = a.geocodeByPlaceLookup(reqCtx, base, variant.Query)
	case model.VariantStructured:
		result, err = a.geocodeByComponents(reqCtx, base, variant.Structured)
	default:
		result, err = a.geocodeByAddress(reqCtx, base, variant.Query)
	}
	result.Duration = time.Since(start)
	return result, err
}

func (a *Adapter) geocodeByAddress(ctx context.Context, base model.Result, address string) (model.Result, error) {
	if address == "" {
		base.Status = model.StatusError
		base.ErrorMessage = "google: empty query for free-text variant"
		return base, nil
	}
	params := url.Values{"address": {address}, "key": {a.apiKey}}
	if a.countryBias != "" {
		params.Set("components", "country:"+a.countryBias)
	}
	return a.doGeocode(ctx, base, params)
}

func (a *Adapter) geocodeByComponents(ctx context.Context, base model.Result, s model.StructuredQuery) (model.Result, error) {
	components := make([]string, 0, 4)
	if s.PostalCode != "" {
		components = append(components, "postal_code:"+s.PostalCode)
	}
	if s.City != "" {
		components = append(components, "locality:"+s.City)
	}
	if s.Governorate != "" {
		components = append(components, "administrative_area:"+s.Governorate)
	}
	country := s.Country
	if country == "" {
		country = a.countryBias
	}
	if country != "" {
		components = append(components, "country:"+country)
	}
	if s.Street == "" && len(components) == 0 {
		base.Status = model.StatusError
		base.ErrorMessage = "google: empty structured query"
		return base, nil
	}

	params := url.Values{"key": {a.apiKey}}
	if s.Street != "" {
		params.Set("address", s.Street)
	}
	if len(components) > 0 {
		params.Set("components", strings.Join(components, "|"))
	}
	return a.doGeocode(ctx, base, params)
}

// geocodeByPlaceLookup resolves a place_id via findplacefromtext, then
// geocodes by that place_id, matching
// original_source/src/geocoding.py's get_place_id_with_google flow.
func (a *Adapter) geocodeByPlaceLookup(ctx context.Context, base model.Result, query string) (model.Result, error) {
	if query == "" {
		base.Status = model.StatusError
		base.ErrorMessage = "google: empty query for place lookup variant"
		return base, nil
	}

	params := url.Values{
		"input":     {query},
		"inputtype": {"textquery"},
		"fields":    {"place_id"},
		"key":       {a.apiKey},
	}
	base.RequestURL = a.findPlaceURL + "?input=" + url.QueryEscape(query) + "&inputtype=textquery&fields=place_id"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.findPlaceURL+"?"+params.Encode(), nil)
	if err != nil {
		return errored(base, eris.Wrap(err, "google: build findplacefromtext request")), nil
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errored(base, eris.Wrap(err, "google: findplacefromtext request failed")), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errored(base, eris.Wrap(err, "google: read findplacefromtext body")), nil
	}

	var fp findPlaceResponse
	if err := json.Unmarshal(body, &fp); err != nil {
		return errored(base, eris.Wrap(err, "google: parse findplacefromtext response")), nil
	}
	if fp.Status != "OK" || len(fp.Candidates) == 0 {
		base.Status = model.StatusZeroResults
		return base, nil
	}

	geoParams := url.Values{"place_id": {fp.Candidates[0].PlaceID}, "key": {a.apiKey}}
	return a.doGeocode(ctx, base, geoParams)
}

func (a *Adapter) doGeocode(ctx context.Context, base model.Result, params url.Values) (model.Result, error) {
	redacted := url.Values{}
	for k, v := range params {
		if k == "key" {
			continue
		}
		redacted[k] = v
	}
	base.RequestURL = a.geocodeURL + "?" + redacted.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.geocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return errored(base, eris.Wrap(err, "google: build request")), nil
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errored(base, eris.Wrap(err, "google: request failed")), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 500 {
		base.Status = model.StatusError
		base.ErrorMessage = eris.Errorf("google: server error %d", resp.StatusCode).Error()
		return base, nil
	}
	if resp.StatusCode != http.StatusOK {
		base.Status = model.StatusError
		base.ErrorMessage = eris.Errorf("google: unexpected status %d", resp.StatusCode).Error()
		return base, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errored(base, eris.Wrap(err, "google: read body")), nil
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errored(base, eris.Wrap(err, "google: parse response")), nil
	}

	switch parsed.Status {
	case "OK":
		if len(parsed.Results) == 0 {
			base.Status = model.StatusZeroResults
			return base, nil
		}
		entry := parsed.Results[0]
		base.Status = model.StatusOK
		base.Latitude, base.LatitudeValid = entry.Geometry.Location.Lat, true
		base.Longitude, base.LongitudeValid = entry.Geometry.Location.Lng, true
		base.FormattedAddress = entry.FormattedAddress
		base.PrecisionLevelRaw = entry.Geometry.LocationType
		base.PrecisionLevel, base.PrecisionLevelSet = mapPrecision(entry.Geometry.LocationType), true
		return base, nil
	case "ZERO_RESULTS":
		base.Status = model.StatusZeroResults
		return base, nil
	case "OVER_QUERY_LIMIT":
		base.Status = model.StatusOverQueryLimit
		base.ErrorMessage = "google: over query limit"
		return base, nil
	default:
		base.Status = model.StatusError
		if parsed.ErrorMessage != "" {
			base.ErrorMessage = "google: " + parsed.ErrorMessage
		} else {
			base.ErrorMessage = "google: status " + parsed.Status
		}
		return base, nil
	}
}

func errored(base model.Result, err error) model.Result {
	base.Status = model.StatusError
	base.ErrorMessage = err.Error()
	return base
}

// mapPrecision implements the Google location_type column of the
// normative precision table (spec §4.1).
func mapPrecision(locationType string) model.PrecisionLevel {
	switch strings.ToUpper(locationType) {
	case "ROOFTOP":
		return model.PrecisionRooftop
	case "RANGE_INTERPOLATED":
		return model.PrecisionRangeInterpolated
	case "GEOMETRIC_CENTER":
		return model.PrecisionGeometricCenter
	case "APPROXIMATE":
		return model.PrecisionApproximate
	default:
		return model.PrecisionUnknown
	}
}
