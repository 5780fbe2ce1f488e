// Package osm adapts the OSM/Nominatim search API to the common
// Provider interface (C1).
//
// Grounded on original_source/src/apis/osm.py's geocode_with_osm /
// determine_osm_precision (type/class precision mapping, required
// email contact param) and the teacher's functional-option
// construction style (pkg/geocode/client.go's Option pattern).
package osm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

const searchURL = "https://nominatim.openstreetmap.org/search"

// Adapter calls the Nominatim /search endpoint. Nominatim's usage
// policy requires a descriptive User-Agent and caps calls at 1/s
// globally; the 1 rps floor is enforced by internal/ratelimit, not
// here — this adapter only sets the required header and contact email.
type Adapter struct {
	email      string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	baseURL    string // overridable in tests
}

type Option func(*Adapter)

func WithHTTPClient(c *http.Client) Option { return func(a *Adapter) { a.httpClient = c } }

func WithUserAgent(ua string) Option { return func(a *Adapter) { a.userAgent = ua } }

func WithTimeout(d time.Duration) Option { return func(a *Adapter) { a.timeout = d } }

func New(email string, opts ...Option) *Adapter {
	a := &Adapter{
		email:      email,
		userAgent:  "geo-orchestrator/1.0",
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
		baseURL:    searchURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() model.ProviderName { return model.ProviderOSM }

func (a *Adapter) Capabilities() model.Capabilities {
	return model.Capabilities{FreeText: true, Structured: true}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Class       string `json:"class"`
}

func (a *Adapter) Geocode(ctx context.Context, variant model.Variant) (model.Result, error) {
	base := model.Result{
		APIUsed:     model.ProviderOSM,
		VariantKind: variant.Kind,
		Timestamp:   time.Now().UTC(),
	}

	params := url.Values{
		"format":        {"json"},
		"addressdetails": {"1"},
		"limit":         {"1"},
	}
	if a.email != "" {
		params.Set("email", a.email)
	}

	switch variant.Kind {
	case model.VariantStructured:
		s := variant.Structured
		if s.Street != "" {
			params.Set("street", s.Street)
		}
		if s.City != "" {
			params.Set("city", s.City)
		}
		if s.PostalCode != "" {
			params.Set("postalcode", s.PostalCode)
		}
		if s.Country != "" {
			params.Set("country", s.Country)
		}
		if s.Street == "" && s.City == "" && s.PostalCode == "" && s.Country == "" {
			base.Status = model.StatusError
			base.ErrorMessage = "osm: empty structured query"
			return base, nil
		}
	default:
		if variant.Query == "" {
			base.Status = model.StatusError
			base.ErrorMessage = "osm: empty query for free-text variant"
			return base, nil
		}
		params.Set("q", variant.Query)
	}

	redacted := url.Values{}
	for k, v := range params {
		if k == "email" {
			continue
		}
		redacted[k] = v
	}
	base.RequestURL = a.baseURL + "?" + redacted.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errored(base, eris.Wrap(err, "osm: build request")), nil
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	base.Duration = time.Since(start)
	if err != nil {
		return errored(base, eris.Wrap(err, "osm: request failed")), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		base.Status = model.StatusOverQueryLimit
		base.ErrorMessage = "osm: over query limit"
		return base, nil
	}
	if resp.StatusCode >= 500 {
		base.Status = model.StatusError
		base.ErrorMessage = eris.Errorf("osm: server error %d", resp.StatusCode).Error()
		return base, nil
	}
	if resp.StatusCode != http.StatusOK {
		base.Status = model.StatusError
		base.ErrorMessage = eris.Errorf("osm: unexpected status %d", resp.StatusCode).Error()
		return base, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errored(base, eris.Wrap(err, "osm: read body")), nil
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return errored(base, eris.Wrap(err, "osm: parse response")), nil
	}

	if len(results) == 0 {
		base.Status = model.StatusZeroResults
		return base, nil
	}

	first := results[0]
	lat, lon, err := parseLatLon(first.Lat, first.Lon)
	if err != nil {
		return errored(base, eris.Wrap(err, "osm: parse coordinates")), nil
	}

	base.Status = model.StatusOK
	base.Latitude, base.LatitudeValid = lat, true
	base.Longitude, base.LongitudeValid = lon, true
	base.FormattedAddress = first.DisplayName
	base.PrecisionLevelRaw = first.Class + "/" + first.Type
	base.PrecisionLevel, base.PrecisionLevelSet = mapPrecision(first.Type), true
	return base, nil
}

func errored(base model.Result, err error) model.Result {
	base.Status = model.StatusError
	base.ErrorMessage = err.Error()
	return base
}

func parseLatLon(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "invalid lat %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "invalid lon %q", lonStr)
	}
	return lat, lon, nil
}

// mapPrecision implements the OSM type/class column of the normative
// precision table (spec §4.1), grounded on
// original_source/src/apis/osm.py's determine_osm_precision.
func mapPrecision(osmType string) model.PrecisionLevel {
	switch osmType {
	case "house", "building", "address", "residential", "apartments", "shop", "amenity", "office":
		return model.PrecisionRooftop
	case "road", "street", "path":
		return model.PrecisionRangeInterpolated
	case "neighbourhood", "suburb", "quarter", "district":
		return model.PrecisionGeometricCenter
	case "city", "town", "village", "municipality", "county", "state", "region":
		return model.PrecisionApproximate
	default:
		return model.PrecisionGeometricCenter
	}
}
