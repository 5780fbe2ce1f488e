package osm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func TestGeocode_FreeText_RequiresUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "12 Avenue Habib Bourguiba", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"lat":"36.8","lon":"10.18","display_name":"12 Avenue Habib Bourguiba, Tunis","type":"house","class":"building"}]`))
	}))
	defer srv.Close()

	a := New("contact@example.com")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantReformatted, Query: "12 Avenue Habib Bourguiba"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, res.Status)
	assert.Equal(t, model.PrecisionRooftop, res.PrecisionLevel)
	assert.InDelta(t, 36.8, res.Latitude, 0.001)
	assert.NotEmpty(t, res.RequestURL)
	assert.NotContains(t, res.RequestURL, "contact@example.com")
}

func TestGeocode_Structured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Tunis", r.URL.Query().Get("city"))
		w.Write([]byte(`[{"lat":"36.8","lon":"10.18","display_name":"Tunis","type":"city","class":"place"}]`))
	}))
	defer srv.Close()

	a := New("contact@example.com")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{
		Kind:       model.VariantStructured,
		Structured: model.StructuredQuery{City: "Tunis", Country: "Tunisia"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, res.Status)
	assert.Equal(t, model.PrecisionApproximate, res.PrecisionLevel)
}

func TestGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := New("contact@example.com")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantOriginal, Query: "XYZ_NONSENSE_0000"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusZeroResults, res.Status)
}

func TestGeocode_TooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New("contact@example.com")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantOriginal, Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOverQueryLimit, res.Status)
}

func TestMapPrecision(t *testing.T) {
	cases := map[string]model.PrecisionLevel{
		"house":         model.PrecisionRooftop,
		"building":      model.PrecisionRooftop,
		"road":          model.PrecisionRangeInterpolated,
		"neighbourhood": model.PrecisionGeometricCenter,
		"city":          model.PrecisionApproximate,
		"planet":        model.PrecisionGeometricCenter,
	}
	for raw, want := range cases {
		assert.Equal(t, want, mapPrecision(raw), raw)
	}
}

func TestCapabilities_FreeTextAndStructured(t *testing.T) {
	a := New("contact@example.com")
	caps := a.Capabilities()
	assert.True(t, caps.FreeText)
	assert.True(t, caps.Structured)
	assert.False(t, caps.PlaceLookup)
}
