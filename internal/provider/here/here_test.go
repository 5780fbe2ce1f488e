package here

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func TestGeocode_Rooftop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Write([]byte(`{"items":[{"position":{"lat":36.8,"lng":10.18},"address":{"label":"12 Avenue Habib Bourguiba"},"resultType":"houseNumber"}]}`))
	}))
	defer srv.Close()

	a := New("test-key")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantReformatted, Query: "12 Avenue Habib Bourguiba"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, res.Status)
	assert.Equal(t, model.PrecisionRooftop, res.PrecisionLevel)
	assert.InDelta(t, 36.8, res.Latitude, 0.001)
	assert.InDelta(t, 10.18, res.Longitude, 0.001)
	assert.Equal(t, model.ProviderHERE, res.APIUsed)
	assert.NotEmpty(t, res.RequestURL)
	assert.NotContains(t, res.RequestURL, "test-key")
}

func TestGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	a := New("test-key")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantOriginal, Query: "XYZ_NONSENSE_0000"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusZeroResults, res.Status)
}

func TestGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New("test-key")
	a.baseURL = srv.URL

	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantOriginal, Query: "whatever"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, res.Status)
}

func TestGeocode_NoCredentials(t *testing.T) {
	a := New("")
	res, err := a.Geocode(context.Background(), model.Variant{Kind: model.VariantOriginal, Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, "no credentials", res.ErrorMessage)
}

func TestCapabilities_FreeTextOnly(t *testing.T) {
	a := New("key")
	caps := a.Capabilities()
	assert.True(t, caps.FreeText)
	assert.False(t, caps.Structured)
	assert.False(t, caps.PlaceLookup)
}

func TestMapPrecision(t *testing.T) {
	cases := map[string]model.PrecisionLevel{
		"houseNumber":        model.PrecisionRooftop,
		"intersection":       model.PrecisionRangeInterpolated,
		"street":             model.PrecisionRangeInterpolated,
		"postalCode":         model.PrecisionGeometricCenter,
		"city":               model.PrecisionApproximate,
		"administrativeArea": model.PrecisionApproximate,
		"somethingElse":      model.PrecisionUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, mapPrecision(raw), raw)
	}
}
