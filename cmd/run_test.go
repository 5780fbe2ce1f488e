//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-orchestrator/internal/config"
	"github.com/sells-group/geo-orchestrator/internal/model"
)

func TestReadCSVRows_ParsesHeaderAndRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	content := "name,street,city\nAcme Store,1 Rue de Paris,Tunis\nOther,,Sfax\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, header, err := readCSVRows(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "street", "city"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Store", rows[0].Get("name"))
	assert.Equal(t, "1 Rue de Paris", rows[0].Get("street"))
	assert.Equal(t, "", rows[1].Get("street"))
}

func TestWriteCSVResults_AppendsGeoColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	header := []string{"name"}
	rows := []model.Row{{"name": "Acme"}}
	results := []model.Result{
		{
			Status:            model.StatusOK,
			Latitude:          36.8,
			Longitude:         10.18,
			LatitudeValid:     true,
			LongitudeValid:    true,
			PrecisionLevel:    model.PrecisionRooftop,
			PrecisionLevelSet: true,
			APIUsed:           model.ProviderHERE,
			FormattedAddress:  "1 Rue de Paris, Tunis",
		},
	}

	require.NoError(t, writeCSVResults(path, header, rows, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geo_status,geo_latitude,geo_longitude,geo_precision_level,geo_formatted_address,geo_api_used,geo_error_message")
	assert.Contains(t, string(data), "OK")
	assert.Contains(t, string(data), "ROOFTOP")
	assert.Contains(t, string(data), "here")
}

func TestRunCmd_RequiredFlagsExist(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("input"))
	require.NotNil(t, runCmd.Flags().Lookup("output"))
	require.NotNil(t, runCmd.Flags().Lookup("street-col"))
	require.NotNil(t, runCmd.Flags().Lookup("mode"))
}

func TestBuildEngine_FailsWithNoCredentials(t *testing.T) {
	_, err := buildEngine(&config.Config{})
	assert.Error(t, err)
}

func TestBuildEngine_SucceedsWithAtLeastOneProvider(t *testing.T) {
	c := &config.Config{Providers: config.ProvidersConfig{HEREAPIKey: "key"}}
	engine, err := buildEngine(c)
	require.NoError(t, err)
	assert.NotNil(t, engine)
}
