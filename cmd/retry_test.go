//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func TestReadPreviousRunCSV_SplitsOriginalColumnsFromGeoColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prev.csv")
	content := "name,street,geo_status,geo_latitude,geo_longitude,geo_precision_level,geo_formatted_address,geo_api_used,geo_error_message\n" +
		"Acme,1 Rue de Paris,ZERO_RESULTS,0,0,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, priors, header, err := readPreviousRunCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "street"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].Get("name"))
	assert.Equal(t, "1 Rue de Paris", rows[0].Get("street"))

	require.Len(t, priors, 1)
	assert.Equal(t, model.StatusZeroResults, priors[0].PreviousStatus)
}

func TestReadPreviousRunCSV_RejectsMissingGeoColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,street\nAcme,1 Rue\n"), 0o644))

	_, _, _, err := readPreviousRunCSV(path)
	assert.Error(t, err)
}

func TestRetryCmd_RequiredFlagsExist(t *testing.T) {
	require.NotNil(t, retryCmd.Flags().Lookup("input"))
	require.NotNil(t, retryCmd.Flags().Lookup("output"))
}
