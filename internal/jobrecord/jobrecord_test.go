package jobrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func ok(provider model.ProviderName, level model.PrecisionLevel) model.Result {
	return model.Result{
		Status:            model.StatusOK,
		LatitudeValid:     true,
		LongitudeValid:    true,
		PrecisionLevel:    level,
		PrecisionLevelSet: true,
		APIUsed:           provider,
	}
}

func failed() model.Result {
	return model.Result{Status: model.StatusError, ErrorMessage: "no provider produced a result"}
}

func TestOpen_GeneratesJobIDWhenEmpty(t *testing.T) {
	j := Open("", 10)
	assert.NotEmpty(t, j.JobID)
	assert.Equal(t, StatusInProgress, j.Status)
	assert.Equal(t, 10, j.TotalRows)
}

func TestOpen_KeepsProvidedJobID(t *testing.T) {
	j := Open("my-job", 5)
	assert.Equal(t, "my-job", j.JobID)
}

func TestFinalize_CountsAndHistograms(t *testing.T) {
	j := Open("job-1", 3)
	results := []model.Result{
		ok(model.ProviderHERE, model.PrecisionRooftop),
		ok(model.ProviderGoogle, model.PrecisionApproximate),
		failed(),
	}
	j.Finalize(results)

	assert.Equal(t, StatusSuccess, j.Status)
	assert.Equal(t, 2, j.SuccessCount)
	assert.Equal(t, 1, j.FailedCount)
	assert.Equal(t, 3, j.SuccessCount+j.FailedCount)
	assert.Equal(t, 1, j.PrecisionHistogram[model.PrecisionRooftop])
	assert.Equal(t, 1, j.PrecisionHistogram[model.PrecisionApproximate])
	assert.Equal(t, 1, j.APIHistogram[model.ProviderHERE])
	assert.Equal(t, 1, j.APIHistogram[model.ProviderGoogle])
	assert.True(t, j.Sealed())
	assert.False(t, j.EndedAt.IsZero())
}

func TestFinalize_PrecisionHistogramSumsToSuccessCount(t *testing.T) {
	j := Open("job-2", 4)
	results := []model.Result{
		ok(model.ProviderHERE, model.PrecisionRooftop),
		ok(model.ProviderHERE, model.PrecisionRooftop),
		ok(model.ProviderOSM, model.PrecisionGeometricCenter),
		failed(),
	}
	j.Finalize(results)

	sum := 0
	for _, n := range j.PrecisionHistogram {
		sum += n
	}
	assert.Equal(t, j.SuccessCount, sum)
}

func TestFinalize_IsIdempotentAfterSeal(t *testing.T) {
	j := Open("job-3", 1)
	j.Finalize([]model.Result{ok(model.ProviderHERE, model.PrecisionRooftop)})
	firstEnded := j.EndedAt

	j.Finalize([]model.Result{failed(), failed()})

	assert.Equal(t, firstEnded, j.EndedAt)
	assert.Equal(t, 1, j.SuccessCount)
}
