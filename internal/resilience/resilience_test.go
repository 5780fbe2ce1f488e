package resilience

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassifyOK, Classify(model.Result{Status: model.StatusOK}))
	assert.Equal(t, ClassifyFallback, Classify(model.Result{Status: model.StatusZeroResults}))
	assert.Equal(t, ClassifyFallback, Classify(model.Result{Status: model.StatusError, ErrorMessage: "timeout"}))
	assert.Equal(t, ClassifyQuotaExhausted, Classify(model.Result{Status: model.StatusOverQueryLimit}))
	assert.Equal(t, ClassifyCancelled, Classify(model.Result{Status: model.StatusError, ErrorMessage: "cancelled"}))
}

func TestSuppressor_TripAndCheck(t *testing.T) {
	s := NewSuppressor()
	assert.False(t, s.Suppressed(model.ProviderGoogle))

	s.Trip(model.ProviderGoogle)
	assert.True(t, s.Suppressed(model.ProviderGoogle))
	assert.False(t, s.Suppressed(model.ProviderHERE))
}

func TestSuppressor_ObserveTripsOnQuota(t *testing.T) {
	s := NewSuppressor()
	class := s.Observe(model.Result{Status: model.StatusOverQueryLimit, APIUsed: model.ProviderGoogle})
	assert.Equal(t, ClassifyQuotaExhausted, class)
	assert.True(t, s.Suppressed(model.ProviderGoogle))
}

func TestSuppressor_ObserveDoesNotTripOnOK(t *testing.T) {
	s := NewSuppressor()
	s.Observe(model.Result{Status: model.StatusOK, APIUsed: model.ProviderHERE})
	assert.False(t, s.Suppressed(model.ProviderHERE))
}

func TestSuppressor_ConcurrentAccess(t *testing.T) {
	s := NewSuppressor()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Trip(model.ProviderOSM)
			s.Suppressed(model.ProviderOSM)
		}()
	}
	wg.Wait()
	assert.True(t, s.Suppressed(model.ProviderOSM))
}
