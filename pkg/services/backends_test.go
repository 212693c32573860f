package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/llm"
	"github.com/nl2db/nl2db/pkg/models"
	"github.com/nl2db/nl2db/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
}

func contextTables(t *testing.T) []*models.TableDescriptor {
	t.Helper()
	return testCatalog(t).Select("count cameras by status", 5, 8000)
}

func newTestLLMBackend(gen llm.TextGenerator, breaker *llm.CircuitBreaker) SQLBackend {
	return NewLLMBackend(LLMBackendConfig{
		Name:      BackendGemini,
		Generator: gen,
		Breaker:   breaker,
		Retry:     fastRetry(),
		Timeout:   time.Second,
		MaxRows:   1000,
		Prompt:    catalog.PromptContextOptions{Database: "prod", Schema: "public"},
	}, zap.NewNop())
}

func TestLLMBackend_ExtractsFencedSQL(t *testing.T) {
	gen := llm.NewMockTextGenerator("Here you go:\n```sql\nSELECT status, COUNT(*) FROM ods_camera_info_f GROUP BY status;\n```")
	backend := newTestLLMBackend(gen, nil)

	got, err := backend.Generate(context.Background(), "Count cameras by status", contextTables(t))

	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) FROM ods_camera_info_f GROUP BY status", got)
	assert.Equal(t, BackendGemini, backend.Name())
	assert.Equal(t, 1, gen.Calls())
	assert.Contains(t, gen.LastPrompt(), "Count cameras by status")
	assert.Contains(t, gen.LastPrompt(), "ods_camera_info_f")
}

func TestLLMBackend_RetriesRetryableErrors(t *testing.T) {
	var calls atomic.Int32
	gen := llm.NewMockTextGenerator("")
	gen.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		if calls.Add(1) == 1 {
			return nil, llm.NewError(llm.ErrorTypeRateLimited, "rate limited", true, nil)
		}
		return &llm.GenerateResponseResult{Content: "SELECT COUNT(*) FROM fleet_info"}, nil
	}
	breaker := llm.NewCircuitBreaker(BackendGemini, llm.CircuitBreakerConfig{Threshold: 3, ResetAfter: time.Minute})
	backend := newTestLLMBackend(gen, breaker)

	got, err := backend.Generate(context.Background(), "how many fleets", contextTables(t))

	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM fleet_info", got)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, llm.CircuitClosed, breaker.State())
	assert.Equal(t, 0, breaker.ConsecutiveFailures())
}

func TestLLMBackend_NonRetryableFailureTripsBreaker(t *testing.T) {
	gen := llm.NewMockTextGenerator("")
	gen.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return nil, llm.NewError(llm.ErrorTypeAuth, "invalid api key", false, nil)
	}
	breaker := llm.NewCircuitBreaker(BackendGemini, llm.CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute})
	backend := newTestLLMBackend(gen, breaker)

	for i := 0; i < 2; i++ {
		_, err := backend.Generate(context.Background(), "how many fleets", contextTables(t))
		assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	}
	assert.Equal(t, 2, gen.Calls(), "non-retryable errors are not retried")
	assert.Equal(t, llm.CircuitOpen, breaker.State())

	_, err := backend.Generate(context.Background(), "how many fleets", contextTables(t))
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.ErrorIs(t, err, llm.ErrCircuitOpen)
	assert.Equal(t, 2, gen.Calls(), "open circuit skips the call")
}

func TestLLMBackend_HalfOpenTrialRecovers(t *testing.T) {
	fail := atomic.Bool{}
	fail.Store(true)
	gen := llm.NewMockTextGenerator("")
	gen.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		if fail.Load() {
			return nil, llm.NewError(llm.ErrorTypeAuth, "invalid api key", false, nil)
		}
		return &llm.GenerateResponseResult{Content: "SELECT 1"}, nil
	}
	breaker := llm.NewCircuitBreaker(BackendGemini, llm.CircuitBreakerConfig{Threshold: 1, ResetAfter: 10 * time.Millisecond})
	backend := newTestLLMBackend(gen, breaker)

	_, err := backend.Generate(context.Background(), "q", nil)
	require.Error(t, err)
	require.Equal(t, llm.CircuitOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)
	fail.Store(false)

	got, err := backend.Generate(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
	assert.Equal(t, llm.CircuitClosed, breaker.State())
}

func TestLLMBackend_MissingInformation(t *testing.T) {
	gen := llm.NewMockTextGenerator("MISSING: no table stores weather data")
	backend := newTestLLMBackend(gen, nil)

	_, err := backend.Generate(context.Background(), "what is the weather", contextTables(t))

	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.ErrorIs(t, err, llm.ErrNoSQL)
	assert.Contains(t, err.Error(), "weather")
}

func TestLLMBackend_Cancelled(t *testing.T) {
	gen := llm.NewMockTextGenerator("SELECT 1")
	breaker := llm.NewCircuitBreaker(BackendGemini, llm.CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	backend := newTestLLMBackend(gen, breaker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Generate(ctx, "q", nil)
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
	assert.Equal(t, 0, gen.Calls())
	assert.Equal(t, llm.CircuitClosed, breaker.State())
}

func TestLLMBackend_CancelledMidCallDoesNotTripBreaker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := llm.NewMockTextGenerator("")
	gen.GenerateResponseFunc = func(callCtx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		cancel()
		<-callCtx.Done()
		return nil, callCtx.Err()
	}
	breaker := llm.NewCircuitBreaker(BackendGemini, llm.CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	backend := newTestLLMBackend(gen, breaker)

	_, err := backend.Generate(ctx, "q", nil)

	assert.ErrorIs(t, err, apperrors.ErrCancelled)
	assert.Equal(t, 1, gen.Calls())
	assert.Equal(t, llm.CircuitClosed, breaker.State())
}

func TestRuleBasedBackend(t *testing.T) {
	backend := rulesBackend()
	assert.Equal(t, BackendRules, backend.Name())

	got, err := backend.Generate(context.Background(), "Count cameras by status", contextTables(t))
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) FROM ods_camera_info_f GROUP BY status LIMIT 1000", got)

	_, err = backend.Generate(context.Background(), "Delete all cameras", contextTables(t))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedIntent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = backend.Generate(ctx, "Count cameras by status", contextTables(t))
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
}
