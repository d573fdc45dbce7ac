package sampler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategies(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, s *Strategies)
	}{
		{
			name: "probabilistic by name",
			body: `{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":0.5}}`,
			check: func(t *testing.T, s *Strategies) {
				assert.Equal(t, StrategyProbabilistic, s.StrategyType)
				assert.Equal(t, 0.5, s.ProbabilisticSampling.SamplingRate)
			},
		},
		{
			name: "rate limiting by number",
			body: `{"strategyType":1,"rateLimitingSampling":{"maxTracesPerSecond":10}}`,
			check: func(t *testing.T, s *Strategies) {
				assert.Equal(t, StrategyRateLimiting, s.StrategyType)
				assert.Equal(t, 10.0, s.RateLimitingSampling.MaxTracesPerSecond)
			},
		},
		{
			name: "operation sampling",
			body: `{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":0.1},
				"operationSampling":{"defaultSamplingProbability":0.1,"defaultLowerBoundTracesPerSecond":0.5,
				"perOperationStrategies":[{"operation":"GET /","probabilisticSampling":{"samplingRate":1}}]}}`,
			check: func(t *testing.T, s *Strategies) {
				require.NotNil(t, s.OperationSampling)
				assert.Equal(t, 0.5, s.OperationSampling.DefaultLowerBoundTracesPerSecond)
				require.Len(t, s.OperationSampling.PerOperationStrategies, 1)
				assert.Equal(t, "GET /", s.OperationSampling.PerOperationStrategies[0].Operation)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseStrategies([]byte(tt.body))
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestParseStrategies_Invalid(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"strategyType":"ADAPTIVE"}`,
		`{"strategyType":7}`,
		`{"strategyType":true}`,
		`{"strategyType":"PROBABILISTIC"}`,
		`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":1.5}}`,
		`{"strategyType":"RATE_LIMITING","rateLimitingSampling":{"maxTracesPerSecond":-1}}`,
		`{"operationSampling":{"defaultSamplingProbability":0.1,"defaultLowerBoundTracesPerSecond":-2}}`,
		`{"operationSampling":{"defaultSamplingProbability":0.1,"perOperationStrategies":[{"operation":"x"}]}}`,
	}

	for _, body := range bodies {
		_, err := ParseStrategies([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidStrategy, body)
	}

	var s *Strategies
	assert.ErrorIs(t, s.Validate(), ErrInvalidStrategy)
}

func TestStrategyType_JSON(t *testing.T) {
	data, err := json.Marshal(Strategies{StrategyType: StrategyRateLimiting})
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategyType":"RATE_LIMITING"}`, string(data))
	assert.Equal(t, "StrategyType(9)", StrategyType(9).String())
}

func TestStrategies_Equal(t *testing.T) {
	a, err := ParseStrategies([]byte(`{"strategyType":0,"probabilisticSampling":{"samplingRate":0.2}}`))
	require.NoError(t, err)
	b, err := ParseStrategies([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":0.2}}`))
	require.NoError(t, err)
	c, err := ParseStrategies([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":0.3}}`))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	var none *Strategies
	assert.False(t, none.Equal(a))
}
