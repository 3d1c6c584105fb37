package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
)

func TestReconcileExample(t *testing.T) {
	got := Reconcile(Input{
		QuotedOutput:      98.5,
		BenchmarkOutput:   100,
		DexPriceNative:    0.01,
		InputAmountNative: 1,
		NativeUSDPrice:    amount.Some(150),
	})

	assert.InDelta(t, -1.5, got.Difference, 1e-9)
	require.True(t, got.PercentDiff.Valid)
	assert.InDelta(t, -1.5, got.PercentDiff.Value, 1e-9)
	require.True(t, got.ImpliedPriceNative.Valid)
	assert.InDelta(t, 98.5, got.ImpliedPriceNative.Value, 1e-9)
	require.True(t, got.USDValue.Valid)
	assert.InDelta(t, 14775, got.USDValue.Value, 1e-9)
	assert.Equal(t, 0.01, got.DexPriceNative)
	assert.Equal(t, "-1.50%", amount.FormatPercent(got.PercentDiff, amount.DefaultPercentDigits))
}

func TestReconcileDegenerateInputs(t *testing.T) {
	tests := []struct {
		name        string
		in          Input
		wantPercent bool
		wantImplied bool
		wantUSD     bool
	}{
		{
			name:        "zero benchmark",
			in:          Input{QuotedOutput: 5, BenchmarkOutput: 0, DexPriceNative: 0.2, InputAmountNative: 1},
			wantImplied: true,
		},
		{
			name:        "zero input",
			in:          Input{QuotedOutput: 5, BenchmarkOutput: 4, DexPriceNative: 0.2, NativeUSDPrice: amount.Some(100)},
			wantPercent: true,
			wantUSD:     true,
		},
		{
			name: "everything zero",
			in:   Input{DexPriceNative: 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.in)
			assert.Equal(t, tt.wantPercent, got.PercentDiff.Valid)
			assert.Equal(t, tt.wantImplied, got.ImpliedPriceNative.Valid)
			assert.Equal(t, tt.wantUSD, got.USDValue.Valid)
			assert.Equal(t, tt.in.QuotedOutput-tt.in.BenchmarkOutput, got.Difference)
			assert.Equal(t, tt.in.DexPriceNative, got.DexPriceNative)
		})
	}
}

func TestReconcileZeroIsNotUnknown(t *testing.T) {
	got := Reconcile(Input{QuotedOutput: 10, BenchmarkOutput: 10, DexPriceNative: 1, InputAmountNative: 10, NativeUSDPrice: amount.Some(0)})

	require.True(t, got.PercentDiff.Valid)
	assert.Zero(t, got.PercentDiff.Value)
	require.True(t, got.USDValue.Valid)
	assert.Zero(t, got.USDValue.Value)
}

func TestBenchmark(t *testing.T) {
	b := Benchmark(1, 0.01)
	require.True(t, b.Valid)
	assert.InDelta(t, 100, b.Value, 1e-9)

	assert.False(t, Benchmark(1, 0).Valid)
	assert.False(t, Benchmark(1, -2).Valid)
}

func TestInsightsExceeds(t *testing.T) {
	worse := Reconcile(Input{QuotedOutput: 95, BenchmarkOutput: 100, DexPriceNative: 0.01, InputAmountNative: 1})
	better := Reconcile(Input{QuotedOutput: 105, BenchmarkOutput: 100, DexPriceNative: 0.01, InputAmountNative: 1})
	unknown := Reconcile(Input{QuotedOutput: 105, DexPriceNative: 0.01, InputAmountNative: 1})

	assert.True(t, worse.Exceeds(1))
	assert.False(t, worse.Exceeds(10))
	assert.False(t, better.Exceeds(1))
	assert.False(t, unknown.Exceeds(1))
}
