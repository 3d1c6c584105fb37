// Package quote compares a DEX swap quote against an independently derived
// benchmark output.
package quote

import (
	"math"

	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
)

// Input holds already-normalized values for one proposed swap of the native
// token (SOL) into the tracked token.
type Input struct {
	QuotedOutput      float64
	BenchmarkOutput   float64
	DexPriceNative    float64
	InputAmountNative float64
	NativeUSDPrice    amount.Optional
}

// Insights is the reconciliation result for one quote.
type Insights struct {
	BenchmarkOutput    float64         `json:"benchmark_output"`
	QuotedOutput       float64         `json:"quoted_output"`
	Difference         float64         `json:"difference"`
	PercentDiff        amount.Optional `json:"percent_diff"`
	USDValue           amount.Optional `json:"usd_value"`
	ImpliedPriceNative amount.Optional `json:"implied_price_native"`
	DexPriceNative     float64         `json:"dex_price_native"`
}

// Reconcile computes the signed discrepancy between the quoted and benchmark
// outputs. Degenerate divisions yield absent fields.
func Reconcile(in Input) Insights {
	diff := in.QuotedOutput - in.BenchmarkOutput

	out := Insights{
		BenchmarkOutput: in.BenchmarkOutput,
		QuotedOutput:    in.QuotedOutput,
		Difference:      diff,
		DexPriceNative:  in.DexPriceNative,
	}

	if in.BenchmarkOutput != 0 {
		out.PercentDiff = amount.Some(diff / in.BenchmarkOutput * 100)
	}
	if in.InputAmountNative != 0 {
		out.ImpliedPriceNative = amount.Some(in.QuotedOutput / in.InputAmountNative)
	}
	if in.NativeUSDPrice.Valid {
		out.USDValue = amount.Some(in.QuotedOutput * in.NativeUSDPrice.Value)
	}
	return out
}

// Benchmark derives the expected output of swapping inputNative at the
// aggregator's spot price (native per token).
func Benchmark(inputNative, dexPriceNative float64) amount.Optional {
	if dexPriceNative <= 0 || math.IsNaN(inputNative) {
		return amount.None
	}
	return amount.Some(inputNative / dexPriceNative)
}

// Exceeds reports whether the quote is worse than the benchmark by more than
// tolerancePct percent. Unknown discrepancies never exceed.
func (i Insights) Exceeds(tolerancePct float64) bool {
	if !i.PercentDiff.Valid {
		return false
	}
	return i.PercentDiff.Value < -math.Abs(tolerancePct)
}
