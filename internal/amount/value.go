// Package amount coerces the numeric shapes returned by RPC nodes and price
// APIs into float64 and renders them back for display.
package amount

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the representation held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindToken
)

// Conversions is the set of conversions a TokenAmount supports.
type Conversions uint8

const (
	// ConvertExact converts the raw units without rounding.
	ConvertExact Conversions = 1 << iota
	// ConvertNumeric converts through a binary floating point approximation.
	ConvertNumeric
	// ConvertFixed renders a decimal string rounded to the requested places.
	ConvertFixed
)

// conversionOrder lists conversions from most to least precise.
var conversionOrder = []Conversions{ConvertExact, ConvertNumeric, ConvertFixed}

// TokenAmount is an SPL amount in base units.
type TokenAmount struct {
	Raw         *big.Int
	Decimals    int32
	Conversions Conversions
}

// NewTokenAmount returns an amount supporting every conversion.
func NewTokenAmount(raw *big.Int, decimals int32) TokenAmount {
	return TokenAmount{
		Raw:         raw,
		Decimals:    decimals,
		Conversions: ConvertExact | ConvertNumeric | ConvertFixed,
	}
}

// TokenAmountFromUint64 is a shortcut for on-chain u64 amounts.
func TokenAmountFromUint64(raw uint64, decimals int32) TokenAmount {
	return NewTokenAmount(new(big.Int).SetUint64(raw), decimals)
}

func (t TokenAmount) decimal() decimal.Decimal {
	return decimal.NewFromBigInt(t.Raw, -t.Decimals)
}

func (t TokenAmount) exact() float64 {
	f, _ := t.decimal().Float64()
	return f
}

func (t TokenAmount) numeric() float64 {
	num := new(big.Float).SetInt(t.Raw)
	den := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil))
	f, _ := new(big.Float).Quo(num, den).Float64()
	return f
}

func (t TokenAmount) fixed(places int) (float64, bool) {
	return parseFinite(t.decimal().StringFixed(int32(places)))
}

// Value is one of: null, a plain number, a numeric string or a token amount.
type Value struct {
	kind  Kind
	num   float64
	str   string
	token TokenAmount
}

func Null() Value { return Value{kind: KindNull} }

func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Token(t TokenAmount) Value { return Value{kind: KindToken, token: t} }

func (v Value) Kind() Kind { return v.kind }

// Normalize resolves v to a finite float64. decimals only applies to the fixed
// conversion of token amounts.
func Normalize(v Value, decimals int) Optional {
	switch v.kind {
	case KindNumber:
		return Some(v.num)
	case KindString:
		f, ok := parseFinite(v.str)
		if !ok {
			return None
		}
		return Some(f)
	case KindToken:
		return normalizeToken(v.token, decimals)
	default:
		return None
	}
}

func normalizeToken(t TokenAmount, decimals int) Optional {
	if t.Raw == nil {
		return None
	}
	if decimals < 0 {
		decimals = 0
	}
	for _, c := range conversionOrder {
		if t.Conversions&c == 0 {
			continue
		}
		switch c {
		case ConvertExact:
			return Some(t.exact())
		case ConvertNumeric:
			return Some(t.numeric())
		case ConvertFixed:
			f, ok := t.fixed(decimals)
			if !ok {
				return None
			}
			return Some(f)
		}
	}
	return None
}

func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
