package engine

import "github.com/shopspring/decimal"

const (
	// BaseUnitVolatility is the fraction of price a move of volatility 1.0 spans.
	BaseUnitVolatility = 0.01
	trendWeight        = 0.5
	// PriceFloor keeps every simulated price strictly positive.
	PriceFloor = 0.01
)

// PriceChange returns a random price delta for a single step.
//
// The uniform draw in [-1, 1] is shifted by trend*0.5 and scaled by
// price*BaseUnitVolatility*volatility, so an extreme draw under full trend
// may exceed the nominal bound by up to 50%. The delta is rounded to three
// decimals below 10 and to two decimals otherwise.
func PriceChange(rng *RNG, price, volatility, trend float64) float64 {
	maxChange := price * BaseUnitVolatility * volatility
	factor := rng.Uniform(-1, 1) + trend*trendWeight
	return roundPrice(maxChange*factor, price)
}

// MaxPriceChange is the largest absolute delta PriceChange can return for
// |trend| <= 1, before rounding.
func MaxPriceChange(price, volatility float64) float64 {
	return price * BaseUnitVolatility * volatility * (1 + trendWeight)
}

func pricePlaces(price float64) int32 {
	if price < 10 {
		return 3
	}
	return 2
}

func roundPrice(v, reference float64) float64 {
	return roundTo(v, pricePlaces(reference))
}

func roundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// applyChange adds delta to price, rounds and floors the result.
func applyChange(price, delta float64) float64 {
	next := roundPrice(price+delta, price)
	if next < PriceFloor {
		next = PriceFloor
	}
	return next
}

// changePercent expresses the accumulated change relative to the reference
// price the change is measured from.
func changePercent(price, change float64) float64 {
	ref := price - change
	if ref <= 0 {
		return 0
	}
	return roundTo(change/ref*100, 2)
}
