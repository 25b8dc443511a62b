package market

import "math/big"

// PriceScale is the fixed-point scale for prices (1e18).
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Constant-product swap fee, PancakeSwap-style 0.25%.
const (
	feeNumerator   = 9975
	feeDenominator = 10000
)

// AmountOut computes the constant-product swap output for amountIn against
// (reserveIn, reserveOut), fee included. Integer arithmetic, truncating
// division:
//
//	out = (in * 9975 * reserveOut) / (reserveIn * 10000 + in * 9975)
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 ||
		reserveIn == nil || reserveIn.Sign() <= 0 ||
		reserveOut == nil || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, inWithFee)

	return numerator.Div(numerator, denominator)
}

// SpotPriceFromReserves returns the pool-implied price of the token in the
// base asset, scaled by PriceScale: base * 1e18 / token.
func SpotPriceFromReserves(r *PoolReserves) *big.Int {
	if r == nil || r.Token == nil || r.Token.Sign() <= 0 || r.Base == nil {
		return new(big.Int)
	}
	price := new(big.Int).Mul(r.Base, PriceScale)
	return price.Div(price, r.Token)
}
