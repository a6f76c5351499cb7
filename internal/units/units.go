// Package units converts between wei and human readable token amounts.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of native currency and of the
// mock test token.
const EtherDecimals = 18

// FormatUnits renders amount with the given number of decimals, trimming
// trailing zeros. A nil amount renders as "0".
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FormatEther renders a wei amount in ether.
func FormatEther(amount *big.Int) string {
	return FormatUnits(amount, EtherDecimals)
}

// FormatEtherFixed renders a wei amount in ether with exactly places decimals.
func FormatEtherFixed(amount *big.Int, places int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -EtherDecimals).StringFixed(places)
}

// ParseUnits converts a decimal string such as "1.5" to base units.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseEther converts an ether amount to wei.
func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, EtherDecimals)
}
