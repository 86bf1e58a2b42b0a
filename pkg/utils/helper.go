package utils

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// ==================== MONEY ====================

// Amounts are stored in minor units (paise, pence). Decimal is only used at
// the edges and for percentage math so nothing is rounded through float64.

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// PercentOf returns pct percent of amount, rounded down to a whole minor unit.
func PercentOf(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(decimal.NewFromInt(100)).Floor().IntPart()
}

func FormatAmount(minor int64, currency string) string {
	return strings.ToUpper(currency) + " " + FromMinorUnits(minor).StringFixed(2)
}
