package billing

import "github.com/shopspring/decimal"

// DefaultCurrency is used when an estimate snapshot does not carry one
const DefaultCurrency = "usd"

// FromMinorUnits converts a processor amount in cents to a decimal amount
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// ToMinorUnits converts a decimal amount to cents, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// RoundMoney rounds to two decimal places
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
