package payroll

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount of sterling held as whole pence
type Money int64

// maxPounds bounds decoded amounts so sums of a few dozen stay inside int64
const maxPounds = 1e13

// FromPounds converts a pound amount to pence, rounding half away from zero
func FromPounds(pounds float64) Money {
	return Money(math.Round(pounds * 100))
}

// Pounds returns the amount as a float of pounds
func (m Money) Pounds() float64 {
	return float64(m) / 100
}

// String renders the amount with two decimals, e.g. "2900.00"
func (m Money) String() string {
	sign := ""
	pence := int64(m)
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s%d.%02d", sign, pence/100, pence%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in pounds
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	pounds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %q: %w", raw, err)
	}
	if math.IsNaN(pounds) || math.Abs(pounds) > maxPounds {
		return fmt.Errorf("money amount %q out of range", raw)
	}

	*m = FromPounds(pounds)
	return nil
}

// Deduction is an itemised amount taken off gross pay
type Deduction struct {
	Type   string `json:"type" validate:"required,max=100"`
	Amount Money  `json:"amount" validate:"min=0,max=100000000"`
}

// Breakdown is the arithmetic behind a payslip
type Breakdown struct {
	BasicPay          Money
	OvertimePay       Money
	HolidayPay        Money
	NationalInsurance Money
	IncomeTax         Money
	OtherDeductions   []Deduction
}

// Gross is basic plus overtime plus holiday pay
func (b Breakdown) Gross() Money {
	return b.BasicPay + b.OvertimePay + b.HolidayPay
}

// TotalDeductions is National Insurance, income tax and every itemised deduction
func (b Breakdown) TotalDeductions() Money {
	total := b.NationalInsurance + b.IncomeTax
	for _, d := range b.OtherDeductions {
		total += d.Amount
	}
	return total
}

// Net is gross pay minus total deductions
func (b Breakdown) Net() Money {
	return b.Gross() - b.TotalDeductions()
}
