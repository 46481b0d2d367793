package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carelink/shift-portal/pkg/payroll"
	"github.com/google/uuid"
)

// Deductions is the JSONB list of itemised payslip deductions
type Deductions []payroll.Deduction

// Value implements the driver.Valuer interface. The JSON is sent as text
// because lib/pq encodes []byte parameters as bytea.
func (d Deductions) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]payroll.Deduction(d))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (d *Deductions) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = Deductions{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Deductions", src)
	}
	var items []payroll.Deduction
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to decode deductions: %w", err)
	}
	*d = items
	return nil
}

// Payslip is a periodic statement of a worker's pay from one care home
type Payslip struct {
	ID                uuid.UUID     `json:"payslip_id" db:"id"`
	WorkerID          uuid.UUID     `json:"worker_id" db:"worker_id"`
	CareHomeID        uuid.UUID     `json:"care_home_id" db:"care_home_id"`
	PeriodStart       string        `json:"period_start" db:"period_start"`
	PeriodEnd         string        `json:"period_end" db:"period_end"`
	BasicPay          payroll.Money `json:"basic_pay" db:"basic_pay"`
	OvertimePay       payroll.Money `json:"overtime_pay" db:"overtime_pay"`
	HolidayPay        payroll.Money `json:"holiday_pay" db:"holiday_pay"`
	NationalInsurance payroll.Money `json:"national_insurance" db:"national_insurance"`
	IncomeTax         payroll.Money `json:"income_tax" db:"income_tax"`
	OtherDeductions   Deductions    `json:"other_deductions" db:"other_deductions"`
	IssuedAt          time.Time     `json:"issued_at" db:"issued_at"`

	WorkerName   string `json:"worker_name" db:"worker_name"`
	CareHomeName string `json:"care_home_name" db:"care_home_name"`

	GrossPay        payroll.Money `json:"gross_pay" db:"-"`
	TotalDeductions payroll.Money `json:"total_deductions" db:"-"`
	NetPay          payroll.Money `json:"net_pay" db:"-"`
}

// Breakdown returns the payslip's pay components
func (p *Payslip) Breakdown() payroll.Breakdown {
	return payroll.Breakdown{
		BasicPay:          p.BasicPay,
		OvertimePay:       p.OvertimePay,
		HolidayPay:        p.HolidayPay,
		NationalInsurance: p.NationalInsurance,
		IncomeTax:         p.IncomeTax,
		OtherDeductions:   p.OtherDeductions,
	}
}

// Derive fills the gross, deduction and net totals
func (p *Payslip) Derive() {
	b := p.Breakdown()
	p.GrossPay = b.Gross()
	p.TotalDeductions = b.TotalDeductions()
	p.NetPay = b.Net()
}

// IssuePayslipRequest is submitted by a care home to issue a payslip.
// A nil BasicPay is filled from approved timesheets in the period.
// Amounts are in pence and capped at £1,000,000 each.
type IssuePayslipRequest struct {
	WorkerID          uuid.UUID           `json:"worker_id" validate:"required"`
	PeriodStart       string              `json:"period_start" validate:"required,isodate"`
	PeriodEnd         string              `json:"period_end" validate:"required,isodate"`
	BasicPay          *payroll.Money      `json:"basic_pay" validate:"omitempty,min=0,max=100000000"`
	OvertimePay       payroll.Money       `json:"overtime_pay" validate:"min=0,max=100000000"`
	HolidayPay        payroll.Money       `json:"holiday_pay" validate:"min=0,max=100000000"`
	NationalInsurance payroll.Money       `json:"national_insurance" validate:"min=0,max=100000000"`
	IncomeTax         payroll.Money       `json:"income_tax" validate:"min=0,max=100000000"`
	OtherDeductions   []payroll.Deduction `json:"other_deductions" validate:"max=20,dive"`
}
