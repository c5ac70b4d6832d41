// Package pricing holds the money arithmetic for job lines and parts
package pricing

import (
	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

// Tier is an advisory band comparing a customer price to the supplier's suggested retail
type Tier string

const (
	TierGood      Tier = "good"
	TierCaution   Tier = "caution"
	TierHigh      Tier = "high"
	TierWellAbove Tier = "well above"
	// TierUnknown is returned when there is no suggested retail to compare against
	TierUnknown Tier = "unknown"
)

var (
	hundred      = decimal.NewFromInt(100)
	goodBound    = decimal.RequireFromString("1.00")
	cautionBound = decimal.RequireFromString("1.10")
	highBound    = decimal.RequireFromString("1.25")
)

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// LineTotal is estimated_hours × labor_rate rounded to cents
func LineTotal(hours, rate float64) float64 {
	return round2(decimal.NewFromFloat(hours).Mul(decimal.NewFromFloat(rate)))
}

// PartTotal is quantity × unit_price rounded to cents
func PartTotal(quantity int, unitPrice float64) float64 {
	return round2(decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(unitPrice)))
}

// CustomerPrice applies a markup percentage to a supplier cost
func CustomerPrice(supplierCost, markupPercentage float64) float64 {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(markupPercentage).Div(hundred))
	return round2(decimal.NewFromFloat(supplierCost).Mul(factor))
}

// MarkupPercentage is the inverse of CustomerPrice, 0 when the cost is not positive
func MarkupPercentage(supplierCost, customerPrice float64) float64 {
	cost := decimal.NewFromFloat(supplierCost)
	if !cost.IsPositive() {
		return 0
	}
	return round2(decimal.NewFromFloat(customerPrice).Sub(cost).Div(cost).Mul(hundred))
}

// CompareToRetail bands customerPrice/suggestedRetail. Boundary values fall
// into the lower tier.
func CompareToRetail(customerPrice, suggestedRetail float64) (Tier, float64) {
	retail := decimal.NewFromFloat(suggestedRetail)
	if !retail.IsPositive() {
		return TierUnknown, 0
	}
	ratio := decimal.NewFromFloat(customerPrice).Div(retail)
	r := ratio.Round(4).InexactFloat64()
	switch {
	case ratio.LessThanOrEqual(goodBound):
		return TierGood, r
	case ratio.LessThanOrEqual(cautionBound):
		return TierCaution, r
	case ratio.LessThanOrEqual(highBound):
		return TierHigh, r
	default:
		return TierWellAbove, r
	}
}

// PartCharge is a part's total_price plus any applicable core charge and eco fee
func PartCharge(p *domain.Part) float64 {
	d := decimal.NewFromFloat(p.TotalPrice)
	if p.CoreChargeApplies {
		d = d.Add(decimal.NewFromFloat(p.CoreChargeAmount))
	}
	if p.EcoFeeApplies {
		d = d.Add(decimal.NewFromFloat(p.EcoFeeAmount))
	}
	return round2(d)
}

// Totals summarizes the money and progress of a work order
type Totals struct {
	LaborTotal     float64 `json:"labor_total"`
	PartsTotal     float64 `json:"parts_total"`
	GrandTotal     float64 `json:"grand_total"`
	CompletedLines int     `json:"completed_lines"`
	TotalLines     int     `json:"total_lines"`
}

// Summarize totals a work order's job lines and parts
func Summarize(lines []domain.JobLine, parts []domain.Part) Totals {
	labor := decimal.Zero
	var completed int
	for i := range lines {
		labor = labor.Add(decimal.NewFromFloat(lines[i].TotalAmount))
		if lines[i].IsWorkCompleted {
			completed++
		}
	}
	partsSum := decimal.Zero
	for i := range parts {
		partsSum = partsSum.Add(decimal.NewFromFloat(PartCharge(&parts[i])))
	}
	return Totals{
		LaborTotal:     round2(labor),
		PartsTotal:     round2(partsSum),
		GrandTotal:     round2(labor.Add(partsSum)),
		CompletedLines: completed,
		TotalLines:     len(lines),
	}
}
