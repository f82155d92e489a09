package campaign

// Pricing holds the offer price points in GBP. It is immutable once built
// and passed into the renderer, so every template version derives its
// figures from the same source and tests can substitute fixture pricing.
type Pricing struct {
	MonthlyPrice    float64
	YearlyPrice     float64
	StandardMonthly float64
	StandardYearly  float64
}

// DefaultPricing returns the live offer price points.
func DefaultPricing() Pricing {
	return Pricing{
		MonthlyPrice:    4.99,
		YearlyPrice:     49.99,
		StandardMonthly: 9.99,
		StandardYearly:  99.99,
	}
}

// YearlyMonthlyEquivalent is the effective per-month cost of the yearly plan.
func (p Pricing) YearlyMonthlyEquivalent() float64 {
	return p.YearlyPrice / 12
}

// MonthlySaving is the discount against the standard monthly price.
func (p Pricing) MonthlySaving() float64 {
	return p.StandardMonthly - p.MonthlyPrice
}

// YearlySaving is the discount against the standard yearly price.
func (p Pricing) YearlySaving() float64 {
	return p.StandardYearly - p.YearlyPrice
}
