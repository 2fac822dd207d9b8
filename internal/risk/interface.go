package risk

// Assessor evaluates a proposed trade against a risk budget
type Assessor interface {
	// Assess computes the protective stop and checks the trade against the policy
	Assess(req Request) Assessment

	// TakeProfit returns the take-profit price for an entry, or 0 when the policy has none
	TakeProfit(entry float64, side Side) float64
}
