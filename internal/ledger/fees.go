package ledger

import "math"

// FeeSchedule parameterizes fee computation for one transaction kind.
// Fee(amount) = clamp(Base + Rate*amount, Min, Max). A Max of zero means
// no upper bound.
type FeeSchedule struct {
	Base int64
	Rate float64
	Min  int64
	Max  int64
}

// Fee computes the fee owed on the given gross amount.
func (s FeeSchedule) Fee(amount int64) int64 {
	fee := s.Base + int64(math.Round(s.Rate*float64(amount)))
	if fee < s.Min {
		fee = s.Min
	}
	if s.Max > 0 && fee > s.Max {
		fee = s.Max
	}
	return fee
}
