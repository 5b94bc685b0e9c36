package ledger

import "github.com/pacioli-erp/pacioli/internal/money"

// Delta is the signed contribution of one change to the piece balance: the
// amounts as given for an add, new minus old for a modify, and the negated
// old amounts for a delete.
type Delta struct {
	DebitMinor  money.Minor
	CreditMinor money.Minor
}

// CheckBalanced verifies that a batch of deltas sums to zero. It returns an
// *UnbalancedBatchError carrying the residual when it does not. Every
// mutating commit runs this before anything touches storage.
func CheckBalanced(deltas []Delta) error {
	var total money.Minor
	for _, d := range deltas {
		total += d.DebitMinor - d.CreditMinor
	}
	if total != 0 {
		return &UnbalancedBatchError{DeltaMinor: total}
	}
	return nil
}
