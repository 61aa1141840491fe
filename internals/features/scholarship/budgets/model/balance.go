package model

import "fmt"

// Balance is the three-counter state of a budget. Every ledger posting is
// a pure step from one Balance to the next.
type Balance struct {
	Allocated int64 `json:"allocated"`
	Spent     int64 `json:"spent"`
	Reserved  int64 `json:"reserved"`
}

func (b Balance) Available() int64 { return b.Allocated - b.Spent - b.Reserved }

// Valid checks allocated >= spent + reserved with no negative counter.
func (b Balance) Valid() bool {
	return b.Spent >= 0 && b.Reserved >= 0 && b.Allocated >= b.Spent+b.Reserved
}

// ViolationError is returned by Apply when a posting would break Valid.
type ViolationError struct {
	Type    TransactionType
	Amount  int64
	Balance Balance
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s of %d would leave allocated=%d spent=%d reserved=%d",
		e.Type, e.Amount, e.Balance.Allocated, e.Balance.Spent, e.Balance.Reserved)
}

// Apply returns the balance after posting. amount is positive for
// reservation, release and disbursement; adjustment takes a signed delta.
func (b Balance) Apply(t TransactionType, amount int64) (Balance, error) {
	next := b
	switch t {
	case TxReservation:
		next.Reserved += amount
	case TxRelease:
		next.Reserved -= amount
	case TxDisbursement:
		next.Reserved -= amount
		next.Spent += amount
	case TxAdjustment:
		next.Allocated += amount
	default:
		return b, fmt.Errorf("unknown transaction type %q", t)
	}
	if !next.Valid() {
		return b, &ViolationError{Type: t, Amount: amount, Balance: next}
	}
	return next, nil
}

// Fold replays postings from zero.
func Fold(rows []BudgetTransactionModel) (Balance, error) {
	var bal Balance
	for _, r := range rows {
		next, err := bal.Apply(r.BudgetTransactionType, r.BudgetTransactionAmount)
		if err != nil {
			return bal, fmt.Errorf("seq %d: %w", r.BudgetTransactionSeq, err)
		}
		bal = next
	}
	return bal, nil
}
