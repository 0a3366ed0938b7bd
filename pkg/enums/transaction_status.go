package enums

// TransactionStatus tracks the payment lifecycle bound 1:1 to a sale.
// Legal transitions: pending to success, pending to cancelled, success to refunded.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCancelled || s == TransactionStatusRefunded
}

// CanTransitionTo enforces the monotone transition paths.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusSuccess || next == TransactionStatusCancelled
	case TransactionStatusSuccess:
		return next == TransactionStatusRefunded
	default:
		return false
	}
}
