package enums

// SaleStatus tracks the order-level lifecycle. Payment success is implied by
// the owning transaction's status, so a sale only ever moves from pending to cancelled.
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCancelled SaleStatus = "cancelled"
)

func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusCancelled:
		return true
	default:
		return false
	}
}
