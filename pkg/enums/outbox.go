package enums

// OutboxEventType names the domain events queued through the transactional outbox.
type OutboxEventType string

const (
	EventSaleCreated       OutboxEventType = "sale.created"
	EventSalePaid          OutboxEventType = "sale.paid"
	EventSalePaymentFailed OutboxEventType = "sale.payment_failed"
	EventSaleCancelled     OutboxEventType = "sale.cancelled"
	EventSaleRefunded      OutboxEventType = "sale.refunded"
)

func (t OutboxEventType) IsValid() bool {
	switch t {
	case EventSaleCreated, EventSalePaid, EventSalePaymentFailed, EventSaleCancelled, EventSaleRefunded:
		return true
	default:
		return false
	}
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const AggregateSale OutboxAggregateType = "sale"
