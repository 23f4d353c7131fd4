package model

// AllotmentKey identifies one pre-paid balance: a customer's remaining
// quantity for one covered service.
type AllotmentKey struct {
	CustomerID uint64 `json:"customer_id"`
	ServiceID  uint64 `json:"service_id"`
}

// Less orders keys by customer then service.  Row locks on allotments are
// always taken in this order.
func (k AllotmentKey) Less(o AllotmentKey) bool {
	if k.CustomerID != o.CustomerID {
		return k.CustomerID < o.CustomerID
	}
	return k.ServiceID < o.ServiceID
}

// Allotment is the package or subscription usage balance for a customer
// and service.  RemainingQuantity never goes negative and never exceeds
// TotalQuantity.
type Allotment struct {
	CustomerID        uint64 `json:"customer_id"`        // allotments.customer_id
	ServiceID         uint64 `json:"service_id"`         // allotments.service_id
	SubscriptionID    uint64 `json:"subscription_id"`    // allotments.subscription_id
	TotalQuantity     int    `json:"total_quantity"`     // allotments.total_quantity
	RemainingQuantity int    `json:"remaining_quantity"` // allotments.remaining_quantity
}

// Key returns the balance's identifying key.
func (a *Allotment) Key() AllotmentKey {
	return AllotmentKey{CustomerID: a.CustomerID, ServiceID: a.ServiceID}
}
