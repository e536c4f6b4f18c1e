package model

import "time"

// Order statuses.  DELIVERED and CANCELLED are terminal.
const (
	OrderPending   = "PENDING"
	OrderAssigned  = "ASSIGNED"
	OrderOnRoute   = "ON_ROUTE"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

var orderTransitions = map[string][]string{
	OrderPending:   {OrderAssigned, OrderCancelled},
	OrderAssigned:  {OrderOnRoute, OrderCancelled},
	OrderOnRoute:   {OrderDelivered, OrderCancelled},
	OrderDelivered: {},
	OrderCancelled: {},
}

// IsOrderStatus reports whether s is a known order status.
func IsOrderStatus(s string) bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionOrder reports whether an order may move from one status
// to another under the delivery workflow.
func CanTransitionOrder(from, to string) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Order is a customer request for LPG delivery.
//
// Fields:
//  ID                  – primary key identifier.
//  CustomerID          – ordering customer.
//  DeliveryAddress     – destination address text.
//  QuantityKG          – requested LPG quantity, 0 < q <= 1000.
//  Status              – see constants above.
//  ScheduledTime       – requested delivery time; future, at most 30 days out.
//  PickupAddress       – optional pickup address text.
//  CustomerPhone       – optional contact phone.
//  SpecialInstructions – free-text instructions for the driver.
//  CreatedAt           – creation timestamp.
//  UpdatedAt           – last update timestamp.
type Order struct {
	ID                  uint64
	CustomerID          uint64
	DeliveryAddress     string
	QuantityKG          float64
	Status              string
	ScheduledTime       time.Time
	PickupAddress       string
	CustomerPhone       string
	SpecialInstructions string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
