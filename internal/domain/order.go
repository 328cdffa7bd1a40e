package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the order lifecycle as reported by the venue.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// OrderResult wraps the exchange response after a market order.
type OrderResult struct {
	OrderID  string
	Symbol   string
	Side     OrderSide
	Status   OrderStatus
	Amount   float64 // requested base quantity
	Filled   float64 // executed base quantity
	QuoteQty float64 // executed quote quantity
}
