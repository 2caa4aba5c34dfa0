package models

import (
	"encoding/json"
)

type OrderStatus string

const (
	StatusCooked     OrderStatus = "Cooked"
	StatusAccepted   OrderStatus = "Accepted"
	StatusPickedUp   OrderStatus = "PickedUp"
	StatusInTransit  OrderStatus = "InTransit"
	StatusDelivering OrderStatus = "Delivering"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCompleted  OrderStatus = "Completed"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusCooked, StatusAccepted, StatusPickedUp, StatusInTransit,
		StatusDelivering, StatusDelivered, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the order needs no further courier action.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCompleted
}

func (s OrderStatus) String() string {
	return string(s)
}

// Point is the canonical coordinate shape. Everything past the
// normalization boundary only ever sees this.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Order struct {
	OrderID                string      `json:"orderId"`
	OrderCode              string      `json:"orderCode"`
	RestaurantLocation     *Point      `json:"restaurantLocation"`
	DestinationLocation    *Point      `json:"destinationLocation"`
	DeliveryFee            float64     `json:"deliveryFee"`
	Tip                    float64     `json:"tip"`
	Status                 OrderStatus `json:"status"`
	PickUpVerificationCode string      `json:"pickUpVerificationCode"`
}

// orderPayload mirrors Order with the loosely typed fields the backend is
// known to send: money as numbers, strings or {$numberDecimal}, locations
// in any of three shapes.
type orderPayload struct {
	OrderID                string          `json:"orderId"`
	ID                     string          `json:"id"`
	OrderCode              string          `json:"orderCode"`
	RestaurantLocation     json.RawMessage `json:"restaurantLocation"`
	DestinationLocation    json.RawMessage `json:"destinationLocation"`
	DeliveryFee            json.RawMessage `json:"deliveryFee"`
	Tip                    json.RawMessage `json:"tip"`
	Status                 OrderStatus     `json:"status"`
	PickUpVerificationCode string          `json:"pickUpVerificationCode"`
}

// UnmarshalJSON applies the normalization boundary once, at decode time.
func (o *Order) UnmarshalJSON(data []byte) error {
	var p orderPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	o.OrderID = p.OrderID
	if o.OrderID == "" {
		o.OrderID = p.ID
	}
	o.OrderCode = p.OrderCode
	o.RestaurantLocation = ToPoint(rawValue(p.RestaurantLocation))
	o.DestinationLocation = ToPoint(rawValue(p.DestinationLocation))
	o.DeliveryFee = ExtractNumber(rawValue(p.DeliveryFee))
	o.Tip = ExtractNumber(rawValue(p.Tip))
	o.Status = p.Status
	o.PickUpVerificationCode = p.PickUpVerificationCode
	return nil
}

// Earnings is the courier take for this order.
func (o Order) Earnings() float64 {
	return o.DeliveryFee + o.Tip
}

func rawValue(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
