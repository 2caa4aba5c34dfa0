package session

import (
	"food-delivery/courier/geo"
	"food-delivery/courier/models"
)

// State is one immutable snapshot of the courier session. Callers get a
// copy from Snapshot; every mutation happens inside Coordinator.update, so
// no reader can observe a half-applied change.
type State struct {
	Online           bool
	Connected        bool
	LocationTracking bool
	LastSocketError  string
	LastPosition     *geo.Sample
	CurrentOffer     *models.Order
	PendingOffers    []models.Order
	ActiveOrders     []models.Order
}

func (s State) clone() State {
	out := s
	out.PendingOffers = append([]models.Order(nil), s.PendingOffers...)
	out.ActiveOrders = append([]models.Order(nil), s.ActiveOrders...)
	if s.LastPosition != nil {
		pos := *s.LastPosition
		out.LastPosition = &pos
	}
	if s.CurrentOffer != nil {
		offer := *s.CurrentOffer
		out.CurrentOffer = &offer
	}
	return out
}

// activeOrder returns the single tracked order, nil when none.
func (s *State) activeOrder() *models.Order {
	if len(s.ActiveOrders) == 0 {
		return nil
	}
	return &s.ActiveOrders[0]
}

func (s *State) offerIndex(orderID string) int {
	for i, o := range s.PendingOffers {
		if o.OrderID == orderID {
			return i
		}
	}
	return -1
}

func (s *State) removeOffer(orderID string) {
	if i := s.offerIndex(orderID); i >= 0 {
		s.PendingOffers = append(s.PendingOffers[:i], s.PendingOffers[i+1:]...)
	}
	if s.CurrentOffer != nil && s.CurrentOffer.OrderID == orderID {
		s.CurrentOffer = nil
		if len(s.PendingOffers) > 0 {
			next := s.PendingOffers[0]
			s.CurrentOffer = &next
		}
	}
}
