package channel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"food-delivery/courier/models"
)

// FailureReason classifies why an acceptance did not go through, mapped to
// distinct user-facing messages.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	// ReasonConflict: this courier already has an active order.
	ReasonConflict
	// ReasonOrderTaken: another courier won the order.
	ReasonOrderTaken
	ReasonMalformedID
	ReasonInvalidID
	ReasonTimeout
	ReasonNotConnected
	ReasonOther
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonConflict:
		return "conflict"
	case ReasonOrderTaken:
		return "order_taken"
	case ReasonMalformedID:
		return "malformed_id"
	case ReasonInvalidID:
		return "invalid_id"
	case ReasonTimeout:
		return "timeout"
	case ReasonNotConnected:
		return "not_connected"
	default:
		return "other"
	}
}

// UserMessage is what the UI shows for this failure.
func (r FailureReason) UserMessage() string {
	switch r {
	case ReasonConflict:
		return "You already have an active order"
	case ReasonOrderTaken:
		return "This order was already taken by another courier"
	case ReasonMalformedID:
		return "Order reference is malformed"
	case ReasonInvalidID:
		return "Order no longer exists"
	case ReasonTimeout:
		return "No answer from dispatch, try again"
	case ReasonNotConnected:
		return "You are offline, go online first"
	default:
		return "Could not accept the order"
	}
}

// AcceptResult is the resolved outcome of one acceptance exchange.
type AcceptResult struct {
	Accepted bool
	Reason   FailureReason
	Message  string
	// Order carries the authoritative order from a success ack, when the
	// backend includes it.
	Order *models.Order
}

type acceptRequest struct {
	OrderID   string `json:"order_id"`
	CourierID string `json:"courier_id"`
}

// Accept runs one acceptance exchange: send the request, wait for a single
// ack, time out after the configured window. Never claims success without
// an explicit acknowledgement and never retries on its own. At most one
// exchange per order may be in flight.
func (m *Manager) Accept(ctx context.Context, orderID, courierID string) (AcceptResult, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return AcceptResult{Reason: ReasonNotConnected, Message: ReasonNotConnected.UserMessage()}, ErrNotConnected
	}
	if _, inFlight := m.pending[orderID]; inFlight {
		m.mu.Unlock()
		return AcceptResult{Reason: ReasonConflict, Message: "acceptance already in flight for this order"}, nil
	}
	waiter := make(chan ack, 1)
	m.pending[orderID] = waiter
	m.mu.Unlock()

	data, _ := json.Marshal(acceptRequest{OrderID: orderID, CourierID: courierID})
	req := message{
		Event:     eventAcceptOrder,
		OrderID:   orderID,
		RequestID: uuid.NewString(),
		Data:      data,
	}

	if err := m.writeJSON(req); err != nil {
		m.removeWaiter(orderID)
		m.recordError(err)
		return AcceptResult{Reason: ReasonNotConnected, Message: ReasonNotConnected.UserMessage()}, ErrNotConnected
	}

	timer := time.NewTimer(m.acceptTimeout)
	defer timer.Stop()

	select {
	case a, ok := <-waiter:
		if !ok {
			// Channel went down while waiting.
			return AcceptResult{Reason: ReasonNotConnected, Message: ReasonNotConnected.UserMessage()}, nil
		}
		return m.resolveResult(orderID, a), nil
	case <-timer.C:
		// The request itself is not cancelled; a late ack is discarded by
		// the pump once the waiter is gone.
		m.removeWaiter(orderID)
		m.log.Warn("accept timed out", zap.String("order_id", orderID))
		return AcceptResult{Reason: ReasonTimeout, Message: ReasonTimeout.UserMessage()}, nil
	case <-ctx.Done():
		m.removeWaiter(orderID)
		return AcceptResult{Reason: ReasonOther, Message: "cancelled"}, ctx.Err()
	}
}

func (m *Manager) removeWaiter(orderID string) {
	m.mu.Lock()
	delete(m.pending, orderID)
	m.mu.Unlock()
}

func (m *Manager) resolveResult(orderID string, a ack) AcceptResult {
	if a.status == "success" {
		res := AcceptResult{Accepted: true}
		if len(a.data) > 0 {
			var order models.Order
			if err := json.Unmarshal(a.data, &order); err == nil && order.OrderID != "" {
				res.Order = &order
			}
		}
		return res
	}

	reason := classifyFailure(a.code, a.message)
	msg := a.message
	if msg == "" {
		msg = reason.UserMessage()
	}
	m.log.Info("accept rejected",
		zap.String("order_id", orderID),
		zap.String("reason", reason.String()),
		zap.String("backend_message", a.message))
	return AcceptResult{Reason: reason, Message: msg}
}

// classifyFailure prefers the structured code; the message-text match stays
// as a fallback for backends that omit it.
func classifyFailure(code, msg string) FailureReason {
	switch code {
	case "conflict", "active_order_exists":
		return ReasonConflict
	case "order_taken":
		return ReasonOrderTaken
	case "malformed_id":
		return ReasonMalformedID
	case "invalid_id":
		return ReasonInvalidID
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already have"):
		return ReasonConflict
	case strings.Contains(lower, "taken"), strings.Contains(lower, "claimed"):
		return ReasonOrderTaken
	case strings.Contains(lower, "malformed"):
		return ReasonMalformedID
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "not found"):
		return ReasonInvalidID
	default:
		return ReasonOther
	}
}
