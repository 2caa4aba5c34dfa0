package session

import (
	"go.uber.org/zap"

	"food-delivery/courier/models"
)

// LogNotifier is the default attention signal: it only logs. Real sound or
// vibration playback belongs to the embedding application.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) OfferReceived(order models.Order) {
	n.log.Info("new order offer",
		zap.String("order_id", order.OrderID),
		zap.Float64("delivery_fee", order.DeliveryFee),
		zap.Float64("tip", order.Tip))
}

func (n *LogNotifier) ApproachingDestination(order models.Order, distanceMeters float64) {
	n.log.Info("approaching destination",
		zap.String("order_id", order.OrderID),
		zap.Float64("distance_m", distanceMeters))
}
