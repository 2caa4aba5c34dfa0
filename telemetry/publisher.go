package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"food-delivery/courier/geo"
	"food-delivery/courier/models"
	"food-delivery/courier/store"
)

// RealtimeStore is the slice of the realtime store the publisher writes to.
type RealtimeStore interface {
	SetDriverRecord(ctx context.Context, courierID string, rec store.DriverRecord) store.WriteResult
	AppendDriverHistory(ctx context.Context, courierID string, e store.HistoryEntry) store.WriteResult
	SetOrderRecord(ctx context.Context, orderID string, rec store.OrderRecord) store.WriteResult
	AppendOrderHistory(ctx context.Context, orderID string, e store.HistoryEntry) store.WriteResult
}

// Notifier is the external attention-signal collaborator. Playback of
// sound or vibration happens outside this module.
type Notifier interface {
	ApproachingDestination(order models.Order, distanceMeters float64)
}

// PositionFunc returns the last known position, false when none exists yet.
type PositionFunc func() (geo.Sample, bool)

// IntervalForStatus maps an order status to its telemetry send interval.
// Zero means stop. Statuses without an override use the backend default.
func IntervalForStatus(status models.OrderStatus, backendDefault time.Duration) time.Duration {
	switch status {
	case models.StatusAccepted:
		return 10 * time.Second
	case models.StatusPickedUp:
		return 5 * time.Second
	case models.StatusInTransit:
		return 3 * time.Second
	case models.StatusDelivered, models.StatusCompleted:
		return 0
	default:
		return backendDefault
	}
}

// Publisher periodically pushes the courier position to the realtime store
// and runs proximity detection against each active order's destination.
// The loop runs only while tracking is on and at least one order is
// active; any change to that pair or the interval tears the timer down and
// rebuilds it.
type Publisher struct {
	courierID string
	store     RealtimeStore
	notifier  Notifier
	position  PositionFunc
	prox      *ProximityTracker
	log       *zap.Logger

	mu       sync.Mutex
	cancel   chan struct{}
	tracking bool
	online   bool
	orders   []models.Order
	interval time.Duration
	ticks    func() // test hook, called once per completed tick
}

func NewPublisher(courierID string, st RealtimeStore, notifier Notifier, position PositionFunc, proximityMeters float64, log *zap.Logger) *Publisher {
	return &Publisher{
		courierID: courierID,
		store:     st,
		notifier:  notifier,
		position:  position,
		prox:      NewProximityTracker(proximityMeters),
		log:       log,
	}
}

// Configure applies a new {tracking, online, orders, interval} tuple.
// The running task, if any, is cancelled before a new one starts, so two
// timers for the same purpose never coexist.
func (p *Publisher) Configure(tracking, online bool, orders []models.Order, interval time.Duration) {
	p.mu.Lock()
	if p.cancel != nil {
		close(p.cancel)
		p.cancel = nil
	}
	p.tracking = tracking
	p.online = online
	p.orders = append([]models.Order(nil), orders...)
	p.interval = interval

	run := tracking && len(orders) > 0 && interval > 0
	var cancel chan struct{}
	if run {
		cancel = make(chan struct{})
		p.cancel = cancel
	}
	p.mu.Unlock()

	if run {
		p.log.Info("telemetry loop started",
			zap.Duration("interval", interval),
			zap.Int("active_orders", len(orders)))
		go p.run(cancel, interval)
	}
}

// Stop halts the loop without touching the configured flags.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		close(p.cancel)
		p.cancel = nil
	}
	p.mu.Unlock()
}

// Running reports whether a telemetry task is live.
func (p *Publisher) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Interval reports the currently configured send interval.
func (p *Publisher) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// ForgetOrder clears proximity state for a finished order.
func (p *Publisher) ForgetOrder(orderID string) {
	p.prox.Forget(orderID)
}

func (p *Publisher) run(cancel chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick performs one telemetry round. Store failures never abort it:
// denied writes are swallowed, the rest are logged by the store layer.
func (p *Publisher) tick() {
	p.mu.Lock()
	orders := p.orders
	online := p.online
	tracking := p.tracking
	hook := p.ticks
	p.mu.Unlock()

	pos, ok := p.position()
	if !ok {
		return
	}

	ctx := context.Background()
	entry := store.HistoryEntry{
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Accuracy:   pos.Accuracy,
		RecordedAt: pos.Timestamp,
	}

	ids := make([]string, 0, len(orders))
	status := "idle"
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	if len(orders) > 0 {
		status = string(orders[0].Status)
	}

	p.store.SetDriverRecord(ctx, p.courierID, store.DriverRecord{
		Latitude:       pos.Latitude,
		Longitude:      pos.Longitude,
		Online:         online,
		Tracking:       tracking,
		ActiveOrderIDs: ids,
		Status:         status,
	})
	p.store.AppendDriverHistory(ctx, p.courierID, entry)

	for _, o := range orders {
		p.store.SetOrderRecord(ctx, o.OrderID, store.OrderRecord{
			CourierID:              p.courierID,
			Latitude:               pos.Latitude,
			Longitude:              pos.Longitude,
			RestaurantLocation:     o.RestaurantLocation,
			DestinationLocation:    o.DestinationLocation,
			DeliveryFee:            o.DeliveryFee,
			Tip:                    o.Tip,
			Status:                 string(o.Status),
			PickUpVerificationCode: o.PickUpVerificationCode,
		})
		p.store.AppendOrderHistory(ctx, o.OrderID, entry)

		p.checkProximity(o, pos)
	}

	if hook != nil {
		hook()
	}
}

func (p *Publisher) checkProximity(o models.Order, pos geo.Sample) {
	if o.DestinationLocation == nil {
		return
	}
	meters := Distance(pos.Latitude, pos.Longitude,
		o.DestinationLocation.Lat, o.DestinationLocation.Lng) * 1000
	if p.prox.Check(o.OrderID, meters) {
		p.log.Info("approaching destination",
			zap.String("order_id", o.OrderID),
			zap.Float64("distance_m", meters))
		p.notifier.ApproachingDestination(o, meters)
	}
}

// SetTickHook installs a callback fired after each completed tick. Tests only.
func (p *Publisher) SetTickHook(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = fn
}
