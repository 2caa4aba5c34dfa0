package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"food-delivery/courier/cache"
	"food-delivery/courier/channel"
	"food-delivery/courier/events"
	"food-delivery/courier/geo"
	"food-delivery/courier/models"
	"food-delivery/courier/restapi"
	"food-delivery/courier/store"
	"food-delivery/courier/telemetry"
)

// ErrNotActiveOrder guards status updates and verification against orders
// this courier is not tracking.
var ErrNotActiveOrder = errors.New("order is not the active order")

// ErrInvalidStatus rejects unknown status values before they reach the store.
var ErrInvalidStatus = errors.New("invalid order status")

// Backend is the REST surface the coordinator fetches from.
type Backend interface {
	OrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	AvailableCooked(ctx context.Context) ([]models.Order, error)
	VerifyDelivery(ctx context.Context, orderID, code string) (restapi.VerifyResult, error)
}

// RealtimeStore is everything the coordinator and its publisher write to.
type RealtimeStore interface {
	telemetry.RealtimeStore
	SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) store.WriteResult
}

// Notifier is the external attention-signal collaborator.
type Notifier interface {
	telemetry.Notifier
	OfferReceived(order models.Order)
}

// Config carries the knobs the coordinator needs from the environment.
type Config struct {
	CourierID       string
	Credentials     channel.Credentials
	ChannelURL      string
	AcceptTimeout   time.Duration
	DefaultInterval time.Duration
	ProximityMeters float64
	CacheTTL        time.Duration
}

// Coordinator is the delivery session coordinator: it negotiates order
// acceptance over the dispatch channel, drives the per-order delivery
// state machine, runs location telemetry and memoizes the three REST
// resource families. UI events fan in here; results fold back into a
// single State snapshot.
type Coordinator struct {
	cfg      Config
	channel  *channel.Manager
	backend  Backend
	caches   *cache.Store
	rtstore  RealtimeStore
	pub      *telemetry.Publisher
	producer *events.Producer
	notifier Notifier
	source   geo.Source
	log      *zap.Logger

	mu    sync.Mutex
	state State
	unsub geo.Unsubscribe
}

func New(cfg Config, backend Backend, rtstore RealtimeStore, source geo.Source,
	notifier Notifier, producer *events.Producer, log *zap.Logger) *Coordinator {

	c := &Coordinator{
		cfg:      cfg,
		backend:  backend,
		rtstore:  rtstore,
		producer: producer,
		notifier: notifier,
		source:   source,
		log:      log,
		state:    State{LocationTracking: true},
	}

	c.channel = channel.NewManager(cfg.ChannelURL, cfg.AcceptTimeout, c, log)
	c.pub = telemetry.NewPublisher(cfg.CourierID, rtstore, notifier, c.lastPosition, cfg.ProximityMeters, log)

	c.caches = cache.NewStore(cfg.CacheTTL)
	c.caches.Register(cache.KeyAvailableOrders, func(ctx context.Context) (interface{}, error) {
		return backend.AvailableCooked(ctx)
	})
	c.caches.Register(cache.KeyActiveOrders, func(ctx context.Context) (interface{}, error) {
		return c.fetchActiveOrders(ctx)
	})
	c.caches.Register(cache.KeyHistory, func(ctx context.Context) (interface{}, error) {
		return backend.OrdersByStatus(ctx, models.StatusCompleted)
	})

	return c
}

// Start subscribes to the geolocation source. Position samples only update
// the snapshot; publishing them is the telemetry loop's job.
func (c *Coordinator) Start() {
	if c.source == nil {
		return
	}
	c.unsub = c.source.Subscribe(func(s geo.Sample) {
		c.update(func(st *State) {
			st.LastPosition = &s
		})
	})
}

// Close is logout: channel, telemetry timer and geo subscription all go.
func (c *Coordinator) Close() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.pub.Stop()
	c.channel.Disconnect()
	c.producer.Close()
	c.update(func(st *State) {
		st.Online = false
		st.Connected = false
	})
}

// Snapshot returns a copy of the current session state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Coordinator) update(fn func(*State)) State {
	c.mu.Lock()
	next := c.state.clone()
	fn(&next)
	c.state = next
	snap := next.clone()
	c.mu.Unlock()
	return snap
}

func (c *Coordinator) lastPosition() (geo.Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.LastPosition == nil {
		return geo.Sample{}, false
	}
	return *c.state.LastPosition, true
}

// GoOnline connects the dispatch channel. An authentication failure is
// recorded as the last socket error and left for the UI.
func (c *Coordinator) GoOnline() error {
	c.update(func(st *State) {
		st.Online = true
	})

	err := c.channel.Connect(c.cfg.Credentials)
	c.syncChannelState()
	if err != nil {
		return err
	}

	c.producer.Log(map[string]interface{}{
		"event":      "courier_online",
		"courier_id": c.cfg.CourierID,
	})
	c.reconfigureTelemetry()
	return nil
}

// GoOffline disconnects and, by the online-flag convention, halts the
// telemetry loop. An in-flight acceptance is not cancelled; it resolves
// against the torn-down channel.
func (c *Coordinator) GoOffline() {
	c.update(func(st *State) {
		st.Online = false
		st.Connected = false
	})
	c.channel.Disconnect()
	c.reconfigureTelemetry()

	c.producer.Log(map[string]interface{}{
		"event":      "courier_offline",
		"courier_id": c.cfg.CourierID,
	})
}

// Reconnect is the explicit user-triggered retry. Never returns an error.
func (c *Coordinator) Reconnect() {
	c.channel.Reconnect()
	c.syncChannelState()
	c.reconfigureTelemetry()
}

// SetLocationTracking toggles the tracking flag and reconfigures the loop.
func (c *Coordinator) SetLocationTracking(on bool) {
	c.update(func(st *State) {
		st.LocationTracking = on
	})
	c.reconfigureTelemetry()
}

func (c *Coordinator) syncChannelState() {
	connected := c.channel.Connected()
	lastErr := c.channel.LastError()
	c.update(func(st *State) {
		st.Connected = connected
		if lastErr != nil {
			st.LastSocketError = lastErr.Error()
		} else {
			st.LastSocketError = ""
		}
	})
}

// Accept runs the acceptance protocol for an offered order. On a success
// ack the order becomes the sole active order and the telemetry machinery
// is primed for it.
func (c *Coordinator) Accept(ctx context.Context, orderID string) (channel.AcceptResult, error) {
	res, err := c.channel.Accept(ctx, orderID, c.cfg.CourierID)
	if err != nil {
		return res, err
	}

	if !res.Accepted {
		if res.Reason == channel.ReasonOrderTaken {
			// The offer is stale, drop it.
			c.update(func(st *State) {
				st.removeOffer(orderID)
			})
		}
		return res, nil
	}

	order := res.Order
	snap := c.Snapshot()
	if order == nil {
		if i := snap.offerIndex(orderID); i >= 0 {
			o := snap.PendingOffers[i]
			order = &o
		}
	}
	if order == nil {
		order = &models.Order{OrderID: orderID}
	}
	order.Status = models.StatusAccepted

	if snap.activeOrder() != nil && snap.activeOrder().OrderID != orderID {
		c.log.Warn("accept acked while another order is active",
			zap.String("order_id", orderID),
			zap.String("active_order_id", snap.activeOrder().OrderID))
		return channel.AcceptResult{
			Reason:  channel.ReasonConflict,
			Message: channel.ReasonConflict.UserMessage(),
		}, nil
	}

	c.update(func(st *State) {
		st.removeOffer(orderID)
		st.ActiveOrders = []models.Order{*order}
	})

	c.rtstore.SetOrderStatus(context.Background(), orderID, models.StatusAccepted, time.Now())
	c.reconfigureTelemetry()

	c.producer.Log(map[string]interface{}{
		"event":      "order_accepted",
		"courier_id": c.cfg.CourierID,
		"order_id":   orderID,
	})
	return res, nil
}

// UpdateStatus advances the delivery state machine for the active order:
// the realtime store gets the status plus its timestamp first, then local
// state mirrors it and the telemetry interval is reconfigured.
func (c *Coordinator) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	snap := c.Snapshot()
	active := snap.activeOrder()
	if active == nil || active.OrderID != orderID {
		return ErrNotActiveOrder
	}

	// Store failures are non-fatal here: tracking visibility only.
	c.rtstore.SetOrderStatus(ctx, orderID, status, time.Now())

	c.update(func(st *State) {
		if o := st.activeOrder(); o != nil && o.OrderID == orderID {
			o.Status = status
		}
		if status.IsTerminal() {
			st.ActiveOrders = nil
		}
	})
	if status.IsTerminal() {
		c.pub.ForgetOrder(orderID)
	}
	c.reconfigureTelemetry()

	c.producer.Log(map[string]interface{}{
		"event":      "status_changed",
		"courier_id": c.cfg.CourierID,
		"order_id":   orderID,
		"status":     string(status),
	})
	return nil
}

// Verify exchanges the customer code for completion. On success the order
// is marked Delivered, the active set empties and the active/history
// caches are refreshed on next read. Attempt counting is the caller's
// problem; this is stateless across failed tries.
func (c *Coordinator) Verify(ctx context.Context, orderID, code string) (restapi.VerifyResult, error) {
	snap := c.Snapshot()
	active := snap.activeOrder()
	if active == nil || active.OrderID != orderID {
		return restapi.VerifyResult{}, ErrNotActiveOrder
	}

	res, err := c.backend.VerifyDelivery(ctx, orderID, code)
	if err != nil {
		return res, err
	}
	if !res.Success {
		return res, nil
	}

	c.rtstore.SetOrderStatus(ctx, orderID, models.StatusDelivered, time.Now())
	c.update(func(st *State) {
		st.ActiveOrders = nil
	})
	c.pub.ForgetOrder(orderID)
	c.reconfigureTelemetry()
	c.caches.Invalidate(cache.KeyActiveOrders, cache.KeyHistory)

	c.producer.Log(map[string]interface{}{
		"event":      "delivery_completed",
		"courier_id": c.cfg.CourierID,
		"order_id":   orderID,
	})
	return res, nil
}

// AvailableOrders returns offers open for acceptance, cached.
func (c *Coordinator) AvailableOrders(ctx context.Context, forceRefresh bool) ([]models.Order, error) {
	return c.cachedOrders(ctx, cache.KeyAvailableOrders, forceRefresh)
}

// ActiveOrders returns the courier's in-progress orders, cached.
func (c *Coordinator) ActiveOrders(ctx context.Context, forceRefresh bool) ([]models.Order, error) {
	return c.cachedOrders(ctx, cache.KeyActiveOrders, forceRefresh)
}

// History returns completed deliveries, cached.
func (c *Coordinator) History(ctx context.Context, forceRefresh bool) ([]models.Order, error) {
	return c.cachedOrders(ctx, cache.KeyHistory, forceRefresh)
}

func (c *Coordinator) cachedOrders(ctx context.Context, key cache.Key, forceRefresh bool) ([]models.Order, error) {
	v, err := c.caches.Get(ctx, key, forceRefresh)
	if err != nil {
		return nil, err
	}
	orders, _ := v.([]models.Order)
	return orders, nil
}

// fetchActiveOrders merges the two admissible post-acceptance statuses.
func (c *Coordinator) fetchActiveOrders(ctx context.Context) (interface{}, error) {
	cooked, err := c.backend.OrdersByStatus(ctx, models.StatusCooked)
	if err != nil {
		return nil, err
	}
	delivering, err := c.backend.OrdersByStatus(ctx, models.StatusDelivering)
	if err != nil {
		return nil, err
	}
	return append(cooked, delivering...), nil
}

func (c *Coordinator) reconfigureTelemetry() {
	snap := c.Snapshot()
	interval := c.cfg.DefaultInterval
	if o := snap.activeOrder(); o != nil {
		interval = telemetry.IntervalForStatus(o.Status, c.cfg.DefaultInterval)
	}
	tracking := snap.LocationTracking && snap.Online
	c.pub.Configure(tracking, snap.Online, snap.ActiveOrders, interval)
}

// HandleOffer implements channel.Handler: a new offer lands in the pending
// list and triggers the attention signal.
func (c *Coordinator) HandleOffer(order models.Order) {
	c.update(func(st *State) {
		if st.offerIndex(order.OrderID) >= 0 {
			return
		}
		st.PendingOffers = append(st.PendingOffers, order)
		o := order
		st.CurrentOffer = &o
	})

	c.notifier.OfferReceived(order)
	c.producer.Log(map[string]interface{}{
		"event":      "offer_received",
		"courier_id": c.cfg.CourierID,
		"order_id":   order.OrderID,
	})
}

// HandleOrderClaimed implements channel.Handler: someone else won.
func (c *Coordinator) HandleOrderClaimed(orderID string) {
	c.update(func(st *State) {
		st.removeOffer(orderID)
	})
}

// HandleChannelError implements channel.Handler.
func (c *Coordinator) HandleChannelError(err error) {
	c.update(func(st *State) {
		st.LastSocketError = err.Error()
	})
}

// HandleDisconnect implements channel.Handler. Only the connected flag
// drops; the telemetry loop is coupled to the online flag, not the channel.
func (c *Coordinator) HandleDisconnect(err error) {
	c.update(func(st *State) {
		st.Connected = false
		if err != nil {
			st.LastSocketError = err.Error()
		}
	})
}
