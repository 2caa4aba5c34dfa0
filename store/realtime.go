package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"food-delivery/courier/models"
)

// WriteStatus classifies a realtime-store write so that swallowing a
// permission failure is a deliberate branch instead of a catch-all.
type WriteStatus int

const (
	WriteOk WriteStatus = iota
	// WriteDenied: the store rejected the write for permission reasons.
	// Tracking visibility degrades but delivery correctness is unaffected,
	// so callers swallow it.
	WriteDenied
	WriteFatal
)

type WriteResult struct {
	Status WriteStatus
	Err    error
}

func (r WriteResult) Ok() bool {
	return r.Status == WriteOk
}

// DriverRecord is the driver-global tracking record.
type DriverRecord struct {
	Latitude       float64
	Longitude      float64
	Online         bool
	Tracking       bool
	ActiveOrderIDs []string
	Status         string
}

// OrderRecord is the per-order tracking record. Endpoint locations are
// already normalized; nil pointers are stripped before transmission.
type OrderRecord struct {
	CourierID              string
	Latitude               float64
	Longitude              float64
	RestaurantLocation     *models.Point
	DestinationLocation    *models.Point
	DeliveryFee            float64
	Tip                    float64
	Status                 string
	PickUpVerificationCode string
}

// HistoryEntry is one append-only location log line.
type HistoryEntry struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recorded_at"`
}

type RedisStore struct {
	rdb        *redis.Client
	historyMax int64
	log        *zap.Logger
}

func NewRedisStore(rdb *redis.Client, historyMax int64, log *zap.Logger) *RedisStore {
	if historyMax <= 0 {
		historyMax = 1000
	}
	return &RedisStore{rdb: rdb, historyMax: historyMax, log: log}
}

func driverKey(courierID string) string {
	return "deliveryGuys/" + courierID
}

func driverHistoryKey(courierID string) string {
	return "deliveryGuys/" + courierID + "/locationHistory"
}

func orderKey(orderID string) string {
	return "deliveryOrders/" + orderID
}

func orderHistoryKey(orderID string) string {
	return "deliveryOrders/" + orderID + "/locationHistory"
}

// SetDriverRecord overwrites the driver-global record.
func (s *RedisStore) SetDriverRecord(ctx context.Context, courierID string, rec DriverRecord) WriteResult {
	ids, _ := json.Marshal(rec.ActiveOrderIDs)
	fields := map[string]interface{}{
		"latitude":         rec.Latitude,
		"longitude":        rec.Longitude,
		"online":           rec.Online,
		"tracking":         rec.Tracking,
		"active_order_ids": string(ids),
		"status":           rec.Status,
		"last_update":      time.Now().Unix(),
	}
	return s.hset(ctx, driverKey(courierID), fields)
}

// AppendDriverHistory appends one entry to the driver-global location log.
func (s *RedisStore) AppendDriverHistory(ctx context.Context, courierID string, e HistoryEntry) WriteResult {
	return s.rpush(ctx, driverHistoryKey(courierID), e)
}

// SetOrderRecord overwrites the per-order tracking record.
func (s *RedisStore) SetOrderRecord(ctx context.Context, orderID string, rec OrderRecord) WriteResult {
	fields := map[string]interface{}{
		"courier_id":               rec.CourierID,
		"latitude":                 rec.Latitude,
		"longitude":                rec.Longitude,
		"delivery_fee":             rec.DeliveryFee,
		"tip":                      rec.Tip,
		"status":                   rec.Status,
		"pickup_verification_code": rec.PickUpVerificationCode,
		"restaurant_lat":           pointLat(rec.RestaurantLocation),
		"restaurant_lng":           pointLng(rec.RestaurantLocation),
		"destination_lat":          pointLat(rec.DestinationLocation),
		"destination_lng":          pointLng(rec.DestinationLocation),
		"last_update":              time.Now().Unix(),
	}
	return s.hset(ctx, orderKey(orderID), fields)
}

// AppendOrderHistory appends one entry to the per-order location log.
func (s *RedisStore) AppendOrderHistory(ctx context.Context, orderID string, e HistoryEntry) WriteResult {
	return s.rpush(ctx, orderHistoryKey(orderID), e)
}

// SetOrderStatus writes the order status and its status-specific timestamp.
func (s *RedisStore) SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) WriteResult {
	fields := map[string]interface{}{
		"status": string(status),
	}
	if f := statusTimestampField(status); f != "" {
		fields[f] = at.Unix()
	}
	return s.hset(ctx, orderKey(orderID), fields)
}

func statusTimestampField(status models.OrderStatus) string {
	switch status {
	case models.StatusPickedUp:
		return "picked_up_at"
	case models.StatusInTransit:
		return "in_transit_at"
	case models.StatusDelivered, models.StatusCompleted:
		return "delivered_at"
	default:
		return ""
	}
}

func (s *RedisStore) hset(ctx context.Context, key string, fields map[string]interface{}) WriteResult {
	stripMissing(fields)
	err := s.rdb.HSet(ctx, key, fields).Err()
	return s.report(key, err)
}

func (s *RedisStore) rpush(ctx context.Context, key string, e HistoryEntry) WriteResult {
	data, err := json.Marshal(e)
	if err != nil {
		return WriteResult{Status: WriteFatal, Err: err}
	}
	if err := s.rdb.RPush(ctx, key, string(data)).Err(); err != nil {
		return s.report(key, err)
	}
	err = s.rdb.LTrim(ctx, key, -s.historyMax, -1).Err()
	return s.report(key, err)
}

func (s *RedisStore) report(key string, err error) WriteResult {
	res := Classify(err)
	switch res.Status {
	case WriteDenied:
		// Swallowed: visibility-only failure.
		s.log.Debug("realtime write denied", zap.String("key", key), zap.Error(err))
	case WriteFatal:
		s.log.Warn("realtime write failed", zap.String("key", key), zap.Error(err))
	}
	return res
}

// Classify maps a store error to a typed write result.
func Classify(err error) WriteResult {
	if err == nil {
		return WriteResult{Status: WriteOk}
	}
	msg := strings.ToUpper(err.Error())
	if strings.Contains(msg, "NOPERM") || strings.Contains(msg, "PERMISSION DENIED") {
		return WriteResult{Status: WriteDenied, Err: err}
	}
	return WriteResult{Status: WriteFatal, Err: fmt.Errorf("realtime store: %w", err)}
}

// stripMissing removes absent (nil) fields before transmission. Explicit
// zero values stay.
func stripMissing(fields map[string]interface{}) {
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
}

func pointLat(p *models.Point) interface{} {
	if p == nil {
		return nil
	}
	return p.Lat
}

func pointLng(p *models.Point) interface{} {
	if p == nil {
		return nil
	}
	return p.Lng
}
