package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"food-delivery/courier/channel"
	"food-delivery/courier/models"
	"food-delivery/courier/restapi"
	"food-delivery/courier/session"
	"food-delivery/courier/store"
)

type stubBackend struct {
	available []models.Order
	history   []models.Order
}

func (b *stubBackend) OrdersByStatus(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	if status == models.StatusCompleted {
		return b.history, nil
	}
	return nil, nil
}

func (b *stubBackend) AvailableCooked(context.Context) ([]models.Order, error) {
	return b.available, nil
}

func (b *stubBackend) VerifyDelivery(context.Context, string, string) (restapi.VerifyResult, error) {
	return restapi.VerifyResult{Success: true}, nil
}

type stubRT struct{}

func (stubRT) SetDriverRecord(context.Context, string, store.DriverRecord) store.WriteResult {
	return store.WriteResult{}
}

func (stubRT) AppendDriverHistory(context.Context, string, store.HistoryEntry) store.WriteResult {
	return store.WriteResult{}
}

func (stubRT) SetOrderRecord(context.Context, string, store.OrderRecord) store.WriteResult {
	return store.WriteResult{}
}

func (stubRT) AppendOrderHistory(context.Context, string, store.HistoryEntry) store.WriteResult {
	return store.WriteResult{}
}

func (stubRT) SetOrderStatus(context.Context, string, models.OrderStatus, time.Time) store.WriteResult {
	return store.WriteResult{}
}

func newTestApp(t *testing.T, backend *stubBackend) *fiber.App {
	t.Helper()
	coord := session.New(session.Config{
		CourierID:       "c1",
		Credentials:     channel.Credentials{CourierID: "c1", Token: "tok"},
		ChannelURL:      "ws://127.0.0.1:1/ws",
		AcceptTimeout:   time.Second,
		DefaultInterval: 3 * time.Second,
		ProximityMeters: 200,
		CacheTTL:        time.Minute,
	}, backend, stubRT{}, nil, session.NewLogNotifier(zap.NewNop()), nil, zap.NewNop())
	t.Cleanup(coord.Close)

	app := fiber.New()
	NewServer(coord, zap.NewNop()).Register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp.StatusCode, parsed
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &stubBackend{})
	code, body := doJSON(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestGetSession(t *testing.T) {
	app := newTestApp(t, &stubBackend{})
	code, body := doJSON(t, app, http.MethodGet, "/api/v1/session/", "")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, false, body["online"])
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, true, body["location_tracking"])
	assert.Empty(t, body["active_order_ids"])
}

func TestSetTracking(t *testing.T) {
	app := newTestApp(t, &stubBackend{})

	code, _ := doJSON(t, app, http.MethodPost, "/api/v1/session/tracking", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, code)

	_, body := doJSON(t, app, http.MethodGet, "/api/v1/session/", "")
	assert.Equal(t, false, body["location_tracking"])
}

func TestGoOnlineUnreachableDispatch(t *testing.T) {
	app := newTestApp(t, &stubBackend{})
	code, body := doJSON(t, app, http.MethodPost, "/api/v1/session/online", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "failure", body["status"])

	// The session stays online with the socket error surfaced.
	_, sess := doJSON(t, app, http.MethodGet, "/api/v1/session/", "")
	assert.Equal(t, true, sess["online"])
	assert.Equal(t, false, sess["connected"])
	assert.NotEmpty(t, sess["last_socket_error"])
}

func TestAvailableOrders(t *testing.T) {
	app := newTestApp(t, &stubBackend{available: []models.Order{
		{OrderID: "O1", DeliveryFee: 50, Tip: 10},
	}})

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/orders/available", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])

	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "O1", first["orderId"])
}

func TestHistory(t *testing.T) {
	app := newTestApp(t, &stubBackend{history: []models.Order{
		{OrderID: "H1", Status: models.StatusCompleted},
	}})

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/orders/history?refresh=1", "")
	require.Equal(t, http.StatusOK, code)
	data := body["data"].([]interface{})
	assert.Len(t, data, 1)
}

func TestAcceptNotConnected(t *testing.T) {
	app := newTestApp(t, &stubBackend{})
	code, body := doJSON(t, app, http.MethodPost, "/api/v1/orders/O1/accept", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "failure", body["status"])
	assert.Equal(t, channel.ReasonNotConnected.String(), body["reason"])
}

func TestUpdateStatusErrorMapping(t *testing.T) {
	app := newTestApp(t, &stubBackend{})

	t.Run("invalid status is a bad request", func(t *testing.T) {
		code, _ := doJSON(t, app, http.MethodPut, "/api/v1/orders/O1/status", `{"status":"Teleported"}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("no active order is a conflict", func(t *testing.T) {
		code, _ := doJSON(t, app, http.MethodPut, "/api/v1/orders/O1/status", `{"status":"PickedUp"}`)
		assert.Equal(t, http.StatusConflict, code)
	})
}

func TestVerifyNotActive(t *testing.T) {
	app := newTestApp(t, &stubBackend{})
	code, body := doJSON(t, app, http.MethodPost, "/api/v1/orders/O1/verify", `{"verification_code":"9944"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "failure", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, &stubBackend{})
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "courier_orders_accepted_total")
}
