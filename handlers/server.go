package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"food-delivery/courier/channel"
	"food-delivery/courier/models"
	"food-delivery/courier/restapi"
	"food-delivery/courier/session"
)

// Server exposes the coordinator over HTTP. Its endpoints are the UI
// events of the courier app: go online, accept, update status, enter code.
type Server struct {
	coord *session.Coordinator
	log   *zap.Logger
}

func NewServer(coord *session.Coordinator, log *zap.Logger) *Server {
	return &Server{coord: coord, log: log}
}

func (s *Server) Register(app *fiber.App) {
	app.Use(s.metricsMiddleware())

	app.Get("/health", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	sess := v1.Group("/session")
	sess.Get("/", s.getSession)
	sess.Post("/online", s.goOnline)
	sess.Post("/offline", s.goOffline)
	sess.Post("/reconnect", s.reconnect)
	sess.Post("/tracking", s.setTracking)

	orders := v1.Group("/orders")
	orders.Get("/available", s.availableOrders)
	orders.Get("/active", s.activeOrders)
	orders.Get("/history", s.history)
	orders.Post("/:id/accept", s.acceptOrder)
	orders.Put("/:id/status", s.updateStatus)
	orders.Post("/:id/verify", s.verifyOrder)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now(),
	})
}

// @Summary Current session snapshot
// @Tags Session
// @Produce json
// @Router /session [get]
func (s *Server) getSession(c *fiber.Ctx) error {
	snap := s.coord.Snapshot()
	activeIDs := make([]string, 0, len(snap.ActiveOrders))
	for _, o := range snap.ActiveOrders {
		activeIDs = append(activeIDs, o.OrderID)
	}
	activeOrdersGauge.Set(float64(len(snap.ActiveOrders)))

	return c.JSON(fiber.Map{
		"online":            snap.Online,
		"connected":         snap.Connected,
		"location_tracking": snap.LocationTracking,
		"last_socket_error": snap.LastSocketError,
		"last_position":     snap.LastPosition,
		"current_offer":     snap.CurrentOffer,
		"pending_offers":    snap.PendingOffers,
		"active_orders":     snap.ActiveOrders,
		"active_order_ids":  activeIDs,
	})
}

// @Summary Go online and connect the dispatch channel
// @Tags Session
// @Router /session/online [post]
func (s *Server) goOnline(c *fiber.Ctx) error {
	if err := s.coord.GoOnline(); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failure",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) goOffline(c *fiber.Ctx) error {
	s.coord.GoOffline()
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) reconnect(c *fiber.Ctx) error {
	s.coord.Reconnect()
	snap := s.coord.Snapshot()
	return c.JSON(fiber.Map{
		"status":            "success",
		"connected":         snap.Connected,
		"last_socket_error": snap.LastSocketError,
	})
}

func (s *Server) setTracking(c *fiber.Ctx) error {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	s.coord.SetLocationTracking(body.Enabled)
	return c.JSON(fiber.Map{"status": "success"})
}

// @Summary Accept an offered order
// @Tags Orders
// @Param id path string true "Order ID"
// @Router /orders/{id}/accept [post]
func (s *Server) acceptOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	res, err := s.coord.Accept(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, channel.ErrNotConnected) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status":  "failure",
				"reason":  res.Reason.String(),
				"message": res.Message,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "failure",
			"error":  err.Error(),
		})
	}

	if !res.Accepted {
		acceptFailures.WithLabelValues(res.Reason.String()).Inc()
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "failure",
			"reason":  res.Reason.String(),
			"message": res.Message,
		})
	}

	ordersAccepted.Inc()
	return c.JSON(fiber.Map{
		"status": "success",
		"order":  res.Order,
	})
}

func (s *Server) updateStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}

	err := s.coord.UpdateStatus(c.Context(), orderID, models.OrderStatus(body.Status))
	switch {
	case errors.Is(err, session.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "failure",
			"error":  err.Error(),
		})
	case errors.Is(err, session.ErrNotActiveOrder):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status": "failure",
			"error":  err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "failure",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// @Summary Verify delivery with the customer code
// @Tags Orders
// @Param id path string true "Order ID"
// @Router /orders/{id}/verify [post]
func (s *Server) verifyOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var body struct {
		Code string `json:"verification_code"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}

	res, err := s.coord.Verify(c.Context(), orderID, body.Code)
	if err != nil {
		if errors.Is(err, session.ErrNotActiveOrder) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status": "failure",
				"error":  err.Error(),
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failure",
			"error":  friendly(err),
		})
	}

	if !res.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"status":  "failure",
			"message": res.Message,
		})
	}

	deliveriesCompleted.Inc()
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) availableOrders(c *fiber.Ctx) error {
	return s.orderList(c, s.coord.AvailableOrders)
}

func (s *Server) activeOrders(c *fiber.Ctx) error {
	return s.orderList(c, s.coord.ActiveOrders)
}

func (s *Server) history(c *fiber.Ctx) error {
	return s.orderList(c, s.coord.History)
}

func (s *Server) orderList(c *fiber.Ctx, get func(ctx context.Context, force bool) ([]models.Order, error)) error {
	force := c.Query("refresh") == "1" || c.Query("refresh") == "true"
	orders, err := get(c.Context(), force)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failure",
			"error":  friendly(err),
		})
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   orders,
	})
}

func friendly(err error) string {
	var reqErr *restapi.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Friendly()
	}
	return err.Error()
}
