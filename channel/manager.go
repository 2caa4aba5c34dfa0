package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"food-delivery/courier/models"
)

const (
	eventAcceptOrder     = "accept-order"
	eventAcceptAck       = "accept-ack"
	eventNewOrderOffer   = "new-order-offer"
	eventOrderClaimed    = "order-claimed"
	eventConnectionError = "connection-error"
)

// ErrNotConnected blocks acceptance while the channel is down. The courier
// recovers by going online again.
var ErrNotConnected = errors.New("dispatch channel not connected")

// ErrBadCredential is recorded when the held token does not pass the
// pre-dial claims check or the backend refuses the handshake.
var ErrBadCredential = errors.New("dispatch credential rejected")

// message is the wire frame in both directions.
type message struct {
	Event     string          `json:"event"`
	Status    string          `json:"status,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	OrderID   string          `json:"order_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type ack struct {
	status  string
	code    string
	message string
	data    json.RawMessage
}

// Handler receives inbound channel events. Calls arrive from the read pump
// goroutine, one at a time.
type Handler interface {
	HandleOffer(order models.Order)
	HandleOrderClaimed(orderID string)
	HandleChannelError(err error)
	HandleDisconnect(err error)
}

// Credentials authenticate the channel at connect time.
type Credentials struct {
	CourierID string
	Token     string
	Secret    string
}

// Manager owns at most one live channel to the dispatch backend.
type Manager struct {
	url           string
	acceptTimeout time.Duration
	handler       Handler
	log           *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	lastErr   error
	creds     Credentials
	pending   map[string]chan ack

	writeMu sync.Mutex
}

func NewManager(channelURL string, acceptTimeout time.Duration, handler Handler, log *zap.Logger) *Manager {
	return &Manager{
		url:           channelURL,
		acceptTimeout: acceptTimeout,
		handler:       handler,
		log:           log,
		pending:       make(map[string]chan ack),
	}
}

// Connect opens the channel with the given credential. Already being
// connected is not an error. On failure the connection error is stored for
// the UI and the manager stays disconnected.
func (m *Manager) Connect(creds Credentials) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.creds = creds
	m.mu.Unlock()

	if err := validateCredential(creds); err != nil {
		m.recordError(err)
		return err
	}

	u, err := authURL(m.url, creds)
	if err != nil {
		m.recordError(err)
		return err
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			err = fmt.Errorf("%w: %v", ErrBadCredential, err)
		}
		m.recordError(err)
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.connected = true
	m.lastErr = nil
	m.mu.Unlock()

	m.log.Info("dispatch channel connected", zap.String("courier_id", creds.CourierID))
	go m.readPump(conn)
	return nil
}

// Disconnect tears the channel down. Safe to call when already down.
// Pending acceptance waiters resolve with a not-connected failure rather
// than hanging out their full timeout.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.connected = false
	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		m.log.Info("dispatch channel disconnected")
	}
}

// Reconnect is the user-triggered retry. It never returns an error;
// failures land in LastError.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()

	m.Disconnect()
	if err := m.Connect(creds); err != nil {
		m.log.Warn("reconnect failed", zap.Error(err))
	}
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// LastError reports the most recent connection or channel error, nil after
// a successful connect.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.connected = false
	m.mu.Unlock()
	m.log.Warn("dispatch channel error", zap.Error(err))
}

func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			m.handleDrop(conn, err)
			return
		}
		m.dispatch(msg)
	}
}

// handleDrop is invoked when the pump's connection dies. A pump belonging
// to an already replaced connection must not clobber the live state.
func (m *Manager) handleDrop(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	m.lastErr = err
	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
	m.mu.Unlock()

	_ = conn.Close()
	m.log.Warn("dispatch channel dropped", zap.Error(err))
	m.handler.HandleDisconnect(err)
}

func (m *Manager) dispatch(msg message) {
	switch msg.Event {
	case eventAcceptAck:
		m.resolveAck(msg)
	case eventNewOrderOffer:
		var order models.Order
		if err := json.Unmarshal(msg.Data, &order); err != nil {
			m.log.Warn("malformed offer payload", zap.Error(err))
			return
		}
		m.handler.HandleOffer(order)
	case eventOrderClaimed:
		m.handler.HandleOrderClaimed(msg.OrderID)
	case eventConnectionError:
		err := fmt.Errorf("dispatch: %s", msg.Message)
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.handler.HandleChannelError(err)
	default:
		m.log.Debug("unknown channel event", zap.String("event", msg.Event))
	}
}

func (m *Manager) resolveAck(msg message) {
	m.mu.Lock()
	ch, ok := m.pending[msg.OrderID]
	if ok {
		delete(m.pending, msg.OrderID)
	}
	m.mu.Unlock()

	if !ok {
		// First resolution wins; acks arriving after the timeout are dropped.
		m.log.Debug("late ack discarded", zap.String("order_id", msg.OrderID))
		return
	}
	ch <- ack{status: msg.Status, code: msg.Code, message: msg.Message, data: msg.Data}
}

func (m *Manager) writeJSON(v interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func authURL(channelURL string, creds Credentials) (string, error) {
	u, err := url.Parse(channelURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("courier_id", creds.CourierID)
	q.Set("token", creds.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// validateCredential checks the held token locally before dialing: it must
// parse against the shared secret and carry the courier's own id.
func validateCredential(creds Credentials) error {
	if creds.Token == "" || creds.CourierID == "" {
		return fmt.Errorf("%w: missing token or courier id", ErrBadCredential)
	}
	if creds.Secret == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(creds.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(creds.Secret), nil
	})
	if err != nil || claims["courier_id"] != creds.CourierID {
		return fmt.Errorf("%w: claims check failed", ErrBadCredential)
	}
	return nil
}
