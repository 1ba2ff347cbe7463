package api

import (
	"net/http"
	"sync"
	"time"

	models "CloudCostIQ/internal/domain/models"
	xhttp "CloudCostIQ/pkg/http"
	xlogger "CloudCostIQ/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// AnomalyAlert is the message pushed to websocket subscribers.
type AnomalyAlert struct {
	OrgID     string               `json:"org_id"`
	Timestamp time.Time            `json:"timestamp"`
	Anomalies []models.CostAnomaly `json:"anomalies"`
}

// AlertsHub fans anomaly alerts out to connected websocket clients. Each
// client subscribes to one org. Slow clients are dropped rather than
// blocking the broadcast.
type AlertsHub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*alertClient]struct{}
	closed  bool
}

type alertClient struct {
	orgID string
	send  chan AnomalyAlert
	conn  *websocket.Conn
}

func NewAlertsHub(logger *xlogger.Logger) *AlertsHub {
	return &AlertsHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[*alertClient]struct{}{},
	}
}

func (h *AlertsHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/alerts", h.Serve)
}

// Serve upgrades the connection and streams alerts for the requested org.
func (h *AlertsHub) Serve(c echo.Context) error {
	orgID := c.QueryParam("org_id")
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org_id is required")
	}
	backlog := xhttp.ParseIntDefault(c.QueryParam("backlog"), 16)
	if backlog < 1 || backlog > 256 {
		backlog = 16
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &alertClient{orgID: orgID, send: make(chan AnomalyAlert, backlog), conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("alert subscriber connected", xlogger.String("org_id", orgID))

	go h.writeLoop(client)
	h.readLoop(client)
	return nil
}

// readLoop drains control frames until the peer goes away.
func (h *AlertsHub) readLoop(client *alertClient) {
	defer h.drop(client)
	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertsHub) writeLoop(client *alertClient) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case alert, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(alert); err != nil {
				h.drop(client)
				return
			}
		case <-ping.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(client)
				return
			}
		}
	}
}

func (h *AlertsHub) drop(client *alertClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	client.conn.Close()
}

// NotifyAnomalies implements the analyzer's alert sink.
func (h *AlertsHub) NotifyAnomalies(orgID string, anomalies []models.CostAnomaly) {
	alert := AnomalyAlert{OrgID: orgID, Timestamp: time.Now().UTC(), Anomalies: anomalies}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.orgID != orgID {
			continue
		}
		select {
		case client.send <- alert:
		default:
			// buffer full; the write loop will notice on next write failure
			h.logger.Warn("alert subscriber lagging", xlogger.String("org_id", orgID))
		}
	}
}

// Shutdown disconnects every client.
func (h *AlertsHub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
