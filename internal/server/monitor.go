package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hpe-cray/bos/internal/eventbus"
	"github.com/hpe-cray/bos/internal/store"
)

// upgrader allows cross-origin connections the same way corsMiddleware
// does for plain HTTP requests; BOS's event stream carries no secrets
// beyond what the REST API already exposes to the same tenant header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// MonitorSession handles GET /v2/ws/sessions/{name}: a websocket feed
// of status events for one session. internal/eventbus only exposes a
// per-tenant subscription, not a per-session one, so this filters
// client-side on the session name embedded in each event's payload,
// a deliberate simplification over a true per-session stream.
func (h *Handler) MonitorSession(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	session := r.PathValue("name")

	if h.events == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	if !h.sessionExists(r.Context(), tenant, session) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnectionOpened()
		defer h.metrics.WSConnectionClosed()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.monitorReadPump(conn, cancel)
	h.monitorWritePump(ctx, conn, tenant, session)
}

// monitorReadPump drains client control frames (ping/pong, close) so
// the connection's read deadline keeps advancing; BOS's monitor feed
// is one-directional, so any data frame is ignored.
func (h *Handler) monitorReadPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// monitorWritePump subscribes to the tenant's event stream and
// forwards the events belonging to session, plus a periodic ping to
// keep the connection alive through intermediate proxies.
func (h *Handler) monitorWritePump(ctx context.Context, conn *websocket.Conn, tenant, session string) {
	eventCh, err := h.events.Subscribe(ctx, tenant)
	if err != nil {
		conn.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
		return
	}

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if !eventBelongsToSession(ev, session) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			msg := map[string]any{
				"type":      string(ev.Type),
				"id":        ev.ID,
				"timestamp": ev.Timestamp,
				"data":      json.RawMessage(ev.Data),
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("websocket write failed", "error", err)
				return
			}
			if h.metrics != nil {
				h.metrics.RecordWSMessage("outbound", string(ev.Type))
			}
		}
	}
}

// eventBelongsToSession reports whether ev's payload names session,
// looking for the "session" field shared by the component- and
// session-status event payloads. A malformed or session-less payload
// (e.g. a bare component status change not tied to any session) is
// never forwarded, since it would be ambiguous which client it's for.
func eventBelongsToSession(ev eventbus.Event, session string) bool {
	var payload struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return false
	}
	return payload.Session == session
}

// sessionExists is a small helper kept for the router's 404-before-
// upgrade check: looking a session up before paying for a websocket
// handshake gives a clean HTTP 404 instead of an upgraded connection
// that immediately has nothing to report.
func (h *Handler) sessionExists(ctx context.Context, tenant, name string) bool {
	_, found, err := h.store.Get(ctx, store.KindSessions, store.Key(tenant, name))
	return err == nil && found
}
