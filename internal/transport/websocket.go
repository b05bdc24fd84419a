package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "guitardiag/internal/log"
)

// WebSocketTransport implements Transport by broadcasting JSON-encoded
// snapshots to every connected client over a WebSocket upgrade.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Snapshot
	server    *http.Server
}

// NewWebSocketTransport starts an HTTP server on addr exposing a single
// "/ws" upgrade endpoint, and begins broadcasting in the background.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Snapshot, 256),
	}
	wst.start()
	return wst
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Addr:    wst.addr,
		Handler: mux,
	}

	go func() {
		applog.Infof("transport: websocket server listening on %s", wst.addr)
		if err := wst.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("transport: websocket server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("transport: websocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	wst.clientsMu.Unlock()
	applog.Infof("transport: client connected, total: %d", len(wst.clients))

	go func() {
		_, _, err := conn.ReadMessage()
		if err != nil {
			wst.clientsMu.Lock()
			delete(wst.clients, conn)
			wst.clientsMu.Unlock()
			conn.Close()
			applog.Infof("transport: client disconnected, total: %d", len(wst.clients))
		}
	}()
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for snapshot := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			if err := client.WriteJSON(snapshot); err != nil {
				applog.Errorf("transport: error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send enqueues snapshot for broadcast. If the broadcast channel is full
// (a slow or absent consumer), the snapshot is dropped rather than blocking
// the caller. No other rate limiting is applied.
func (wst *WebSocketTransport) Send(snapshot Snapshot) error {
	select {
	case wst.broadcast <- snapshot:
	default:
	}
	return nil
}

// Close shuts down the WebSocket server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	if wst.server != nil {
		return wst.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)
