package irisfast

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("ws not connected")

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket is the Iris event stream. It reconnects with backoff and
// serialises frame writes.
type WebSocket struct {
	wsURL  string
	logger *zap.Logger

	conn   *websocket.Conn
	state  WebSocketState
	stateM sync.RWMutex
	writeM sync.Mutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	cbSeq    int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

var _ WSClient = (*WebSocket)(nil)

func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
	return &WebSocket{
		wsURL:                wsURL,
		logger:               zap.NewNop(),
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

func (ws *WebSocket) SetLogger(l *zap.Logger) {
	if l != nil {
		ws.logger = l
	}
}

// SetHeaderProvider allows injecting headers into the WS handshake.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) {
	ws.headerProvider = h
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	if s := ws.State(); s == WSStateConnected || s == WSStateConnecting {
		return nil
	}
	ws.rootCtx, ws.rootCancel = context.WithCancel(context.Background())
	ws.setState(WSStateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := ws.dial(dialCtx)
	if err != nil {
		ws.setState(WSStateFailed)
		ws.scheduleReconnect()
		return err
	}
	ws.attach(conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	return conn, err
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.stateM.Lock()
	ws.conn = conn
	ws.stateM.Unlock()
	ws.setState(WSStateConnected)

	ws.wg.Add(2)
	go ws.listen(conn)
	go ws.pingLoop(conn)
}

func (ws *WebSocket) State() WebSocketState {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) Connected() bool {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.conn != nil && ws.state == WSStateConnected
}

// WriteJSON sends one frame. Concurrent callers are serialised.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.stateM.RLock()
	conn, state := ws.conn, ws.state
	ws.stateM.RUnlock()
	if conn == nil || state != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		if ws.isStopping() {
			return
		}
		var msg Message
		if err := wsjson.Read(ws.rootCtx, conn, &msg); err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Warn("ws_read_error", zap.Error(err))
			ws.drop(conn, "reconnect")
			return
		}

		ws.cbM.RLock()
		callbacks := append([]callbackEntry(nil), ws.msgCbs...)
		ws.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&msg)
			}
		}
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-ws.rootCtx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if !ws.isStopping() {
					ws.logger.Warn("ws_ping_failure", zap.Error(err))
					ws.drop(conn, "ping failure")
				}
				return
			}
		}
	}
}

// drop closes conn if it is still the live connection and starts reconnecting.
func (ws *WebSocket) drop(conn *websocket.Conn, reason string) {
	ws.stateM.Lock()
	live := ws.conn == conn
	if live {
		ws.conn = nil
	}
	ws.stateM.Unlock()
	if !live {
		return
	}
	_ = conn.Close(websocket.StatusGoingAway, reason)
	ws.setState(WSStateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 {
		return
	}
	ws.setState(WSStateReconnecting)

	go func() {
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				return
			case <-time.After(ws.reconnectDelay + backoffDuration(attempt)):
			}
			dialCtx, cancel := context.WithTimeout(ws.rootCtx, 10*time.Second)
			conn, err := ws.dial(dialCtx)
			cancel()
			if err != nil {
				ws.logger.Warn("ws_reconnect_error", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			ws.attach(conn)
			return
		}
		ws.setState(WSStateFailed)
	}()
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.cbSeq++
	ws.msgCbs = append(ws.msgCbs, callbackEntry{id: ws.cbSeq, callback: cb})
	return ws.cbSeq
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.msgCbs {
		if cb.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.cbSeq++
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.cbSeq, callback: cb})
	return ws.cbSeq
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.stateCbs {
		if cb.id == id {
			ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.stateM.Lock()
	ws.state = state
	ws.stateM.Unlock()

	ws.cbM.RLock()
	callbacks := append([]stateCallbackEntry(nil), ws.stateCbs...)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
	ws.stateM.Lock()
	conn := ws.conn
	ws.conn = nil
	ws.stateM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if ws.rootCancel != nil {
		ws.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(WSStateDisconnected)
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headerProvider == nil {
		return hdr
	}
	for k, v := range ws.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
