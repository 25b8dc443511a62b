package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// FeedConfig configures WebSocket market feed behavior.
type FeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// MaxSnapshotAge bounds how stale the cached snapshot may be before
	// reads fail. Zero disables the staleness check.
	MaxSnapshotAge time.Duration
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxSnapshotAge:    2 * time.Minute,
	}
}

// snapshot is the market state pushed by the indexer.
type snapshot struct {
	base       *big.Int
	token      *big.Int
	spot       *big.Int
	volume24h  *big.Int
	oracle     *big.Int // nil when the feed carries no oracle quote
	receivedAt time.Time
}

// WSFeed subscribes to a market-state stream for one trading pair and
// serves the Pool and Oracle read surface from the latest pushed snapshot.
// Readers never block on the network, so trigger/guard polling stays cheap
// and concurrent.
type WSFeed struct {
	endpoint string
	pair     string
	config   FeedConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	latest   *snapshot
	latestMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSFeed connects to the endpoint and subscribes to pair updates.
func NewWSFeed(ctx context.Context, endpoint, pair string, config *FeedConfig) (*WSFeed, error) {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}

	f := &WSFeed{
		endpoint: endpoint,
		pair:     pair,
		config:   cfg,
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}
	if err := f.subscribe(); err != nil {
		f.conn.Close()
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// subscribe sends the marketSubscribe request for the configured pair.
func (f *WSFeed) subscribe() error {
	req := feedRequest{
		JSONRPC: "2.0",
		ID:      f.requestID.Add(1),
		Method:  "marketSubscribe",
		Params:  []interface{}{f.pair},
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the feed.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil // Already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// readLoop reads snapshot messages and updates the cache.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			// Connection error - reconnect with exponential backoff
			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	f.subscribe()
}

// handleMessage parses a pushed market snapshot.
func (f *WSFeed) handleMessage(message []byte) {
	var notif feedNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "marketNotification" {
		return
	}
	if notif.Params == nil {
		return
	}

	v := notif.Params.Value
	snap := &snapshot{
		base:       parseBig(v.BaseReserve),
		token:      parseBig(v.TokenReserve),
		spot:       parseBig(v.SpotPrice),
		volume24h:  parseBig(v.Volume24h),
		receivedAt: time.Now(),
	}
	if v.OraclePrice != "" {
		snap.oracle = parseBig(v.OraclePrice)
	}

	f.latestMu.Lock()
	f.latest = snap
	f.latestMu.Unlock()
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			f.connMu.Unlock()
		}
	}
}

// current returns the latest snapshot or an error when absent/stale.
func (f *WSFeed) current() (*snapshot, error) {
	f.latestMu.RLock()
	snap := f.latest
	f.latestMu.RUnlock()

	if snap == nil {
		return nil, fmt.Errorf("no market snapshot received yet")
	}
	if f.config.MaxSnapshotAge > 0 && time.Since(snap.receivedAt) > f.config.MaxSnapshotAge {
		return nil, fmt.Errorf("market snapshot stale: last update %s ago", time.Since(snap.receivedAt).Round(time.Second))
	}
	return snap, nil
}

// Reserves returns reserves from the latest snapshot.
func (f *WSFeed) Reserves(_ context.Context) (*PoolReserves, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	return &PoolReserves{
		Base:  new(big.Int).Set(snap.base),
		Token: new(big.Int).Set(snap.token),
	}, nil
}

// SpotPrice returns the pool-implied price from the latest snapshot.
func (f *WSFeed) SpotPrice(_ context.Context) (*big.Int, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	if snap.spot.Sign() > 0 {
		return new(big.Int).Set(snap.spot), nil
	}
	return SpotPriceFromReserves(&PoolReserves{Base: snap.base, Token: snap.token}), nil
}

// TrailingVolume returns the feed's 24h volume observation. The feed
// publishes a fixed trailing window; narrower windows are not available
// over this transport.
func (f *WSFeed) TrailingVolume(_ context.Context, _ time.Duration) (*big.Int, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(snap.volume24h), nil
}

// Price returns the oracle quote carried on the feed.
func (f *WSFeed) Price(_ context.Context) (*big.Int, error) {
	snap, err := f.current()
	if err != nil {
		return nil, err
	}
	if snap.oracle == nil {
		return nil, fmt.Errorf("feed carries no oracle quote")
	}
	return new(big.Int).Set(snap.oracle), nil
}

func parseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// Feed message types

type feedRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type feedNotification struct {
	JSONRPC string                  `json:"jsonrpc"`
	Method  string                  `json:"method"`
	Params  *feedNotificationParams `json:"params"`
}

type feedNotificationParams struct {
	Subscription int64             `json:"subscription"`
	Value        feedSnapshotValue `json:"value"`
}

type feedSnapshotValue struct {
	Pair         string `json:"pair"`
	BaseReserve  string `json:"base_reserve"`
	TokenReserve string `json:"token_reserve"`
	SpotPrice    string `json:"spot_price"`
	Volume24h    string `json:"volume_24h"`
	OraclePrice  string `json:"oracle_price,omitempty"`
}

// Compile-time interface checks.
var (
	_ Pool   = (*WSFeed)(nil)
	_ Oracle = (*WSFeed)(nil)
)
