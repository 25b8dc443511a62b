package market

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedServer upgrades one connection, checks the subscribe request and
// pushes the given snapshot.
func feedServer(t *testing.T, value feedSnapshotValue) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Read subscribe request
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req feedRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "marketSubscribe" {
			t.Errorf("expected marketSubscribe, got %s", req.Method)
		}

		notif := feedNotification{
			JSONRPC: "2.0",
			Method:  "marketNotification",
			Params: &feedNotificationParams{
				Subscription: 1,
				Value:        value,
			},
		}
		if err := conn.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitForSnapshot(t *testing.T, f *WSFeed) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.latestMu.RLock()
		got := f.latest != nil
		f.latestMu.RUnlock()
		if got {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no snapshot received")
}

func TestWSFeed_ServesSnapshot(t *testing.T) {
	server := feedServer(t, feedSnapshotValue{
		Pair:         "WBNB/TOKEN",
		BaseReserve:  "500000",
		TokenReserve: "250000000",
		SpotPrice:    "2000000000000000",
		Volume24h:    "123456",
		OraclePrice:  "2100000000000000",
	})
	defer server.Close()

	ctx := context.Background()
	feed, err := NewWSFeed(ctx, wsURL(server), "WBNB/TOKEN", nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	waitForSnapshot(t, feed)

	reserves, err := feed.Reserves(ctx)
	if err != nil {
		t.Fatalf("Reserves: %v", err)
	}
	if reserves.Base.String() != "500000" || reserves.Token.String() != "250000000" {
		t.Errorf("reserves mismatch: %s / %s", reserves.Base, reserves.Token)
	}

	spot, err := feed.SpotPrice(ctx)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	if spot.String() != "2000000000000000" {
		t.Errorf("spot price mismatch: %s", spot)
	}

	vol, err := feed.TrailingVolume(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("TrailingVolume: %v", err)
	}
	if vol.String() != "123456" {
		t.Errorf("volume mismatch: %s", vol)
	}

	oracle, err := feed.Price(ctx)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if oracle.String() != "2100000000000000" {
		t.Errorf("oracle price mismatch: %s", oracle)
	}
}

func TestWSFeed_SpotPriceDerivedFromReserves(t *testing.T) {
	// No spot price on the feed: derived from reserves instead.
	server := feedServer(t, feedSnapshotValue{
		Pair:         "WBNB/TOKEN",
		BaseReserve:  "2000",
		TokenReserve: "1000",
		SpotPrice:    "0",
		Volume24h:    "0",
	})
	defer server.Close()

	ctx := context.Background()
	feed, err := NewWSFeed(ctx, wsURL(server), "WBNB/TOKEN", nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	waitForSnapshot(t, feed)

	spot, err := feed.SpotPrice(ctx)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	want := SpotPriceFromReserves(&PoolReserves{Base: big.NewInt(2000), Token: big.NewInt(1000)})
	if spot.Cmp(want) != 0 {
		t.Errorf("expected derived price %s, got %s", want, spot)
	}
}

func TestWSFeed_NoOracleQuote(t *testing.T) {
	server := feedServer(t, feedSnapshotValue{
		Pair:         "WBNB/TOKEN",
		BaseReserve:  "1",
		TokenReserve: "1",
		SpotPrice:    "1",
		Volume24h:    "1",
	})
	defer server.Close()

	ctx := context.Background()
	feed, err := NewWSFeed(ctx, wsURL(server), "WBNB/TOKEN", nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	waitForSnapshot(t, feed)

	if _, err := feed.Price(ctx); err == nil {
		t.Error("expected error when the feed carries no oracle quote")
	}
}

func TestWSFeed_NoSnapshotYet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	feed, err := NewWSFeed(ctx, wsURL(server), "WBNB/TOKEN", nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	if _, err := feed.Reserves(ctx); err == nil {
		t.Error("expected error before the first snapshot")
	}
}

func TestWSFeed_StaleSnapshotRejected(t *testing.T) {
	server := feedServer(t, feedSnapshotValue{
		Pair:         "WBNB/TOKEN",
		BaseReserve:  "1",
		TokenReserve: "1",
		SpotPrice:    "1",
		Volume24h:    "1",
	})
	defer server.Close()

	cfg := DefaultFeedConfig()
	cfg.MaxSnapshotAge = 50 * time.Millisecond

	ctx := context.Background()
	feed, err := NewWSFeed(ctx, wsURL(server), "WBNB/TOKEN", &cfg)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	waitForSnapshot(t, feed)
	time.Sleep(100 * time.Millisecond)

	if _, err := feed.Reserves(ctx); err == nil {
		t.Error("expected staleness error")
	}
}
