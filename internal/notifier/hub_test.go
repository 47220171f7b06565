package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelscout/internal/model"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPush(t *testing.T, conn *websocket.Conn) pushMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg pushMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestHub_PushPriceLevel(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	level := model.PriceLevel{
		ID:          42,
		Market:      "GBP/USD",
		Granularity: "15Min",
		Time:        time.Date(2020, 10, 8, 9, 15, 0, 0, time.UTC),
		Spec:        model.PivotSpec{Kind: model.PivotHigh, Count: 7},
		Side:        model.Sell,
		AskPrice:    1.29380,
		BidPrice:    1.29362,
		Active:      true,
	}

	// Registration races the push; retry until the subscriber is wired in.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.PushPriceLevel(level)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	msg := readPush(t, conn)
	<-done
	assert.Equal(t, "price_level", msg.Type)

	data, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var got model.PriceLevel
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, level.Market, got.Market)
	assert.Equal(t, level.Spec, got.Spec)
	assert.Equal(t, level.Side, got.Side)
}

func TestHub_PushStrategy(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	strategy := model.Strategy{
		ID:          1,
		Market:      "GBP/USD",
		Granularity: "15Min",
		Name:        "pivot scout",
		Active:      true,
		PivotCount:  7,
		Count:       3,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.PushStrategy(strategy)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	msg := readPush(t, conn)
	<-done
	assert.Equal(t, "strategy", msg.Type)

	data, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var got model.Strategy
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, strategy.Name, got.Name)
	assert.Equal(t, strategy.Count, got.Count)
}

func TestHub_FanOutToAllSubscribers(t *testing.T) {
	hub, url := startHub(t)
	first := dial(t, url)
	second := dial(t, url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.PushPriceLevel(model.PriceLevel{Market: "GBP/USD"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	assert.Equal(t, "price_level", readPush(t, first).Type)
	assert.Equal(t, "price_level", readPush(t, second).Type)
	<-done
}

func TestHub_PushWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			hub.PushPriceLevel(model.PriceLevel{Market: "GBP/USD"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked with no subscribers")
	}
}
