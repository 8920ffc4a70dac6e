package venueapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0x52908400098527886e0f7030069857d2e4169ee7"

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(domain.VenueOstium, srv.URL, 2*time.Second, 100, 10)
}

func TestBalanceSendsChecksummedAddress(t *testing.T) {
	var got addressRequest
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/balance", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"withdrawableUsd":"1523.75"}`))
	})

	bal, err := c.Balance(context.Background(), wallet)
	require.NoError(t, err)
	assert.InDelta(t, 1523.75, bal, 1e-9)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", got.Address)
}

func TestBalanceAcceptsHyperliquidShape(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"withdrawable":250.5,"accountValue":900}`))
	})
	bal, err := c.Balance(context.Background(), wallet)
	require.NoError(t, err)
	assert.InDelta(t, 250.5, bal, 1e-9)
}

func TestBalanceErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"service failure": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"rpc down"}`))
		},
		"http 500": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
		"no field": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newServer(t, h)
			_, err := c.Balance(context.Background(), wallet)
			assert.Error(t, err)
		})
	}
}

func TestInvalidAddressNeverHitsNetwork(t *testing.T) {
	called := false
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := c.Positions(context.Background(), "not-a-wallet")
	require.Error(t, err)
	assert.True(t, IsInvalidAddress(err))
	assert.False(t, called)
}

func TestPositionsNormalizesVenueShapes(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"positions":[
			{"market":"BTC/USD","side":"long","collateral":"100","entryPrice":"64000.5","leverage":"10","tradeId":"7","takeProfitPrice":"70000","stopLossPrice":0},
			{"coin":"ETH","szi":"-2.5","entryPx":"3100","positionValue":"7750","leverage":5},
			{"market":"","side":"long"}
		]}`))
	})

	positions, err := c.Positions(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	btc := positions[0]
	assert.Equal(t, "7", btc.ID)
	assert.Equal(t, "BTC", btc.Token)
	assert.Equal(t, domain.SideLong, btc.Side)
	assert.InDelta(t, 100, btc.Collateral, 1e-9)
	assert.InDelta(t, 1000, btc.Notional, 1e-9)
	require.NotNil(t, btc.TakeProfit)
	assert.InDelta(t, 70000, *btc.TakeProfit, 1e-9)
	assert.Nil(t, btc.StopLoss)

	eth := positions[1]
	assert.Equal(t, "ETH", eth.ID)
	assert.Equal(t, domain.SideShort, eth.Side)
	assert.InDelta(t, 7750, eth.Notional, 1e-9)
	assert.InDelta(t, 1550, eth.Collateral, 1e-9)
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient(domain.VenueAster, "", time.Second, 1, 1)
	_, err := c.Balance(context.Background(), wallet)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestRegistryUnknownVenue(t *testing.T) {
	r := NewRegistry(NewClient(domain.VenueOstium, "http://x", time.Second, 1, 1))
	_, err := r.Balance(context.Background(), domain.VenueAster, wallet)
	assert.ErrorIs(t, err, domain.ErrUnknownVenue)
}
