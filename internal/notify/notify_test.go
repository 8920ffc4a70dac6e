package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	events []string
}

func (r *recordingSender) Send(_ context.Context, event, _, _ string) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventSignalOpened}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventSignalOpened, "t", "m"))
	require.NoError(t, n.Notify(context.Background(), EventSignalClosed, "t", "m"))
	assert.Equal(t, []string{EventSignalOpened}, s.events)
}

func TestNotifierJoinsFailures(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.events, 1)
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var got map[string][]discordEmbed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), EventSignalOpened, "OPEN LONG BTC", "body"))
	require.Len(t, got["embeds"], 1)
	assert.Equal(t, "OPEN LONG BTC", got["embeds"][0].Title)
	assert.Equal(t, discordColors[EventSignalOpened], got["embeds"][0].Color)
}

func TestTelegramSenderEscapesAndReportsStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("chat not found"))
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	err := s.Send(context.Background(), EventError, "a<b", "c&d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, "<b>a&lt;b</b>\nc&amp;d", got["text"])
}

func TestSignalEvent(t *testing.T) {
	ev, ok := SignalEvent(domain.Signal{NetChange: domain.NetChangeOpen})
	assert.True(t, ok)
	assert.Equal(t, EventSignalOpened, ev)

	ev, ok = SignalEvent(domain.Signal{NetChange: domain.NetChangeNone, OracleFailure: domain.OracleTimeout})
	assert.True(t, ok)
	assert.Equal(t, EventOracleFallback, ev)

	_, ok = SignalEvent(domain.Signal{NetChange: domain.NetChangeNone})
	assert.False(t, ok)
}

func TestFormatSignal(t *testing.T) {
	title, msg := FormatSignal(domain.Signal{
		Token: "ETH", Side: domain.SideShort, NetChange: domain.NetChangeFlip,
		DeploymentID: "d1", Venue: domain.VenueHyperliquid, ShouldTrade: true,
		AllocationPct: 12.5, Leverage: 3, ClosePositionIDs: []string{"p1"},
		Score: domain.CompositeScore{Final: 0.42, Tier: domain.TierModerate},
	})
	assert.Equal(t, "FLIP SHORT ETH", title)
	assert.Contains(t, msg, "Allocation: 12.5% at 3x")
	assert.Contains(t, msg, "Closing: p1")
	assert.Contains(t, msg, "Score: 0.42 (MODERATE)")
}
