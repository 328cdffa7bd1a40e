package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type captureSender struct {
	name   string
	titles []string
	err    error
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return c.err
}

func (c *captureSender) Name() string { return c.name }

func TestNotify_FiltersEvents(t *testing.T) {
	s := &captureSender{name: "cap"}
	n := NewNotifier([]Sender{s}, []string{EventTradeExecuted, " "}, nil)

	require.NoError(t, n.Notify(context.Background(), EventOpportunityDetected, "skip", ""))
	require.NoError(t, n.Notify(context.Background(), EventTradeExecuted, "keep", ""))

	assert.Equal(t, []string{"keep"}, s.titles)
}

func TestNotify_CollectsSenderErrors(t *testing.T) {
	boom := errors.New("boom")
	bad := &captureSender{name: "bad", err: boom}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, nil)

	err := n.Notify(context.Background(), EventCatalogueRebuilt, "t", "m")

	assert.ErrorIs(t, err, boom)
	assert.Len(t, good.titles, 1)
}

func TestNotify_NoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), EventTradeExecuted, "t", "m"))
}

func TestFormatOpportunity(t *testing.T) {
	opp := domain.Opportunity{
		Cycle:       domain.Cycle{"BTC/USDT", "ETH/BTC", "ETH/USDT"},
		TradeAmount: 100,
		Profit:      0.98,
		ProfitPct:   0.0098,
		Simulated:   true,
	}
	title, body := FormatOpportunity(opp)
	assert.Equal(t, "Arbitrage opportunity (simulated)", title)
	assert.Contains(t, body, "BTC/USDT -> ETH/BTC -> ETH/USDT")
	assert.Contains(t, body, "0.9800%")
	assert.Equal(t, EventOpportunityDetected, OpportunityEvent(opp))

	opp.Simulated, opp.ExecError = false, "insufficient balance"
	title, body = FormatOpportunity(opp)
	assert.Equal(t, "Execution failed", title)
	assert.Contains(t, body, "insufficient balance")
	assert.Equal(t, EventExecutionFailed, OpportunityEvent(opp))

	opp.ExecError, opp.Executed = "", true
	assert.Equal(t, EventTradeExecuted, OpportunityEvent(opp))
}

func TestTelegramSender(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.apiBase = srv.URL

	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "*Title*\nbody", got.Text)
	assert.Equal(t, "Markdown", got.ParseMode)
}

func TestDiscordSender_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad webhook"))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad webhook")
}

func TestDiscordSender_Embed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	d.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, d.Send(context.Background(), "Execution failed", "leg 2 rejected"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Execution failed", got.Embeds[0].Title)
	assert.Equal(t, "leg 2 rejected", got.Embeds[0].Description)
	assert.Equal(t, discordRed, got.Embeds[0].Color)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.Embeds[0].Timestamp)
}

func TestSender_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
