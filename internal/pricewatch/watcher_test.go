package pricewatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	prices map[string][]float64
	errs   map[string]error
}

func (s *scriptedSource) Price(_ context.Context, symbol string) (float64, error) {
	if err := s.errs[symbol]; err != nil {
		return 0, err
	}
	q := s.prices[symbol]
	if len(q) == 0 {
		return 0, errors.New("script exhausted")
	}
	p := q[0]
	s.prices[symbol] = q[1:]
	return p, nil
}

type recordedAlert struct {
	symbol   string
	price    float64
	deltaPct float64
}

func collectAlerts(out *[]recordedAlert) NotifierFunc {
	return func(_ context.Context, symbol string, price, _, deltaPct float64) error {
		*out = append(*out, recordedAlert{symbol: symbol, price: price, deltaPct: deltaPct})
		return nil
	}
}

func TestWatcherAlertsOnThreshold(t *testing.T) {
	src := &scriptedSource{prices: map[string][]float64{
		"BTCUSDT": {100, 102, 106, 107},
	}}
	var alerts []recordedAlert
	w := NewWatcher(Config{Symbols: []string{"BTCUSDT"}, ThresholdPct: 5}, src, collectAlerts(&alerts))

	ctx := context.Background()
	w.Check(ctx) // baseline
	w.Check(ctx) // +2%, below threshold
	require.Empty(t, alerts)

	w.Check(ctx) // +6% from baseline
	require.Len(t, alerts, 1)
	assert.Equal(t, "BTCUSDT", alerts[0].symbol)
	assert.InDelta(t, 6.0, alerts[0].deltaPct, 0.001)

	// Baseline reset to 106, so 107 is under threshold again.
	w.Check(ctx)
	assert.Len(t, alerts, 1)
}

func TestWatcherAlertsOnDrop(t *testing.T) {
	src := &scriptedSource{prices: map[string][]float64{
		"ETHUSDT": {200, 188},
	}}
	var alerts []recordedAlert
	w := NewWatcher(Config{Symbols: []string{"ETHUSDT"}, ThresholdPct: 5}, src, collectAlerts(&alerts))

	ctx := context.Background()
	w.Check(ctx)
	w.Check(ctx)
	require.Len(t, alerts, 1)
	assert.InDelta(t, -6.0, alerts[0].deltaPct, 0.001)
}

func TestWatcherSkipsFailingSymbol(t *testing.T) {
	src := &scriptedSource{
		prices: map[string][]float64{"BTCUSDT": {100, 110}},
		errs:   map[string]error{"ETHUSDT": errors.New("api down")},
	}
	var alerts []recordedAlert
	w := NewWatcher(Config{Symbols: []string{"ETHUSDT", "BTCUSDT"}, ThresholdPct: 5}, src, collectAlerts(&alerts))

	ctx := context.Background()
	w.Check(ctx)
	w.Check(ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, "BTCUSDT", alerts[0].symbol)
}

func TestClientParsesTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		rw.Write([]byte(`{"symbol":"BTCUSDT","price":"64250.10"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	price, err := c.Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 64250.10, price, 0.001)
}

func TestClientRejectsBadResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "NOPE":
			rw.WriteHeader(http.StatusBadRequest)
		default:
			rw.Write([]byte(`{"symbol":"X","price":"not-a-number"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	_, err := c.Price(context.Background(), "NOPE")
	assert.Error(t, err)
	_, err = c.Price(context.Background(), "X")
	assert.Error(t, err)
}
