package pricewatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/scamcheck/core/logger"
)

// PriceSource yields the current price of a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Notifier receives threshold-crossing alerts.
type Notifier interface {
	Alert(ctx context.Context, symbol string, price, baseline, deltaPct float64) error
}

// NotifierFunc adapts a bare function to the Notifier interface.
type NotifierFunc func(ctx context.Context, symbol string, price, baseline, deltaPct float64) error

func (f NotifierFunc) Alert(ctx context.Context, symbol string, price, baseline, deltaPct float64) error {
	return f(ctx, symbol, price, baseline, deltaPct)
}

// Config carries the watcher parameters.
type Config struct {
	Symbols      []string
	Interval     time.Duration
	ThresholdPct float64
}

func (c *Config) normalize() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.ThresholdPct <= 0 {
		c.ThresholdPct = 5
	}
}

// Watcher polls the source on an interval and alerts when a symbol moves
// beyond the threshold relative to its baseline. The baseline resets to
// the alerting price, so a single spike fires once and only a further
// move of the full threshold fires again.
type Watcher struct {
	cfg    Config
	source PriceSource
	notify Notifier

	mu       sync.Mutex
	baseline map[string]float64
}

func NewWatcher(cfg Config, source PriceSource, notify Notifier) *Watcher {
	cfg.normalize()
	return &Watcher{
		cfg:      cfg,
		source:   source,
		notify:   notify,
		baseline: make(map[string]float64),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if len(w.cfg.Symbols) == 0 {
		return
	}
	logger.Info(ctx, "pricewatch", "watcher started",
		slog.Int("symbols", len(w.cfg.Symbols)),
		slog.Duration("interval", w.cfg.Interval))
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "pricewatch", "watcher stopped")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check polls every symbol once. Exposed so the loop body is testable
// without waiting on the ticker.
func (w *Watcher) Check(ctx context.Context) {
	for _, sym := range w.cfg.Symbols {
		price, err := w.source.Price(ctx, sym)
		if err != nil {
			logger.Warn(ctx, "pricewatch", "price fetch failed",
				slog.String("symbol", sym),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
			continue
		}
		w.observe(ctx, sym, price)
	}
}

func (w *Watcher) observe(ctx context.Context, symbol string, price float64) {
	w.mu.Lock()
	base, ok := w.baseline[symbol]
	if !ok || base == 0 {
		w.baseline[symbol] = price
		w.mu.Unlock()
		return
	}
	deltaPct := (price - base) / base * 100
	if deltaPct < w.cfg.ThresholdPct && deltaPct > -w.cfg.ThresholdPct {
		w.mu.Unlock()
		return
	}
	w.baseline[symbol] = price
	w.mu.Unlock()

	logger.Info(ctx, "pricewatch", "threshold crossed",
		slog.String("symbol", symbol),
		slog.Float64("delta_pct", deltaPct))
	if w.notify == nil {
		return
	}
	if err := w.notify.Alert(ctx, symbol, price, base, deltaPct); err != nil {
		logger.Warn(ctx, "pricewatch", "alert delivery failed",
			slog.String("symbol", symbol),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
}
