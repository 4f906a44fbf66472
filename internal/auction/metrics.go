package auction

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/jensholdgaard/draft-auction/internal/auction"

type metrics struct {
	bidsAccepted metric.Int64Counter
	bidsRejected metric.Int64Counter
	itemsSold    metric.Int64Counter
	itemsUnsold  metric.Int64Counter
	botRounds    metric.Int64Counter
	salePrice    metric.Float64Histogram
	sessions     metric.Int64UpDownCounter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)
	var (
		m   metrics
		err error
	)
	if m.bidsAccepted, err = meter.Int64Counter("auction.bids.accepted",
		metric.WithDescription("Bids applied to a live item")); err != nil {
		return nil, fmt.Errorf("creating bids accepted counter: %w", err)
	}
	if m.bidsRejected, err = meter.Int64Counter("auction.bids.rejected",
		metric.WithDescription("Human bids rejected by validation")); err != nil {
		return nil, fmt.Errorf("creating bids rejected counter: %w", err)
	}
	if m.itemsSold, err = meter.Int64Counter("auction.items.sold"); err != nil {
		return nil, fmt.Errorf("creating items sold counter: %w", err)
	}
	if m.itemsUnsold, err = meter.Int64Counter("auction.items.unsold"); err != nil {
		return nil, fmt.Errorf("creating items unsold counter: %w", err)
	}
	if m.botRounds, err = meter.Int64Counter("auction.bot.rounds",
		metric.WithDescription("Automated bidding rounds run")); err != nil {
		return nil, fmt.Errorf("creating bot rounds counter: %w", err)
	}
	if m.salePrice, err = meter.Float64Histogram("auction.sale.price",
		metric.WithUnit("{cr}")); err != nil {
		return nil, fmt.Errorf("creating sale price histogram: %w", err)
	}
	if m.sessions, err = meter.Int64UpDownCounter("auction.sessions.active"); err != nil {
		return nil, fmt.Errorf("creating active sessions counter: %w", err)
	}
	return &m, nil
}
