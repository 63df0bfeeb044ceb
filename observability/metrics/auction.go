package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type AuctionMetrics struct {
	auctionsOpened prometheus.Counter
	auctionsClosed prometheus.Counter
	bidsAccepted   prometheus.Counter
	bidsRejected   *prometheus.CounterVec
	extensions     prometheus.Counter
	escrowLocked   prometheus.Gauge
}

var (
	auctionOnce     sync.Once
	auctionRegistry *AuctionMetrics
)

func Auction() *AuctionMetrics {
	auctionOnce.Do(func() {
		auctionRegistry = &AuctionMetrics{
			auctionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "auction_opened_total",
				Help: "Count of auctions successfully initialized.",
			}),
			auctionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "auction_closed_total",
				Help: "Count of auctions settled and destroyed.",
			}),
			bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "auction_bids_accepted_total",
				Help: "Count of bids that settled successfully.",
			}),
			bidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "auction_bids_rejected_total",
				Help: "Count of rejected bids by failure kind.",
			}, []string{"reason"}),
			extensions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "auction_deadline_extensions_total",
				Help: "Count of anti-snipe deadline extensions applied.",
			}),
			escrowLocked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "auction_escrow_locked",
				Help: "Asset units currently held across all escrow accounts.",
			}),
		}
		prometheus.MustRegister(
			auctionRegistry.auctionsOpened,
			auctionRegistry.auctionsClosed,
			auctionRegistry.bidsAccepted,
			auctionRegistry.bidsRejected,
			auctionRegistry.extensions,
			auctionRegistry.escrowLocked,
		)
	})
	return auctionRegistry
}

func (m *AuctionMetrics) ObserveAuctionOpened() {
	if m == nil {
		return
	}
	m.auctionsOpened.Inc()
}

func (m *AuctionMetrics) ObserveAuctionClosed() {
	if m == nil {
		return
	}
	m.auctionsClosed.Inc()
}

func (m *AuctionMetrics) ObserveBidAccepted() {
	if m == nil {
		return
	}
	m.bidsAccepted.Inc()
}

func (m *AuctionMetrics) ObserveBidRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.bidsRejected.WithLabelValues(reason).Inc()
}

func (m *AuctionMetrics) ObserveExtension() {
	if m == nil {
		return
	}
	m.extensions.Inc()
}

func (m *AuctionMetrics) SetEscrowLocked(total uint64) {
	if m == nil {
		return
	}
	m.escrowLocked.Set(float64(total))
}
