package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain metrics for the comic lifecycle. Label values are small closed sets.
var (
	// ComicsIngested counts ingestion cycles by result:
	// "new", "duplicate", "scrape_failed", "error".
	ComicsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicbot_comics_ingested_total",
			Help: "Comic ingestion attempts by result.",
		},
		[]string{"result"},
	)

	// Deliveries counts per-guild deliveries by result:
	// "ok", "channel_unresolved", "send_failed", "conflict", "record_failed".
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicbot_deliveries_total",
			Help: "Per-guild comic deliveries by result.",
		},
		[]string{"result"},
	)

	// Votes counts vote interactions by result: "ok", "closed", "invalid", "error".
	Votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicbot_votes_total",
			Help: "Vote interactions by result.",
		},
		[]string{"result"},
	)

	// PollsClosed counts comics whose poll was closed.
	PollsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comicbot_polls_closed_total",
			Help: "Comics whose rating window was closed.",
		},
	)

	// OpenComics gauges the size of the in-memory open-comic set.
	OpenComics = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "comicbot_open_comics",
			Help: "Comics currently accepting votes.",
		},
	)
)

func init() {
	prometheus.MustRegister(ComicsIngested, Deliveries, Votes, PollsClosed, OpenComics)
}
