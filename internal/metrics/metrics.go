// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames examined per capture interface.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frer_frames_total",
			Help: "Total number of frames examined",
		},
		[]string{"interface"},
	)

	// RTagFramesTotal counts frames carrying an R-TAG per capture interface.
	RTagFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frer_rtag_frames_total",
			Help: "Total number of frames carrying an R-TAG",
		},
		[]string{"interface"},
	)

	// ClassifiedTotal counts elimination decisions.
	ClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frer_classified_total",
			Help: "Total number of R-TAG frames by stream and classification",
		},
		[]string{"stream", "classification"},
	)

	// ReservedAnomaliesTotal counts tags with a non-zero reserved field.
	ReservedAnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frer_reserved_anomalies_total",
			Help: "Total number of R-TAGs with a non-zero reserved field",
		},
	)

	// RejectedTotal counts tags refused before classification.
	RejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frer_rejected_total",
			Help: "Total number of R-TAG frames rejected before classification",
		},
	)

	// HistoryRetained tracks the sequence numbers currently remembered per stream.
	HistoryRetained = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "frer_history_retained",
			Help: "Sequence numbers currently retained in the stream history",
		},
		[]string{"stream"},
	)

	// EliminationRatio tracks the eliminated share of R-TAG frames in percent.
	EliminationRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "frer_elimination_rate_percent",
			Help: "Percentage of R-TAG frames eliminated as duplicates",
		},
	)

	// CaptureDropsTotal counts frames dropped between capture and analysis.
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frer_capture_drops_total",
			Help: "Total number of captured frames dropped before analysis",
		},
		[]string{"interface"},
	)

	// SentFramesTotal counts generated frames by interface and copy index.
	SentFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frer_sent_frames_total",
			Help: "Total number of frames transmitted",
		},
		[]string{"interface", "copy"},
	)

	// ReporterErrorsTotal counts reporter failures.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frer_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)
