package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MergeSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_registry_merge_sessions_total",
		Help: "Total merge upload sessions, by mode",
	}, []string{"mode"})
	MergeRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_registry_merge_rows_total",
		Help: "Total merge-instruction rows processed, by result",
	}, []string{"result"})
	UploadsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asset_registry_uploads_rejected_total",
		Help: "Total upload requests rejected before processing",
	})
	CartoPushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asset_registry_carto_pushes_total",
		Help: "Total assets pushed to the Carto table",
	})
	CartoFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asset_registry_carto_failures_total",
		Help: "Total failed Carto sync attempts",
	})
)

func init() {
	prometheus.MustRegister(
		MergeSessionsTotal,
		MergeRowsTotal,
		UploadsRejectedTotal,
		CartoPushesTotal,
		CartoFailuresTotal,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
