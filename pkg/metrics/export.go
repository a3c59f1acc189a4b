package metrics

import (
	"io"
	"net/http"

	"github.com/hyp3rd/ewrap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Handler serves the metrics of gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteText writes every metric family of gatherer to w in the Prometheus
// text format. Used by commands that report metrics once instead of serving them.
func WriteText(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return ewrap.Wrap(err, "gathering metrics")
	}

	for _, family := range families {
		_, err = expfmt.MetricFamilyToText(w, family)
		if err != nil {
			return ewrap.Wrap(err, "writing metrics").
				WithMetadata("metric", family.GetName())
		}
	}

	return nil
}
